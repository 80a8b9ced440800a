package kafka_test

import (
	"roombook/infras/kafka"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type bookingEvent struct {
	BookingID        string `json:"booking_id"`
	PaymentReference string `json:"payment_reference"`
}

func TestMessageRoundTrip(t *testing.T) {
	message := kafka.Message{
		Key:   "b-1",
		Value: bookingEvent{BookingID: "b-1", PaymentReference: "ch_1"},
	}

	msg, err := message.ToKafkaMessage("booking.events")
	require.NoError(t, err)

	assert.Equal(t, "booking.events", msg.Topic)
	assert.Equal(t, []byte("b-1"), msg.Key)
	assert.JSONEq(t, `{"booking_id":"b-1","payment_reference":"ch_1"}`, string(msg.Value))

	decoded, err := kafka.DecodeKafkaMessage[bookingEvent](msg)
	require.NoError(t, err)
	assert.Equal(t, "ch_1", decoded.PaymentReference)
}

func TestMessageUnsupportedValue(t *testing.T) {
	message := kafka.Message{Key: "k", Value: make(chan int)}

	_, err := message.ToKafkaMessage("booking.events")

	assert.Error(t, err)
}
