package main

import (
	"errors"
	"os/signal"
	"roombook/infras/kafka"
	"roombook/internal/domains/reconciliation/model"
	"roombook/shared/constant"
	"syscall"

	"github.com/rs/zerolog/log"
	kafkaGo "github.com/segmentio/kafka-go"
	"github.com/spf13/cobra"
)

const defaultWatchGroup = "roombook-reconcile-watch"

var errNoTopic = errors.New("KAFKA_TOPICS_RECONCILIATION is not set")

func watchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow reconciliation events until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			all, _ := cmd.Flags().GetBool("all")

			kit, err := toolkit()
			if err != nil {
				return err
			}

			topic := kit.Config.Kafka.Topics.Reconciliation
			if topic == constant.Empty {
				return errNoTopic
			}

			group := kit.Config.Kafka.ConsumerGroup
			if group == constant.Empty {
				group = defaultWatchGroup
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log.Info().Str("topic", topic).Str("group", group).Msg("watching reconciliation events")

			kit.Kafka.Consume(ctx, group, topic, func(message kafkaGo.Message) {
				handleEvent(message, all)
			})

			return nil
		},
	}

	cmd.Flags().Bool("all", false, "Also print cases that were compensated automatically")

	return cmd
}

func handleEvent(message kafkaGo.Message, all bool) {
	event, err := kafka.DecodeKafkaMessage[model.Event](message)
	if err != nil {
		return
	}

	if event.Type != model.EventRequiresOperator {
		if all {
			log.Info().
				Str("case_id", event.CaseID).
				Str("booking_id", event.BookingID).
				Str("status", event.Status).
				Msg(event.Type)
		}

		return
	}

	log.Warn().
		Str("case_id", event.CaseID).
		Str("booking_id", event.BookingID).
		Str("room_id", event.RoomID).
		Str("provider", event.Provider).
		Str("payment_reference", event.PaymentReference).
		Int64("amount", event.Amount).
		Str("currency", event.Currency).
		Str("reason", event.Reason).
		Int("attempts", event.Attempts).
		Str("last_error", event.LastError).
		Str("trace_id", event.TraceID).
		Time("occurred_at", event.OccurredAt).
		Msg("reconciliation requires an operator")
}
