package repository

//go:generate go run go.uber.org/mock/mockgen -source=./repository.go -destination=../mocks/repository_mock.go -package=mocks

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"roombook/infras/otel"
	"roombook/infras/postgres"
	"roombook/internal/domains/booking/model"
	"roombook/shared/constant"
	gDto "roombook/shared/dto"
	gRepo "roombook/shared/repository"
	"slices"

	"github.com/lib/pq"
)

var (
	// ErrConstraintViolation means the store refused the row: the slot is
	// taken or the idempotency key already has a booking.
	ErrConstraintViolation = errors.New("booking violates a store constraint")
	// ErrTransient means the insert may succeed if repeated.
	ErrTransient = errors.New("transient store failure")
)

// Postgres error classes that describe the connection or server state rather
// than the statement.
var transientClasses = []pq.ErrorClass{
	"08", // connection_exception
	"40", // transaction_rollback
	"53", // insufficient_resources
	"57", // operator_intervention
}

type Booking interface {
	// Insert returns ErrConstraintViolation or ErrTransient in the chain when
	// the failure is one of those.
	Insert(ctx context.Context, model model.Booking) error
	Get(ctx context.Context, filter gDto.FilterGroup, columns ...string) (model.Booking, error)
	GetAll(ctx context.Context, params gDto.QueryParams, filter gDto.FilterGroup, columns ...string) ([]model.Booking, error)
	Count(ctx context.Context, filter gDto.FilterGroup) (int, error)
	// GetByIdempotencyKey reads the primary; it is consulted on the payment
	// path where a stale replica would cause a second charge.
	GetByIdempotencyKey(ctx context.Context, key string) (model.Booking, error)
}

type repositoryImpl struct {
	gRepo.Repository[model.Booking]
	db   *postgres.Connection
	otel otel.Otel
}

func New(db *postgres.Connection, otel otel.Otel) Booking {
	return &repositoryImpl{
		Repository: gRepo.NewRepository[model.Booking](model.EntityName, model.TableName, model.FieldID, db, otel),
		db:         db,
		otel:       otel,
	}
}

func (r *repositoryImpl) Insert(ctx context.Context, booking model.Booking) (err error) {
	ctx, scope := r.otel.NewScope(ctx, constant.OtelRepositoryScopeName, constant.OtelRepositoryScopeName+".booking.Insert")
	defer scope.End()
	defer func() { scope.TraceIfError(err) }()

	scope.SetAttribute("booking.id", booking.ID)

	return ClassifyInsertError(r.Repository.Insert(ctx, booking))
}

func (r *repositoryImpl) GetByIdempotencyKey(ctx context.Context, key string) (model.Booking, error) {
	ctx, scope := r.otel.NewScope(ctx, constant.OtelRepositoryScopeName, constant.OtelRepositoryScopeName+".booking.GetByIdempotencyKey")
	defer scope.End()

	filter := gDto.FilterGroup{
		Filters: []any{
			gDto.Filter{
				Field:    model.FieldIdempotencyKey,
				Table:    model.TableName,
				Value:    key,
				Operator: gDto.FilterOperatorEq,
			},
		},
		Operator: gDto.FilterGroupOperatorAnd,
	}

	return r.Repository.GetPrimary(ctx, filter) //nolint:wrapcheck
}

// ClassifyInsertError tags err with ErrConstraintViolation or ErrTransient.
// Anything else is returned unchanged and is treated as permanent.
func ClassifyInsertError(err error) error {
	if err == nil {
		return nil
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch {
		case pqErr.Code == constant.PqErrorCodeUniqueViolation, pqErr.Code == constant.PqErrorCodeExclusionViolation:
			return fmt.Errorf("%w (%s): %w", ErrConstraintViolation, pqErr.Constraint, err)
		case slices.Contains(transientClasses, pqErr.Code.Class()):
			return fmt.Errorf("%w: %w", ErrTransient, err)
		default:
			return err
		}
	}

	var netErr net.Error

	switch {
	case errors.Is(err, driver.ErrBadConn),
		errors.Is(err, sql.ErrConnDone),
		errors.Is(err, context.DeadlineExceeded),
		errors.As(err, &netErr):
		return fmt.Errorf("%w: %w", ErrTransient, err)
	default:
		return err
	}
}
