package repository

//go:generate go run go.uber.org/mock/mockgen -source=./repository.go -destination=../mocks/repository_mock.go -package=mocks

import (
	"context"
	"errors"
	"fmt"
	"roombook/infras/otel"
	"roombook/infras/postgres"
	"roombook/internal/domains/reconciliation/model"
	"roombook/shared/constant"
	gDto "roombook/shared/dto"
	gRepo "roombook/shared/repository"

	"github.com/lib/pq"
)

// ErrDuplicate is returned by Insert when the case already exists.
var ErrDuplicate = errors.New("reconciliation case already exists")

type Reconciliation interface {
	Insert(ctx context.Context, model model.Reconciliation) error
	Get(ctx context.Context, filter gDto.FilterGroup, columns ...string) (model.Reconciliation, error)
	GetAll(ctx context.Context, params gDto.QueryParams, filter gDto.FilterGroup, columns ...string) ([]model.Reconciliation, error)
	Count(ctx context.Context, filter gDto.FilterGroup) (int, error)
	// Transition applies mod only while the case is in fromStatus and reports
	// whether it did.
	Transition(ctx context.Context, id, fromStatus string, mod map[string]any) (bool, error)
}

type repositoryImpl struct {
	gRepo.Repository[model.Reconciliation]
	db   *postgres.Connection
	otel otel.Otel
}

func New(db *postgres.Connection, otel otel.Otel) Reconciliation {
	return &repositoryImpl{
		Repository: gRepo.NewRepository[model.Reconciliation](model.EntityName, model.TableName, model.FieldID, db, otel),
		db:         db,
		otel:       otel,
	}
}

func (r *repositoryImpl) Insert(ctx context.Context, rec model.Reconciliation) error {
	ctx, scope := r.otel.NewScope(ctx, constant.OtelRepositoryScopeName, constant.OtelRepositoryScopeName+".reconciliation.Insert")
	defer scope.End()

	err := r.Repository.Insert(ctx, rec)

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == constant.PqErrorCodeUniqueViolation {
		return fmt.Errorf("%w: %w", ErrDuplicate, err)
	}

	return err //nolint:wrapcheck
}

func (r *repositoryImpl) Transition(ctx context.Context, id, fromStatus string, mod map[string]any) (bool, error) {
	ctx, scope := r.otel.NewScope(ctx, constant.OtelRepositoryScopeName, constant.OtelRepositoryScopeName+".reconciliation.Transition")
	defer scope.End()

	filter := gDto.FilterGroup{
		Filters: []any{
			gDto.Filter{
				Field:    model.FieldID,
				Table:    model.TableName,
				Value:    id,
				Operator: gDto.FilterOperatorEq,
			},
			gDto.Filter{
				ArgName:  "current_status",
				Field:    model.FieldStatus,
				Table:    model.TableName,
				Value:    fromStatus,
				Operator: gDto.FilterOperatorEq,
			},
		},
		Operator: gDto.FilterGroupOperatorAnd,
	}

	affected, err := r.Repository.UpdateAffected(ctx, mod, filter)
	if err != nil {
		scope.TraceError(err)

		return false, err //nolint:wrapcheck
	}

	return affected > 0, nil
}
