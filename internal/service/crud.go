package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"crudapi/internal/dbexec"
	"crudapi/internal/planner"
	"crudapi/internal/schema"
)

// Create resolves the payload with destructive verbs forbidden, applies
// the plan in one transaction, and returns the stored record.
func (s *Service) Create(ctx context.Context, entityName string, body map[string]any) (map[string]any, error) {
	if _, err := s.entity(entityName); err != nil {
		return nil, err
	}
	resolved, err := s.resolver.ResolveCreate(body, entityName)
	if err != nil {
		return nil, err
	}

	var id any
	err = dbexec.InTransaction(ctx, s.db, func(exec dbexec.QueryExecutor) error {
		id, err = s.insertEntity(ctx, exec, entityName, resolved, nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Debug("entity created",
		slog.String("entity", entityName),
		slog.Any("id", id),
	)
	return s.Get(ctx, entityName, id)
}

// Update resolves the payload with no verb restriction, applies the plan
// in one transaction, and returns the stored record.
func (s *Service) Update(ctx context.Context, entityName string, id any, body map[string]any) (map[string]any, error) {
	entity, err := s.entity(entityName)
	if err != nil {
		return nil, err
	}
	if _, err := s.Get(ctx, entityName, id); err != nil {
		return nil, err
	}
	resolved, err := s.resolver.ResolveUpdate(body, entityName)
	if err != nil {
		return nil, err
	}

	err = dbexec.InTransaction(ctx, s.db, func(exec dbexec.QueryExecutor) error {
		entry := map[string]any{
			"where": map[string]any{schema.IdentityField: id},
			"data":  resolved,
		}
		_, patchErr := s.patchByEntry(ctx, exec, entity, entry)
		return patchErr
	})
	if err != nil {
		return nil, err
	}
	s.logger.Debug("entity updated",
		slog.String("entity", entityName),
		slog.Any("id", id),
	)
	return s.Get(ctx, entityName, id)
}

// Get returns one record by identity value.
func (s *Service) Get(ctx context.Context, entityName string, id any) (map[string]any, error) {
	entity, err := s.entity(entityName)
	if err != nil {
		return nil, err
	}
	planned, err := planner.PlanSelectByKey(entity.Table, entityColumns(entity), entity.ColumnFor(schema.IdentityField), id)
	if err != nil {
		return nil, err
	}
	records, err := queryRecords(ctx, s.exec, entity, planned)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: %s %v", ErrNotFound, entityName, id)
	}
	return records[0], nil
}

// List returns a page of records ordered by identity.
func (s *Service) List(ctx context.Context, entityName string, limit, offset uint64) ([]map[string]any, error) {
	entity, err := s.entity(entityName)
	if err != nil {
		return nil, err
	}
	planned, err := planner.PlanSelectPage(entity.Table, entityColumns(entity), entity.ColumnFor(schema.IdentityField), limit, offset)
	if err != nil {
		return nil, err
	}
	records, err := queryRecords(ctx, s.exec, entity, planned)
	if err != nil {
		return nil, err
	}
	if records == nil {
		records = []map[string]any{}
	}
	return records, nil
}

// Delete removes one record by identity value.
func (s *Service) Delete(ctx context.Context, entityName string, id any) error {
	entity, err := s.entity(entityName)
	if err != nil {
		return err
	}
	planned, err := planner.PlanDelete(entity.Table, entity.ColumnFor(schema.IdentityField), id)
	if err != nil {
		return err
	}
	result, err := s.exec.ExecContext(ctx, planned.SQL, planned.Args...)
	if err != nil {
		return mapStoreError(err)
	}
	affected, err := result.RowsAffected()
	if err == nil && affected == 0 {
		return fmt.Errorf("%w: %s %v", ErrNotFound, entityName, id)
	}
	s.logger.Debug("entity deleted",
		slog.String("entity", entityName),
		slog.Any("id", id),
	)
	return nil
}

// IsResolutionError reports whether the error came from payload
// resolution rather than the store, for HTTP status mapping.
func IsResolutionError(err error) bool {
	return errors.Is(err, ErrUnknownField) || errors.Is(err, ErrUnsupportedVerb)
}
