package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"crudapi/internal/dbexec"
	"crudapi/internal/planner"
	"crudapi/internal/schema"
)

// insertEntity inserts one resolved body and applies its relation plans.
// extra columns (the parent's foreign key for nested list creates) are
// merged after splitting. Returns the new row's identity value.
func (s *Service) insertEntity(ctx context.Context, exec dbexec.QueryExecutor, entityName string, body map[string]any, extra map[string]any) (any, error) {
	entity, err := s.entity(entityName)
	if err != nil {
		return nil, err
	}
	columns, plans, err := splitBody(entity, body)
	if err != nil {
		return nil, err
	}
	for column, value := range extra {
		columns[column] = value
	}

	// Singular plans run first: connect and nested create supply the
	// owner-side foreign key before the insert.
	for name, plan := range plans {
		if plan.relation.IsList() {
			continue
		}
		fkValue, assign, err := s.applySingularPreInsert(ctx, exec, entityName, plan)
		if err != nil {
			return nil, fmt.Errorf("relation %q: %w", name, err)
		}
		if assign {
			columns[singularForeignKey(plan.relation)] = fkValue
		}
	}

	idColumn := entity.ColumnFor(schema.IdentityField)
	id, ok := columns[idColumn]
	if !ok {
		id = uuid.NewString()
		columns[idColumn] = id
	}

	planned, err := planner.PlanInsert(entity.Table, columns)
	if err != nil {
		return nil, err
	}
	if _, err := exec.ExecContext(ctx, planned.SQL, planned.Args...); err != nil {
		return nil, mapStoreError(err)
	}

	for name, plan := range plans {
		if !plan.relation.IsList() {
			continue
		}
		if err := s.applyListPlan(ctx, exec, entity, plan, id); err != nil {
			return nil, fmt.Errorf("relation %q: %w", name, err)
		}
	}
	return id, nil
}

// applySingularPreInsert executes the parts of a singular plan that can
// run before the owner row exists and reports the foreign-key value to
// store on the owner. delete/disconnect on a not-yet-existing owner
// simply leave the foreign key unset.
func (s *Service) applySingularPreInsert(ctx context.Context, exec dbexec.QueryExecutor, ownerEntity string, plan relationPlan) (any, bool, error) {
	rel := plan.relation
	related, err := s.entity(rel.Entity)
	if err != nil {
		return nil, false, err
	}

	for verb, value := range plan.verbs {
		s.recordVerb(ctx, ownerEntity, rel.Name, verb)
		switch verb {
		case "create":
			body, ok := value.(map[string]any)
			if !ok {
				return nil, false, fmt.Errorf("create value must be an object, got %T", value)
			}
			id, err := s.insertEntity(ctx, exec, rel.Entity, body, nil)
			if err != nil {
				return nil, false, err
			}
			return id, true, nil

		case "connect":
			obj, ok := value.(map[string]any)
			if !ok {
				return nil, false, fmt.Errorf("connect value must be an object, got %T", value)
			}
			id, err := s.resolveConnectIdentity(ctx, exec, related, obj)
			if err != nil {
				return nil, false, err
			}
			return id, true, nil

		case "update":
			entry, ok := value.(map[string]any)
			if !ok {
				return nil, false, fmt.Errorf("update value must be an object, got %T", value)
			}
			id, err := s.patchByEntry(ctx, exec, related, entry)
			if err != nil {
				return nil, false, err
			}
			return id, true, nil

		case "delete", "disconnect":
			// Nothing to detach before the owner exists.
			return nil, false, nil

		default:
			return nil, false, fmt.Errorf("%w: %q", ErrUnsupportedVerb, verb)
		}
	}
	return nil, false, nil
}

// applySingularPatch executes a singular plan against an existing owner
// row, returning the owner-side foreign-key assignment (which may be an
// explicit nil for disconnect/delete).
func (s *Service) applySingularPatch(ctx context.Context, exec dbexec.QueryExecutor, owner *schema.Entity, ownerID any, plan relationPlan) (any, bool, error) {
	rel := plan.relation
	related, err := s.entity(rel.Entity)
	if err != nil {
		return nil, false, err
	}

	for verb := range plan.verbs {
		switch verb {
		case "create", "connect", "update":
			// Same wiring as the pre-insert path.
			return s.applySingularPreInsert(ctx, exec, owner.Name, plan)

		case "disconnect":
			s.recordVerb(ctx, owner.Name, rel.Name, verb)
			return nil, true, nil

		case "delete":
			s.recordVerb(ctx, owner.Name, rel.Name, verb)
			if err := s.deleteCurrentTarget(ctx, exec, owner, ownerID, rel, related); err != nil {
				return nil, false, err
			}
			return nil, true, nil

		default:
			return nil, false, fmt.Errorf("%w: %q", ErrUnsupportedVerb, verb)
		}
	}
	return nil, false, nil
}

// deleteCurrentTarget removes the row the owner's foreign key currently
// points at.
func (s *Service) deleteCurrentTarget(ctx context.Context, exec dbexec.QueryExecutor, owner *schema.Entity, ownerID any, rel schema.Relation, related *schema.Entity) error {
	fkColumn := singularForeignKey(rel)
	lookup, err := planner.PlanSelectByKey(owner.Table, []string{fkColumn}, owner.ColumnFor(schema.IdentityField), ownerID)
	if err != nil {
		return err
	}
	rows, err := exec.QueryContext(ctx, lookup.SQL, lookup.Args...)
	if err != nil {
		return err
	}
	var fkValue any
	found := false
	for rows.Next() {
		var scanned any
		if err := rows.Scan(&scanned); err != nil {
			rows.Close()
			return err
		}
		fkValue = normalizeScanned(scanned)
		found = true
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()
	if !found || fkValue == nil {
		return nil
	}

	del, err := planner.PlanDelete(related.Table, related.ColumnFor(referenceColumn(rel)), fkValue)
	if err != nil {
		return err
	}
	_, err = exec.ExecContext(ctx, del.SQL, del.Args...)
	return mapStoreError(err)
}

// applyListPlan executes one list relation's plan against the store.
func (s *Service) applyListPlan(ctx context.Context, exec dbexec.QueryExecutor, owner *schema.Entity, plan relationPlan, ownerID any) error {
	rel := plan.relation
	related, err := s.entity(rel.Entity)
	if err != nil {
		return err
	}
	fkColumn := listForeignKey(owner.Name, rel)

	for verb, value := range plan.verbs {
		s.recordVerb(ctx, owner.Name, rel.Name, verb)
		switch verb {
		case "create":
			items, ok := value.([]any)
			if !ok {
				return fmt.Errorf("create value must be an array, got %T", value)
			}
			for _, raw := range items {
				body, ok := raw.(map[string]any)
				if !ok {
					return fmt.Errorf("create item must be an object, got %T", raw)
				}
				if _, err := s.insertEntity(ctx, exec, rel.Entity, body, map[string]any{fkColumn: ownerID}); err != nil {
					return err
				}
			}

		case "connect":
			items, ok := value.([]any)
			if !ok {
				return fmt.Errorf("connect value must be an array, got %T", value)
			}
			for _, raw := range items {
				obj, ok := raw.(map[string]any)
				if !ok {
					return fmt.Errorf("connect item must be an object, got %T", raw)
				}
				field, idValue, ok := singleEntry(obj)
				if !ok {
					return fmt.Errorf("connect item must carry exactly one identifying field")
				}
				assign, err := planner.PlanAssignForeignKey(related.Table, fkColumn, ownerID, related.ColumnFor(field), idValue)
				if err != nil {
					return err
				}
				if _, err := exec.ExecContext(ctx, assign.SQL, assign.Args...); err != nil {
					return mapStoreError(err)
				}
			}

		case "update":
			items, ok := value.([]any)
			if !ok {
				return fmt.Errorf("update value must be an array, got %T", value)
			}
			for _, raw := range items {
				entry, ok := raw.(map[string]any)
				if !ok {
					return fmt.Errorf("update item must be an object, got %T", raw)
				}
				if _, err := s.patchByEntry(ctx, exec, related, entry); err != nil {
					return err
				}
			}

		case "disconnect":
			items, ok := value.([]any)
			if !ok {
				return fmt.Errorf("disconnect value must be an array, got %T", value)
			}
			for _, raw := range items {
				obj, ok := raw.(map[string]any)
				if !ok {
					return fmt.Errorf("disconnect item must be an object, got %T", raw)
				}
				field, idValue, ok := singleEntry(obj)
				if !ok {
					return fmt.Errorf("disconnect item must carry exactly one identifying field")
				}
				detach, err := planner.PlanClearForeignKey(related.Table, fkColumn, related.ColumnFor(field), idValue)
				if err != nil {
					return err
				}
				if _, err := exec.ExecContext(ctx, detach.SQL, detach.Args...); err != nil {
					return mapStoreError(err)
				}
			}

		case "deleteMany":
			ids, err := deleteManyIDs(value)
			if err != nil {
				return err
			}
			del, err := planner.PlanDeleteWhereIn(related.Table, related.ColumnFor(schema.IdentityField), ids)
			if err != nil {
				return err
			}
			if _, err := exec.ExecContext(ctx, del.SQL, del.Args...); err != nil {
				return mapStoreError(err)
			}

		default:
			return fmt.Errorf("%w: %q", ErrUnsupportedVerb, verb)
		}
	}
	return nil
}

// patchByEntry applies one {where, data} update entry to the related
// entity, recursing into nested relation plans inside data. Returns the
// identity value of the patched row.
func (s *Service) patchByEntry(ctx context.Context, exec dbexec.QueryExecutor, related *schema.Entity, entry map[string]any) (any, error) {
	where, _ := entry["where"].(map[string]any)
	data, _ := entry["data"].(map[string]any)
	field, whereValue, ok := singleEntry(where)
	if !ok {
		return nil, fmt.Errorf("update entry needs a single-field where object")
	}

	id := whereValue
	if field != schema.IdentityField {
		resolved, err := s.lookupIdentity(ctx, exec, related, field, whereValue)
		if err != nil {
			return nil, err
		}
		id = resolved
	}

	columns, plans, err := splitBody(related, data)
	if err != nil {
		return nil, err
	}

	for name, plan := range plans {
		if plan.relation.IsList() {
			continue
		}
		fkValue, assign, err := s.applySingularPatch(ctx, exec, related, id, plan)
		if err != nil {
			return nil, fmt.Errorf("relation %q: %w", name, err)
		}
		if assign {
			columns[singularForeignKey(plan.relation)] = fkValue
		}
	}

	if len(columns) > 0 {
		update, err := planner.PlanUpdate(related.Table, columns, related.ColumnFor(schema.IdentityField), id)
		if err != nil {
			return nil, err
		}
		if _, err := exec.ExecContext(ctx, update.SQL, update.Args...); err != nil {
			return nil, mapStoreError(err)
		}
	}

	for name, plan := range plans {
		if !plan.relation.IsList() {
			continue
		}
		if err := s.applyListPlan(ctx, exec, related, plan, id); err != nil {
			return nil, fmt.Errorf("relation %q: %w", name, err)
		}
	}
	return id, nil
}

// resolveConnectIdentity reduces a connect object to the related row's
// identity value, looking it up by unique field when necessary.
func (s *Service) resolveConnectIdentity(ctx context.Context, exec dbexec.QueryExecutor, related *schema.Entity, obj map[string]any) (any, error) {
	if id, ok := obj[schema.IdentityField]; ok {
		return id, nil
	}
	field, value, ok := singleEntry(obj)
	if !ok {
		return nil, fmt.Errorf("connect object must carry exactly one identifying field")
	}
	return s.lookupIdentity(ctx, exec, related, field, value)
}

func (s *Service) lookupIdentity(ctx context.Context, exec dbexec.QueryExecutor, related *schema.Entity, field string, value any) (any, error) {
	lookup, err := planner.PlanIdentityLookup(related.Table, related.ColumnFor(schema.IdentityField), related.ColumnFor(field), value)
	if err != nil {
		return nil, err
	}
	rows, err := exec.QueryContext(ctx, lookup.SQL, lookup.Args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: no %s with %s = %v", ErrNotFound, related.Name, field, value)
	}
	var id any
	if err := rows.Scan(&id); err != nil {
		return nil, err
	}
	return normalizeScanned(id), nil
}

func singleEntry(obj map[string]any) (string, any, bool) {
	if len(obj) != 1 {
		// Prefer the identity field when several are present.
		if v, ok := obj[schema.IdentityField]; ok {
			return schema.IdentityField, v, true
		}
		return "", nil, false
	}
	for field, value := range obj {
		return field, value, true
	}
	return "", nil, false
}

// deleteManyIDs unpacks the {"id": {"in": [...]}} predicate.
func deleteManyIDs(value any) ([]any, error) {
	predicate, ok := value.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("deleteMany value must be an object, got %T", value)
	}
	idPredicate, ok := predicate[schema.IdentityField].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("deleteMany predicate must be keyed by %q", schema.IdentityField)
	}
	ids, ok := idPredicate["in"].([]any)
	if !ok || len(ids) == 0 {
		return nil, fmt.Errorf("deleteMany predicate needs a non-empty id set")
	}
	return ids, nil
}
