package mutate

import (
	"fmt"

	"crudapi/internal/schema"
)

// Resolver compiles nested write payloads into mutation plans. It holds
// only the schema source and is safe for concurrent use.
type Resolver struct {
	source SchemaSource
}

// NewResolver creates a resolver backed by the given schema source.
func NewResolver(source SchemaSource) *Resolver {
	return &Resolver{source: source}
}

// createForbidden is the ignore set for create endpoints: substructures
// of a brand-new root cannot patch, delete, or detach anything.
var createForbidden = NewActionSet(ActionUpdate, ActionDelete, ActionDisconnect)

// ResolveCreate resolves a payload destined for a brand-new root entity,
// dropping any relation value marked update, delete, or disconnect.
func (r *Resolver) ResolveCreate(body map[string]any, entity string) (map[string]any, error) {
	return r.Resolve(body, r.source.Relations(entity), createForbidden)
}

// ResolveUpdate resolves a payload destined for an existing root entity
// with no verb restriction.
func (r *Resolver) ResolveUpdate(body map[string]any, entity string) (map[string]any, error) {
	return r.Resolve(body, r.source.Relations(entity), nil)
}

// Resolve walks the body's declared relation fields, compiles each into
// its per-field mutation object, and returns a new, fully scrubbed body.
// The input is never mutated. It fails with ErrInvalidAction,
// ErrMisplacedAction, or ErrNoUniqueIdentifier; otherwise the returned
// plan is complete and contains no marker field anywhere.
func (r *Resolver) Resolve(body map[string]any, rel schema.RelationSchema, ignore ActionSet) (map[string]any, error) {
	out, err := r.resolveBody(cloneMap(body), rel, ignore)
	if err != nil {
		return nil, err
	}
	// Defensive final pass: no marker survives, even inside values that
	// were passed through untouched.
	return Scrub(out).(map[string]any), nil
}

func (r *Resolver) resolveBody(body map[string]any, rel schema.RelationSchema, ignore ActionSet) (map[string]any, error) {
	if body == nil {
		return map[string]any{}, nil
	}
	if _, present := body[MarkerKey]; present {
		return nil, fmt.Errorf("%w: %q is not valid at the top level of a payload", ErrMisplacedAction, MarkerKey)
	}

	relationNames := make(map[string]struct{}, len(rel.List)+len(rel.Singular))

	for _, relation := range rel.List {
		relationNames[relation.Name] = struct{}{}
		value, present := body[relation.Name]
		if !present {
			continue
		}
		resolved, drop, err := r.resolveListRelation(relation, value, ignore)
		if err != nil {
			return nil, fmt.Errorf("relation %q: %w", relation.Name, err)
		}
		if drop {
			delete(body, relation.Name)
			continue
		}
		body[relation.Name] = resolved
	}

	for _, relation := range rel.Singular {
		relationNames[relation.Name] = struct{}{}
		value, present := body[relation.Name]
		if !present {
			continue
		}
		resolved, drop, err := r.resolveSingularRelation(relation, value, ignore)
		if err != nil {
			return nil, fmt.Errorf("relation %q: %w", relation.Name, err)
		}
		if drop {
			delete(body, relation.Name)
			continue
		}
		body[relation.Name] = resolved
	}

	// A marker anywhere the resolver did not interpret as a relation
	// value is a caller error, not something to scrub silently.
	for key, value := range body {
		if _, isRelation := relationNames[key]; isRelation {
			continue
		}
		if containsMarker(value) {
			return nil, fmt.Errorf("%w: %q found under non-relation field %q", ErrMisplacedAction, MarkerKey, key)
		}
	}

	return body, nil
}

// listPlan accumulates one list relation's entries per verb. Ordered
// slices plus a single id set; only non-empty members materialize.
type listPlan struct {
	create     []any
	connect    []any
	update     []any
	disconnect []any
	deleteIDs  []any
}

func (p *listPlan) materialize() map[string]any {
	out := make(map[string]any)
	if len(p.create) > 0 {
		out["create"] = p.create
	}
	if len(p.connect) > 0 {
		out["connect"] = p.connect
	}
	if len(p.update) > 0 {
		out["update"] = p.update
	}
	if len(p.disconnect) > 0 {
		out["disconnect"] = p.disconnect
	}
	if len(p.deleteIDs) > 0 {
		out["deleteMany"] = map[string]any{
			schema.IdentityField: map[string]any{"in": p.deleteIDs},
		}
	}
	return out
}

func (r *Resolver) resolveListRelation(relation schema.Relation, value any, ignore ActionSet) (any, bool, error) {
	items, isArray := value.([]any)
	if !isArray {
		// Non-array values for a list relation are treated as hand-built
		// mutation objects and left untouched.
		return value, false, nil
	}

	plan := &listPlan{}
	for i, raw := range items {
		item, isMap := raw.(map[string]any)
		if !isMap {
			plan.create = append(plan.create, raw)
			continue
		}

		action, present, err := markerOf(item)
		if err != nil {
			return nil, false, fmt.Errorf("item %d: %w", i, err)
		}
		if present && ignore.Contains(action) {
			return nil, true, nil
		}

		switch {
		case action == ActionDelete:
			id, ok := item[schema.IdentityField]
			if !ok {
				return nil, false, fmt.Errorf("item %d: %w: delete requires an %q value", i, ErrNoUniqueIdentifier, schema.IdentityField)
			}
			plan.deleteIDs = append(plan.deleteIDs, id)

		case action == ActionDisconnect:
			field, idValue, ok := identityPair(r.source, relation.Entity, item)
			if !ok {
				return nil, false, fmt.Errorf("item %d: %w: disconnect requires an identifying field", i, ErrNoUniqueIdentifier)
			}
			plan.disconnect = append(plan.disconnect, map[string]any{field: idValue})

		case action != ActionUpdate && CanConnect(r.source, relation.Entity, item):
			plan.connect = append(plan.connect, Scrub(item))

		case action == ActionCreate, action != ActionUpdate && !hasIdentityValue(r.source, relation.Entity, item):
			created, err := r.resolveBody(stripMarker(item), r.source.Relations(relation.Entity), ignore)
			if err != nil {
				return nil, false, fmt.Errorf("item %d: %w", i, err)
			}
			plan.create = append(plan.create, created)

		default:
			entry, err := r.updateEntry(relation, item, ignore)
			if err != nil {
				return nil, false, fmt.Errorf("item %d: %w", i, err)
			}
			plan.update = append(plan.update, entry)
		}
	}

	return plan.materialize(), false, nil
}

func (r *Resolver) resolveSingularRelation(relation schema.Relation, value any, ignore ActionSet) (any, bool, error) {
	item, isMap := value.(map[string]any)
	if !isMap {
		return value, false, nil
	}
	if isPlanShaped(item) {
		// Explicit caller control always wins.
		return item, false, nil
	}

	action, present, err := markerOf(item)
	if err != nil {
		return nil, false, err
	}
	if present && ignore.Contains(action) {
		return nil, true, nil
	}

	switch {
	case action == ActionDelete:
		return map[string]any{"delete": true}, false, nil

	case action == ActionDisconnect:
		return map[string]any{"disconnect": true}, false, nil

	case action != ActionUpdate && CanConnect(r.source, relation.Entity, item):
		return map[string]any{"connect": Scrub(item)}, false, nil

	case action == ActionCreate, action != ActionUpdate && !hasIdentityValue(r.source, relation.Entity, item):
		created, err := r.resolveBody(stripMarker(item), r.source.Relations(relation.Entity), ignore)
		if err != nil {
			return nil, false, err
		}
		return map[string]any{"create": created}, false, nil

	default:
		entry, err := r.updateEntry(relation, item, ignore)
		if err != nil {
			return nil, false, err
		}
		return map[string]any{"update": entry}, false, nil
	}
}

// updateEntry builds the {where, data} pair for an explicit or implicit
// update item: the identity pair addresses the record, everything else
// is recursively resolved as the patch.
func (r *Resolver) updateEntry(relation schema.Relation, item map[string]any, ignore ActionSet) (map[string]any, error) {
	field, value, ok := identityPair(r.source, relation.Entity, item)
	if !ok {
		return nil, fmt.Errorf("%w: no %q or declared unique field of %q present", ErrNoUniqueIdentifier, schema.IdentityField, relation.Entity)
	}

	remaining := stripMarker(item)
	delete(remaining, field)
	data, err := r.resolveBody(remaining, r.source.Relations(relation.Entity), ignore)
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"where": map[string]any{field: value},
		"data":  data,
	}, nil
}

// stripMarker copies a map without its top-level marker. Deeper markers
// stay: nested resolution interprets them in their own relation context.
func stripMarker(item map[string]any) map[string]any {
	out := make(map[string]any, len(item))
	for key, value := range item {
		if key == MarkerKey {
			continue
		}
		out[key] = value
	}
	return out
}
