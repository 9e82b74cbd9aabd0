package schema

import (
	"fmt"
	"strings"
)

// Registry is the process-lifetime schema registry. It is built once by
// the loader and answers the two read-only queries the mutation resolver
// depends on: relations of an entity and unique fields of an entity.
// Registries are safe for concurrent use because they are never mutated
// after construction.
type Registry struct {
	entities map[string]*Entity
	ordered  []string
}

// NewRegistry builds a registry from fully-populated entities.
// Entity names must be unique; relation targets must be declared.
func NewRegistry(entities []*Entity) (*Registry, error) {
	reg := &Registry{entities: make(map[string]*Entity, len(entities))}
	for _, entity := range entities {
		if entity.Name == "" {
			return nil, fmt.Errorf("entity with empty name")
		}
		if _, dup := reg.entities[entity.Name]; dup {
			return nil, fmt.Errorf("duplicate entity %q", entity.Name)
		}
		reg.entities[entity.Name] = entity
		reg.ordered = append(reg.ordered, entity.Name)
	}

	for _, entity := range entities {
		for _, rel := range entity.Relations {
			if _, ok := reg.entities[rel.Entity]; !ok {
				return nil, fmt.Errorf("entity %q: relation %q references undeclared entity %q",
					entity.Name, rel.Name, rel.Entity)
			}
		}
	}
	return reg, nil
}

// Entity returns the declared entity with the given name.
func (r *Registry) Entity(name string) (*Entity, bool) {
	entity, ok := r.entities[name]
	return entity, ok
}

// Entities returns all entities in declaration order.
func (r *Registry) Entities() []*Entity {
	out := make([]*Entity, 0, len(r.ordered))
	for _, name := range r.ordered {
		out = append(out, r.entities[name])
	}
	return out
}

// Relations returns the relation schema of an entity. Unknown entities
// yield an empty schema: the resolver then simply has nothing to walk.
func (r *Registry) Relations(name string) RelationSchema {
	if entity, ok := r.entities[name]; ok {
		return entity.RelationSchema()
	}
	return RelationSchema{}
}

// UniqueFields returns an entity's declared unique field names (beyond
// the identity field) in declaration order.
func (r *Registry) UniqueFields(name string) []string {
	if entity, ok := r.entities[name]; ok {
		return entity.UniqueFields()
	}
	return nil
}

// String renders a compact summary useful in startup logs.
func (r *Registry) String() string {
	parts := make([]string, 0, len(r.ordered))
	for _, name := range r.ordered {
		entity := r.entities[name]
		parts = append(parts, fmt.Sprintf("%s(%d fields, %d relations)",
			name, len(entity.Fields), len(entity.Relations)))
	}
	return strings.Join(parts, ", ")
}
