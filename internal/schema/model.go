// Package schema holds the declared entity/relation model and the
// read-only registry the rest of the service consults. Declarations are
// loaded once at startup and never mutated afterward.
package schema

// IdentityField is the conventional primary identity field of every entity.
const IdentityField = "id"

// Cardinality distinguishes single-valued from collection-valued relations.
type Cardinality string

const (
	Singular Cardinality = "singular"
	List     Cardinality = "list"
)

// Field is a scalar column declared on an entity.
type Field struct {
	Name     string
	Column   string // database column, defaults to Name
	Type     string // declared SQL type, informational for planning
	Primary  bool
	Unique   bool
	Nullable bool
}

// Relation is a declared reference from one entity to another.
type Relation struct {
	// Name is the field name on the owning entity.
	Name string
	// Entity is the referenced entity name.
	Entity string
	// Cardinality is Singular or List.
	Cardinality Cardinality
	// ForeignKey is the column holding the join key. For singular
	// relations it lives on the owning table, for list relations on the
	// related table. Empty means the conventional <owner>_id / id pair.
	ForeignKey string
	// References is the column on the far side of the join.
	// Empty defaults to the related entity's identity field.
	References string
}

// IsList reports whether the relation holds a collection.
func (r Relation) IsList() bool {
	return r.Cardinality == List
}

// RelationSchema is the per-entity view the mutation resolver walks:
// the declared relations split by cardinality, in declaration order.
type RelationSchema struct {
	Singular []Relation
	List     []Relation
}

// Empty reports whether the entity declares no relations at all.
func (rs RelationSchema) Empty() bool {
	return len(rs.Singular) == 0 && len(rs.List) == 0
}

// Entity is one declared entity with its fields and relations.
type Entity struct {
	Name      string
	Table     string // database table, defaults to pluralized Name by the loader
	Fields    []Field
	Relations []Relation
}

// FieldByName returns the declared field with the given name.
func (e *Entity) FieldByName(name string) (Field, bool) {
	for _, f := range e.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// ColumnFor maps a field name to its database column.
func (e *Entity) ColumnFor(fieldName string) string {
	if f, ok := e.FieldByName(fieldName); ok && f.Column != "" {
		return f.Column
	}
	return fieldName
}

// UniqueFields returns the names of fields declared unique, excluding the
// identity field, in declaration order.
func (e *Entity) UniqueFields() []string {
	var unique []string
	for _, f := range e.Fields {
		if f.Name == IdentityField {
			continue
		}
		if f.Unique {
			unique = append(unique, f.Name)
		}
	}
	return unique
}

// RelationSchema splits the entity's relations by cardinality.
func (e *Entity) RelationSchema() RelationSchema {
	var rs RelationSchema
	for _, rel := range e.Relations {
		if rel.IsList() {
			rs.List = append(rs.List, rel)
		} else {
			rs.Singular = append(rs.Singular, rel)
		}
	}
	return rs
}
