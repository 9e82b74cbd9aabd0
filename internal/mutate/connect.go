package mutate

import "crudapi/internal/schema"

// SchemaSource is the read-only slice of the schema registry the
// resolver depends on. It must be fully initialized before the first
// call and never change during one.
type SchemaSource interface {
	Relations(entity string) schema.RelationSchema
	UniqueFields(entity string) []string
}

// CanConnect reports whether a candidate object's shape is sufficient
// to attach an existing record of the related entity without creating
// or updating anything: an explicit connect marker, or exactly one
// significant field that is either the identity field or one of the
// entity's declared unique fields. A marker naming any other verb rules
// connecting out regardless of shape.
func CanConnect(source SchemaSource, relatedEntity string, candidate map[string]any) bool {
	action, present, err := markerOf(candidate)
	if err != nil {
		return false
	}
	if present {
		return action == ActionConnect
	}

	if len(candidate) != 1 {
		return false
	}
	for field := range candidate {
		if field == schema.IdentityField {
			return true
		}
		for _, unique := range source.UniqueFields(relatedEntity) {
			if field == unique {
				return true
			}
		}
	}
	return false
}

// hasIdentityValue reports whether the item carries any identity-like
// field: the identity field itself or a declared unique field.
func hasIdentityValue(source SchemaSource, relatedEntity string, item map[string]any) bool {
	if _, ok := item[schema.IdentityField]; ok {
		return true
	}
	for _, unique := range source.UniqueFields(relatedEntity) {
		if _, ok := item[unique]; ok {
			return true
		}
	}
	return false
}

// identityPair extracts the field/value pair addressing an existing
// record: the explicit id when present, otherwise the first declared
// unique field the item carries. Declared order keeps the choice
// deterministic. ok is false when nothing identifies the item.
func identityPair(source SchemaSource, relatedEntity string, item map[string]any) (field string, value any, ok bool) {
	if v, present := item[schema.IdentityField]; present {
		return schema.IdentityField, v, true
	}
	for _, unique := range source.UniqueFields(relatedEntity) {
		if v, present := item[unique]; present {
			return unique, v, true
		}
	}
	return "", nil, false
}
