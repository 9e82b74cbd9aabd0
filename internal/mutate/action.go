// Package mutate compiles nested client write payloads into strict,
// store-native mutation plans. It is purely functional: no I/O, no
// shared state, safe for concurrent use. The only collaborator is the
// read-only schema registry, consulted through the SchemaSource
// interface.
package mutate

import "fmt"

// MarkerKey is the out-of-band field a client may attach to any nested
// relation value to name the intended verb explicitly. It never reaches
// the store: resolution strips it everywhere.
const MarkerKey = "apiAction"

// Action is a mutation verb from the closed set a marker may carry.
type Action string

const (
	ActionCreate     Action = "create"
	ActionConnect    Action = "connect"
	ActionUpdate     Action = "update"
	ActionDelete     Action = "delete"
	ActionDisconnect Action = "disconnect"
)

// allowedActions is the closed verb set, in the order error messages
// enumerate it.
var allowedActions = []Action{
	ActionCreate,
	ActionConnect,
	ActionUpdate,
	ActionDelete,
	ActionDisconnect,
}

// planVerbs are the top-level keys of an already-shaped mutation object.
// A value whose keys are all drawn from this set is caller-authored and
// passes through untouched.
var planVerbs = map[string]struct{}{
	"create":          {},
	"connect":         {},
	"update":          {},
	"delete":          {},
	"disconnect":      {},
	"deleteMany":      {},
	"connectOrCreate": {},
	"upsert":          {},
	"set":             {},
}

// ActionSet is an immutable set of verbs, used to forbid specific verbs
// per call site.
type ActionSet map[Action]struct{}

// NewActionSet builds a set from the given verbs.
func NewActionSet(actions ...Action) ActionSet {
	set := make(ActionSet, len(actions))
	for _, a := range actions {
		set[a] = struct{}{}
	}
	return set
}

// Contains reports membership; a nil set contains nothing.
func (s ActionSet) Contains(a Action) bool {
	_, ok := s[a]
	return ok
}

// markerOf validates and returns the marker carried on a value, if any.
// Absence is valid: the implicit default verb is create, refined later
// by shape. A present marker with a value outside the closed set fails
// ErrInvalidAction with the allowed verbs enumerated.
func markerOf(value map[string]any) (Action, bool, error) {
	raw, present := value[MarkerKey]
	if !present {
		return "", false, nil
	}
	str, ok := raw.(string)
	if ok {
		for _, allowed := range allowedActions {
			if Action(str) == allowed {
				return Action(str), true, nil
			}
		}
	}
	return "", true, fmt.Errorf("%w: %q is not one of %v", ErrInvalidAction, raw, allowedActions)
}

// isPlanShaped reports whether a value is an already-shaped mutation
// object: a non-empty map whose top-level keys are all known verbs.
// Such objects are caller-authored plans and are never re-interpreted.
func isPlanShaped(value map[string]any) bool {
	if len(value) == 0 {
		return false
	}
	for key := range value {
		if _, ok := planVerbs[key]; !ok {
			return false
		}
	}
	return true
}
