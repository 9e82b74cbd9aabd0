// Package service implements the generic per-entity CRUD operations.
// Create and Update run the relation-mutation resolver over the client
// payload, then apply the resulting plan to the store inside a single
// transaction. The service layer owns no SQL strings: statements come
// from the planner, execution goes through dbexec.
package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"

	"crudapi/internal/dbexec"
	"crudapi/internal/logging"
	"crudapi/internal/mutate"
	"crudapi/internal/naming"
	"crudapi/internal/observability"
	"crudapi/internal/planner"
	"crudapi/internal/schema"
)

var (
	// ErrUnknownEntity reports an entity name absent from the registry.
	ErrUnknownEntity = errors.New("unknown entity")
	// ErrUnknownField reports a payload key that is neither a declared
	// field nor a declared relation of the entity.
	ErrUnknownField = errors.New("unknown field")
	// ErrNotFound reports a missing row.
	ErrNotFound = errors.New("not found")
	// ErrConflict reports a uniqueness violation from the store.
	ErrConflict = errors.New("conflict")
	// ErrUnsupportedVerb reports a hand-authored plan verb this service
	// cannot execute (connectOrCreate, upsert, set).
	ErrUnsupportedVerb = errors.New("unsupported plan verb")
)

const mysqlDuplicateEntry = 1062

// Service executes CRUD operations for every registered entity.
type Service struct {
	registry *schema.Registry
	resolver *mutate.Resolver
	db       *sql.DB
	exec     dbexec.QueryExecutor
	logger   *logging.Logger
	metrics  *observability.CRUDMetrics
}

// New creates a CRUD service over the registry and database handle.
// Metrics may be nil when observability is disabled.
func New(registry *schema.Registry, db *sql.DB, logger *logging.Logger, metrics *observability.CRUDMetrics) *Service {
	return &Service{
		registry: registry,
		resolver: mutate.NewResolver(registry),
		db:       db,
		exec:     dbexec.NewStandardExecutor(db),
		logger:   logger,
		metrics:  metrics,
	}
}

func (s *Service) entity(name string) (*schema.Entity, error) {
	entity, ok := s.registry.Entity(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEntity, name)
	}
	return entity, nil
}

// splitBody partitions a resolved body into scalar column values and
// per-relation mutation plans, rejecting undeclared keys.
func splitBody(entity *schema.Entity, body map[string]any) (map[string]any, map[string]relationPlan, error) {
	relations := make(map[string]schema.Relation, len(entity.Relations))
	for _, rel := range entity.Relations {
		relations[rel.Name] = rel
	}

	columns := make(map[string]any)
	plans := make(map[string]relationPlan)
	for key, value := range body {
		if rel, ok := relations[key]; ok {
			plan, ok := value.(map[string]any)
			if !ok {
				return nil, nil, fmt.Errorf("relation %q: expected a mutation object, got %T", key, value)
			}
			plans[key] = relationPlan{relation: rel, verbs: plan}
			continue
		}
		if _, ok := entity.FieldByName(key); !ok {
			return nil, nil, fmt.Errorf("%w: %q on entity %q", ErrUnknownField, key, entity.Name)
		}
		columns[entity.ColumnFor(key)] = value
	}
	return columns, plans, nil
}

type relationPlan struct {
	relation schema.Relation
	verbs    map[string]any
}

// singularForeignKey is the owner-side column joining a singular relation.
func singularForeignKey(rel schema.Relation) string {
	if rel.ForeignKey != "" {
		return rel.ForeignKey
	}
	return naming.SnakeCase(rel.Name) + "_id"
}

// listForeignKey is the related-side column joining a list relation.
func listForeignKey(ownerEntity string, rel schema.Relation) string {
	if rel.ForeignKey != "" {
		return rel.ForeignKey
	}
	return naming.SnakeCase(ownerEntity) + "_id"
}

// referenceColumn is the far-side join target, conventionally id.
func referenceColumn(rel schema.Relation) string {
	if rel.References != "" {
		return rel.References
	}
	return schema.IdentityField
}

func mapStoreError(err error) error {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) && mysqlErr.Number == mysqlDuplicateEntry {
		return fmt.Errorf("%w: %s", ErrConflict, mysqlErr.Message)
	}
	return err
}

func (s *Service) recordVerb(ctx context.Context, entity, relation, verb string) {
	if s.metrics != nil {
		s.metrics.RecordPlanVerb(ctx, entity, relation, verb)
	}
}

// scanRows converts the result set into field-name-keyed maps using the
// entity's declared fields.
func scanRows(rows dbexec.Rows, entity *schema.Entity) ([]map[string]any, error) {
	defer rows.Close()

	fields := entity.Fields
	var out []map[string]any
	for rows.Next() {
		dest := make([]any, len(fields))
		for i := range dest {
			dest[i] = new(any)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		record := make(map[string]any, len(fields))
		for i, field := range fields {
			record[field.Name] = normalizeScanned(*dest[i].(*any))
		}
		out = append(out, record)
	}
	return out, rows.Err()
}

// normalizeScanned converts driver byte slices into strings so results
// serialize as JSON text rather than base64.
func normalizeScanned(value any) any {
	if b, ok := value.([]byte); ok {
		return string(b)
	}
	return value
}

func entityColumns(entity *schema.Entity) []string {
	columns := make([]string, 0, len(entity.Fields))
	for _, field := range entity.Fields {
		columns = append(columns, entity.ColumnFor(field.Name))
	}
	return columns
}

func queryRecords(ctx context.Context, exec dbexec.QueryExecutor, entity *schema.Entity, planned planner.SQLQuery) ([]map[string]any, error) {
	rows, err := exec.QueryContext(ctx, planned.SQL, planned.Args...)
	if err != nil {
		return nil, err
	}
	return scanRows(rows, entity)
}
