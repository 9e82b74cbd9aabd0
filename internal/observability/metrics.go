package observability

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// CRUDMetrics holds custom metrics for CRUD operations
type CRUDMetrics struct {
	requestDuration metric.Float64Histogram
	requestCounter  metric.Int64Counter
	errorCounter    metric.Int64Counter
	activeRequests  metric.Int64UpDownCounter
	planVerbs       metric.Int64Counter
	resultsCount    metric.Int64Histogram
}

// InitCRUDMetrics initializes CRUD-specific metrics
func InitCRUDMetrics() (*CRUDMetrics, error) {
	meter := otel.Meter("crudapi")

	requestDuration, err := meter.Float64Histogram(
		"crud.request.duration",
		metric.WithDescription("Duration of CRUD requests in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create request duration histogram: %w", err)
	}

	requestCounter, err := meter.Int64Counter(
		"crud.requests.total",
		metric.WithDescription("Total number of CRUD requests"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create request counter: %w", err)
	}

	errorCounter, err := meter.Int64Counter(
		"crud.errors.total",
		metric.WithDescription("Total number of CRUD errors"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create error counter: %w", err)
	}

	activeRequests, err := meter.Int64UpDownCounter(
		"crud.requests.active",
		metric.WithDescription("Number of active CRUD requests"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create active requests counter: %w", err)
	}

	planVerbs, err := meter.Int64Counter(
		"crud.plan.verbs",
		metric.WithDescription("Nested mutation verbs applied per relation"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create plan verbs counter: %w", err)
	}

	resultsCount, err := meter.Int64Histogram(
		"crud.results.count",
		metric.WithDescription("Number of records returned by list requests"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create results count histogram: %w", err)
	}

	return &CRUDMetrics{
		requestDuration: requestDuration,
		requestCounter:  requestCounter,
		errorCounter:    errorCounter,
		activeRequests:  activeRequests,
		planVerbs:       planVerbs,
		resultsCount:    resultsCount,
	}, nil
}

// RecordRequest records a CRUD request with its duration and outcome
func (m *CRUDMetrics) RecordRequest(ctx context.Context, duration time.Duration, hasErrors bool, operation string) {
	attrs := []attribute.KeyValue{
		attribute.String("operation", operation),
		attribute.Bool("has_errors", hasErrors),
	}

	m.requestDuration.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))
	m.requestCounter.Add(ctx, 1, metric.WithAttributes(attrs...))

	if hasErrors {
		m.errorCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("operation", operation),
		))
	}
}

// RecordPlanVerb counts a nested mutation verb applied to a relation
func (m *CRUDMetrics) RecordPlanVerb(ctx context.Context, entity, relation, verb string) {
	m.planVerbs.Add(ctx, 1, metric.WithAttributes(
		attribute.String("entity", entity),
		attribute.String("relation", relation),
		attribute.String("verb", verb),
	))
}

// RecordResultsCount records the number of records returned
func (m *CRUDMetrics) RecordResultsCount(ctx context.Context, count int64, entity string) {
	m.resultsCount.Record(ctx, count, metric.WithAttributes(
		attribute.String("entity", entity),
	))
}

// IncrementActiveRequests increments the active requests counter
func (m *CRUDMetrics) IncrementActiveRequests(ctx context.Context) {
	m.activeRequests.Add(ctx, 1)
}

// DecrementActiveRequests decrements the active requests counter
func (m *CRUDMetrics) DecrementActiveRequests(ctx context.Context) {
	m.activeRequests.Add(ctx, -1)
}

// InitMetrics initializes all custom metrics and returns the CRUDMetrics instance
func InitMetrics(logger *slog.Logger) (*CRUDMetrics, error) {
	metrics, err := InitCRUDMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize CRUD metrics: %w", err)
	}

	logger.Info("custom CRUD metrics initialized")
	return metrics, nil
}
