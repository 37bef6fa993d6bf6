package catalog

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// FetchFunc retrieves a whole list resource from the backend.
type FetchFunc[T any] func(ctx context.Context) ([]T, error)

// LoadState is the displayable state of one list resource.
type LoadState[T any] struct {
	Items  []T
	Loaded bool
}

// Loader fetches one read-only list and stores the result. A failed load is logged
// and leaves the previous state untouched; no error is retained.
type Loader[T any] struct {
	name   string
	fetch  FetchFunc[T]
	logger *zap.Logger
	loads  metric.Int64Counter

	mu       sync.RWMutex
	state    LoadState[T]
	onChange func(resource string)
}

// NewLoader builds a loader for the named resource.
func NewLoader[T any](name string, fetch FetchFunc[T], logger *zap.Logger) *Loader[T] {
	if logger == nil {
		logger = zap.NewNop()
	}
	loads, err := otel.Meter("sigmarservicos.com.br/sigmar-web/internal/catalog").Int64Counter(
		"sigmar.catalog.loads",
		metric.WithDescription("Catalog list loads by resource and outcome"),
	)
	if err != nil {
		logger.Warn("catalog: unable to register load counter", zap.Error(err))
	}
	return &Loader[T]{
		name:   name,
		fetch:  fetch,
		logger: logger,
		loads:  loads,
		state:  LoadState[T]{Items: []T{}},
	}
}

// Name returns the resource name.
func (l *Loader[T]) Name() string { return l.name }

// Load performs a single fetch. It never returns an error to the caller and does not retry.
func (l *Loader[T]) Load(ctx context.Context) {
	if l.fetch == nil {
		l.logger.Error("catalog load failed", zap.String("resource", l.name), zap.String("error", "no fetch function"))
		return
	}
	items, err := l.fetch(ctx)
	if err != nil {
		l.logger.Error("catalog load failed", zap.String("resource", l.name), zap.Error(err))
		l.record(ctx, "failure")
		return
	}

	stored := make([]T, len(items))
	copy(stored, items)

	l.mu.Lock()
	l.state = LoadState[T]{Items: stored, Loaded: true}
	notify := l.onChange
	l.mu.Unlock()

	l.record(ctx, "success")
	l.logger.Info("catalog loaded", zap.String("resource", l.name), zap.Int("count", len(stored)))
	if notify != nil {
		notify(l.name)
	}
}

// State returns a copy of the current load state.
func (l *Loader[T]) State() LoadState[T] {
	l.mu.RLock()
	defer l.mu.RUnlock()
	items := make([]T, len(l.state.Items))
	copy(items, l.state.Items)
	return LoadState[T]{Items: items, Loaded: l.state.Loaded}
}

func (l *Loader[T]) record(ctx context.Context, outcome string) {
	if l.loads == nil {
		return
	}
	l.loads.Add(ctx, 1, metric.WithAttributes(
		attribute.String("resource", l.name),
		attribute.String("outcome", outcome),
	))
}

func (l *Loader[T]) setOnChange(fn func(resource string)) {
	l.mu.Lock()
	l.onChange = fn
	l.mu.Unlock()
}
