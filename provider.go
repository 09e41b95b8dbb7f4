package breeze

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/cseils/breeze.tooling/internal/metadata"
	"github.com/cseils/breeze.tooling/internal/observability"
	"github.com/cseils/breeze.tooling/internal/save"
)

// ProviderConfig controls optional provider behaviours.
type ProviderConfig struct {
	// NamingPolicy decides resource names, key classification, and key
	// generation modes. Defaults to DefaultNamingPolicy.
	NamingPolicy NamingPolicy

	// Logger is used for structured logging. Defaults to slog.Default().
	Logger *slog.Logger

	// BuildOptions adjust metadata construction, e.g. enum detection paths
	// or custom annotation handlers.
	BuildOptions []BuildOption
}

// Provider is the public facade: it holds the registered entity types,
// builds and caches their metadata document, and (once bound to a database)
// saves client change sets against it. A Provider is safe for concurrent
// use; the document is rebuilt lazily whenever the registry or policy
// changes.
type Provider struct {
	mu sync.RWMutex

	// registered entity types in registration order
	types   []reflect.Type
	members map[reflect.Type]struct{}

	policy    NamingPolicy
	buildOpts []BuildOption
	logger    *slog.Logger

	// observability holds the tracing and metrics configuration, nil until
	// SetObservability is called
	observability *observability.Config

	db         *gorm.DB
	generators map[string]KeyGenerator

	// cached build products, dropped on any registry or policy change
	doc   *Document
	saver *save.Saver
}

// NewProvider creates a provider with the given configuration.
func NewProvider(cfg ProviderConfig) *Provider {
	policy := cfg.NamingPolicy
	if policy == nil {
		policy = DefaultNamingPolicy{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{
		members:    make(map[reflect.Type]struct{}),
		policy:     policy,
		buildOpts:  cfg.BuildOptions,
		logger:     logger,
		generators: make(map[string]KeyGenerator),
	}
}

// RegisterEntity adds an entity type to the provider, given as a struct
// value or pointer to struct. Registration order is the document's
// structural type order. Duplicates are rejected.
func (p *Provider) RegisterEntity(entity interface{}) error {
	if entity == nil {
		return fmt.Errorf("breeze: cannot register nil entity")
	}
	t := reflect.TypeOf(entity)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return fmt.Errorf("breeze: entity must be a struct type, got %s", t.Kind())
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.members[t]; exists {
		return fmt.Errorf("breeze: entity type %q is already registered", t.Name())
	}
	p.types = append(p.types, t)
	p.members[t] = struct{}{}
	p.invalidateLocked()

	p.logger.Debug("Registered entity", "entity", t.Name(), "namespace", t.PkgPath())
	return nil
}

// RegisterEntities registers several entity types, stopping at the first
// failure.
func (p *Provider) RegisterEntities(entities ...interface{}) error {
	for _, e := range entities {
		if err := p.RegisterEntity(e); err != nil {
			return err
		}
	}
	return nil
}

// Metadata returns the metadata document for the registered entities,
// building it on first use and caching it until the registry or policy
// changes.
func (p *Provider) Metadata(ctx context.Context) (*Document, error) {
	p.mu.RLock()
	if doc := p.doc; doc != nil {
		p.mu.RUnlock()
		return doc, nil
	}
	p.mu.RUnlock()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.doc != nil {
		return p.doc, nil
	}

	ctx, span := p.observability.StartSpan(ctx, "breeze.metadata.build",
		attribute.Int("breeze.types", len(p.types)))
	start := time.Now()
	doc, err := p.buildLocked()
	p.observability.RecordBuild(ctx, len(p.types), time.Since(start), err)
	observability.EndSpan(span, err)
	if err != nil {
		p.logger.Error("Metadata build failed", "types", len(p.types), "error", err)
		return nil, err
	}
	p.doc = doc

	p.logger.Debug("Metadata document built",
		"structuralTypes", len(doc.StructuralTypes),
		"enumTypes", len(doc.EnumTypes))
	return doc, nil
}

func (p *Provider) buildLocked() (*Document, error) {
	set, err := metadata.NewTypeSet(p.types...)
	if err != nil {
		return nil, err
	}
	return metadata.Build(set, p.policy, p.buildOpts...)
}

// Fingerprint returns a stable hash of the current metadata document,
// usable as a cache validator for clients that poll metadata.
func (p *Provider) Fingerprint(ctx context.Context) (string, error) {
	doc, err := p.Metadata(ctx)
	if err != nil {
		return "", err
	}
	return doc.Fingerprint()
}

// SetLogger sets a custom logger for the provider. A nil logger falls back
// to slog.Default().
func (p *Provider) SetLogger(logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.logger = logger
	if p.saver != nil {
		p.saver.SetLogger(logger)
	}
	return nil
}

// SetNamingPolicy replaces the naming policy and drops the cached document.
func (p *Provider) SetNamingPolicy(policy NamingPolicy) error {
	if policy == nil {
		return fmt.Errorf("breeze: naming policy is required")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.policy = policy
	p.invalidateLocked()
	return nil
}

// ObservabilityConfig configures observability features for the provider.
// All providers are optional; when nil, the corresponding feature is
// disabled with zero overhead.
type ObservabilityConfig struct {
	// TracerProvider provides the OpenTelemetry tracer for build and save
	// spans. If nil, tracing is disabled.
	TracerProvider trace.TracerProvider

	// MeterProvider provides the OpenTelemetry meter for build and save
	// metrics. If nil, metrics collection is disabled.
	MeterProvider metric.MeterProvider

	// ServiceName identifies this provider in telemetry data.
	ServiceName string

	// ServiceVersion is reported in telemetry attributes.
	ServiceVersion string
}

// SetObservability configures OpenTelemetry tracing and metrics for
// metadata builds and save requests.
func (p *Provider) SetObservability(cfg ObservabilityConfig) error {
	opts := []observability.Option{}
	if cfg.TracerProvider != nil {
		opts = append(opts, observability.WithTracerProvider(cfg.TracerProvider))
	}
	if cfg.MeterProvider != nil {
		opts = append(opts, observability.WithMeterProvider(cfg.MeterProvider))
	}
	if cfg.ServiceName != "" {
		opts = append(opts, observability.WithServiceName(cfg.ServiceName))
	}
	if cfg.ServiceVersion != "" {
		opts = append(opts, observability.WithServiceVersion(cfg.ServiceVersion))
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	opts = append(opts, observability.WithLogger(p.logger))
	obsCfg := observability.NewConfig(opts...)
	if err := obsCfg.Initialize(); err != nil {
		return fmt.Errorf("breeze: initialize observability: %w", err)
	}
	p.observability = obsCfg
	if p.saver != nil {
		p.saver.SetObservability(obsCfg)
	}

	p.logger.Info("Observability configured",
		"tracing_enabled", cfg.TracerProvider != nil,
		"metrics_enabled", cfg.MeterProvider != nil,
		"service_name", cfg.ServiceName)
	return nil
}

// SetDB binds the provider to a database handle, enabling SaveChanges.
func (p *Provider) SetDB(db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("breeze: database handle is required")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.db = db
	p.saver = nil
	return nil
}

// RegisterKeyGenerator registers a key generator used for entities whose
// auto-generated key mode is KeyGenerator. Inserts use the generator an
// entity names through KeyGeneratorNamer, or "uuid" otherwise. Existing
// generators with the same name are replaced.
func (p *Provider) RegisterKeyGenerator(name string, generator KeyGenerator) error {
	if generator == nil {
		return fmt.Errorf("breeze: key generator %q cannot be nil", name)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.generators[name] = generator
	if p.saver != nil {
		return p.saver.RegisterKeyGenerator(name, generator)
	}
	return nil
}

// SaveChanges persists a client change set in one transaction using the
// current metadata document's relationship side channel. SetDB must have
// been called first.
func (p *Provider) SaveChanges(ctx context.Context, infos []EntityInfo) (*SaveResult, error) {
	saver, err := p.saverFor(ctx)
	if err != nil {
		return nil, err
	}
	return saver.Save(ctx, infos)
}

// saverFor returns the saver for the current document, building both when
// needed.
func (p *Provider) saverFor(ctx context.Context) (*save.Saver, error) {
	p.mu.RLock()
	if s := p.saver; s != nil {
		p.mu.RUnlock()
		return s, nil
	}
	db := p.db
	p.mu.RUnlock()
	if db == nil {
		return nil, fmt.Errorf("breeze: SaveChanges requires a database, call SetDB first")
	}

	doc, err := p.Metadata(ctx)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.saver != nil {
		return p.saver, nil
	}
	saver, err := save.NewSaver(p.db, doc, p.logger)
	if err != nil {
		return nil, err
	}
	saver.SetObservability(p.observability)
	for name, generator := range p.generators {
		if err := saver.RegisterKeyGenerator(name, generator); err != nil {
			return nil, err
		}
	}
	p.saver = saver
	return saver, nil
}

// invalidateLocked drops the cached document and saver. Callers hold p.mu.
func (p *Provider) invalidateLocked() {
	p.doc = nil
	p.saver = nil
}
