// Package sdk wires the schema components into one explicit context object.
//
//	s, err := sdk.New(sdk.WithBaseURL("https://schema.example.com"), sdk.WithMode(updater.Poll))
//	if err != nil {
//		return err
//	}
//	defer s.Close()
//	if err := s.Ready(ctx); err != nil {
//		return err
//	}
//	team, err := s.Type("Team", resolve.GroupProperties(true))
//
// Several SDK values may coexist in one process; they share nothing.
package sdk

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/syssam/strata"
	"github.com/syssam/strata/contrib/graphql"
	"github.com/syssam/strata/internal/metrics"
	"github.com/syssam/strata/load"
	"github.com/syssam/strata/rawdata"
	"github.com/syssam/strata/resolve"
	"github.com/syssam/strata/schema"
	"github.com/syssam/strata/updater"
	"github.com/syssam/strata/validate"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SDK holds one schema instance: the raw store, the accessor cache and the
// components reading from them.
type SDK struct {
	store     *rawdata.Store
	cache     *strata.Cache
	resolver  *resolve.Resolver
	validator *validate.Validator
	composer  *graphql.Composer
	updater   *updater.Updater
	metrics   *metrics.Collector
	watcher   *load.Watcher
	logger    *zap.Logger

	mu        sync.RWMutex
	listeners []listener
	last      *updater.ChangeEvent
	cancel    context.CancelFunc
}

type listener struct {
	id uuid.UUID
	fn func(updater.ChangeEvent)
}

type options struct {
	updaterOpts  []updater.Option
	composerOpts []graphql.ComposerOption
	httpOpts     []updater.HTTPOption
	baseURL      string
	dir          string
	watch        bool
	includeTest  bool
	namespace    string
	logger       *zap.Logger
}

// Option configures an SDK.
type Option func(*options) error

// WithBaseURL fetches the schema from <url>/schema.json.
func WithBaseURL(url string, opts ...updater.HTTPOption) Option {
	return func(o *options) error {
		if url == "" {
			return errors.New("sdk: empty base url")
		}
		o.baseURL = url
		o.httpOpts = append(o.httpOpts, opts...)
		return nil
	}
}

// WithSource fetches the schema from s.
func WithSource(s updater.Source) Option {
	return func(o *options) error {
		o.updaterOpts = append(o.updaterOpts, updater.WithSource(s))
		return nil
	}
}

// WithSchemaData serves p and never fetches.
func WithSchemaData(p *schema.Payload) Option {
	return func(o *options) error {
		o.updaterOpts = append(o.updaterOpts, updater.WithSchemaData(p))
		return nil
	}
}

// WithSchemaDirectory serves the schema directory dir and never fetches.
func WithSchemaDirectory(dir string) Option {
	return func(o *options) error {
		o.dir = dir
		o.updaterOpts = append(o.updaterOpts, updater.WithSchemaDirectory(dir))
		return nil
	}
}

// Watch reloads the schema directory when its files change.
func Watch(enabled bool) Option {
	return func(o *options) error {
		o.watch = enabled
		return nil
	}
}

// WithMode sets the update strategy.
func WithMode(m updater.Mode) Option {
	return func(o *options) error {
		o.updaterOpts = append(o.updaterOpts, updater.WithMode(m))
		return nil
	}
}

// WithTTL sets the refresh interval.
func WithTTL(ttl time.Duration) Option {
	return func(o *options) error {
		o.updaterOpts = append(o.updaterOpts, updater.WithTTL(ttl))
		return nil
	}
}

// IncludeTestDefinitions keeps types and relationship types flagged isTest.
func IncludeTestDefinitions(include bool) Option {
	return func(o *options) error {
		o.includeTest = include
		return nil
	}
}

// WithLogger sets the logger of every component.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) error {
		if l == nil {
			return errors.New("sdk: nil logger")
		}
		o.logger = l
		return nil
	}
}

// WithMetrics exports Prometheus metrics under namespace.
func WithMetrics(namespace string) Option {
	return func(o *options) error {
		if namespace == "" {
			return errors.New("sdk: empty metrics namespace")
		}
		o.namespace = namespace
		return nil
	}
}

// WithComposerOptions configures the GraphQL composer.
func WithComposerOptions(opts ...graphql.ComposerOption) Option {
	return func(o *options) error {
		o.composerOpts = append(o.composerOpts, opts...)
		return nil
	}
}

// New returns a configured SDK. With schema data or a schema directory the
// snapshot is loaded before New returns; otherwise call Ready.
func New(opts ...Option) (*SDK, error) {
	o := &options{logger: zap.NewNop()}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	if o.watch && o.dir == "" {
		return nil, errors.New("sdk: watch requires a schema directory")
	}

	s := &SDK{
		store:  rawdata.New(rawdata.IncludeTestDefinitions(o.includeTest)),
		cache:  strata.NewCache(),
		logger: o.logger,
	}
	s.resolver = resolve.New(s.store, s.cache)
	s.validator = validate.New(s.resolver)

	composer, err := graphql.NewComposer(s.resolver, o.composerOpts...)
	if err != nil {
		return nil, err
	}
	s.composer = composer

	if o.namespace != "" {
		s.metrics = metrics.New(o.namespace)
		if err := s.metrics.RegisterCache(o.namespace, s.cache); err != nil {
			return nil, fmt.Errorf("sdk: register cache metrics: %w", err)
		}
	}

	uopts := []updater.Option{
		updater.WithLogger(o.logger),
		updater.WithMetrics(s.metrics),
		updater.OnChange(s.dispatch),
	}
	if o.baseURL != "" {
		httpOpts := append([]updater.HTTPOption{updater.WithHTTPLogger(o.logger)}, o.httpOpts...)
		uopts = append(uopts, updater.WithSource(updater.NewHTTPSource(o.baseURL, httpOpts...)))
	}
	u, err := updater.New(s.store, s.cache, append(uopts, o.updaterOpts...)...)
	if err != nil {
		return nil, err
	}
	s.updater = u

	if o.watch {
		w, err := load.NewWatcher(o.dir, s.reload, load.WithLogger(o.logger))
		if err != nil {
			return nil, err
		}
		ctx, cancel := context.WithCancel(context.Background())
		s.watcher, s.cancel = w, cancel
		go w.Run(ctx)
	}
	return s, nil
}

func (s *SDK) reload(p *schema.Payload) {
	// Failures are logged by the updater.
	_, _ = s.updater.Apply(p)
}

// Close stops polling and watching.
func (s *SDK) Close() error {
	s.updater.StopPolling()
	if s.cancel != nil {
		s.cancel()
	}
	if s.watcher != nil {
		return s.watcher.Close()
	}
	return nil
}

// =============================================================================
// Lifecycle
// =============================================================================

// Ready blocks until a snapshot is loaded.
func (s *SDK) Ready(ctx context.Context) error {
	return s.updater.Ready(ctx)
}

// Refresh fetches a new snapshot if the current one is older than the TTL.
func (s *SDK) Refresh(ctx context.Context) error {
	return s.updater.Refresh(ctx)
}

// StartPolling starts the background refresh. See updater.Updater.StartPolling.
func (s *SDK) StartPolling(ctx context.Context) *updater.Future {
	return s.updater.StartPolling(ctx)
}

// StopPolling stops the background refresh.
func (s *SDK) StopPolling() {
	s.updater.StopPolling()
}

// OnChange registers fn for schema version changes and returns a function
// that unregisters it. If a snapshot is already loaded, fn is called
// immediately with the event that loaded it.
func (s *SDK) OnChange(fn func(updater.ChangeEvent)) (unsubscribe func()) {
	id := uuid.New()
	s.mu.Lock()
	s.listeners = append(s.listeners, listener{id: id, fn: fn})
	last := s.last
	s.mu.Unlock()
	if last != nil {
		fn(*last)
	}
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, l := range s.listeners {
			if l.id == id {
				s.listeners = append(s.listeners[:i:i], s.listeners[i+1:]...)
				return
			}
		}
	}
}

func (s *SDK) dispatch(e updater.ChangeEvent) {
	s.mu.Lock()
	s.last = &e
	listeners := append([]listener(nil), s.listeners...)
	s.mu.Unlock()
	for _, l := range listeners {
		l.fn(e)
	}
}

// =============================================================================
// Accessors
// =============================================================================

// Store returns the raw data store.
func (s *SDK) Store() *rawdata.Store { return s.store }

// Cache returns the accessor cache.
func (s *SDK) Cache() *strata.Cache { return s.cache }

// Resolver returns the type and relationship resolver.
func (s *SDK) Resolver() *resolve.Resolver { return s.resolver }

// Validator returns the property validators.
func (s *SDK) Validator() *validate.Validator { return s.validator }

// Updater returns the lifecycle controller.
func (s *SDK) Updater() *updater.Updater { return s.updater }

// Metrics returns the metrics collector, or nil without WithMetrics.
func (s *SDK) Metrics() *metrics.Collector { return s.metrics }

// Version returns the version of the current snapshot.
func (s *SDK) Version() (string, error) {
	return s.resolver.Version()
}

// Type returns the resolved type called name.
func (s *SDK) Type(name string, opts ...resolve.Option) (*resolve.Type, error) {
	return s.resolver.Type(name, opts...)
}

// Types returns all resolved types in hierarchy order.
func (s *SDK) Types(opts ...resolve.Option) ([]*resolve.Type, error) {
	return s.resolver.Types(opts...)
}

// TypeHierarchy returns the categories with their resolved types.
func (s *SDK) TypeHierarchy(opts ...resolve.Option) ([]*resolve.Category, error) {
	return s.resolver.TypeHierarchy(opts...)
}

// RelationshipType returns the relationship behind property on root.
func (s *SDK) RelationshipType(root, property string, opts ...resolve.Option) (*resolve.Relationship, error) {
	return s.resolver.RelationshipType(root, property, opts...)
}

// RelationshipTypes returns the relationships of every type.
func (s *SDK) RelationshipTypes(opts ...resolve.Option) ([]*resolve.Relationship, error) {
	return s.resolver.RelationshipTypes(opts...)
}

// Enums returns all enums by name.
func (s *SDK) Enums() (*schema.OrderedMap[*resolve.Enum], error) {
	return s.resolver.Enums()
}

// StringValidator returns the compiled string pattern called name.
func (s *SDK) StringValidator(name string) (*resolve.StringValidator, error) {
	return s.resolver.StringValidator(name)
}

// PrimitiveTypes returns the primitive vocabulary.
func (s *SDK) PrimitiveTypes() (*schema.OrderedMap[*schema.PrimitiveType], error) {
	return s.resolver.PrimitiveTypes()
}

// GraphQLDefs returns the GraphQL SDL definitions of the current snapshot.
func (s *SDK) GraphQLDefs() ([]string, error) {
	return s.composer.Definitions()
}

// GraphQLSchema returns the composed, syntax-checked GraphQL SDL document.
func (s *SDK) GraphQLSchema() (string, error) {
	return s.composer.Compose()
}
