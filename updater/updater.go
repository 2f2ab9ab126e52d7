// Package updater decides how and when new schema snapshots are obtained.
//
// An Updater runs in one of three modes:
//
//	Static  the payload is injected once, no fetching happens
//	Stale   Refresh fetches when the last refresh is older than the TTL
//	Poll    StartPolling fetches immediately and then on every TTL tick
//
// A fetched payload whose version differs from the one held replaces the
// snapshot, clears the accessor cache and emits a ChangeEvent. Fetch or
// decode failures are logged and leave the previous snapshot in place.
package updater

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/syssam/strata"
	"github.com/syssam/strata/internal/metrics"
	"github.com/syssam/strata/load"
	"github.com/syssam/strata/rawdata"
	"github.com/syssam/strata/schema"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// DefaultTTL is the refresh interval used when none is configured.
const DefaultTTL = 60 * time.Second

// Mode is the update strategy.
type Mode int

const (
	// Stale refreshes on demand once the TTL has elapsed.
	Stale Mode = iota
	// Poll refreshes on a background timer.
	Poll
	// Static never fetches.
	Static
)

var modeNames = [...]string{
	Stale:  "stale",
	Poll:   "poll",
	Static: "static",
}

// String returns the mode name.
func (m Mode) String() string {
	if int(m) < len(modeNames) {
		return modeNames[m]
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// ParseMode parses a mode name.
func ParseMode(s string) (Mode, error) {
	for m, name := range modeNames {
		if strings.EqualFold(s, name) {
			return Mode(m), nil
		}
	}
	return 0, fmt.Errorf("updater: unknown mode %q", s)
}

// ChangeEvent describes a schema version change.
type ChangeEvent struct {
	ID         string
	OldVersion string
	NewVersion string
	At         time.Time
}

// Updater owns the lifecycle of the snapshot held by a rawdata.Store.
type Updater struct {
	store    *rawdata.Store
	cache    *strata.Cache
	source   Source
	static   *schema.Payload
	mode     Mode
	ttl      time.Duration
	now      func() time.Time
	logger   *zap.Logger
	metrics  *metrics.Collector
	onChange []func(ChangeEvent)

	group singleflight.Group
	apply sync.Mutex // serializes snapshot replacement

	mu          sync.Mutex
	lastRefresh time.Time
	session     uint64
	poll        *poller
}

type poller struct {
	first *Future
	stop  chan struct{}
}

// Option configures an Updater.
type Option func(*Updater) error

// WithSource sets the source fetched in Stale and Poll mode.
func WithSource(s Source) Option {
	return func(u *Updater) error {
		if s == nil {
			return errors.New("updater: nil source")
		}
		u.source = s
		return nil
	}
}

// WithSchemaData injects a payload and switches the updater to Static mode.
func WithSchemaData(p *schema.Payload) Option {
	return func(u *Updater) error {
		if p == nil {
			return errors.New("updater: nil schema data")
		}
		u.static = p
		u.mode = Static
		return nil
	}
}

// WithSchemaDirectory loads a schema directory and switches the updater to
// Static mode.
func WithSchemaDirectory(dir string) Option {
	return func(u *Updater) error {
		p, err := load.Dir(context.Background(), dir)
		if err != nil {
			return fmt.Errorf("updater: load schema directory: %w", err)
		}
		return WithSchemaData(p)(u)
	}
}

// WithMode sets the update strategy. Static requires schema data.
func WithMode(m Mode) Option {
	return func(u *Updater) error {
		if u.static != nil && m != Static {
			return fmt.Errorf("updater: mode %s conflicts with injected schema data", m)
		}
		u.mode = m
		return nil
	}
}

// WithTTL sets the refresh interval.
func WithTTL(d time.Duration) Option {
	return func(u *Updater) error {
		if d <= 0 {
			return fmt.Errorf("updater: ttl must be positive, got %s", d)
		}
		u.ttl = d
		return nil
	}
}

// WithClock sets the time source used for TTL checks.
func WithClock(now func() time.Time) Option {
	return func(u *Updater) error {
		if now == nil {
			return errors.New("updater: nil clock")
		}
		u.now = now
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(u *Updater) error {
		if l != nil {
			u.logger = l
		}
		return nil
	}
}

// WithMetrics records fetch outcomes in c.
func WithMetrics(c *metrics.Collector) Option {
	return func(u *Updater) error {
		u.metrics = c
		return nil
	}
}

// OnChange registers a function called after every version change. The
// function runs synchronously on the goroutine that applied the change.
func OnChange(fn func(ChangeEvent)) Option {
	return func(u *Updater) error {
		if fn == nil {
			return errors.New("updater: nil change handler")
		}
		u.onChange = append(u.onChange, fn)
		return nil
	}
}

// New returns an updater for store. Successful snapshot replacements clear
// cache, which may be nil.
//
// In Static mode the injected payload is applied before New returns and the
// change event is emitted immediately.
func New(store *rawdata.Store, cache *strata.Cache, opts ...Option) (*Updater, error) {
	if store == nil {
		return nil, errors.New("updater: nil store")
	}
	u := &Updater{
		store:  store,
		cache:  cache,
		ttl:    DefaultTTL,
		now:    time.Now,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		if err := opt(u); err != nil {
			return nil, err
		}
	}
	if u.static != nil {
		u.mode = Static
	}
	switch {
	case u.mode == Static && u.static == nil:
		return nil, errors.New("updater: static mode requires schema data or a schema directory")
	case u.mode != Static && u.source == nil:
		return nil, fmt.Errorf("updater: %s mode requires a source", u.mode)
	}
	if u.mode == Static {
		if _, err := u.applyPayload(u.static, 0, false, u.now()); err != nil {
			return nil, err
		}
		u.lastRefresh = u.now()
	}
	return u, nil
}

// Mode returns the update strategy.
func (u *Updater) Mode() Mode {
	return u.mode
}

// TTL returns the refresh interval.
func (u *Updater) TTL() time.Duration {
	return u.ttl
}

// LastRefresh returns the time of the last successful fetch.
func (u *Updater) LastRefresh() time.Time {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.lastRefresh
}

// Refresh fetches a new snapshot if the last refresh is older than the TTL.
// Overlapping calls share one fetch. In Static mode it does nothing.
//
// A failed fetch is logged and the previous snapshot stays authoritative;
// the error is only returned when no snapshot has ever been loaded.
func (u *Updater) Refresh(ctx context.Context) error {
	if u.mode == Static {
		return nil
	}
	u.mu.Lock()
	fresh := !u.lastRefresh.IsZero() && u.now().Sub(u.lastRefresh) <= u.ttl
	u.mu.Unlock()
	if fresh && u.store.IsHydrated() {
		return nil
	}
	return u.containErr(u.refresh(ctx, 0, false))
}

// refresh runs one fetch through the singleflight group. The shared fetch
// is detached from ctx: a caller giving up only abandons its own wait.
func (u *Updater) refresh(ctx context.Context, session uint64, checkSession bool) error {
	key := "refresh"
	if checkSession {
		key = fmt.Sprintf("poll-%d", session)
	}
	fetchCtx := context.WithoutCancel(ctx)
	ch := u.group.DoChan(key, func() (any, error) {
		return nil, u.fetch(fetchCtx, session, checkSession)
	})
	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// containErr drops transport failures once a snapshot exists.
func (u *Updater) containErr(err error) error {
	if err != nil && strata.IsTransportError(err) && u.store.IsHydrated() {
		return nil
	}
	return err
}

// fetch performs one fetch and applies the result.
func (u *Updater) fetch(ctx context.Context, session uint64, checkSession bool) error {
	start := u.now()
	p, err := u.source.Fetch(ctx)
	if err != nil {
		u.metrics.ObserveFetch(metrics.FetchFailed, u.now().Sub(start))
		u.logger.Warn("Schema fetch failed, keeping previous schema",
			zap.String("source", sourceName(u.source)),
			zap.Error(err),
		)
		if !strata.IsTransportError(err) {
			err = strata.NewTransportError("fetch", sourceName(u.source), err)
		}
		return err
	}
	if _, err := u.applyPayload(p, session, checkSession, start); err != nil {
		return err
	}
	return nil
}

// Apply replaces the snapshot with p if its version differs from the one
// held, as if p had been fetched. It reports whether the version changed.
func (u *Updater) Apply(p *schema.Payload) (bool, error) {
	if p == nil {
		return false, errors.New("updater: nil payload")
	}
	return u.applyPayload(p, 0, false, u.now())
}

// applyPayload replaces the snapshot if p carries a new version. Polling
// fetches from a stopped session are discarded.
func (u *Updater) applyPayload(p *schema.Payload, session uint64, checkSession bool, start time.Time) (bool, error) {
	u.apply.Lock()
	defer u.apply.Unlock()

	if checkSession {
		u.mu.Lock()
		stale := session != u.session
		u.mu.Unlock()
		if stale {
			u.metrics.ObserveFetch(metrics.FetchDiscarded, u.now().Sub(start))
			u.logger.Debug("Discarding schema fetched by a stopped poller", zap.String("version", p.Version))
			return false, nil
		}
	}

	old, _ := u.store.Version()
	if u.store.IsHydrated() && old == p.Version {
		u.markRefreshed()
		u.metrics.ObserveFetch(metrics.FetchUnchanged, u.now().Sub(start))
		u.logger.Debug("Schema version unchanged", zap.String("version", old))
		return false, nil
	}

	if err := u.store.Set(p.Snapshot()); err != nil {
		u.metrics.ObserveFetch(metrics.FetchFailed, u.now().Sub(start))
		u.logger.Warn("Rejected schema snapshot, keeping previous schema",
			zap.String("version", p.Version),
			zap.Error(err),
		)
		return false, strata.NewTransportError("apply", sourceName(u.source), err)
	}
	if u.cache != nil {
		u.cache.Clear()
	}
	u.markRefreshed()

	event := ChangeEvent{
		ID:         uuid.NewString(),
		OldVersion: old,
		NewVersion: p.Version,
		At:         u.now(),
	}
	u.metrics.ObserveFetch(metrics.FetchChanged, u.now().Sub(start))
	u.metrics.SetVersion(event.NewVersion, event.At)
	u.logger.Info("Schema version changed",
		zap.String("old_version", event.OldVersion),
		zap.String("new_version", event.NewVersion),
		zap.String("event_id", event.ID),
	)
	for _, fn := range u.onChange {
		fn(event)
	}
	return true, nil
}

func (u *Updater) markRefreshed() {
	u.mu.Lock()
	u.lastRefresh = u.now()
	u.mu.Unlock()
}

// =============================================================================
// Polling
// =============================================================================

// StartPolling fetches immediately and then every TTL until StopPolling is
// called or ctx is done. The returned future completes with the first fetch;
// calls made while polling return the same future. In Static mode the future
// is already complete.
func (u *Updater) StartPolling(ctx context.Context) *Future {
	if u.mode == Static {
		return completed(nil)
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.poll != nil {
		return u.poll.first
	}
	p := &poller{first: newFuture(), stop: make(chan struct{})}
	u.poll = p
	session := u.session
	go u.run(ctx, p, session)
	return p.first
}

func (u *Updater) run(ctx context.Context, p *poller, session uint64) {
	p.first.complete(u.containErr(u.refresh(ctx, session, true)))

	ticker := time.NewTicker(u.ttl)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			select {
			case <-p.stop:
				return
			default:
			}
			// Errors are logged by fetch.
			_ = u.refresh(ctx, session, true)
		case <-p.stop:
			return
		case <-ctx.Done():
			u.mu.Lock()
			if u.poll == p {
				u.poll = nil
				u.session++
			}
			u.mu.Unlock()
			return
		}
	}
}

// StopPolling stops the background timer. A fetch still in flight is not
// aborted, but its result is discarded.
func (u *Updater) StopPolling() {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.poll == nil {
		return
	}
	close(u.poll.stop)
	u.poll = nil
	u.session++
}

// Polling reports whether the background timer is running.
func (u *Updater) Polling() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.poll != nil
}

// Ready blocks until a snapshot is guaranteed to exist. In Static mode it
// returns immediately. In Poll mode it starts polling and waits for the
// first fetch; ctx bounds the wait, not the poller. In Stale mode it
// refreshes.
func (u *Updater) Ready(ctx context.Context) error {
	if u.store.IsHydrated() {
		return nil
	}
	switch u.mode {
	case Static:
		return nil
	case Poll:
		// The poller outlives ctx; it runs until StopPolling.
		if err := u.StartPolling(context.WithoutCancel(ctx)).Wait(ctx); err != nil {
			return err
		}
	default:
		if err := u.Refresh(ctx); err != nil {
			return err
		}
	}
	if !u.store.IsHydrated() {
		return strata.NewSchemaNotLoadedError("Ready")
	}
	return nil
}

func sourceName(s Source) string {
	if n, ok := s.(interface{ URL() string }); ok {
		return n.URL()
	}
	return ""
}
