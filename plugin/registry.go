package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"github.com/xraph/bytebank/account"
	"github.com/xraph/bytebank/entry"
	"github.com/xraph/bytebank/id"
	"github.com/xraph/bytebank/transaction"
	"github.com/xraph/bytebank/types"
)

// DefaultTimeout bounds a single plugin call.
const DefaultTimeout = 5 * time.Second

// Registry manages all registered plugins and provides efficient dispatch.
// It uses type-cached discovery for O(1) dispatch performance.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger
	timeout time.Duration

	// Type-cached plugin lists for efficient dispatch
	onInit              []OnInit
	onShutdown          []OnShutdown
	onUserRegistered    []OnUserRegistered
	onRolloverApplied   []OnRolloverApplied
	onEntryCreated      []OnEntryCreated
	onEntriesExpired    []OnEntriesExpired
	onUsageConsumed     []OnUsageConsumed
	onPurchased         []OnPurchased
	onTransferred       []OnTransferred
	onInsufficientFunds []OnInsufficientFunds
	onSweepCompleted    []OnSweepCompleted
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		logger:  slog.Default(),
		timeout: DefaultTimeout,
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// WithTimeout sets how long a single plugin call may run.
func (r *Registry) WithTimeout(d time.Duration) *Registry {
	if d > 0 {
		r.timeout = d
	}
	return r
}

// Register adds a plugin to the registry and caches its interfaces.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Check for duplicate
	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	// Type-switch to cache interfaces
	if v, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, v)
	}
	if v, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
	}
	if v, ok := p.(OnUserRegistered); ok {
		r.onUserRegistered = append(r.onUserRegistered, v)
	}
	if v, ok := p.(OnRolloverApplied); ok {
		r.onRolloverApplied = append(r.onRolloverApplied, v)
	}
	if v, ok := p.(OnEntryCreated); ok {
		r.onEntryCreated = append(r.onEntryCreated, v)
	}
	if v, ok := p.(OnEntriesExpired); ok {
		r.onEntriesExpired = append(r.onEntriesExpired, v)
	}
	if v, ok := p.(OnUsageConsumed); ok {
		r.onUsageConsumed = append(r.onUsageConsumed, v)
	}
	if v, ok := p.(OnPurchased); ok {
		r.onPurchased = append(r.onPurchased, v)
	}
	if v, ok := p.(OnTransferred); ok {
		r.onTransferred = append(r.onTransferred, v)
	}
	if v, ok := p.(OnInsufficientFunds); ok {
		r.onInsufficientFunds = append(r.onInsufficientFunds, v)
	}
	if v, ok := p.(OnSweepCompleted); ok {
		r.onSweepCompleted = append(r.onSweepCompleted, v)
	}

	r.logger.Info("plugin registered",
		"name", p.Name(),
		"interfaces", implementedInterfaces(p),
	)

	return nil
}

var hookTypes = []struct {
	name string
	typ  reflect.Type
}{
	{"OnInit", reflect.TypeOf((*OnInit)(nil)).Elem()},
	{"OnShutdown", reflect.TypeOf((*OnShutdown)(nil)).Elem()},
	{"OnUserRegistered", reflect.TypeOf((*OnUserRegistered)(nil)).Elem()},
	{"OnRolloverApplied", reflect.TypeOf((*OnRolloverApplied)(nil)).Elem()},
	{"OnEntryCreated", reflect.TypeOf((*OnEntryCreated)(nil)).Elem()},
	{"OnEntriesExpired", reflect.TypeOf((*OnEntriesExpired)(nil)).Elem()},
	{"OnUsageConsumed", reflect.TypeOf((*OnUsageConsumed)(nil)).Elem()},
	{"OnPurchased", reflect.TypeOf((*OnPurchased)(nil)).Elem()},
	{"OnTransferred", reflect.TypeOf((*OnTransferred)(nil)).Elem()},
	{"OnInsufficientFunds", reflect.TypeOf((*OnInsufficientFunds)(nil)).Elem()},
	{"OnSweepCompleted", reflect.TypeOf((*OnSweepCompleted)(nil)).Elem()},
}

// implementedInterfaces returns the hook names a plugin implements.
func implementedInterfaces(p Plugin) []string {
	var interfaces []string
	v := reflect.TypeOf(p)
	for _, h := range hookTypes {
		if v.Implements(h.typ) {
			interfaces = append(interfaces, h.name)
		}
	}
	return interfaces
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// ──────────────────────────────────────────────────
// Event emission methods
// ──────────────────────────────────────────────────

// EmitInit calls OnInit for all plugins that implement it.
func (r *Registry) EmitInit(ctx context.Context, bank interface{}) {
	r.mu.RLock()
	plugins := r.onInit
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnInit(ctx, bank)
		}); err != nil {
			r.logger.Warn("plugin OnInit failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitShutdown calls OnShutdown for all plugins that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	r.mu.RLock()
	plugins := r.onShutdown
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnShutdown(ctx)
		}); err != nil {
			r.logger.Warn("plugin OnShutdown failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitUserRegistered emits a user registered event.
func (r *Registry) EmitUserRegistered(ctx context.Context, u *account.User) {
	r.mu.RLock()
	plugins := r.onUserRegistered
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnUserRegistered(ctx, u)
		}); err != nil {
			r.logger.Warn("plugin OnUserRegistered failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitRolloverApplied emits a rollover applied event.
func (r *Registry) EmitRolloverApplied(ctx context.Context, userID id.UserID, leftover types.Megabytes) {
	r.mu.RLock()
	plugins := r.onRolloverApplied
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnRolloverApplied(ctx, userID, leftover)
		}); err != nil {
			r.logger.Warn("plugin OnRolloverApplied failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitEntryCreated emits an entry created event.
func (r *Registry) EmitEntryCreated(ctx context.Context, e *entry.Entry) {
	r.mu.RLock()
	plugins := r.onEntryCreated
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnEntryCreated(ctx, e)
		}); err != nil {
			r.logger.Warn("plugin OnEntryCreated failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitEntriesExpired emits an entries expired event.
func (r *Registry) EmitEntriesExpired(ctx context.Context, userID id.UserID, count int, forfeited types.Megabytes) {
	r.mu.RLock()
	plugins := r.onEntriesExpired
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnEntriesExpired(ctx, userID, count, forfeited)
		}); err != nil {
			r.logger.Warn("plugin OnEntriesExpired failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitUsageConsumed emits a usage consumed event.
func (r *Registry) EmitUsageConsumed(ctx context.Context, userID id.UserID, amount types.Megabytes, source string) {
	r.mu.RLock()
	plugins := r.onUsageConsumed
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnUsageConsumed(ctx, userID, amount, source)
		}); err != nil {
			r.logger.Warn("plugin OnUsageConsumed failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitPurchased emits a purchase event.
func (r *Registry) EmitPurchased(ctx context.Context, e *entry.Entry) {
	r.mu.RLock()
	plugins := r.onPurchased
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnPurchased(ctx, e)
		}); err != nil {
			r.logger.Warn("plugin OnPurchased failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitTransferred emits a transfer event.
func (r *Registry) EmitTransferred(ctx context.Context, t *transaction.Transaction) {
	r.mu.RLock()
	plugins := r.onTransferred
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnTransferred(ctx, t)
		}); err != nil {
			r.logger.Warn("plugin OnTransferred failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitInsufficientFunds emits a rejected-request event.
func (r *Registry) EmitInsufficientFunds(ctx context.Context, userID id.UserID, source string, requested, available types.Megabytes) {
	r.mu.RLock()
	plugins := r.onInsufficientFunds
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnInsufficientFunds(ctx, userID, source, requested, available)
		}); err != nil {
			r.logger.Warn("plugin OnInsufficientFunds failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitSweepCompleted emits a sweep completed event.
func (r *Registry) EmitSweepCompleted(ctx context.Context, rolledOver, expired int, elapsed time.Duration) {
	r.mu.RLock()
	plugins := r.onSweepCompleted
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnSweepCompleted(ctx, rolledOver, expired, elapsed)
		}); err != nil {
			r.logger.Warn("plugin OnSweepCompleted failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// callWithTimeout calls a plugin function with a timeout.
// Plugins should never block the ledger pipeline.
func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		done <- fn()
	}()

	timer := time.NewTimer(r.timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		return err
	case <-timer.C:
		return fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		return ctx.Err()
	}
}
