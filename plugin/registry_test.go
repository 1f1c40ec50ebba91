package plugin

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/xraph/bytebank/account"
	"github.com/xraph/bytebank/id"
	"github.com/xraph/bytebank/transaction"
	"github.com/xraph/bytebank/types"
)

type namedPlugin struct{ name string }

func (p *namedPlugin) Name() string { return p.name }

type usagePlugin struct {
	namedPlugin
	mu     sync.Mutex
	events []types.Megabytes
	err    error
}

func (p *usagePlugin) OnUsageConsumed(_ context.Context, _ id.UserID, amount types.Megabytes, _ string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, amount)
	return p.err
}

type slowPlugin struct {
	namedPlugin
	release chan struct{}
}

func (p *slowPlugin) OnTransferred(_ context.Context, _ *transaction.Transaction) error {
	<-p.release
	return nil
}

type multiPlugin struct {
	namedPlugin
	registered []string
}

func (p *multiPlugin) OnUserRegistered(_ context.Context, u *account.User) error {
	p.registered = append(p.registered, u.Name)
	return nil
}

func (p *multiPlugin) OnSweepCompleted(_ context.Context, _, _ int, _ time.Duration) error {
	return nil
}

func quietRegistry() *Registry {
	return NewRegistry().WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	r := quietRegistry()
	if err := r.Register(&namedPlugin{name: "audit"}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := r.Register(&namedPlugin{name: "audit"}); err == nil {
		t.Fatal("expected duplicate registration to fail")
	}
	if r.Count() != 1 {
		t.Errorf("expected 1 plugin, got %d", r.Count())
	}
	if r.Get("audit") == nil {
		t.Error("Get should find the registered plugin")
	}
	if r.Get("missing") != nil {
		t.Error("Get should return nil for unknown plugins")
	}
}

func TestImplementedInterfaces(t *testing.T) {
	got := implementedInterfaces(&multiPlugin{namedPlugin: namedPlugin{name: "multi"}})
	want := []string{"OnUserRegistered", "OnSweepCompleted"}
	if !slices.Equal(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestEmitDispatchesOnlyToImplementers(t *testing.T) {
	r := quietRegistry()
	usage := &usagePlugin{namedPlugin: namedPlugin{name: "usage"}}
	multi := &multiPlugin{namedPlugin: namedPlugin{name: "multi"}}
	for _, p := range []Plugin{usage, multi, &namedPlugin{name: "bare"}} {
		if err := r.Register(p); err != nil {
			t.Fatalf("Register %s: %v", p.Name(), err)
		}
	}

	ctx := context.Background()
	r.EmitUsageConsumed(ctx, id.NewUserID(), 150, "daily")
	r.EmitUserRegistered(ctx, &account.User{Name: "Ravi"})

	if !slices.Equal(usage.events, []types.Megabytes{150}) {
		t.Errorf("usage events: got %v", usage.events)
	}
	if !slices.Equal(multi.registered, []string{"Ravi"}) {
		t.Errorf("registered: got %v", multi.registered)
	}
}

func TestEmitSwallowsPluginErrors(t *testing.T) {
	r := quietRegistry()
	failing := &usagePlugin{namedPlugin: namedPlugin{name: "failing"}, err: errors.New("boom")}
	healthy := &usagePlugin{namedPlugin: namedPlugin{name: "healthy"}}
	_ = r.Register(failing)
	_ = r.Register(healthy)

	r.EmitUsageConsumed(context.Background(), id.NewUserID(), 10, "wallet")

	if len(healthy.events) != 1 {
		t.Errorf("a failing plugin must not stop dispatch, got %d events", len(healthy.events))
	}
}

func TestCallWithTimeout(t *testing.T) {
	r := quietRegistry().WithTimeout(20 * time.Millisecond)
	slow := &slowPlugin{namedPlugin: namedPlugin{name: "slow"}, release: make(chan struct{})}
	defer close(slow.release)
	_ = r.Register(slow)

	start := time.Now()
	r.EmitTransferred(context.Background(), &transaction.Transaction{})
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("emit should give up after the timeout, took %v", elapsed)
	}

	err := r.callWithTimeout(context.Background(), "slow", func() error {
		<-slow.release
		return nil
	})
	if err == nil {
		t.Error("expected a timeout error")
	}
}

func TestWithTimeoutIgnoresNonPositive(t *testing.T) {
	r := NewRegistry().WithTimeout(0)
	if r.timeout != DefaultTimeout {
		t.Errorf("expected default timeout, got %v", r.timeout)
	}
}
