package runtime_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/graft/internal/runtime"
	"github.com/aretw0/graft/pkg/domain"
	"github.com/aretw0/graft/pkg/ports"
)

type fakeApp struct {
	name string
}

type fakeModule struct {
	path  string
	attrs map[string]any
}

func (m *fakeModule) Path() string { return m.path }

func (m *fakeModule) Attribute(name string) (any, error) {
	value, ok := m.attrs[name]
	if !ok {
		return nil, &domain.AttributeNotFoundError{Module: m.path, Attribute: name}
	}
	return value, nil
}

type fakeResolver struct {
	mu          sync.Mutex
	attrs       map[string]map[string]any
	resolves    map[string]int
	invalidated []string
	failWith    error
	block       bool // When set, Resolve waits for ctx cancellation
}

func newFakeResolver() *fakeResolver {
	return &fakeResolver{
		attrs:    map[string]map[string]any{},
		resolves: map[string]int{},
	}
}

func (f *fakeResolver) register(path string, attrs map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attrs[path] = attrs
}

func (f *fakeResolver) fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failWith = err
}

func (f *fakeResolver) Resolve(ctx context.Context, path string) (ports.Module, error) {
	f.mu.Lock()
	f.resolves[path]++
	failWith, block := f.failWith, f.block
	attrs, known := f.attrs[path]
	f.mu.Unlock()

	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if failWith != nil {
		return nil, failWith
	}
	if !known {
		return nil, &domain.ImportError{Module: path, Err: errors.New("unknown module")}
	}
	return &fakeModule{path: path, attrs: attrs}, nil
}

func (f *fakeResolver) Invalidate(prefix string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invalidated = append(f.invalidated, prefix)
	return 0
}

func (f *fakeResolver) calls(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.resolves[path]
}

func (f *fakeResolver) invalidations() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.invalidated...)
}

type recordingSweep struct {
	name   string
	err    error
	panics bool

	mu    sync.Mutex
	calls int
}

func (s *recordingSweep) Name() string { return s.name }

func (s *recordingSweep) Sweep(ctx context.Context) error {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.panics {
		panic("registry gone sideways")
	}
	return s.err
}

func (s *recordingSweep) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func newCoordinator(resolver ports.SymbolResolver, sweeps ...ports.SweepStrategy) *runtime.Coordinator {
	return runtime.New(runtime.Config{Resolver: resolver, Sweeps: sweeps})
}

func TestLoad_CacheHit(t *testing.T) {
	ctx := context.Background()
	app := &fakeApp{name: "svc"}
	resolver := newFakeResolver()
	resolver.register("pkg.app", map[string]any{"service": app})
	coord := newCoordinator(resolver)

	first, gen1, err := coord.Load(ctx, "pkg.app:service", false)
	if err != nil {
		t.Fatalf("first load failed: %v", err)
	}
	second, gen2, err := coord.Load(ctx, "pkg.app:service", false)
	if err != nil {
		t.Fatalf("second load failed: %v", err)
	}

	if first != second {
		t.Error("cache hit should return the identical handle")
	}
	if gen1 != gen2 {
		t.Errorf("cache hit changed generation: %d -> %d", gen1, gen2)
	}
	if calls := resolver.calls("pkg.app"); calls != 1 {
		t.Errorf("resolver called %d times, want 1", calls)
	}
}

func TestLoad_ForceReload(t *testing.T) {
	ctx := context.Background()
	resolver := newFakeResolver()
	resolver.register("pkg.app", map[string]any{"service": &fakeApp{}})
	coord := newCoordinator(resolver)

	if _, gen, err := coord.Load(ctx, "pkg.app:service", false); err != nil || gen != 0 {
		t.Fatalf("initial load: gen=%d err=%v, want gen=0 nil", gen, err)
	}
	if _, gen, err := coord.Load(ctx, "pkg.app:service", true); err != nil || gen != 1 {
		t.Fatalf("forced reload: gen=%d err=%v, want gen=1 nil", gen, err)
	}
	if _, gen, err := coord.Load(ctx, "pkg.app:service", true); err != nil || gen != 2 {
		t.Fatalf("second forced reload: gen=%d err=%v, want gen=2 nil", gen, err)
	}
	if calls := resolver.calls("pkg.app"); calls != 3 {
		t.Errorf("resolver called %d times, want 3", calls)
	}
}

func TestLoad_TargetSwitch(t *testing.T) {
	ctx := context.Background()
	resolver := newFakeResolver()
	resolver.register("pkg.app", map[string]any{"service": &fakeApp{name: "one"}})
	resolver.register("other.app", map[string]any{"service": &fakeApp{name: "two"}})
	coord := newCoordinator(resolver)

	if _, _, err := coord.Load(ctx, "pkg.app:service", false); err != nil {
		t.Fatalf("load T1: %v", err)
	}

	handle, gen, err := coord.Load(ctx, "other.app:service", false)
	if err != nil {
		t.Fatalf("load T2: %v", err)
	}
	if gen != 1 {
		t.Errorf("target switch generation = %d, want 1", gen)
	}
	if app, ok := handle.(*fakeApp); !ok || app.name != "two" {
		t.Errorf("target switch returned wrong handle: %#v", handle)
	}
	if calls := resolver.calls("other.app"); calls != 1 {
		t.Errorf("resolver called %d times for T2, want 1", calls)
	}
}

func TestLoad_MalformedTarget(t *testing.T) {
	ctx := context.Background()
	resolver := newFakeResolver()
	resolver.register("pkg.app", map[string]any{"service": &fakeApp{}})
	coord := newCoordinator(resolver)

	if _, _, err := coord.Load(ctx, "pkg.app:service", false); err != nil {
		t.Fatalf("seed load: %v", err)
	}
	genBefore := coord.Generation()

	for _, raw := range []string{"pkg.app.service", "a:b:c", ":service", "pkg.app:", ""} {
		_, _, err := coord.Load(ctx, raw, false)
		var malformed *domain.MalformedTargetError
		if !errors.As(err, &malformed) {
			t.Fatalf("Load(%q) error = %v, want *MalformedTargetError", raw, err)
		}
	}

	if _, ok := coord.Cached(); !ok {
		t.Error("malformed target must not evict the cache")
	}
	if coord.Generation() != genBefore {
		t.Errorf("malformed target changed generation: %d -> %d", genBefore, coord.Generation())
	}
	if calls := resolver.calls("pkg.app"); calls != 1 {
		t.Errorf("malformed target triggered resolution, calls = %d", calls)
	}
}

func TestLoad_ResolverFailure(t *testing.T) {
	ctx := context.Background()
	resolver := newFakeResolver()
	resolver.register("pkg.app", map[string]any{"service": &fakeApp{}})
	coord := newCoordinator(resolver)

	if _, _, err := coord.Load(ctx, "pkg.app:service", false); err != nil {
		t.Fatalf("seed load: %v", err)
	}

	boom := errors.New("syntax error in source")
	resolver.fail(boom)
	_, _, err := coord.Load(ctx, "pkg.app:service", true)
	var imp *domain.ImportError
	if !errors.As(err, &imp) {
		t.Fatalf("failed reload error = %v, want *ImportError", err)
	}
	if !errors.Is(err, boom) {
		t.Error("ImportError should wrap the resolver cause")
	}

	// A failed reload leaves no usable handle behind.
	if _, ok := coord.Cached(); ok {
		t.Fatal("cache should be empty after a failed reload")
	}
	if coord.LastError() == nil {
		t.Error("LastError should report the failed reload")
	}

	// The next call resolves fresh rather than short-circuiting, and the
	// generation bumped by the failed attempt sticks.
	resolver.fail(nil)
	callsBefore := resolver.calls("pkg.app")
	_, gen, err := coord.Load(ctx, "pkg.app:service", false)
	if err != nil {
		t.Fatalf("recovery load: %v", err)
	}
	if gen != 1 {
		t.Errorf("recovery generation = %d, want 1", gen)
	}
	if resolver.calls("pkg.app") != callsBefore+1 {
		t.Error("recovery load should hit the resolver")
	}
	if coord.LastError() != nil {
		t.Error("LastError should clear after a successful load")
	}
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	resolver := newFakeResolver()
	resolver.register("pkg.app", map[string]any{"service": &fakeApp{}})
	coord := newCoordinator(resolver)

	if _, _, err := coord.Load(ctx, "pkg.app:service", true); err != nil {
		t.Fatalf("load: %v", err)
	}
	genBefore := coord.Generation()

	coord.Clear()
	if _, ok := coord.Cached(); ok {
		t.Error("Cached() should be empty after Clear")
	}
	if _, ok := coord.Target(); ok {
		t.Error("Target() should be empty after Clear")
	}
	if coord.Generation() != genBefore {
		t.Errorf("Clear changed generation: %d -> %d", genBefore, coord.Generation())
	}

	// Idempotent.
	coord.Clear()
	if coord.Generation() != genBefore {
		t.Error("repeated Clear changed generation")
	}
}

func TestLoad_FirstLoadIsNotAReload(t *testing.T) {
	ctx := context.Background()
	resolver := newFakeResolver()
	resolver.register("pkg.app", map[string]any{"service": &fakeApp{}})
	sweep := &recordingSweep{name: "registry"}
	coord := newCoordinator(resolver, sweep)

	_, gen, err := coord.Load(ctx, "pkg.app:service", false)
	if err != nil {
		t.Fatalf("first load: %v", err)
	}
	if gen != 0 {
		t.Errorf("first load generation = %d, want 0", gen)
	}
	if sweep.count() != 0 {
		t.Error("first load must not sweep")
	}
	if inv := resolver.invalidations(); len(inv) != 0 {
		t.Errorf("first load must not invalidate, got %v", inv)
	}

	_, gen, err = coord.Load(ctx, "pkg.app:service", true)
	if err != nil {
		t.Fatalf("forced reload: %v", err)
	}
	if gen != 1 {
		t.Errorf("forced reload generation = %d, want 1", gen)
	}
	if calls := resolver.calls("pkg.app"); calls != 2 {
		t.Errorf("resolver calls = %d, want 2", calls)
	}
	if inv := resolver.invalidations(); len(inv) != 1 || inv[0] != "pkg" {
		t.Errorf("forced reload should invalidate the top-level namespace, got %v", inv)
	}
}

func TestLoad_ForceOnEmptyCacheSkipsSweep(t *testing.T) {
	ctx := context.Background()
	resolver := newFakeResolver()
	resolver.register("pkg.app", map[string]any{"service": &fakeApp{}})
	sweep := &recordingSweep{name: "registry"}
	coord := newCoordinator(resolver, sweep)

	// Forcing with nothing cached still counts as a reload, but there is
	// nothing to sweep yet.
	_, gen, err := coord.Load(ctx, "pkg.app:service", true)
	if err != nil {
		t.Fatalf("forced load: %v", err)
	}
	if gen != 1 {
		t.Errorf("generation = %d, want 1", gen)
	}
	if sweep.count() != 0 {
		t.Error("sweep must not run without a previous handle")
	}
}

func TestLoad_SweepFailureIsolation(t *testing.T) {
	ctx := context.Background()
	resolver := newFakeResolver()
	resolver.register("pkg.app", map[string]any{"service": &fakeApp{}})

	healthy := &recordingSweep{name: "healthy"}
	failing := &recordingSweep{name: "failing", err: errors.New("backend down")}
	panicking := &recordingSweep{name: "panicking", panics: true}
	coord := newCoordinator(resolver, failing, panicking, healthy)

	if _, _, err := coord.Load(ctx, "pkg.app:service", false); err != nil {
		t.Fatalf("seed load: %v", err)
	}
	handle, gen, err := coord.Load(ctx, "pkg.app:service", true)
	if err != nil {
		t.Fatalf("reload with faulty sweeps should still succeed: %v", err)
	}
	if handle == nil || gen != 1 {
		t.Errorf("reload returned handle=%v gen=%d", handle, gen)
	}

	for _, s := range []*recordingSweep{failing, panicking, healthy} {
		if s.count() != 1 {
			t.Errorf("sweep %q ran %d times, want 1", s.name, s.count())
		}
	}
}

func TestLoad_AttributeNotFound(t *testing.T) {
	ctx := context.Background()
	resolver := newFakeResolver()
	resolver.register("pkg.app", map[string]any{"service": &fakeApp{}})
	coord := newCoordinator(resolver)

	_, _, err := coord.Load(ctx, "pkg.app:missing", false)
	var notFound *domain.AttributeNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("error = %v, want *AttributeNotFoundError", err)
	}
	if notFound.Module != "pkg.app" || notFound.Attribute != "missing" {
		t.Errorf("error fields = %q/%q", notFound.Module, notFound.Attribute)
	}
	if _, ok := coord.Cached(); ok {
		t.Error("cache should stay empty after attribute failure")
	}
}

func TestLoad_TypeMismatch(t *testing.T) {
	ctx := context.Background()
	resolver := newFakeResolver()
	resolver.register("pkg.app", map[string]any{"service": "just a string"})
	coord := runtime.New(runtime.Config{
		Resolver: resolver,
		Accept: func(v any) bool {
			_, ok := v.(*fakeApp)
			return ok
		},
		AcceptKind: "*runtime_test.fakeApp",
	})

	_, _, err := coord.Load(ctx, "pkg.app:service", false)
	var mismatch *domain.TypeMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("error = %v, want *TypeMismatchError", err)
	}
	if mismatch.Attribute != "service" || mismatch.ExpectedKind != "*runtime_test.fakeApp" {
		t.Errorf("error fields = %q/%q", mismatch.Attribute, mismatch.ExpectedKind)
	}
}

func TestLoad_NilHandleRejectedByDefault(t *testing.T) {
	ctx := context.Background()
	resolver := newFakeResolver()
	resolver.register("pkg.app", map[string]any{"service": nil})
	coord := newCoordinator(resolver)

	_, _, err := coord.Load(ctx, "pkg.app:service", false)
	var mismatch *domain.TypeMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("error = %v, want *TypeMismatchError for nil handle", err)
	}
}

func TestLoad_ResolveTimeout(t *testing.T) {
	ctx := context.Background()
	resolver := newFakeResolver()
	resolver.block = true
	coord := runtime.New(runtime.Config{
		Resolver:       resolver,
		ResolveTimeout: 20 * time.Millisecond,
	})

	start := time.Now()
	_, _, err := coord.Load(ctx, "pkg.app:service", false)
	if err == nil {
		t.Fatal("expected timeout error")
	}
	var imp *domain.ImportError
	if !errors.As(err, &imp) {
		t.Fatalf("error = %v, want *ImportError", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("error should wrap context.DeadlineExceeded, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("timeout took %v, resolver not bounded", elapsed)
	}
}

func TestLoad_Hooks(t *testing.T) {
	ctx := context.Background()
	resolver := newFakeResolver()
	resolver.register("pkg.app", map[string]any{"service": &fakeApp{}})

	var mu sync.Mutex
	var loads []domain.LoadEvent
	var sweeps []domain.SweepEvent
	coord := runtime.New(runtime.Config{
		Resolver: resolver,
		Sweeps:   []ports.SweepStrategy{&recordingSweep{name: "registry"}},
		Hooks: domain.Hooks{
			OnLoad: func(_ context.Context, e *domain.LoadEvent) {
				mu.Lock()
				loads = append(loads, *e)
				mu.Unlock()
			},
			OnSweep: func(_ context.Context, e *domain.SweepEvent) {
				mu.Lock()
				sweeps = append(sweeps, *e)
				mu.Unlock()
			},
		},
	})

	if _, _, err := coord.Load(ctx, "pkg.app:service", false); err != nil {
		t.Fatalf("first load: %v", err)
	}
	// Cache hit: no event.
	if _, _, err := coord.Load(ctx, "pkg.app:service", false); err != nil {
		t.Fatalf("cache hit: %v", err)
	}
	if _, _, err := coord.Load(ctx, "pkg.app:service", true); err != nil {
		t.Fatalf("forced reload: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(loads) != 2 {
		t.Fatalf("load events = %d, want 2 (cache hits are silent)", len(loads))
	}
	if loads[0].Reloaded || loads[0].Generation != 0 {
		t.Errorf("first event = %+v, want plain load at generation 0", loads[0])
	}
	if !loads[1].Reloaded || !loads[1].Forced || loads[1].Generation != 1 {
		t.Errorf("second event = %+v, want forced reload at generation 1", loads[1])
	}
	if len(sweeps) != 1 || sweeps[0].Strategy != "registry" {
		t.Errorf("sweep events = %+v, want one for %q", sweeps, "registry")
	}
}

func TestLoad_ConcurrentCallersShareOneResolve(t *testing.T) {
	ctx := context.Background()
	resolver := newFakeResolver()
	resolver.register("pkg.app", map[string]any{"service": &fakeApp{}})
	coord := newCoordinator(resolver)

	const callers = 32
	var wg sync.WaitGroup
	handles := make([]domain.Handle, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			handles[i], _, errs[i] = coord.Load(ctx, "pkg.app:service", false)
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d failed: %v", i, errs[i])
		}
		if handles[i] != handles[0] {
			t.Fatal("concurrent callers saw different handles")
		}
	}
	if calls := resolver.calls("pkg.app"); calls != 1 {
		t.Errorf("resolver called %d times under contention, want 1", calls)
	}
	if gen := coord.Generation(); gen != 0 {
		t.Errorf("generation = %d after concurrent plain loads, want 0", gen)
	}
}

func TestGenerationCountsFailedReloadAttempts(t *testing.T) {
	ctx := context.Background()
	resolver := newFakeResolver()
	resolver.register("pkg.app", map[string]any{"service": &fakeApp{}})
	coord := newCoordinator(resolver)

	if _, _, err := coord.Load(ctx, "pkg.app:service", false); err != nil {
		t.Fatalf("seed load: %v", err)
	}

	resolver.fail(fmt.Errorf("transient"))
	if _, _, err := coord.Load(ctx, "pkg.app:service", true); err == nil {
		t.Fatal("expected reload failure")
	}
	// The bump happens on entering the reload path, before resolution.
	if gen := coord.Generation(); gen != 1 {
		t.Errorf("generation after failed reload = %d, want 1", gen)
	}
}
