package engine

import (
	"context"
	stderrors "errors"
	"reflect"
	"testing"

	"github.com/tetratelabs/wazero/api"

	"github.com/lumenshell/widget-runtime/errors"
	"github.com/lumenshell/widget-runtime/surface"
)

type fakeFunction struct {
	api.Function
	calls [][]uint64
	err   error
}

func (f *fakeFunction) Definition() api.FunctionDefinition { return nil }

func (f *fakeFunction) Call(_ context.Context, params ...uint64) ([]uint64, error) {
	f.calls = append(f.calls, params)
	return nil, f.err
}

func (f *fakeFunction) CallWithStack(_ context.Context, stack []uint64) error {
	f.calls = append(f.calls, append([]uint64(nil), stack...))
	return f.err
}

func TestLoadRejectsGarbage(t *testing.T) {
	ctx := context.Background()
	e, err := NewEngine(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close(ctx)

	_, err = e.Load(ctx, "garbage", []byte("not a wasm binary"))
	if err == nil {
		t.Fatal("expected compile failure")
	}
	want := errors.New(errors.PhaseLoad, errors.KindInvalidData).Build()
	if !stderrors.Is(err, want) {
		t.Errorf("error = %v, want load phase", err)
	}
}

func TestLoadRejectsEmpty(t *testing.T) {
	ctx := context.Background()
	e, err := NewEngine(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close(ctx)

	if _, err := e.Load(ctx, "empty", nil); err == nil {
		t.Fatal("expected compile failure")
	}
}

func TestPushServiceDataWithoutAllocator(t *testing.T) {
	fn := &fakeFunction{}
	inst := &Instance{
		module:      &Module{name: "noalloc"},
		leases:      surface.NewLeaseTable(),
		serviceData: fn,
	}
	ctx := context.Background()

	// empty notification needs no guest allocation
	if err := inst.PushServiceData(ctx, 9, nil); err != nil {
		t.Fatalf("empty push failed: %v", err)
	}
	if len(fn.calls) != 1 {
		t.Fatalf("service_data called %d times, want 1", len(fn.calls))
	}
	if want := []uint64{9, 0, 0}; !reflect.DeepEqual(fn.calls[0], want) {
		t.Errorf("service_data args = %v, want %v", fn.calls[0], want)
	}

	// a payload still requires alloc
	err := inst.PushServiceData(ctx, 9, []byte("x"))
	if err == nil {
		t.Fatal("payload push without allocator should fail")
	}
	want := errors.New(errors.PhaseLoad, errors.KindMissingExport).Build()
	if !stderrors.Is(err, want) {
		t.Errorf("error = %v, want missing export", err)
	}
	if len(fn.calls) != 1 {
		t.Errorf("service_data called %d times after failed push, want 1", len(fn.calls))
	}
}

func TestEngineCloseTwice(t *testing.T) {
	ctx := context.Background()
	e, err := NewEngineWithConfig(ctx, &Config{MemoryLimitPages: 16})
	if err != nil {
		t.Fatal(err)
	}
	if err := e.Close(ctx); err != nil {
		t.Fatal(err)
	}
	// a second close is a no-op in wazero
	e.Close(ctx)
}
