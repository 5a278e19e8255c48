package deferred

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
)

func TestDeferredRunsOnce(t *testing.T) {
	var runs atomic.Int32
	d := New(func(ctx context.Context) (int, error) {
		runs.Add(1)
		return 42, nil
	})

	if d.Done() {
		t.Fatal("computation should not run before Await")
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := d.Await(context.Background())
			if err != nil || v != 42 {
				t.Errorf("unexpected result %d, %v", v, err)
			}
		}()
	}
	wg.Wait()

	if runs.Load() != 1 {
		t.Fatalf("expected one evaluation, got %d", runs.Load())
	}
	if !d.Done() {
		t.Fatal("computation should be done after Await")
	}
}

func TestReadyAndFail(t *testing.T) {
	v, err := Ready("x").Await(context.Background())
	if err != nil || v != "x" {
		t.Fatalf("Ready: unexpected result %q, %v", v, err)
	}

	boom := errors.New("boom")
	_, err = Fail[int](boom).Await(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("Fail: expected boom, got %v", err)
	}
}

func TestThenPropagatesFailure(t *testing.T) {
	boom := errors.New("boom")
	called := false
	d := Then(Fail[int](boom), func(ctx context.Context, v int) (string, error) {
		called = true
		return "never", nil
	})

	if _, err := d.Await(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if called {
		t.Fatal("mapping function should not run after a failure")
	}

	mapped, err := Then(Ready(2), func(ctx context.Context, v int) (int, error) { return v * 3, nil }).
		Await(context.Background())
	if err != nil || mapped != 6 {
		t.Fatalf("expected 6, got %d, %v", mapped, err)
	}
}

func TestAllPreservesOrder(t *testing.T) {
	release := make(chan struct{})
	slow := New(func(ctx context.Context) (int, error) {
		<-release
		return 1, nil
	})
	fast := Ready(2)

	go close(release)

	values, err := All(context.Background(), []*Deferred[int]{slow, fast})
	if err != nil {
		t.Fatal(err)
	}
	if len(values) != 2 || values[0] != 1 || values[1] != 2 {
		t.Fatalf("expected [1 2], got %v", values)
	}
}
