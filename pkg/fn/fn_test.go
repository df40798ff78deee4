package fn

import (
	"context"
	"errors"
	"strconv"
	"sync/atomic"
	"testing"
	"time"
)

// --- Result ---

func TestOkAndErr(t *testing.T) {
	r := Ok(42)
	if !r.IsOk() || r.IsErr() {
		t.Fatal("Ok should be ok")
	}
	v, err := r.Unwrap()
	if v != 42 || err != nil {
		t.Fatal("wrong unwrap")
	}

	e := Err[int](errors.New("fail"))
	if e.IsOk() || !e.IsErr() {
		t.Fatal("Err should be err")
	}
}

func TestFromPair(t *testing.T) {
	if !FromPair(1, nil).IsOk() {
		t.Fatal("nil error should be Ok")
	}
	_, err := FromPair(0, errors.New("x")).Unwrap()
	if err == nil || err.Error() != "x" {
		t.Fatal("error should be kept")
	}
}

func TestCollectFirstError(t *testing.T) {
	r := Collect([]Result[int]{Ok(1), Err[int](errors.New("second")), Err[int](errors.New("third"))})
	_, err := r.Unwrap()
	if err == nil || err.Error() != "second" {
		t.Fatalf("expected first error in order, got %v", err)
	}
	all, err := Collect([]Result[int]{Ok(1), Ok(2)}).Unwrap()
	if err != nil || len(all) != 2 || all[1] != 2 {
		t.Fatal("Collect ok")
	}
}

// --- Slice ---

func TestMap(t *testing.T) {
	out := Map([]int{1, 2, 3}, strconv.Itoa)
	if len(out) != 3 || out[2] != "3" {
		t.Fatalf("Map: %v", out)
	}
}

func TestChunk(t *testing.T) {
	items := make([]int, 25)
	for i := range items {
		items[i] = i
	}
	c := Chunk(items, 10)
	if len(c) != 3 || len(c[0]) != 10 || len(c[1]) != 10 || len(c[2]) != 5 {
		t.Fatalf("Chunk sizes: %d", len(c))
	}
	if c[1][0] != 10 || c[2][4] != 24 {
		t.Fatal("Chunk must preserve order")
	}
}

func TestChunkEdges(t *testing.T) {
	if Chunk([]int{1, 2}, 0) != nil {
		t.Fatal("n <= 0 should return nil")
	}
	if len(Chunk([]int{}, 3)) != 0 {
		t.Fatal("empty input should give no chunks")
	}
	c := Chunk([]int{1}, 5)
	if len(c) != 1 || len(c[0]) != 1 {
		t.Fatal("single element")
	}
}

// --- Parallel ---

func TestParMapResultPreservesOrder(t *testing.T) {
	items := []int{5, 4, 3, 2, 1}
	out := ParMapResult(items, 3, func(v int) Result[int] {
		time.Sleep(time.Duration(v) * time.Millisecond)
		return Ok(v * 10)
	})
	for i, r := range out {
		v, _ := r.Unwrap()
		if v != items[i]*10 {
			t.Fatalf("index %d: got %d", i, v)
		}
	}
}

func TestParMapResultBoundsConcurrency(t *testing.T) {
	var active, peak atomic.Int32
	ParMapResult(make([]int, 20), 2, func(int) Result[int] {
		n := active.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(time.Millisecond)
		active.Add(-1)
		return Ok(0)
	})
	if peak.Load() > 2 {
		t.Fatalf("peak concurrency %d > 2", peak.Load())
	}
}

func TestParMapResultEmpty(t *testing.T) {
	out := ParMapResult([]int{}, 0, func(v int) Result[int] { return Ok(v) })
	if len(out) != 0 {
		t.Fatal("empty")
	}
}

// --- Pipeline ---

func TestThenShortCircuits(t *testing.T) {
	called := false
	fail := Stage[int, int](func(context.Context, int) Result[int] { return Err[int](errors.New("stop")) })
	next := Stage[int, string](func(context.Context, int) Result[string] { called = true; return Ok("x") })

	_, err := Then(fail, next)(context.Background(), 1).Unwrap()
	if err == nil || called {
		t.Fatal("second stage must not run after failure")
	}
}

func TestThenMapStage(t *testing.T) {
	s := Then(MapStage(func(v int) int { return v + 1 }), MapStage(strconv.Itoa))
	v, err := s(context.Background(), 41).Unwrap()
	if err != nil || v != "42" {
		t.Fatalf("got %q, %v", v, err)
	}
}

func TestTracedStagePassesThrough(t *testing.T) {
	s := TracedStage("test", MapStage(func(v int) int { return v * 2 }))
	v, _ := s(context.Background(), 4).Unwrap()
	if v != 8 {
		t.Fatal("traced stage changed result")
	}
	fail := TracedStage("test", Stage[int, int](func(context.Context, int) Result[int] { return Err[int](errors.New("x")) }))
	if fail(context.Background(), 1).IsOk() {
		t.Fatal("traced stage must keep error")
	}
}

// --- Retry ---

func fastRetry(n int) RetryOpts {
	return RetryOpts{MaxAttempts: n, InitialWait: time.Millisecond, MaxWait: 5 * time.Millisecond}
}

func TestRetryEventuallySucceeds(t *testing.T) {
	calls := 0
	r := Retry(context.Background(), fastRetry(3), func(context.Context) Result[int] {
		calls++
		if calls < 3 {
			return Err[int](errors.New("transient"))
		}
		return Ok(calls)
	})
	if v, err := r.Unwrap(); err != nil || v != 3 {
		t.Fatalf("got %d, %v", v, err)
	}
}

func TestRetryExhausted(t *testing.T) {
	calls := 0
	r := Retry(context.Background(), fastRetry(2), func(context.Context) Result[int] {
		calls++
		return Err[int](errors.New("down"))
	})
	if r.IsOk() || calls != 2 {
		t.Fatalf("calls=%d", calls)
	}
}

func TestRetryStopsOnNonRetryable(t *testing.T) {
	permanent := errors.New("bad request")
	opts := fastRetry(5)
	opts.Retryable = func(err error) bool { return !errors.Is(err, permanent) }
	calls := 0
	r := Retry(context.Background(), opts, func(context.Context) Result[int] {
		calls++
		return Err[int](permanent)
	})
	if _, err := r.Unwrap(); !errors.Is(err, permanent) || calls != 1 {
		t.Fatalf("calls=%d err=%v", calls, err)
	}
}

func TestRetryDoesNotRetryCancellation(t *testing.T) {
	calls := 0
	Retry(context.Background(), fastRetry(4), func(context.Context) Result[int] {
		calls++
		return Err[int](context.Canceled)
	})
	if calls != 1 {
		t.Fatalf("calls=%d", calls)
	}
}

func TestRetryContextCancelledWhileWaiting(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	opts := RetryOpts{MaxAttempts: 3, InitialWait: time.Hour, MaxWait: time.Hour}
	go func() {
		time.Sleep(5 * time.Millisecond)
		cancel()
	}()
	_, err := Retry(ctx, opts, func(context.Context) Result[int] { return Err[int](errors.New("x")) }).Unwrap()
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRetryZeroAttemptsRunsOnce(t *testing.T) {
	calls := 0
	Retry(context.Background(), RetryOpts{}, func(context.Context) Result[int] {
		calls++
		return Err[int](errors.New("x"))
	})
	if calls != 1 {
		t.Fatalf("calls=%d", calls)
	}
}
