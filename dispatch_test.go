package mainthread

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/joeycumines/go-mainthread/future"
	"github.com/petermattis/goid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmit_runsOnMainThread(t *testing.T) {
	type result struct {
		goroutine int64
		main      bool
	}
	ch := make(chan result, 1)
	go func() {
		assert.False(t, IsMainThread())
		assert.NoError(t, testExec.Submit(func() {
			ch <- result{goroutine: goid.Get(), main: IsMainThread()}
		}))
	}()
	select {
	case r := <-ch:
		assert.True(t, r.main)
		assert.Equal(t, mainGuard.goroutine.Load(), r.goroutine)
	case <-time.After(testTimeout):
		t.Fatal(`closure did not run`)
	}
}

func TestSubmit_fromMainThreadEnqueues(t *testing.T) {
	var (
		ran  = make(chan struct{})
		seen bool
	)
	onMain(t, func() {
		assert.NoError(t, testExec.Submit(func() {
			close(ran)
		}))
		select {
		case <-ran:
			seen = true
		default:
		}
	})
	assert.False(t, seen)
	<-ran
}

func TestSubmit_order(t *testing.T) {
	const n = 1000
	var (
		mu  sync.Mutex
		got []int
	)
	done := make(chan struct{})
	for i := range n {
		require.NoError(t, testExec.Submit(func() {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
			if i == n-1 {
				close(done)
			}
		}))
	}
	waitClosed(t, done)
	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, n)
	for i, v := range got {
		if v != i {
			t.Fatalf(`out of order at %d: %d`, i, v)
		}
	}
}

func TestSubmit_nilFunctionPanics(t *testing.T) {
	assert.Panics(t, func() { _ = testExec.Submit(nil) })
}

func TestExecutor_notStarted(t *testing.T) {
	for name, e := range map[string]*Executor{
		`nil`:  nil,
		`zero`: {},
	} {
		t.Run(name, func(t *testing.T) {
			for op, fn := range map[string]func(){
				`Submit`:       func() { _ = e.Submit(func() {}) },
				`Spawn`:        func() { _ = e.Spawn(future.Ready(struct{}{})) },
				`SpawnLocal`:   func() { e.SpawnLocal(future.Ready(struct{}{})) },
				`Stop`:         e.Stop,
				`Done`:         func() { e.Done() },
				`Metrics`:      func() { e.Metrics() },
				`TaskExecutor`: func() { e.TaskExecutor() },
				`Async`:        func() { Async(e, future.Ready(1)) },
				`Call`:         func() { _, _ = Call(context.Background(), e, func() int { return 1 }) },
				`NewCell`:      func() { NewCell(e, 1) },
			} {
				err := recoverError(fn)
				require.ErrorIs(t, err, ErrNotStarted, op)
				assert.Contains(t, err.Error(), `start the main loop first`, op)
				assert.Contains(t, err.Error(), op)
			}
		})
	}
}

func TestRun_alreadyStarted(t *testing.T) {
	assert.True(t, Started())
	err := recoverError(func() {
		_ = Run(context.Background(), func(*Executor) { t.Error(`unexpected call`) })
	})
	assert.ErrorIs(t, err, ErrAlreadyStarted)
}

func TestSpawnLocal_offMainThreadPanics(t *testing.T) {
	err := recoverError(func() { testExec.SpawnLocal(future.Ready(struct{}{})) })
	assert.ErrorIs(t, err, ErrNotMainThread)
}

func TestAsync_roundTrip(t *testing.T) {
	r := Async(testExec, future.Lazy(func() int {
		assert.True(t, IsMainThread())
		return 2 + 2
	}))
	v, err := r.Wait(testContext(t))
	require.NoError(t, err)
	assert.Equal(t, 4, v)
}

func TestAsync_pollable(t *testing.T) {
	ch := make(chan string, 1)
	r := Async(testExec, future.Recv(ch))
	ch <- `hello`
	v, err := future.Block(testContext(t), future.Future[string](r))
	require.NoError(t, err)
	assert.Equal(t, `hello`, v)
}

func TestAsync_panic(t *testing.T) {
	r := Async(testExec, future.Lazy(func() int { panic(errTest) }))
	_, err := r.Wait(testContext(t))
	require.ErrorIs(t, err, errTest)
	var pe PanicError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, errTest, pe.Value)
}

func TestAsync_abandonedReceiver(t *testing.T) {
	done := make(chan struct{})
	_ = Async(testExec, future.Lazy(func() struct{} {
		close(done)
		return struct{}{}
	}))
	select {
	case <-done:
	case <-time.After(testTimeout):
		t.Fatal(`task did not run`)
	}
}

func TestAsync_stopFailsPending(t *testing.T) {
	var buf syncBuffer
	e, result := startExecutor(t, WithLogger(newTestLogger(&buf)), WithMetrics(true))
	ch := make(chan int)
	t.Cleanup(func() { close(ch) })
	r := Async(e, future.Recv(ch))
	barrier(t, e)
	assert.Equal(t, 1, e.Metrics().TasksLive)

	e.Stop()
	require.NoError(t, waitResult(t, result))

	_, err := r.Wait(testContext(t))
	assert.ErrorIs(t, err, ErrStopped)
	assert.Equal(t, 0, e.Metrics().TasksLive)
	assert.Contains(t, buf.String(), `task abandoned`)
	assert.Contains(t, buf.String(), `"abandoned":1`)
}

func TestAwait_stopped(t *testing.T) {
	e, _ := startExecutor(t)
	ch := make(chan string)
	t.Cleanup(func() { close(ch) })
	result := make(chan error, 1)
	go func() {
		_, err := Await(context.Background(), e, future.Recv(ch))
		result <- err
	}()
	barrier(t, e)
	e.Stop()
	assert.ErrorIs(t, waitResult(t, result), ErrStopped)
}

func TestAwait(t *testing.T) {
	v, err := Await(testContext(t), testExec, future.Map(future.Yield(), func(struct{}) string { return `ok` }))
	require.NoError(t, err)
	assert.Equal(t, `ok`, v)

	onMain(t, func() {
		_, err := Await(context.Background(), testExec, future.Ready(1))
		assert.ErrorIs(t, err, ErrWouldBlock)
	})
}

func TestCall(t *testing.T) {
	v, err := Call(testContext(t), testExec, func() bool { return IsMainThread() })
	require.NoError(t, err)
	assert.True(t, v)
}

func TestCall_inlineOnMainThread(t *testing.T) {
	onMain(t, func() {
		ran := false
		v, err := Call(context.Background(), testExec, func() int {
			ran = true
			return 7
		})
		assert.NoError(t, err)
		assert.Equal(t, 7, v)
		assert.True(t, ran)
	})
}

func TestCall_panic(t *testing.T) {
	_, err := Call(testContext(t), testExec, func() int { panic(`boom`) })
	var pe PanicError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, `boom`, pe.Value)
	assert.Nil(t, pe.Unwrap())
	assert.Contains(t, err.Error(), `boom`)
}

func TestCall_contextDone(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	require.NoError(t, testExec.Submit(func() { <-release }))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := Call(ctx, testExec, func() int { return 1 })
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestExecutor_stopped(t *testing.T) {
	e, result := startExecutor(t)
	ran := make(chan struct{})
	require.NoError(t, e.Submit(func() { close(ran) }))
	<-ran

	e.Stop()
	e.Stop()
	<-e.Done()
	require.NoError(t, waitResult(t, result))

	assert.ErrorIs(t, e.Submit(func() {}), ErrStopped)
	assert.ErrorIs(t, e.Spawn(future.Ready(struct{}{})), ErrStopped)
	_, err := Async(e, future.Ready(1)).Wait(testContext(t))
	assert.ErrorIs(t, err, ErrStopped)
	_, err = Call(testContext(t), e, func() int { return 1 })
	assert.ErrorIs(t, err, ErrStopped)
}

func TestExecutor_stopRunsQueuedWork(t *testing.T) {
	e, result := startExecutor(t)
	block := make(chan struct{})
	require.NoError(t, e.Submit(func() { <-block }))
	var ran bool
	require.NoError(t, e.Submit(func() { ran = true }))
	e.Stop()
	close(block)
	require.NoError(t, waitResult(t, result))
	assert.True(t, ran)
}

func TestExecutor_contextCancel(t *testing.T) {
	cfg, err := resolveOptions(nil)
	require.NoError(t, err)
	runLoop, err := NewRunLoop()
	require.NoError(t, err)
	e := newExecutor(cfg, runLoop)

	ctx, cancel := context.WithCancel(context.Background())
	result := make(chan error, 1)
	go func() { result <- e.run(ctx, nil) }()

	v, err := Call(testContext(t), e, func() int { return 3 })
	require.NoError(t, err)
	assert.Equal(t, 3, v)

	cancel()
	select {
	case err := <-result:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(testTimeout):
		t.Fatal(`run did not return`)
	}
}

func TestExecutor_initialFunction(t *testing.T) {
	cfg, err := resolveOptions(nil)
	require.NoError(t, err)
	runLoop, err := NewRunLoop()
	require.NoError(t, err)
	e := newExecutor(cfg, runLoop)

	var got *Executor
	err = e.run(context.Background(), func(e *Executor) {
		got = e
		e.Stop()
	})
	require.NoError(t, err)
	assert.Same(t, e, got)
}

func TestExecutor_closurePanicLogged(t *testing.T) {
	var buf syncBuffer
	e, _ := startExecutor(t, WithLogger(newTestLogger(&buf)), WithMetrics(true))
	require.NoError(t, e.Submit(func() { panic(errTest) }))
	v, err := Call(testContext(t), e, func() int { return 1 })
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	assert.Equal(t, uint64(1), e.Metrics().ClosurePanics)
	out := buf.String()
	assert.Contains(t, out, `"category":"closure_panic"`)
	assert.Contains(t, out, `test error`)
	assert.Contains(t, out, `main loop started`)
}

func TestExecutor_logRateLimited(t *testing.T) {
	var buf syncBuffer
	e, _ := startExecutor(t, WithLogger(newTestLogger(&buf)), WithLogRate(map[time.Duration]int{time.Hour: 1}))
	for range 5 {
		require.NoError(t, e.Submit(func() { panic(errTest) }))
	}
	_, err := Call(testContext(t), e, func() int { return 1 })
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(buf.String(), `submitted function panicked`))
}

func TestExecutor_taskPanicLogged(t *testing.T) {
	var buf syncBuffer
	e, _ := startExecutor(t, WithLogger(newTestLogger(&buf)), WithMetrics(true))
	_, err := Async(e, future.Lazy(func() int { panic(`kaboom`) })).Wait(testContext(t))
	require.Error(t, err)
	barrier(t, e)

	m := e.Metrics()
	assert.Equal(t, uint64(1), m.TasksSpawned)
	assert.Equal(t, uint64(1), m.TasksPanicked)
	assert.Equal(t, 0, m.TasksLive)
	assert.Contains(t, buf.String(), `"category":"task_panic"`)
	assert.Contains(t, buf.String(), `task spawned`)
}

func TestExecutor_slowPumpWarning(t *testing.T) {
	var buf syncBuffer
	e, _ := startExecutor(t, WithLogger(newTestLogger(&buf)), WithSlowPumpThreshold(time.Millisecond))
	_, err := Async(e, future.Lazy(func() int {
		time.Sleep(5 * time.Millisecond)
		return 1
	})).Wait(testContext(t))
	require.NoError(t, err)
	assert.Eventually(t, func() bool {
		return strings.Contains(buf.String(), `slow task queue pump`)
	}, testTimeout, testTick)
}

func TestExecutor_metrics(t *testing.T) {
	e, _ := startExecutor(t, WithMetrics(true))
	const n = 100
	done := make(chan struct{})
	for i := range n {
		require.NoError(t, e.Submit(func() {
			if i == n-1 {
				close(done)
			}
		}))
	}
	waitClosed(t, done)
	_, err := Async(e, future.Yield()).Wait(testContext(t))
	require.NoError(t, err)
	barrier(t, e)

	m := e.Metrics()
	assert.GreaterOrEqual(t, m.Submitted, uint64(n+1))
	assert.GreaterOrEqual(t, m.Executed, uint64(n+1))
	assert.GreaterOrEqual(t, m.Latency.Count, n+1)
	assert.GreaterOrEqual(t, m.Latency.Max, m.Latency.P50)
	assert.Greater(t, m.Latency.Max, time.Duration(0))
	assert.GreaterOrEqual(t, m.Ingress.Max, 1)
	assert.Equal(t, uint64(1), m.TasksCompleted)
	assert.GreaterOrEqual(t, m.Polls, uint64(2))
	assert.GreaterOrEqual(t, m.Pumps, uint64(2))
}

func TestExecutor_metricsDisabled(t *testing.T) {
	e, _ := startExecutor(t)
	_, err := Call(testContext(t), e, func() int { return 1 })
	require.NoError(t, err)
	assert.Equal(t, Metrics{}, e.Metrics())
}

func TestMainLoop_parks(t *testing.T) {
	before := testWaits.Load()
	_, err := Call(testContext(t), testExec, func() int { return 1 })
	require.NoError(t, err)
	assert.Eventually(t, func() bool { return testWaits.Load() > before }, testTimeout, testTick)
}

func BenchmarkSubmit(b *testing.B) {
	done := make(chan struct{})
	fn := func() { done <- struct{}{} }
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := testExec.Submit(fn); err != nil {
			b.Fatal(err)
		}
		<-done
	}
}

func BenchmarkAsync(b *testing.B) {
	ctx := context.Background()
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Async(testExec, future.Ready(i)).Wait(ctx); err != nil {
			b.Fatal(err)
		}
	}
}
