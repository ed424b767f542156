package scheduler

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AndreyAkinshin/shimbuild/internal/compdb"
	"github.com/AndreyAkinshin/shimbuild/internal/errors"
	"github.com/AndreyAkinshin/shimbuild/internal/output"
	"github.com/AndreyAkinshin/shimbuild/internal/pathmap"
	"github.com/AndreyAkinshin/shimbuild/internal/shim"
	"github.com/AndreyAkinshin/shimbuild/internal/testing/mocks"
)

func testResolver() *compdb.Resolver {
	return &compdb.Resolver{
		Mapper:   pathmap.MustNew(pathmap.Root{Host: "/project", Tool: `Z:\project`}),
		BuildDir: `Z:\project\build`,
	}
}

func makeRecords(n int) []compdb.Record {
	records := make([]compdb.Record, n)
	for i := range records {
		records[i] = compdb.Record{
			Command: fmt.Sprintf("cl.exe /c f%d.cpp", i),
			File:    fmt.Sprintf("f%d.cpp", i),
			Output:  fmt.Sprintf("f%d.obj", i),
		}
	}
	return records
}

func newScheduler(m shim.Runner, opts Options) (*Scheduler, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	out := output.NewWithWriters(buf, buf, false)
	return New(m, testResolver(), opts, out), buf
}

// failIDs makes the listed compile task indices exit with status 1.
func failIDs(indices ...int) func(shim.Request) int {
	set := make(map[string]bool)
	for _, i := range indices {
		set[fmt.Sprintf("compile-%d", i)] = true
	}
	return func(req shim.Request) int {
		if set[req.ID] {
			return 1
		}
		return 0
	}
}

func TestCompileAll_AllSucceed(t *testing.T) {
	for _, workers := range []int{1, 3, 16} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			var mu sync.Mutex
			seen := make(map[string]bool)
			m := mocks.NewShim().WithRunFunc(func(ctx context.Context, req shim.Request) (*shim.Result, error) {
				time.Sleep(time.Millisecond)
				mu.Lock()
				seen[req.ID] = true
				mu.Unlock()
				return &shim.Result{}, nil
			})
			s, buf := newScheduler(m, Options{Workers: workers, Threshold: 10})

			sum, err := s.CompileAll(context.Background(), makeRecords(25))
			require.NoError(t, err)

			assert.Equal(t, 25, sum.Total)
			assert.Equal(t, 25, sum.Completed)
			assert.Equal(t, 0, sum.Failed)
			assert.Equal(t, 0, sum.NotDispatched)
			assert.False(t, sum.Aborted)
			assert.Len(t, seen, 25, "every record gets its own script ID")
			assert.LessOrEqual(t, m.PeakConcurrency(), int32(workers))
			assert.Contains(t, buf.String(), "[25/25] ")
			assert.Contains(t, buf.String(), "Compilation: 25/25 succeeded, 0 failed")
		})
	}
}

func TestCompileAll_RequestShape(t *testing.T) {
	m := mocks.NewShim()
	s, _ := newScheduler(m, Options{Workers: 1, Threshold: 10, Timeout: 2 * time.Minute})
	records := []compdb.Record{
		{Command: "cl.exe /c a.cpp", Output: "a.obj", File: "a.cpp"},
		{Directory: `Z:\project\third_party`, Command: "cl.exe /c b.cpp", Output: "b.obj", File: "b.cpp"},
	}

	_, err := s.CompileAll(context.Background(), records)
	require.NoError(t, err)

	reqs := m.Requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, shim.Request{ID: "compile-0", Dir: `Z:\project\build`, Command: "cl.exe /c a.cpp", Timeout: 2 * time.Minute}, reqs[0])
	assert.Equal(t, `Z:\project\third_party`, reqs[1].Dir)
	assert.Equal(t, "compile-1", reqs[1].ID)
}

func TestCompileAll_FifteenRecordsFourFailures(t *testing.T) {
	m := mocks.NewShim().WithExitCodes(failIDs(2, 5, 9, 14))
	s, buf := newScheduler(m, Options{Workers: 4, Threshold: 10})

	sum, err := s.CompileAll(context.Background(), makeRecords(15))
	require.NoError(t, err)

	assert.Equal(t, 11, sum.Succeeded())
	assert.Equal(t, 4, sum.Failed)
	assert.ElementsMatch(t, []string{"f2.obj", "f5.obj", "f9.obj", "f14.obj"}, sum.FailedOutputs)
	assert.Contains(t, buf.String(), "Compilation: 11/15 succeeded, 4 failed")
	assert.Contains(t, buf.String(), "Failed files:")
	assert.Contains(t, buf.String(), "FAILED f9.obj (exit 1)")
}

func TestCompileAll_ThresholdAbortSequential(t *testing.T) {
	m := mocks.NewShim().WithExitCodes(func(shim.Request) int { return 1 })
	s, buf := newScheduler(m, Options{Workers: 1, Threshold: 10})

	sum, err := s.CompileAll(context.Background(), makeRecords(20))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.KindThresholdAbort))
	assert.Equal(t, errors.ExitRuntimeError, errors.GetExitCode(err))

	assert.Equal(t, int32(11), m.RunCount(), "dispatch stops once failures exceed the threshold")
	assert.Equal(t, 11, sum.Completed)
	assert.Equal(t, 11, sum.Failed)
	assert.Equal(t, 9, sum.NotDispatched)
	assert.True(t, sum.Aborted)
	assert.Contains(t, buf.String(), "Too many failures, stopping.")
}

func TestCompileAll_ThresholdAbortDrainsInFlight(t *testing.T) {
	const workers = 4
	m := mocks.NewShim().WithRunFunc(func(ctx context.Context, req shim.Request) (*shim.Result, error) {
		time.Sleep(2 * time.Millisecond)
		return &shim.Result{ExitCode: 1}, nil
	})
	s, _ := newScheduler(m, Options{Workers: workers, Threshold: 10})

	sum, err := s.CompileAll(context.Background(), makeRecords(100))
	require.Error(t, err)

	runs := int(m.RunCount())
	assert.GreaterOrEqual(t, runs, 11)
	assert.LessOrEqual(t, runs, 11+workers-1, "only tasks already in flight may finish after abort")
	assert.Equal(t, runs, sum.Completed, "every dispatched task is counted")
	assert.Equal(t, 100-runs, sum.NotDispatched)
}

func TestCompileAll_ExactlyThresholdDoesNotAbort(t *testing.T) {
	m := mocks.NewShim().WithExitCodes(failIDs(0, 1, 2))
	s, _ := newScheduler(m, Options{Workers: 2, Threshold: 3})

	sum, err := s.CompileAll(context.Background(), makeRecords(10))
	require.NoError(t, err)
	assert.Equal(t, 3, sum.Failed)
	assert.Equal(t, 10, sum.Completed)
}

func TestCompileAll_TimeoutAndLaunchErrorsCountAsFailures(t *testing.T) {
	m := mocks.NewShim().WithRunFunc(func(ctx context.Context, req shim.Request) (*shim.Result, error) {
		switch req.ID {
		case "compile-0":
			return &shim.Result{ExitCode: -1, Stdout: "partial"}, errors.Timeout(req.ID, req.Timeout)
		case "compile-1":
			return nil, errors.Environment("wine64 not found")
		}
		return &shim.Result{}, nil
	})
	s, buf := newScheduler(m, Options{Workers: 1, Threshold: 10, Timeout: time.Second})

	sum, err := s.CompileAll(context.Background(), makeRecords(3))
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Failed)
	assert.Equal(t, []string{"f0.obj", "f1.obj"}, sum.FailedOutputs)
	assert.Contains(t, buf.String(), "compile-0 timed out after 1s")
	assert.Contains(t, buf.String(), "wine64 not found")
}

func TestCompileAll_FiltersDiagnostics(t *testing.T) {
	m := mocks.NewShim().WithRunFunc(func(ctx context.Context, req shim.Request) (*shim.Result, error) {
		return &shim.Result{
			ExitCode: 2,
			Stdout:   "f0.cpp\nNote: including file: C:\\a.h\nf0.cpp(1): error C2065\n",
		}, nil
	})
	s, buf := newScheduler(m, Options{
		Workers:        1,
		Threshold:      10,
		NoisePrefixes:  []string{"Note: including file:"},
		MaxOutputLines: 100,
	})

	_, err := s.CompileAll(context.Background(), makeRecords(1))
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "error C2065")
	assert.NotContains(t, buf.String(), "including file")
}

func TestCompileAll_Empty(t *testing.T) {
	m := mocks.NewShim()
	s, buf := newScheduler(m, Options{Workers: 4, Threshold: 10})

	sum, err := s.CompileAll(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, sum.Total)
	assert.Equal(t, int32(0), m.RunCount())
	assert.Contains(t, buf.String(), "Compilation: 0/0 succeeded, 0 failed")
}

func TestCompileAll_CancelledContext(t *testing.T) {
	m := mocks.NewShim()
	s, _ := newScheduler(m, Options{Workers: 2, Threshold: 10})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sum, err := s.CompileAll(ctx, makeRecords(5))
	require.Error(t, err)
	assert.Equal(t, int32(0), m.RunCount())
	assert.Equal(t, 5, sum.NotDispatched)
}

func TestCompileAll_CancelledWithTasksInFlight(t *testing.T) {
	const workers = 16
	started := make(chan struct{}, workers)
	m := mocks.NewShim().WithRunFunc(func(ctx context.Context, req shim.Request) (*shim.Result, error) {
		started <- struct{}{}
		<-ctx.Done()
		return &shim.Result{ExitCode: -1}, ctx.Err()
	})
	s, buf := newScheduler(m, Options{Workers: workers, Threshold: 10})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		for range workers {
			<-started
		}
		cancel()
	}()

	sum, err := s.CompileAll(ctx, makeRecords(40))
	require.Error(t, err)

	assert.False(t, errors.Is(err, errors.KindThresholdAbort), "cancellation is not a threshold abort")
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, sum.Aborted)
	assert.Equal(t, 0, sum.Failed)
	assert.Empty(t, sum.FailedOutputs)
	assert.Equal(t, workers, sum.Interrupted)
	assert.Equal(t, 0, sum.Completed)
	assert.Equal(t, 40-workers, sum.NotDispatched)
	assert.NotContains(t, buf.String(), "Too many failures")
}

func TestCompileAll_ProgressNumbersAreUnique(t *testing.T) {
	m := mocks.NewShim()
	s, buf := newScheduler(m, Options{Workers: 8, Threshold: 10})

	_, err := s.CompileAll(context.Background(), makeRecords(40))
	require.NoError(t, err)

	seen := make(map[string]bool)
	for _, line := range strings.Split(buf.String(), "\n") {
		if strings.HasPrefix(line, "[") {
			n := line[:strings.Index(line, "]")+1]
			assert.False(t, seen[n], "progress number %s printed twice", n)
			seen[n] = true
		}
	}
	assert.Len(t, seen, 40)
}

func TestNew_ClampsWorkers(t *testing.T) {
	s := New(mocks.NewShim(), testResolver(), Options{Workers: 0}, output.NewWithWriters(&bytes.Buffer{}, &bytes.Buffer{}, false))
	assert.Equal(t, MinWorkers, s.opts.Workers)
}
