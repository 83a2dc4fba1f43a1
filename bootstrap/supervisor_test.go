package bootstrap

import (
	"context"
	"io"
	"net"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"jobboard/api"
	"jobboard/util/goroutine"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type exitRecorder struct {
	code atomic.Int32
}

func newExitRecorder() *exitRecorder {
	r := &exitRecorder{}
	r.code.Store(-1)
	return r
}

func (r *exitRecorder) exit(code int) { r.code.Store(int32(code)) }
func (r *exitRecorder) get() int      { return int(r.code.Load()) }

func startSupervisor(t *testing.T, sup *Supervisor, handler http.Handler, ctx context.Context) (string, <-chan int) {
	t.Helper()
	srv := &http.Server{Addr: "127.0.0.1:0", Handler: handler, ReadHeaderTimeout: time.Second}
	require.NoError(t, sup.Listen(srv))

	done := make(chan int, 1)
	go func() { done <- sup.Run(ctx) }()
	return sup.Addr().String(), done
}

func refusesConnections(addr string) func() bool {
	return func() bool {
		conn, err := net.DialTimeout("tcp", addr, 100*time.Millisecond)
		if err != nil {
			return true
		}
		conn.Close()
		return false
	}
}

func waitCode(t *testing.T, done <-chan int) int {
	t.Helper()
	select {
	case code := <-done:
		return code
	case <-time.After(10 * time.Second):
		t.Fatal("supervisor did not stop")
		return -1
	}
}

func TestSupervisor_UnhandledRequestFaultDrainsThenExitsWithOne(t *testing.T) {
	obsCore, logs := observer.New(zap.InfoLevel)
	logger := zap.New(obsCore).Sugar()
	exits := newExitRecorder()
	sup := NewSupervisor(logger, 5*time.Second, exits.exit)

	slowStarted := make(chan struct{})
	release := make(chan struct{})
	mux := http.NewServeMux()
	mux.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
		close(slowStarted)
		<-release
		_, _ = w.Write([]byte("done"))
	})
	mux.HandleFunc("/boom", func(w http.ResponseWriter, r *http.Request) {
		panic("handler exploded")
	})
	handler := api.NewPipeline(api.NewErrorResponder(logger, false), sup, logger).Then(mux)

	addr, done := startSupervisor(t, sup, handler, context.Background())
	client := &http.Client{Timeout: 10 * time.Second}

	type result struct {
		status int
		body   string
		err    error
	}
	slow := make(chan result, 1)
	go func() {
		resp, err := client.Get("http://" + addr + "/slow")
		if err != nil {
			slow <- result{err: err}
			return
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		slow <- result{status: resp.StatusCode, body: string(body)}
	}()
	<-slowStarted

	resp, err := client.Get("http://" + addr + "/boom")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	require.Eventually(t, refusesConnections(addr), 5*time.Second, 20*time.Millisecond,
		"listener should stop accepting after the fault")
	select {
	case <-done:
		t.Fatal("supervisor exited before the in-flight request finished")
	default:
	}

	close(release)
	got := <-slow
	require.NoError(t, got.err)
	assert.Equal(t, http.StatusOK, got.status)
	assert.Equal(t, "done", got.body)

	assert.Equal(t, ExitFault, waitCode(t, done))
	assert.Equal(t, ExitFault, exits.get())
	assert.Equal(t, 1, logs.FilterMessage("Shutting down the server due to unhandled fault").Len())
	assert.Equal(t, 1, logs.FilterMessage("Unhandled fault in request handler").Len())
}

func TestSupervisor_BackgroundPanicExitsImmediately(t *testing.T) {
	goroutine.AssertNoLeaks(t)

	obsCore, logs := observer.New(zap.InfoLevel)
	logger := zap.New(obsCore).Sugar()
	exits := newExitRecorder()
	sup := NewSupervisor(logger, 5*time.Second, exits.exit)
	var hookRan atomic.Bool
	sup.OnShutdown(func(context.Context) { hookRan.Store(true) })

	addr, done := startSupervisor(t, sup, http.NotFoundHandler(), context.Background())

	goroutine.Go("worker", logger, sup.Crash, func() {
		panic("worker exploded")
	})

	assert.Equal(t, ExitFault, waitCode(t, done))
	assert.Equal(t, ExitFault, exits.get())
	assert.False(t, hookRan.Load(), "hooks only run on graceful exits")
	assert.True(t, refusesConnections(addr)())
	assert.Equal(t, 1, logs.FilterMessage("Shutting down due to uncaught exception").Len())
}

func TestSupervisor_SignalShutsDownGracefully(t *testing.T) {
	goroutine.AssertNoLeaks(t)

	exits := newExitRecorder()
	sup := NewSupervisor(zap.NewNop().Sugar(), 5*time.Second, exits.exit)
	var hookRan atomic.Bool
	sup.OnShutdown(func(context.Context) { hookRan.Store(true) })

	ctx, cancel := context.WithCancel(context.Background())
	addr, done := startSupervisor(t, sup, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}), ctx)

	resp, err := http.Get("http://" + addr + "/")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	cancel()

	assert.Equal(t, ExitOK, waitCode(t, done))
	assert.Equal(t, ExitOK, exits.get())
	assert.True(t, hookRan.Load())
	assert.True(t, refusesConnections(addr)())
}

func TestSupervisor_OnlyFirstFaultCounts(t *testing.T) {
	sup := NewSupervisor(zap.NewNop().Sugar(), time.Second, nil)
	sup.ReportFault(assert.AnError)
	sup.Crash("worker", "later")

	f := <-sup.faults
	assert.Equal(t, asyncFault, f.kind)
	select {
	case <-sup.faults:
		t.Fatal("second fault should have been dropped")
	default:
	}
}

func TestSupervisor_RunWithoutListen(t *testing.T) {
	goroutine.AssertNoLeaks(t)

	exits := newExitRecorder()
	sup := NewSupervisor(zap.NewNop().Sugar(), time.Second, exits.exit)

	assert.Equal(t, ExitFault, sup.Run(context.Background()))
	assert.Equal(t, ExitFault, exits.get())
	assert.Nil(t, sup.Addr())
}
