package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"jobboard/util/goroutine"

	"go.uber.org/zap"
)

// Exit codes returned by Supervisor.Run
const (
	ExitOK    = 0
	ExitFault = 1
)

type faultKind int

const (
	// syncFault is a panic that escaped a supervised goroutine or the serve loop
	syncFault faultKind = iota
	// asyncFault is a panic caught at the request dispatch boundary
	asyncFault
)

type fault struct {
	kind faultKind
	err  error
}

// Supervisor owns the HTTP listener and decides how the process ends.
// Every exit path releases the socket before exit is called.
type Supervisor struct {
	logger          *zap.SugaredLogger
	shutdownTimeout time.Duration
	exit            func(int)

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
	hooks    []func(context.Context)

	faults chan fault
}

// NewSupervisor creates a supervisor. exit is called exactly once when Run
// finishes; production passes os.Exit.
func NewSupervisor(logger *zap.SugaredLogger, shutdownTimeout time.Duration, exit func(int)) *Supervisor {
	if exit == nil {
		exit = func(int) {}
	}
	return &Supervisor{
		logger:          logger,
		shutdownTimeout: shutdownTimeout,
		exit:            exit,
		faults:          make(chan fault, 1),
	}
}

// ReportFault records a fault recovered at the request boundary. Only the
// first fault is acted on.
func (s *Supervisor) ReportFault(err error) {
	s.raise(fault{kind: asyncFault, err: err})
}

// Crash is a goroutine.PanicHandler for supervised background work
func (s *Supervisor) Crash(name string, value interface{}) {
	s.raise(fault{kind: syncFault, err: fmt.Errorf("panic in %s: %v", name, value)})
}

func (s *Supervisor) raise(f fault) {
	select {
	case s.faults <- f:
	default:
	}
}

// OnShutdown registers fn to run after the server drained on a graceful exit
func (s *Supervisor) OnShutdown(fn func(ctx context.Context)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = append(s.hooks, fn)
}

// Listen binds server.Addr. It is separate from Run so callers can learn
// the bound address before serving.
func (s *Supervisor) Listen(server *http.Server) error {
	ln, err := net.Listen("tcp", server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", server.Addr, err)
	}
	s.mu.Lock()
	s.server = server
	s.listener = ln
	s.mu.Unlock()
	return nil
}

// Addr returns the bound address, or nil before Listen
func (s *Supervisor) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Run serves until ctx is cancelled, the server fails or a fault is
// reported, then calls exit with the resulting code and returns it.
func (s *Supervisor) Run(ctx context.Context) int {
	s.mu.Lock()
	server, ln := s.server, s.listener
	s.mu.Unlock()
	if server == nil {
		s.logger.Error("Run called before Listen")
		s.exit(ExitFault)
		return ExitFault
	}

	serveErr := make(chan error, 1)
	goroutine.Go("http-server", s.logger, s.Crash, func() {
		serveErr <- server.Serve(ln)
	})

	var code int
	select {
	case <-ctx.Done():
		s.logger.Info("Shutdown signal received, draining connections")
		code = s.gracefulShutdown(server, ExitOK)

	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			code = ExitOK
			break
		}
		s.logger.Errorw("HTTP server failed", "error", err)
		server.Close()
		code = ExitFault

	case f := <-s.faults:
		switch f.kind {
		case syncFault:
			s.logger.Errorw("Shutting down due to uncaught exception", "error", f.err)
			server.Close()
			code = ExitFault
		default:
			s.logger.Errorw("Shutting down the server due to unhandled fault", "error", f.err)
			code = s.gracefulShutdown(server, ExitFault)
		}
	}

	s.exit(code)
	return code
}

// gracefulShutdown stops accepting, waits for in-flight requests up to the
// shutdown timeout and runs the shutdown hooks.
func (s *Supervisor) gracefulShutdown(server *http.Server, code int) int {
	ctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		s.logger.Warnw("Graceful shutdown timed out, closing remaining connections", "error", err)
		server.Close()
	}

	s.mu.Lock()
	hooks := append([]func(context.Context){}, s.hooks...)
	s.mu.Unlock()
	for _, hook := range hooks {
		hook(ctx)
	}

	s.logger.Infow("Server stopped", "exit_code", code)
	return code
}
