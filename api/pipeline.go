package api

import (
	"fmt"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"jobboard/core"
	"jobboard/metrics"

	"go.uber.org/zap"
)

// Stage is one step of request processing that runs before routing.
// A stage either continues with a (possibly updated) request, stops because
// it already answered, or fails and hands the error to the ErrorResponder.
type Stage interface {
	Name() string
	Handle(w http.ResponseWriter, r *http.Request) Result
}

type resultKind int

const (
	resultNext resultKind = iota
	resultDone
	resultFail
)

// Result tells the pipeline what to do after a stage ran.
type Result struct {
	kind    resultKind
	request *http.Request
	err     error
}

// Next continues with r. A nil r keeps the current request.
func Next(r *http.Request) Result {
	return Result{kind: resultNext, request: r}
}

// Done stops the pipeline; the stage has written the response.
func Done() Result {
	return Result{kind: resultDone}
}

// Fail stops the pipeline and forwards err to the error responder.
func Fail(err error) Result {
	return Result{kind: resultFail, err: err}
}

// Err returns the error carried by a Fail result.
func (res Result) Err() error {
	return res.err
}

// stageFunc adapts a function to the Stage interface
type stageFunc struct {
	name string
	fn   func(w http.ResponseWriter, r *http.Request) Result
}

func (s stageFunc) Name() string { return s.name }

func (s stageFunc) Handle(w http.ResponseWriter, r *http.Request) Result {
	return s.fn(w, r)
}

// StageFunc builds a named Stage from a function.
func StageFunc(name string, fn func(w http.ResponseWriter, r *http.Request) Result) Stage {
	return stageFunc{name: name, fn: fn}
}

// FaultReporter is notified when a request handler panics. The process
// supervisor uses it to start a draining shutdown.
type FaultReporter interface {
	ReportFault(err error)
}

// Pipeline runs stages in registration order and then the final handler.
// It is also the dispatch boundary: panics anywhere below it are recovered,
// answered with a 500 and reported as a fault.
type Pipeline struct {
	stages    []Stage
	responder *ErrorResponder
	faults    FaultReporter
	logger    *zap.SugaredLogger
}

// NewPipeline creates an empty pipeline
func NewPipeline(responder *ErrorResponder, faults FaultReporter, logger *zap.SugaredLogger) *Pipeline {
	return &Pipeline{responder: responder, faults: faults, logger: logger}
}

// Use appends stages
func (p *Pipeline) Use(stages ...Stage) *Pipeline {
	p.stages = append(p.stages, stages...)
	return p
}

// Names returns the stage names in execution order
func (p *Pipeline) Names() []string {
	names := make([]string, len(p.stages))
	for i, s := range p.stages {
		names[i] = s.Name()
	}
	return names
}

// Then returns a handler running every stage before final
func (p *Pipeline) Then(final http.Handler) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		w := newGuardedWriter(rw)
		start := time.Now()

		defer func() {
			if v := recover(); v != nil {
				if v == http.ErrAbortHandler {
					panic(v)
				}
				p.recovered(w, r, v)
			}
			p.finish(w, r, start)
		}()

		for _, stage := range p.stages {
			res := stage.Handle(w, r)
			switch res.kind {
			case resultDone:
				return
			case resultFail:
				p.responder.Respond(w, r, res.err)
				return
			default:
				if res.request != nil {
					r = res.request
				}
			}
		}

		final.ServeHTTP(w, r)
	})
}

// recovered handles a panic that escaped a stage or handler
func (p *Pipeline) recovered(w *guardedWriter, r *http.Request, v interface{}) {
	stackBuf := make([]byte, 4096)
	stackLen := runtime.Stack(stackBuf, false)

	p.logger.Errorw("Unhandled fault in request handler",
		"error", fmt.Sprintf("%v", v),
		"request_id", GetRequestIDOrDefault(r.Context()),
		"method", r.Method,
		"path", r.URL.Path,
		"stack_trace", string(stackBuf[:stackLen]),
	)
	metrics.PanicsRecovered.WithLabelValues("request").Inc()

	err := fmt.Errorf("panic: %v", v)
	p.responder.Respond(w, r, core.WrapAppError(err, "Internal Server Error", http.StatusInternalServerError))

	if p.faults != nil {
		p.faults.ReportFault(err)
	}
}

// finish records metrics, logs completion and runs request cleanups
func (p *Pipeline) finish(w *guardedWriter, r *http.Request, start time.Time) {
	route := "unmatched"
	requestID := "unknown"
	if trace := getTrace(r.Context()); trace != nil {
		trace.runCleanups()
		requestID = trace.ID
		if trace.Route != "" {
			route = trace.Route
		}
	}

	duration := time.Since(start)
	status := w.Status()
	metrics.HTTPRequests.WithLabelValues(route, r.Method, strconv.Itoa(status)).Inc()
	metrics.HTTPRequestDuration.WithLabelValues(route, r.Method).Observe(duration.Seconds())

	p.logger.Infow("request_completed",
		"request_id", requestID,
		"method", r.Method,
		"path", r.URL.Path,
		"route", route,
		"status", status,
		"duration_ms", duration.Milliseconds(),
	)
}

// guardedWriter records the status and refuses a second WriteHeader
type guardedWriter struct {
	http.ResponseWriter
	status  int
	written bool
}

func newGuardedWriter(w http.ResponseWriter) *guardedWriter {
	if gw, ok := w.(*guardedWriter); ok {
		return gw
	}
	return &guardedWriter{ResponseWriter: w, status: http.StatusOK}
}

// WriteHeader captures the status code before writing it.
func (w *guardedWriter) WriteHeader(code int) {
	if w.written {
		return
	}
	w.status = code
	w.written = true
	w.ResponseWriter.WriteHeader(code)
}

// Write implements http.ResponseWriter.Write and ensures status code is captured.
func (w *guardedWriter) Write(b []byte) (int, error) {
	if !w.written {
		w.written = true
	}
	return w.ResponseWriter.Write(b)
}

// Written reports whether the response has started
func (w *guardedWriter) Written() bool {
	return w.written
}

// Status returns the status sent, or 200 if nothing was sent yet
func (w *guardedWriter) Status() int {
	return w.status
}

// Unwrap lets http.ResponseController reach the underlying writer
func (w *guardedWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
