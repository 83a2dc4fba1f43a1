// Package api is the HTTP surface of the job board: the request pipeline,
// the /api/v1 route groups, the fallback route and the error responder.
package api

import (
	"context"
	"net/http"
	"reflect"
	"strings"
	"time"

	"jobboard/config"
	"jobboard/core"
	"jobboard/storage"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// APIPrefix is where the resource routers are mounted
const APIPrefix = "/api/v1"

// JobStorer interface for job storage
type JobStorer interface {
	Create(ctx context.Context, job *core.Job) (*core.Job, error)
	Get(ctx context.Context, id primitive.ObjectID) (*core.Job, error)
	List(ctx context.Context, filter storage.JobFilter) ([]core.Job, int64, error)
	Update(ctx context.Context, job *core.Job) (*core.Job, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
	DeleteByOwner(ctx context.Context, owner primitive.ObjectID) (int64, error)
	Stats(ctx context.Context, topic string) ([]core.JobStats, error)
	Apply(ctx context.Context, jobID primitive.ObjectID, applicant core.Applicant) error
	RemoveApplicant(ctx context.Context, userID primitive.ObjectID) error
	ListAppliedBy(ctx context.Context, userID primitive.ObjectID) ([]core.Job, error)
	ListPublishedBy(ctx context.Context, userID primitive.ObjectID) ([]core.Job, error)
}

// UserStorer interface for user storage
type UserStorer interface {
	Create(ctx context.Context, user *core.User) (*core.User, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*core.User, error)
	GetByEmail(ctx context.Context, email string) (*core.User, error)
	Update(ctx context.Context, id primitive.ObjectID, name, email string) (*core.User, error)
	UpdatePassword(ctx context.Context, id primitive.ObjectID, hash string) error
	Delete(ctx context.Context, id primitive.ObjectID) error
}

// HealthChecker reports database reachability
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
	Connected() bool
}

// Options carries the collaborators of the API
type Options struct {
	Jobs   JobStorer
	Users  UserStorer
	DB     HealthChecker
	Redis  *core.RedisCache
	Faults FaultReporter
}

// API holds the API server
type API struct {
	router   *mux.Router
	pipeline *Pipeline
	handler  http.Handler
	jobs     JobStorer
	users    UserStorer
	db       HealthChecker
	limiter  *RateLimiter
	errors   *ErrorResponder
	validate *validator.Validate
	config   *config.Config
	logger   *zap.SugaredLogger
	now      func() time.Time
}

// NewAPI creates a new API server
func NewAPI(cfg *config.Config, opts Options, logger *zap.SugaredLogger) (*API, error) {
	limiter, err := NewRateLimiter(cfg, opts.Redis, logger)
	if err != nil {
		return nil, err
	}

	a := &API{
		router:   mux.NewRouter().SkipClean(true),
		jobs:     opts.Jobs,
		users:    opts.Users,
		db:       opts.DB,
		limiter:  limiter,
		errors:   NewErrorResponder(logger, cfg.IsDevelopment()),
		validate: newValidator(),
		config:   cfg,
		logger:   logger,
		now:      time.Now,
	}

	a.pipeline = NewPipeline(a.errors, opts.Faults, logger).Use(
		a.tracingStage(),
		a.staticStage(),
		a.urlencodedStage(),
		a.jsonStage(),
		a.securityHeadersStage(),
		a.cookieStage(),
		a.uploadStage(),
		a.sanitizeStage(),
		a.xssStage(),
		a.hppStage(),
		a.corsStage(),
		a.rateLimitStage(),
		a.timeoutStage(),
	)
	a.setupRoutes()
	a.handler = a.pipeline.Then(a.router)

	return a, nil
}

// newValidator reports field names the way clients send them
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	_ = v.RegisterValidation("bcryptlen", func(fl validator.FieldLevel) bool {
		return len(fl.Field().String()) <= core.MaxPasswordBytes
	})
	return v
}

// setupRoutes sets up the API routes
func (a *API) setupRoutes() {
	a.router.Use(routeLabel)

	a.router.Handle("/health", a.handle(a.healthCheck)).Methods(http.MethodGet)
	a.router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	v1 := a.router.PathPrefix(APIPrefix).Subrouter()
	a.mountJobRoutes(v1)
	a.mountAuthRoutes(v1)
	a.mountUserRoutes(v1)

	fallback := a.handle(a.routeNotFound)
	a.router.NotFoundHandler = fallback
	a.router.MethodNotAllowedHandler = fallback
}

func (a *API) mountJobRoutes(r *mux.Router) {
	r.Handle("/jobs", a.handle(a.getJobs)).Methods(http.MethodGet)
	r.Handle("/job/new", a.protected(a.newJob, core.RoleEmployer, core.RoleAdmin)).Methods(http.MethodPost)
	r.Handle("/job/{id}", a.handle(a.getJob)).Methods(http.MethodGet)
	r.Handle("/job/{id}", a.protected(a.updateJob, core.RoleEmployer, core.RoleAdmin)).Methods(http.MethodPut)
	r.Handle("/job/{id}", a.protected(a.deleteJob, core.RoleEmployer, core.RoleAdmin)).Methods(http.MethodDelete)
	r.Handle("/stats/{topic}", a.handle(a.jobStats)).Methods(http.MethodGet)
	r.Handle("/job/{id}/apply", a.protected(a.applyJob, core.RoleUser)).Methods(http.MethodPut)
}

func (a *API) mountAuthRoutes(r *mux.Router) {
	r.Handle("/register", a.handle(a.registerUser)).Methods(http.MethodPost)
	r.Handle("/login", a.handle(a.loginUser)).Methods(http.MethodPost)
	r.Handle("/logout", a.protected(a.logoutUser)).Methods(http.MethodGet)
}

func (a *API) mountUserRoutes(r *mux.Router) {
	r.Handle("/me", a.protected(a.getUserProfile)).Methods(http.MethodGet)
	r.Handle("/me/update", a.protected(a.updateUser)).Methods(http.MethodPut)
	r.Handle("/password/update", a.protected(a.updatePassword)).Methods(http.MethodPut)
	r.Handle("/me/delete", a.protected(a.deleteUser)).Methods(http.MethodDelete)
	r.Handle("/jobs/applied", a.protected(a.getAppliedJobs, core.RoleUser)).Methods(http.MethodGet)
	r.Handle("/jobs/published", a.protected(a.getPublishedJobs, core.RoleEmployer, core.RoleAdmin)).Methods(http.MethodGet)
}

// routeNotFound answers every request no route matched
func (a *API) routeNotFound(w http.ResponseWriter, r *http.Request) error {
	originalURL := r.RequestURI
	if originalURL == "" {
		originalURL = r.URL.RequestURI()
	}
	return core.RouteNotFound(originalURL)
}

// healthCheck reports database reachability
func (a *API) healthCheck(w http.ResponseWriter, r *http.Request) error {
	status, dbStatus, code := "ok", "connected", http.StatusOK

	if a.db == nil {
		status, dbStatus, code = "degraded", "not configured", http.StatusServiceUnavailable
	} else {
		ctx, cancel := context.WithTimeout(r.Context(), core.DBHealthTimeout)
		defer cancel()
		if err := a.db.HealthCheck(ctx); err != nil {
			a.logger.Warnw("Health check failed", "error", err)
			status, dbStatus, code = "degraded", "disconnected", http.StatusServiceUnavailable
		}
	}

	a.writeJSON(w, code, map[string]interface{}{
		"success":  code == http.StatusOK,
		"status":   status,
		"database": dbStatus,
	})
	return nil
}

// Handler returns the full request path: pipeline, router, fallback
func (a *API) Handler() http.Handler {
	return a.handler
}

// Stages lists the pipeline stages in execution order
func (a *API) Stages() []string {
	return a.pipeline.Names()
}

// NewServer builds the HTTP server for the configured port
func (a *API) NewServer() *http.Server {
	writeTimeout := time.Duration(0)
	if a.config.Server.RequestTimeout > 0 {
		writeTimeout = a.config.Server.RequestTimeout + 5*time.Second
	}
	return &http.Server{
		Addr:              a.config.Addr(),
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       120 * time.Second,
		ErrorLog:          zap.NewStdLog(a.logger.Desugar()),
	}
}
