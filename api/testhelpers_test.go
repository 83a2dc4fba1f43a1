package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"jobboard/config"
	"jobboard/core"
	"jobboard/storage"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "test-secret-that-is-long-enough-for-hs256"

func newTestConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{}
	cfg.Server.Port = 3000
	cfg.Server.Env = config.EnvTest
	cfg.Server.PublicDir = t.TempDir()
	cfg.Server.CORSOrigin = "*"
	cfg.Server.JSONBodyLimit = 1 << 20
	cfg.Server.RequestTimeout = 5 * time.Second
	cfg.Server.ShutdownTimeout = time.Second
	cfg.Auth.JWTSecret = testSecret
	cfg.Auth.JWTExpiry = time.Hour
	cfg.Auth.CookieExpiryDays = 7
	cfg.Auth.BcryptCost = bcrypt.MinCost
	cfg.Uploads.Path = t.TempDir()
	cfg.Uploads.MaxFileSize = 2000000
	cfg.RateLimit.Window = 10 * time.Minute
	cfg.RateLimit.Max = 100
	cfg.RateLimit.MaxClients = 1000
	return cfg
}

// testEnv bundles an API with its in-memory collaborators
type testEnv struct {
	api    *API
	jobs   *fakeJobStore
	users  *fakeUserStore
	faults *fakeFaults
	cfg    *config.Config
}

func setupTestAPI(t *testing.T, mutate ...func(cfg *config.Config)) *testEnv {
	t.Helper()
	cfg := newTestConfig(t)
	for _, m := range mutate {
		m(cfg)
	}

	env := &testEnv{
		jobs:   newFakeJobStore(),
		users:  newFakeUserStore(),
		faults: &fakeFaults{},
		cfg:    cfg,
	}
	a, err := NewAPI(cfg, Options{
		Jobs:   env.jobs,
		Users:  env.users,
		DB:     &fakeDB{},
		Faults: env.faults,
	}, zap.NewNop().Sugar())
	require.NoError(t, err)
	env.api = a
	return env
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	e.api.Handler().ServeHTTP(rr, req)
	return rr
}

func jsonRequest(t *testing.T, method, target string, body interface{}) *http.Request {
	t.Helper()
	var reader io.Reader = http.NoBody
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func withBearer(req *http.Request, token string) *http.Request {
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), "body: %s", rr.Body.String())
	return out
}

// addUser stores an account and returns it with a signed token
func (e *testEnv) addUser(t *testing.T, name string, role core.Role, password string) (*core.User, string) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	user, err := e.users.Create(context.Background(), &core.User{
		Name:     name,
		Email:    name + "@example.com",
		Role:     role,
		Password: string(hash),
	})
	require.NoError(t, err)
	token, err := generateJWT(user, e.cfg, time.Now())
	require.NoError(t, err)
	return user, token
}

func (e *testEnv) addJob(t *testing.T, owner primitive.ObjectID, title string, lastDate time.Time) *core.Job {
	t.Helper()
	job := &core.Job{
		Title:        title,
		Description:  "Build things",
		Address:      "1 Main St",
		Company:      "Acme",
		Industry:     []string{core.IndustryIT},
		JobType:      core.JobTypePermanent,
		MinEducation: core.EducationBachelors,
		Experience:   core.ExperienceOneToTwo,
		Salary:       50000,
		LastDate:     lastDate,
	}
	job.PrepareForInsert(owner, time.Now())
	job.LastDate = lastDate
	created, err := e.jobs.Create(context.Background(), job)
	require.NoError(t, err)
	return created
}

// fakeJobStore is an in-memory JobStorer
type fakeJobStore struct {
	mu    sync.Mutex
	jobs  map[primitive.ObjectID]*core.Job
	stats []core.JobStats
}

func newFakeJobStore() *fakeJobStore {
	return &fakeJobStore{jobs: make(map[primitive.ObjectID]*core.Job)}
}

func (s *fakeJobStore) Create(_ context.Context, job *core.Job) (*core.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job.ID = primitive.NewObjectID()
	stored := *job
	s.jobs[job.ID] = &stored
	return job, nil
}

func (s *fakeJobStore) Get(_ context.Context, id primitive.ObjectID) (*core.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, storage.ErrJobNotFound
	}
	out := *job
	out.ApplicantsApplied = append([]core.Applicant(nil), job.ApplicantsApplied...)
	return &out, nil
}

func (s *fakeJobStore) List(_ context.Context, filter storage.JobFilter) ([]core.Job, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	jobs := make([]core.Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		if filter.JobType != "" && job.JobType != filter.JobType {
			continue
		}
		jobs = append(jobs, *job)
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].Title < jobs[j].Title })
	return jobs, int64(len(jobs)), nil
}

func (s *fakeJobStore) Update(_ context.Context, job *core.Job) (*core.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[job.ID]; !ok {
		return nil, storage.ErrJobNotFound
	}
	stored := *job
	stored.Slug = core.Slugify(job.Title)
	s.jobs[job.ID] = &stored
	out := stored
	return &out, nil
}

func (s *fakeJobStore) Delete(_ context.Context, id primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[id]; !ok {
		return storage.ErrJobNotFound
	}
	delete(s.jobs, id)
	return nil
}

func (s *fakeJobStore) DeleteByOwner(_ context.Context, owner primitive.ObjectID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, job := range s.jobs {
		if job.User == owner {
			delete(s.jobs, id)
			n++
		}
	}
	return n, nil
}

func (s *fakeJobStore) Stats(_ context.Context, _ string) ([]core.JobStats, error) {
	return s.stats, nil
}

func (s *fakeJobStore) Apply(_ context.Context, jobID primitive.ObjectID, applicant core.Applicant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return storage.ErrJobNotFound
	}
	if job.HasApplicant(applicant.UserID) {
		return storage.ErrAlreadyApplied
	}
	job.ApplicantsApplied = append(job.ApplicantsApplied, applicant)
	return nil
}

func (s *fakeJobStore) RemoveApplicant(_ context.Context, userID primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, job := range s.jobs {
		kept := job.ApplicantsApplied[:0]
		for _, a := range job.ApplicantsApplied {
			if a.UserID != userID {
				kept = append(kept, a)
			}
		}
		job.ApplicantsApplied = kept
	}
	return nil
}

func (s *fakeJobStore) ListAppliedBy(_ context.Context, userID primitive.ObjectID) ([]core.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	jobs := []core.Job{}
	for _, job := range s.jobs {
		if job.HasApplicant(userID) {
			out := *job
			out.ApplicantsApplied = append([]core.Applicant(nil), job.ApplicantsApplied...)
			jobs = append(jobs, out)
		}
	}
	return jobs, nil
}

func (s *fakeJobStore) ListPublishedBy(_ context.Context, userID primitive.ObjectID) ([]core.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	jobs := []core.Job{}
	for _, job := range s.jobs {
		if job.User == userID {
			jobs = append(jobs, *job)
		}
	}
	return jobs, nil
}

func (s *fakeJobStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// fakeUserStore is an in-memory UserStorer with a unique email constraint
type fakeUserStore struct {
	mu    sync.Mutex
	users map[primitive.ObjectID]*core.User
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: make(map[primitive.ObjectID]*core.User)}
}

func (s *fakeUserStore) Create(_ context.Context, user *core.User) (*core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == user.Email {
			return nil, storage.ErrEmailTaken
		}
	}
	user.ID = primitive.NewObjectID()
	stored := *user
	s.users[user.ID] = &stored
	return user, nil
}

func (s *fakeUserStore) GetByID(_ context.Context, id primitive.ObjectID) (*core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, storage.ErrUserNotFound
	}
	out := *u
	return &out, nil
}

func (s *fakeUserStore) GetByEmail(_ context.Context, email string) (*core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			out := *u
			return &out, nil
		}
	}
	return nil, storage.ErrUserNotFound
}

func (s *fakeUserStore) Update(_ context.Context, id primitive.ObjectID, name, email string) (*core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, storage.ErrUserNotFound
	}
	for otherID, other := range s.users {
		if otherID != id && other.Email == email {
			return nil, storage.ErrEmailTaken
		}
	}
	u.Name, u.Email = name, email
	out := *u
	return &out, nil
}

func (s *fakeUserStore) UpdatePassword(_ context.Context, id primitive.ObjectID, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return storage.ErrUserNotFound
	}
	u.Password = hash
	return nil
}

func (s *fakeUserStore) Delete(_ context.Context, id primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return storage.ErrUserNotFound
	}
	delete(s.users, id)
	return nil
}

// fakeDB satisfies HealthChecker
type fakeDB struct {
	err error
}

func (d *fakeDB) HealthCheck(context.Context) error { return d.err }
func (d *fakeDB) Connected() bool                   { return d.err == nil }

// fakeFaults records reported faults
type fakeFaults struct {
	mu     sync.Mutex
	faults []error
}

func (f *fakeFaults) ReportFault(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.faults = append(f.faults, err)
}

func (f *fakeFaults) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.faults)
}
