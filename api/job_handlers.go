package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"jobboard/core"
	"jobboard/storage"
	"jobboard/util"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// resumeExtensions lists the accepted resume formats
var resumeExtensions = map[string]bool{
	".pdf":  true,
	".docx": true,
}

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// bind decodes the parsed request body into dst
func (a *API) bind(r *http.Request, dst interface{}) error {
	raw, err := json.Marshal(GetBody(r.Context()))
	if err != nil {
		return core.WrapAppError(err, "Invalid request body", http.StatusBadRequest)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			return core.WrapAppError(err, fmt.Sprintf("Invalid value for %s", typeErr.Field), http.StatusBadRequest)
		}
		return core.WrapAppError(err, "Invalid request body", http.StatusBadRequest)
	}
	return nil
}

// pathID parses the {id} route variable
func pathID(r *http.Request) (primitive.ObjectID, error) {
	return primitive.ObjectIDFromHex(mux.Vars(r)["id"])
}

// jobFilterFromQuery reads listing filters from the query string
func jobFilterFromQuery(q url.Values) (storage.JobFilter, error) {
	filter := storage.JobFilter{
		Keyword:    strings.TrimSpace(q.Get("q")),
		JobType:    q.Get("jobType"),
		Education:  q.Get("minEducation"),
		Experience: q.Get("experience"),
		Industry:   q.Get("industry"),
		Sort:       q.Get("sort"),
	}

	ints := []struct {
		keys []string
		dst  *int
	}{
		{[]string{"page"}, &filter.Page},
		{[]string{"limit"}, &filter.Limit},
		{[]string{"minSalary", "salary[gte]"}, &filter.MinSalary},
		{[]string{"maxSalary", "salary[lte]"}, &filter.MaxSalary},
	}
	for _, field := range ints {
		for _, key := range field.keys {
			raw := q.Get(key)
			if raw == "" {
				continue
			}
			n, err := strconv.Atoi(raw)
			if err != nil || n < 0 {
				return filter, core.NewAppError(fmt.Sprintf("Invalid value for %s", key), http.StatusBadRequest)
			}
			*field.dst = n
		}
	}
	return filter, nil
}

// getJobs lists jobs with filters and pagination
func (a *API) getJobs(w http.ResponseWriter, r *http.Request) error {
	filter, err := jobFilterFromQuery(r.URL.Query())
	if err != nil {
		return err
	}

	jobs, total, err := a.jobs.List(r.Context(), filter)
	if err != nil {
		return err
	}
	if jobs == nil {
		jobs = []core.Job{}
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	a.writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"results": len(jobs),
		"total":   total,
		"page":    page,
		"data":    jobs,
	})
	return nil
}

// getJob returns a single job
func (a *API) getJob(w http.ResponseWriter, r *http.Request) error {
	id, err := pathID(r)
	if err != nil {
		return err
	}
	job, err := a.jobs.Get(r.Context(), id)
	if err != nil {
		return err
	}
	a.writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "data": job})
	return nil
}

// newJob publishes a job owned by the caller
func (a *API) newJob(w http.ResponseWriter, r *http.Request) error {
	user, _ := GetUser(r.Context())

	var job core.Job
	if err := a.bind(r, &job); err != nil {
		return err
	}
	now := a.now()
	job.PrepareForInsert(user.ID, now)
	if err := a.validate.Struct(&job); err != nil {
		return err
	}
	if !job.IsOpen(now) {
		return core.NewAppError("Last date must be in the future", http.StatusBadRequest)
	}

	created, err := a.jobs.Create(r.Context(), &job)
	if err != nil {
		return err
	}

	a.logger.Infow("Job created",
		"request_id", GetRequestIDOrDefault(r.Context()),
		"job_id", created.ID.Hex(),
		"user_id", user.ID.Hex())
	a.writeJSON(w, http.StatusCreated, map[string]interface{}{
		"success": true,
		"message": "Job Created.",
		"data":    created,
	})
	return nil
}

// ownedJob loads the job in the path and checks the caller may manage it
func (a *API) ownedJob(r *http.Request, action string) (*core.Job, *core.User, error) {
	user, _ := GetUser(r.Context())
	id, err := pathID(r)
	if err != nil {
		return nil, nil, err
	}
	job, err := a.jobs.Get(r.Context(), id)
	if err != nil {
		return nil, nil, err
	}
	if !job.IsOwnedBy(user.ID) && user.Role != core.RoleAdmin {
		return nil, nil, core.NewAppError(
			fmt.Sprintf("User(%s) is not allowed to %s this job.", user.ID.Hex(), action), http.StatusForbidden)
	}
	return job, user, nil
}

// updateJob changes the mutable fields of a job
func (a *API) updateJob(w http.ResponseWriter, r *http.Request) error {
	job, _, err := a.ownedJob(r, "update")
	if err != nil {
		return err
	}

	changed := *job
	if err := a.bind(r, &changed); err != nil {
		return err
	}
	changed.ID = job.ID
	changed.User = job.User
	changed.PostingDate = job.PostingDate
	changed.ApplicantsApplied = job.ApplicantsApplied
	if err := a.validate.Struct(&changed); err != nil {
		return err
	}

	updated, err := a.jobs.Update(r.Context(), &changed)
	if err != nil {
		return err
	}
	a.writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Job is updated.",
		"data":    updated,
	})
	return nil
}

// deleteJob removes a job and the resumes sent to it
func (a *API) deleteJob(w http.ResponseWriter, r *http.Request) error {
	job, user, err := a.ownedJob(r, "delete")
	if err != nil {
		return err
	}

	if err := a.jobs.Delete(r.Context(), job.ID); err != nil {
		return err
	}
	for _, applicant := range job.ApplicantsApplied {
		a.removeResume(applicant.Resume)
	}

	a.logger.Infow("Job deleted",
		"request_id", GetRequestIDOrDefault(r.Context()),
		"job_id", job.ID.Hex(),
		"user_id", user.ID.Hex(),
		"resumes_removed", len(job.ApplicantsApplied))
	a.writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Job is deleted.",
	})
	return nil
}

// jobStats returns salary statistics for jobs matching a topic
func (a *API) jobStats(w http.ResponseWriter, r *http.Request) error {
	topic := strings.TrimSpace(mux.Vars(r)["topic"])
	if topic == "" {
		return core.NewAppError("Please provide a topic", http.StatusBadRequest)
	}

	stats, err := a.jobs.Stats(r.Context(), topic)
	if err != nil {
		return err
	}
	if len(stats) == 0 {
		return core.NewAppError(fmt.Sprintf("No stats found for - %s", topic), http.StatusNotFound)
	}
	a.writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "data": stats})
	return nil
}

// applyJob stores the uploaded resume and records the application
func (a *API) applyJob(w http.ResponseWriter, r *http.Request) error {
	user, _ := GetUser(r.Context())
	id, err := pathID(r)
	if err != nil {
		return err
	}
	job, err := a.jobs.Get(r.Context(), id)
	if err != nil {
		return err
	}

	now := a.now()
	if !job.IsOpen(now) {
		return core.NewAppError("You can not apply to this job. Date is over.", http.StatusBadRequest)
	}
	if job.HasApplicant(user.ID) {
		return storage.ErrAlreadyApplied
	}

	files := GetFiles(r.Context())["file"]
	if len(files) == 0 {
		return core.NewAppError("Please upload file.", http.StatusBadRequest)
	}
	file := files[0]
	ext := strings.ToLower(filepath.Ext(file.Filename))
	if !resumeExtensions[ext] {
		return core.NewAppError("Please upload document file.", http.StatusBadRequest)
	}
	if file.Size > a.config.Uploads.MaxFileSize {
		return core.NewAppError(fmt.Sprintf("Please upload file less than %s.", humanSize(a.config.Uploads.MaxFileSize)), http.StatusBadRequest)
	}

	name := resumeFileName(user, job, ext)
	if err := a.saveResume(file.Open, name); err != nil {
		return core.WrapAppError(err, "Resume upload failed.", http.StatusInternalServerError)
	}

	applicant := core.Applicant{UserID: user.ID, Resume: name, AppliedAt: now}
	if err := a.jobs.Apply(r.Context(), job.ID, applicant); err != nil {
		a.removeResume(name)
		return err
	}

	a.logger.Infow("Application recorded",
		"request_id", GetRequestIDOrDefault(r.Context()),
		"job_id", job.ID.Hex(),
		"user_id", user.ID.Hex())
	a.writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Applied to Job successfully.",
		"data":    name,
	})
	return nil
}

// resumeFileName builds <name>_<jobID>_<random><ext> from safe characters only
func resumeFileName(user *core.User, job *core.Job, ext string) string {
	base := unsafeFileChars.ReplaceAllString(strings.ReplaceAll(strings.TrimSpace(user.Name), " ", "_"), "")
	if base == "" {
		base = user.ID.Hex()
	}
	return fmt.Sprintf("%s_%s_%s%s", base, job.ID.Hex(), uuid.NewString()[:8], ext)
}

// saveResume copies an uploaded file into the upload directory
func (a *API) saveResume(open func() (multipart.File, error), name string) error {
	dir := a.config.Uploads.Path
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create upload directory: %w", err)
	}
	dst, err := util.ResolveInDir(dir, name)
	if err != nil {
		return err
	}

	src, err := open()
	if err != nil {
		return fmt.Errorf("failed to open upload: %w", err)
	}
	defer src.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create resume file: %w", err)
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		os.Remove(dst)
		return fmt.Errorf("failed to write resume file: %w", err)
	}
	return out.Close()
}

// removeResume deletes a stored resume; missing files are ignored
func (a *API) removeResume(name string) {
	if name == "" {
		return
	}
	path, err := util.ResolveInDir(a.config.Uploads.Path, name)
	if err != nil {
		a.logger.Warnw("Refusing to remove resume outside upload directory", "resume", name, "error", err)
		return
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		a.logger.Warnw("Failed to remove resume", "resume", name, "error", err)
	}
}
