package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"jobboard/core"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// JobsCollection is the collection holding published jobs
const JobsCollection = "jobs"

// sortableJobFields lists the fields clients may sort by
var sortableJobFields = map[string]bool{
	"postingDate": true,
	"lastDate":    true,
	"salary":      true,
	"positions":   true,
	"title":       true,
}

// JobFilter narrows a job listing
type JobFilter struct {
	Keyword    string
	JobType    string
	Education  string
	Experience string
	Industry   string
	MinSalary  int
	MaxSalary  int
	Sort       string
	Page       int
	Limit      int
}

// Query builds the MongoDB filter document
func (f JobFilter) Query() bson.M {
	query := bson.M{}
	if f.Keyword != "" {
		query["$text"] = bson.M{"$search": f.Keyword}
	}
	if f.JobType != "" {
		query["jobType"] = f.JobType
	}
	if f.Education != "" {
		query["minEducation"] = f.Education
	}
	if f.Experience != "" {
		query["experience"] = f.Experience
	}
	if f.Industry != "" {
		query["industry"] = f.Industry
	}
	salary := bson.M{}
	if f.MinSalary > 0 {
		salary["$gte"] = f.MinSalary
	}
	if f.MaxSalary > 0 {
		salary["$lte"] = f.MaxSalary
	}
	if len(salary) > 0 {
		query["salary"] = salary
	}
	return query
}

// SortSpec turns "salary,-postingDate" into an ordered sort document.
// Unknown fields are ignored; the default is newest first.
func (f JobFilter) SortSpec() bson.D {
	spec := bson.D{}
	for _, field := range strings.Split(f.Sort, ",") {
		field = strings.TrimSpace(field)
		dir := 1
		if strings.HasPrefix(field, "-") {
			dir = -1
			field = field[1:]
		}
		if sortableJobFields[field] {
			spec = append(spec, bson.E{Key: field, Value: dir})
		}
	}
	if len(spec) == 0 {
		spec = bson.D{{Key: "postingDate", Value: -1}}
	}
	return spec
}

// normalize clamps paging values
func (f JobFilter) normalize() JobFilter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = core.DefaultPageSize
	}
	if f.Limit > core.MaxPageSize {
		f.Limit = core.MaxPageSize
	}
	return f
}

// JobStorage handles job persistence
type JobStorage struct {
	coll    Collection
	timeout time.Duration
	logger  *zap.SugaredLogger
}

// NewJobStorage creates a job store on the jobs collection
func NewJobStorage(db *MongoDB, logger *zap.SugaredLogger) *JobStorage {
	return NewJobStorageWithCollection(db.Collection(JobsCollection), logger)
}

// NewJobStorageWithCollection creates a job store over an arbitrary collection
func NewJobStorageWithCollection(coll Collection, logger *zap.SugaredLogger) *JobStorage {
	return &JobStorage{coll: coll, timeout: core.DBOperationTimeout, logger: logger}
}

// EnsureIndexes creates the text index used by keyword search and stats
func (js *JobStorage) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, js.timeout)
	defer cancel()

	models := []mongo.IndexModel{
		{Keys: bson.D{{Key: "title", Value: "text"}, {Key: "description", Value: "text"}}},
		{Keys: bson.D{{Key: "user", Value: 1}}},
		{Keys: bson.D{{Key: "applicantsApplied.id", Value: 1}}},
	}
	if err := js.coll.CreateIndexes(ctx, models); err != nil {
		return fmt.Errorf("failed to create job indexes: %w", err)
	}
	return nil
}

// Create inserts a job and returns it with its new ID
func (js *JobStorage) Create(ctx context.Context, job *core.Job) (*core.Job, error) {
	ctx, cancel := context.WithTimeout(ctx, js.timeout)
	defer cancel()

	res, err := js.coll.InsertOne(ctx, job)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, fmt.Errorf("failed to insert job: %w", ErrDuplicate)
		}
		return nil, fmt.Errorf("failed to insert job: %w", err)
	}
	if id, ok := res.InsertedID.(primitive.ObjectID); ok {
		job.ID = id
	}
	return job, nil
}

// Get returns a job by ID
func (js *JobStorage) Get(ctx context.Context, id primitive.ObjectID) (*core.Job, error) {
	ctx, cancel := context.WithTimeout(ctx, js.timeout)
	defer cancel()

	var job core.Job
	if err := js.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&job); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return &job, nil
}

// List returns one page of jobs matching the filter and the total match count
func (js *JobStorage) List(ctx context.Context, filter JobFilter) ([]core.Job, int64, error) {
	ctx, cancel := context.WithTimeout(ctx, js.timeout)
	defer cancel()

	filter = filter.normalize()
	query := filter.Query()

	total, err := js.coll.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count jobs: %w", err)
	}

	findOptions := options.Find().
		SetSort(filter.SortSpec()).
		SetSkip(int64((filter.Page - 1) * filter.Limit)).
		SetLimit(int64(filter.Limit)).
		SetProjection(bson.M{"applicantsApplied": 0})

	jobs, err := js.find(ctx, query, findOptions)
	if err != nil {
		return nil, 0, err
	}
	return jobs, total, nil
}

// Update writes the mutable fields of job and returns the stored result
func (js *JobStorage) Update(ctx context.Context, job *core.Job) (*core.Job, error) {
	ctx, cancel := context.WithTimeout(ctx, js.timeout)
	defer cancel()

	update := bson.M{"$set": bson.M{
		"title":        job.Title,
		"slug":         core.Slugify(job.Title),
		"description":  job.Description,
		"email":        job.Email,
		"address":      job.Address,
		"company":      job.Company,
		"industry":     job.Industry,
		"jobType":      job.JobType,
		"minEducation": job.MinEducation,
		"positions":    job.Positions,
		"experience":   job.Experience,
		"salary":       job.Salary,
		"lastDate":     job.LastDate,
	}}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var updated core.Job
	if err := js.coll.FindOneAndUpdate(ctx, bson.M{"_id": job.ID}, update, opts).Decode(&updated); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to update job: %w", err)
	}
	return &updated, nil
}

// Delete removes a job by ID
func (js *JobStorage) Delete(ctx context.Context, id primitive.ObjectID) error {
	ctx, cancel := context.WithTimeout(ctx, js.timeout)
	defer cancel()

	res, err := js.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrJobNotFound
	}
	return nil
}

// DeleteByOwner removes every job published by the user
func (js *JobStorage) DeleteByOwner(ctx context.Context, owner primitive.ObjectID) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, js.timeout)
	defer cancel()

	res, err := js.coll.DeleteMany(ctx, bson.M{"user": owner})
	if err != nil {
		return 0, fmt.Errorf("failed to delete jobs of user: %w", err)
	}
	return res.DeletedCount, nil
}

// Stats aggregates salary statistics of jobs matching topic, grouped by experience
func (js *JobStorage) Stats(ctx context.Context, topic string) ([]core.JobStats, error) {
	ctx, cancel := context.WithTimeout(ctx, js.timeout)
	defer cancel()

	pipeline := mongo.Pipeline{
		bson.D{{Key: "$match", Value: bson.M{"$text": bson.M{"$search": `"` + topic + `"`}}}},
		bson.D{{Key: "$group", Value: bson.M{
			"_id":         bson.M{"$toUpper": "$experience"},
			"totalJobs":   bson.M{"$sum": 1},
			"avgPosition": bson.M{"$avg": "$positions"},
			"avgSalary":   bson.M{"$avg": "$salary"},
			"minSalary":   bson.M{"$min": "$salary"},
			"maxSalary":   bson.M{"$max": "$salary"},
		}}},
		bson.D{{Key: "$sort", Value: bson.M{"_id": 1}}},
	}

	cursor, err := js.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate job stats: %w", err)
	}
	defer cursor.Close(ctx)

	stats := make([]core.JobStats, 0)
	if err := cursor.All(ctx, &stats); err != nil {
		return nil, fmt.Errorf("failed to decode job stats: %w", err)
	}
	return stats, nil
}

// Apply records an application. A second application by the same user is rejected.
func (js *JobStorage) Apply(ctx context.Context, jobID primitive.ObjectID, applicant core.Applicant) error {
	ctx, cancel := context.WithTimeout(ctx, js.timeout)
	defer cancel()

	filter := bson.M{"_id": jobID, "applicantsApplied.id": bson.M{"$ne": applicant.UserID}}
	update := bson.M{"$push": bson.M{"applicantsApplied": applicant}}

	res, err := js.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to apply to job: %w", err)
	}
	if res.MatchedCount == 0 {
		// Either the job vanished or the guard matched an existing application.
		if _, err := js.Get(ctx, jobID); err != nil {
			return err
		}
		return ErrAlreadyApplied
	}
	return nil
}

// RemoveApplicant withdraws the user's applications from every job
func (js *JobStorage) RemoveApplicant(ctx context.Context, userID primitive.ObjectID) error {
	ctx, cancel := context.WithTimeout(ctx, js.timeout)
	defer cancel()

	update := bson.M{"$pull": bson.M{"applicantsApplied": bson.M{"id": userID}}}
	if _, err := js.coll.UpdateMany(ctx, bson.M{"applicantsApplied.id": userID}, update); err != nil {
		return fmt.Errorf("failed to remove applicant: %w", err)
	}
	return nil
}

// ListAppliedBy returns the jobs the user applied to
func (js *JobStorage) ListAppliedBy(ctx context.Context, userID primitive.ObjectID) ([]core.Job, error) {
	ctx, cancel := context.WithTimeout(ctx, js.timeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "postingDate", Value: -1}})
	return js.find(ctx, bson.M{"applicantsApplied.id": userID}, opts)
}

// ListPublishedBy returns the jobs the user published
func (js *JobStorage) ListPublishedBy(ctx context.Context, userID primitive.ObjectID) ([]core.Job, error) {
	ctx, cancel := context.WithTimeout(ctx, js.timeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "postingDate", Value: -1}})
	return js.find(ctx, bson.M{"user": userID}, opts)
}

func (js *JobStorage) find(ctx context.Context, query interface{}, opts *options.FindOptions) ([]core.Job, error) {
	cursor, err := js.coll.Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find jobs: %w", err)
	}
	defer cursor.Close(ctx)

	jobs := make([]core.Job, 0)
	if err := cursor.All(ctx, &jobs); err != nil {
		return nil, fmt.Errorf("failed to decode jobs: %w", err)
	}
	return jobs, nil
}
