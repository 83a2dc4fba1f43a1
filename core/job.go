package core

import (
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Applicant records a user's application to a job.
type Applicant struct {
	UserID    primitive.ObjectID `bson:"id" json:"id"`
	Resume    string             `bson:"resume" json:"resume"`
	AppliedAt time.Time          `bson:"appliedAt" json:"appliedAt"`
}

// Job is a published job offer.
type Job struct {
	ID                primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	Title             string             `bson:"title" json:"title" validate:"required,max=100"`
	Slug              string             `bson:"slug" json:"slug"`
	Description       string             `bson:"description" json:"description" validate:"required,max=1000"`
	Email             string             `bson:"email" json:"email" validate:"omitempty,email"`
	Address           string             `bson:"address" json:"address" validate:"required"`
	Company           string             `bson:"company" json:"company" validate:"required"`
	Industry          []string           `bson:"industry" json:"industry" validate:"required,min=1,dive,oneof=Business 'Information Technology' Banking Education/Training Telecommunication Others"`
	JobType           string             `bson:"jobType" json:"jobType" validate:"required,oneof=Permanent Temporary Internship"`
	MinEducation      string             `bson:"minEducation" json:"minEducation" validate:"required,oneof=Bachelors Masters Phd"`
	Positions         int                `bson:"positions" json:"positions" validate:"gte=0"`
	Experience        string             `bson:"experience" json:"experience" validate:"required,oneof='No Experience' '1 Year - 2 Years' '2 Year - 5 Years' '5 Years+'"`
	Salary            int                `bson:"salary" json:"salary" validate:"required,gt=0"`
	PostingDate       time.Time          `bson:"postingDate" json:"postingDate"`
	LastDate          time.Time          `bson:"lastDate" json:"lastDate"`
	ApplicantsApplied []Applicant        `bson:"applicantsApplied" json:"applicantsApplied,omitempty"`
	User              primitive.ObjectID `bson:"user" json:"user"`
}

// JobStats is the salary summary for one experience level among jobs matching a topic.
type JobStats struct {
	Experience  string  `bson:"_id" json:"_id"`
	TotalJobs   int     `bson:"totalJobs" json:"totalJobs"`
	AvgPosition float64 `bson:"avgPosition" json:"avgPosition"`
	AvgSalary   float64 `bson:"avgSalary" json:"avgSalary"`
	MinSalary   int     `bson:"minSalary" json:"minSalary"`
	MaxSalary   int     `bson:"maxSalary" json:"maxSalary"`
}

var slugInvalidChars = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify converts a job title into a URL friendly slug.
func Slugify(title string) string {
	slug := slugInvalidChars.ReplaceAllString(strings.ToLower(title), "-")
	return strings.Trim(slug, "-")
}

// PrepareForInsert fills server-owned fields before a job is first stored.
func (j *Job) PrepareForInsert(owner primitive.ObjectID, now time.Time) {
	j.ID = primitive.NilObjectID
	j.Slug = Slugify(j.Title)
	j.User = owner
	j.PostingDate = now
	if j.LastDate.IsZero() {
		j.LastDate = now.AddDate(0, 0, DefaultJobLifetimeDays)
	}
	if j.Positions == 0 {
		j.Positions = DefaultJobPositions
	}
	j.ApplicantsApplied = []Applicant{}
}

// IsOpen reports whether the job still accepts applications at t.
func (j *Job) IsOpen(t time.Time) bool {
	return j.LastDate.IsZero() || t.Before(j.LastDate)
}

// HasApplicant reports whether the user already applied.
func (j *Job) HasApplicant(userID primitive.ObjectID) bool {
	for _, a := range j.ApplicantsApplied {
		if a.UserID == userID {
			return true
		}
	}
	return false
}

// IsOwnedBy reports whether the job was published by the given user.
func (j *Job) IsOwnedBy(userID primitive.ObjectID) bool {
	return j.User == userID
}
