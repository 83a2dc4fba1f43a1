package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestSlugify(t *testing.T) {
	assert.Equal(t, "senior-go-developer", Slugify("Senior Go Developer"))
	assert.Equal(t, "c-net-engineer", Slugify("  C#/.NET Engineer!! "))
	assert.Equal(t, "", Slugify("***"))
}

func TestJob_PrepareForInsert(t *testing.T) {
	owner := primitive.NewObjectID()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	job := &Job{ID: primitive.NewObjectID(), Title: "Backend Engineer"}

	job.PrepareForInsert(owner, now)

	assert.True(t, job.ID.IsZero())
	assert.Equal(t, "backend-engineer", job.Slug)
	assert.Equal(t, owner, job.User)
	assert.Equal(t, now, job.PostingDate)
	assert.Equal(t, now.AddDate(0, 0, DefaultJobLifetimeDays), job.LastDate)
	assert.Equal(t, DefaultJobPositions, job.Positions)
	assert.NotNil(t, job.ApplicantsApplied)
}

func TestJob_IsOpenAndApplicants(t *testing.T) {
	now := time.Now()
	userID := primitive.NewObjectID()
	job := &Job{LastDate: now.Add(time.Hour)}

	assert.True(t, job.IsOpen(now))
	assert.False(t, job.IsOpen(now.Add(2*time.Hour)))

	assert.False(t, job.HasApplicant(userID))
	job.ApplicantsApplied = append(job.ApplicantsApplied, Applicant{UserID: userID})
	assert.True(t, job.HasApplicant(userID))
}

func TestUser_Roles(t *testing.T) {
	u := &User{Role: RoleEmployer}
	assert.True(t, u.CanPublish())
	assert.True(t, u.HasRole(RoleUser, RoleEmployer))
	assert.False(t, u.HasRole(RoleAdmin))
	assert.False(t, (&User{Role: RoleUser}).CanPublish())
	assert.False(t, Role("guest").IsValid())
}
