package core

import "time"

// Role is the authorization role assigned to a user.
type Role string

const (
	// RoleUser can apply to jobs
	RoleUser Role = "user"
	// RoleEmployer can publish and manage jobs
	RoleEmployer Role = "employer"
	// RoleAdmin can manage every resource
	RoleAdmin Role = "admin"
)

// String returns the string representation
func (r Role) String() string {
	return string(r)
}

// IsValid checks if the role is valid
func (r Role) IsValid() bool {
	switch r {
	case RoleUser, RoleEmployer, RoleAdmin:
		return true
	default:
		return false
	}
}

// Job enums accepted by validation.
const (
	JobTypePermanent  = "Permanent"
	JobTypeTemporary  = "Temporary"
	JobTypeInternship = "Internship"

	EducationBachelors = "Bachelors"
	EducationMasters   = "Masters"
	EducationPhd       = "Phd"

	IndustryBusiness       = "Business"
	IndustryIT             = "Information Technology"
	IndustryBanking        = "Banking"
	IndustryEducation      = "Education/Training"
	IndustryTelecom        = "Telecommunication"
	IndustryOthers         = "Others"
	ExperienceNone         = "No Experience"
	ExperienceOneToTwo     = "1 Year - 2 Years"
	ExperienceTwoToFive    = "2 Year - 5 Years"
	ExperienceFivePlus     = "5 Years+"
	DefaultJobPositions    = 1
	DefaultJobLifetimeDays = 7
)

const (
	// MaxErrorMessageLength caps error messages sent to clients
	MaxErrorMessageLength = 500
	// MaxPasswordBytes is the longest password bcrypt accepts
	MaxPasswordBytes = 72
	// DBHealthTimeout bounds health-check pings
	DBHealthTimeout = 5 * time.Second
	// DBOperationTimeout bounds a single store operation
	DBOperationTimeout = 10 * time.Second
	// DefaultPageSize is the page size used when the client sends none
	DefaultPageSize = 10
	// MaxPageSize caps client supplied page sizes
	MaxPageSize = 100
)
