// Package core defines the domain model shared by the jobboard packages.
//
// It provides:
//   - Domain types (Job, Applicant, User, JobStats)
//   - AppError, the structured error every request-scoped failure is reported with
//   - Constants for roles, job enums and request limits
//   - RedisCache, the Redis primitive behind the distributed rate-limit store
package core
