package storage

import (
	"errors"
	"fmt"
)

// Storage error constants
var (
	// ErrNotFound is a generic "not found" error
	ErrNotFound = errors.New("not found")

	// ErrDuplicate is returned when a unique constraint rejects a write
	ErrDuplicate = errors.New("duplicate key")

	// ErrJobNotFound is returned when a job is not found
	ErrJobNotFound = fmt.Errorf("job %w", ErrNotFound)

	// ErrUserNotFound is returned when a user is not found
	ErrUserNotFound = fmt.Errorf("user %w", ErrNotFound)

	// ErrEmailTaken is returned when another account already uses the email
	ErrEmailTaken = fmt.Errorf("email already registered: %w", ErrDuplicate)

	// ErrAlreadyApplied is returned when a user applies to the same job twice
	ErrAlreadyApplied = fmt.Errorf("already applied to this job: %w", ErrDuplicate)
)
