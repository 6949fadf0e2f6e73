package services

import (
	"errors"
	"fmt"

	"luna-backend/internal/repository"
)

// Error kinds surfaced to callers. Handlers branch on these with errors.Is.
var (
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNotAccessible   = errors.New("not accessible")
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrUnavailable     = errors.New("unavailable")
)

func invalidArgument(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

// translate converts repository sentinels into service error kinds
func translate(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	case errors.Is(err, repository.ErrConflict):
		return fmt.Errorf("%s: %w", what, ErrConflict)
	case errors.Is(err, repository.ErrForeignKey):
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	case errors.Is(err, repository.ErrCheck):
		return fmt.Errorf("%s: %w", what, ErrInvalidArgument)
	}
	return fmt.Errorf("%s: %w", what, err)
}
