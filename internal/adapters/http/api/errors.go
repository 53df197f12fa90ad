package api

import (
	"errors"

	repository "github.com/okian/paramapi/internal/adapters/repository"
)

// ErrServe wraps listener failures from the HTTP server.
var ErrServe = errors.New("http serve failed")

// isNotFound reports whether err is a user miss from the store.
func isNotFound(err error) bool {
	return errors.Is(err, repository.ErrUserNotFound)
}
