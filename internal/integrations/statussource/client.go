package statussource

import (
	"context"
	stderrors "errors"

	"github.com/BearBump/TripWatch/internal/models"
	"github.com/pkg/errors"
)

// Fetcher performs one round trip to the remote status source.
// Implementations must be safe to call repeatedly and concurrently.
type Fetcher interface {
	Fetch(ctx context.Context, reference string) (models.TripStatus, error)
}

var (
	ErrUnauthorized = errors.New("status source: unauthorized")
	ErrDecode       = errors.New("status source: malformed response")
	ErrRateLimited  = errors.New("status source: rate limited")
)

type Kind string

const (
	KindTransport    Kind = "transport"
	KindDecode       Kind = "decode"
	KindUnauthorized Kind = "unauthorized"
	KindRateLimited  Kind = "rate_limited"
)

// Classify maps a fetch error to its kind. Unknown errors are transport failures.
func Classify(err error) Kind {
	switch {
	case err == nil:
		return ""
	case stderrors.Is(err, ErrUnauthorized):
		return KindUnauthorized
	case stderrors.Is(err, ErrDecode):
		return KindDecode
	case stderrors.Is(err, ErrRateLimited):
		return KindRateLimited
	default:
		return KindTransport
	}
}

// DecodeError marks err as a response shape failure.
func DecodeError(err error) error {
	return &kindError{kind: ErrDecode, err: err}
}

type kindError struct {
	kind error
	err  error
}

func (e *kindError) Error() string {
	return e.kind.Error() + ": " + e.err.Error()
}

func (e *kindError) Is(target error) bool { return target == e.kind }

func (e *kindError) Unwrap() error { return e.err }
