package ports

import (
	"context"
	"errors"

	"view-analytics-service/internal/views/core/domain"
)

// ErrUnknownReference is returned when the blog or country of a view does not exist.
var ErrUnknownReference = errors.New("unknown reference")

type ViewWriterPort interface {
	// InsertView stores v, resolving the blog's author.
	//   err = nil                 -> stored
	//   err = ErrUnknownReference -> blog or country missing, nothing stored
	InsertView(ctx context.Context, v *domain.ViewEvent) error
}
