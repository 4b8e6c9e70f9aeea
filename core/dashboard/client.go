package dashboard

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-dashboard/core/listing"
)

var (
	// errors
	ErrMissingID = errors.New("server record has no id")
	ErrClosed    = errors.New("dashboard closed")
)

// Client is the remote collection store the screens read from and write to.
type Client interface {
	List(ctx context.Context, path string) ([]listing.Record, error)
	Create(ctx context.Context, path string, rec listing.Record) (listing.Record, error)
	Update(ctx context.Context, path, id string, rec listing.Record) (listing.Record, error)
	Delete(ctx context.Context, path, id string) error
}

// isNotFound reports whether err is a remote "not found" answer.
func isNotFound(err error) bool {
	var nf interface{ NotFound() bool }
	return errors.As(err, &nf) && nf.NotFound()
}
