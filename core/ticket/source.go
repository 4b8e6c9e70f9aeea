// Package ticket keeps the message threads of support tickets up to date from the backend.
package ticket

import (
	"context"

	"github.com/trezcool/masomo-dashboard/core/listing"
)

// Sink receives the messages of one ticket thread.
type Sink interface {
	// Initialize replaces the whole thread.
	Initialize(messages []listing.Record)
	// Upsert adds or patches one message.
	Upsert(msg listing.Record)
}

// Source feeds a ticket thread until ctx is done or it fails for good.
type Source interface {
	Run(ctx context.Context, ticketID string, sink Sink) error
}

// Fetcher reads a ticket thread from the backend.
type Fetcher interface {
	Messages(ctx context.Context, ticketID string) ([]listing.Record, error)
}

// Poster replies on a ticket thread.
type Poster interface {
	PostMessage(ctx context.Context, ticketID, body string) (listing.Record, error)
}
