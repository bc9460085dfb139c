// Package store persists completed (or in-flight) episode state beyond
// a single process's lifetime, grounded on gomind's
// orchestration.ExecutionStore/StorageProvider split: a domain-specific
// record type and retrieval contract (EpisodeRecord/EpisodeStore) sit on
// top of a storage-agnostic persistence contract (StorageProvider) that
// an in-memory, Redis, or remote-HTTP backend can each satisfy.
package store

import (
	"context"
	"time"

	"github.com/Tpanarchist/omen/ledger"
)

// EpisodeRecord is the durable summary of one episode, written once an
// episode reaches a terminal state (its exit step, or S9_SAFEMODE) or
// periodically during long-running episodes for crash recovery.
// Mirrors ledger.Snapshot's fields plus the bookkeeping a persistence
// layer needs that the in-memory ledger itself has no reason to track
// (when the episode started, which template drove it, and a final
// human-readable outcome).
type EpisodeRecord struct {
	CorrelationID string    `json:"correlation_id"`
	CampaignID    string    `json:"campaign_id"`
	TemplateID    string    `json:"template_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	CompletedAt   time.Time `json:"completed_at,omitempty"`
	Snapshot      ledger.Snapshot `json:"snapshot"`
	Outcome       string    `json:"outcome,omitempty"` // "terminated", "safemode", "abandoned"
	Error         string    `json:"error,omitempty"`
}

// EpisodeSummary is the lightweight projection returned by ListRecent,
// cheap enough to build entirely from the sorted index without fetching
// every record's full body.
type EpisodeSummary struct {
	CorrelationID string    `json:"correlation_id"`
	CampaignID    string    `json:"campaign_id"`
	CreatedAt     time.Time `json:"created_at"`
	Outcome       string    `json:"outcome,omitempty"`
}

// EpisodeStore is the domain-facing persistence contract. Every backend
// in this package (in-memory, Redis, remote HTTP) implements it on top
// of a StorageProvider.
type EpisodeStore interface {
	// Store persists or overwrites the record for CorrelationID.
	Store(ctx context.Context, rec EpisodeRecord) error

	// Get returns the record for a correlation_id, or false if none
	// has been stored.
	Get(ctx context.Context, correlationID string) (EpisodeRecord, bool, error)

	// ListRecent returns up to limit summaries, most recently created
	// first.
	ListRecent(ctx context.Context, limit int) ([]EpisodeSummary, error)

	// Delete removes a record, e.g. once its retention window elapses.
	Delete(ctx context.Context, correlationID string) error
}

// StorageProvider is the storage-agnostic contract every EpisodeStore
// backend is built on: a key/value store with one secondary,
// score-ordered index for time-based listing. Implementable by an
// in-process map, Redis, or any other key/value system with a sorted
// set primitive.
type StorageProvider interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)

	// AddToIndex records key at score in the named sorted index.
	AddToIndex(ctx context.Context, index string, key string, score float64) error
	// ListByScoreDesc returns up to limit keys from the named index,
	// highest score first.
	ListByScoreDesc(ctx context.Context, index string, limit int) ([]string, error)
	// RemoveFromIndex removes key from the named sorted index.
	RemoveFromIndex(ctx context.Context, index string, key string) error
}

// ErrNotFound is returned by a StorageProvider.Get for a missing key.
// EpisodeStore implementations translate it into a (false, nil) result
// rather than propagating it, matching gomind's execution store
// convention of a non-error "not found" path for normal-case lookups.
var ErrNotFound = &notFoundError{}

type notFoundError struct{}

func (*notFoundError) Error() string { return "store: key not found" }
