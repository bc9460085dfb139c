package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Tpanarchist/omen/core"
)

const (
	defaultKeyPrefix = "omen:episode:"
	recentIndex      = "recent"
	defaultTTL       = 7 * 24 * time.Hour
)

// episodeStoreImpl is the StorageProvider-backed EpisodeStore shared by
// every concrete backend: it owns key formatting, JSON encoding, and
// the recency index, and delegates the actual bytes to a
// StorageProvider. Grounded on gomind's executionStoreImpl, which plays
// the identical role over its own StorageProvider.
type episodeStoreImpl struct {
	provider  StorageProvider
	keyPrefix string
	ttl       time.Duration
	logger    core.Logger
}

// New wraps a StorageProvider in the EpisodeStore contract. A nil
// logger is valid; secondary-write failures (the recency index) are
// logged and swallowed rather than propagated, matching gomind's
// execution store behavior that a debug index is best-effort.
func New(provider StorageProvider, logger core.Logger) EpisodeStore {
	return &episodeStoreImpl{provider: provider, keyPrefix: defaultKeyPrefix, ttl: defaultTTL, logger: logger}
}

func (s *episodeStoreImpl) recordKey(correlationID string) string {
	return s.keyPrefix + correlationID
}

func (s *episodeStoreImpl) Store(ctx context.Context, rec EpisodeRecord) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return core.NewFrameworkError("store.Store", "store", err).WithID(rec.CorrelationID)
	}
	if err := s.provider.Set(ctx, s.recordKey(rec.CorrelationID), body, s.ttl); err != nil {
		return core.NewFrameworkError("store.Store", "store", err).WithID(rec.CorrelationID)
	}

	score := float64(rec.CreatedAt.Unix())
	if err := s.provider.AddToIndex(ctx, recentIndex, rec.CorrelationID, score); err != nil {
		s.logf("store.index_write_failed", rec.CorrelationID, err)
	}
	return nil
}

func (s *episodeStoreImpl) Get(ctx context.Context, correlationID string) (EpisodeRecord, bool, error) {
	body, err := s.provider.Get(ctx, s.recordKey(correlationID))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return EpisodeRecord{}, false, nil
		}
		return EpisodeRecord{}, false, core.NewFrameworkError("store.Get", "store", err).WithID(correlationID)
	}

	var rec EpisodeRecord
	if err := json.Unmarshal(body, &rec); err != nil {
		return EpisodeRecord{}, false, core.NewFrameworkError("store.Get", "store", err).WithID(correlationID)
	}
	return rec, true, nil
}

func (s *episodeStoreImpl) ListRecent(ctx context.Context, limit int) ([]EpisodeSummary, error) {
	ids, err := s.provider.ListByScoreDesc(ctx, recentIndex, limit)
	if err != nil {
		return nil, core.NewFrameworkError("store.ListRecent", "store", err)
	}

	summaries := make([]EpisodeSummary, 0, len(ids))
	for _, id := range ids {
		rec, ok, err := s.Get(ctx, id)
		if err != nil {
			s.logf("store.list_recent_read_failed", id, err)
			continue
		}
		if !ok {
			continue
		}
		summaries = append(summaries, EpisodeSummary{
			CorrelationID: rec.CorrelationID, CampaignID: rec.CampaignID,
			CreatedAt: rec.CreatedAt, Outcome: rec.Outcome,
		})
	}
	return summaries, nil
}

func (s *episodeStoreImpl) Delete(ctx context.Context, correlationID string) error {
	if err := s.provider.Del(ctx, s.recordKey(correlationID)); err != nil {
		return core.NewFrameworkError("store.Delete", "store", err).WithID(correlationID)
	}
	if err := s.provider.RemoveFromIndex(ctx, recentIndex, correlationID); err != nil {
		s.logf("store.index_remove_failed", correlationID, err)
	}
	return nil
}

func (s *episodeStoreImpl) logf(msg, id string, err error) {
	if s.logger == nil {
		return
	}
	s.logger.Warn(msg, map[string]interface{}{"correlation_id": id, "error": fmt.Sprint(err)})
}
