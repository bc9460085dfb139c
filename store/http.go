package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/Tpanarchist/omen/core"
	"github.com/Tpanarchist/omen/telemetry"
)

// HTTPEpisodeStore is an EpisodeStore backed by a remote persistence
// service, reached through telemetry.NewTracedHTTPClient so every call
// propagates the caller's trace context across the service boundary.
// Used when episode records need to live in a system this module does
// not itself operate (a shared audit store, a compliance archive).
type HTTPEpisodeStore struct {
	baseURL string
	client  *http.Client
	logger  core.Logger
}

// NewHTTPEpisodeStore builds a client against baseURL (e.g.
// "https://episodes.internal/api/v1"). A nil httpClient defaults to
// telemetry.NewTracedHTTPClient(nil).
func NewHTTPEpisodeStore(baseURL string, httpClient *http.Client, logger core.Logger) *HTTPEpisodeStore {
	if httpClient == nil {
		httpClient = telemetry.NewTracedHTTPClient(nil)
	}
	return &HTTPEpisodeStore{baseURL: baseURL, client: httpClient, logger: logger}
}

func (s *HTTPEpisodeStore) Store(ctx context.Context, rec EpisodeRecord) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return core.NewFrameworkError("store.Store", "store", err).WithID(rec.CorrelationID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut,
		s.baseURL+"/episodes/"+url.PathEscape(rec.CorrelationID), bytes.NewReader(body))
	if err != nil {
		return core.NewFrameworkError("store.Store", "store", err).WithID(rec.CorrelationID)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return core.NewFrameworkError("store.Store", "store", err).WithID(rec.CorrelationID)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return core.NewFrameworkError("store.Store", "store",
			fmt.Errorf("unexpected status %d", resp.StatusCode)).WithID(rec.CorrelationID)
	}
	return nil
}

func (s *HTTPEpisodeStore) Get(ctx context.Context, correlationID string) (EpisodeRecord, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		s.baseURL+"/episodes/"+url.PathEscape(correlationID), nil)
	if err != nil {
		return EpisodeRecord{}, false, core.NewFrameworkError("store.Get", "store", err).WithID(correlationID)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return EpisodeRecord{}, false, core.NewFrameworkError("store.Get", "store", err).WithID(correlationID)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return EpisodeRecord{}, false, nil
	}
	if resp.StatusCode >= 300 {
		return EpisodeRecord{}, false, core.NewFrameworkError("store.Get", "store",
			fmt.Errorf("unexpected status %d", resp.StatusCode)).WithID(correlationID)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return EpisodeRecord{}, false, core.NewFrameworkError("store.Get", "store", err).WithID(correlationID)
	}
	var rec EpisodeRecord
	if err := json.Unmarshal(body, &rec); err != nil {
		return EpisodeRecord{}, false, core.NewFrameworkError("store.Get", "store", err).WithID(correlationID)
	}
	return rec, true, nil
}

func (s *HTTPEpisodeStore) ListRecent(ctx context.Context, limit int) ([]EpisodeSummary, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		s.baseURL+"/episodes?limit="+strconv.Itoa(limit), nil)
	if err != nil {
		return nil, core.NewFrameworkError("store.ListRecent", "store", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, core.NewFrameworkError("store.ListRecent", "store", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, core.NewFrameworkError("store.ListRecent", "store",
			fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, core.NewFrameworkError("store.ListRecent", "store", err)
	}
	var summaries []EpisodeSummary
	if err := json.Unmarshal(body, &summaries); err != nil {
		return nil, core.NewFrameworkError("store.ListRecent", "store", err)
	}
	return summaries, nil
}

func (s *HTTPEpisodeStore) Delete(ctx context.Context, correlationID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete,
		s.baseURL+"/episodes/"+url.PathEscape(correlationID), nil)
	if err != nil {
		return core.NewFrameworkError("store.Delete", "store", err).WithID(correlationID)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return core.NewFrameworkError("store.Delete", "store", err).WithID(correlationID)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 && resp.StatusCode != http.StatusNotFound {
		return core.NewFrameworkError("store.Delete", "store",
			fmt.Errorf("unexpected status %d", resp.StatusCode)).WithID(correlationID)
	}
	return nil
}
