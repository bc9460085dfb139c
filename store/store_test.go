package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tpanarchist/omen/ledger"
)

func TestMemoryProviderRoundTripsAValue(t *testing.T) {
	ctx := context.Background()
	p := NewMemoryProvider()

	require.NoError(t, p.Set(ctx, "k1", []byte("hello"), 0))
	v, err := p.Get(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), v)

	ok, err := p.Exists(ctx, "k1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemoryProviderGetMissingKeyReturnsErrNotFound(t *testing.T) {
	ctx := context.Background()
	p := NewMemoryProvider()
	_, err := p.Get(ctx, "absent")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryProviderExpiresValuesPastTTL(t *testing.T) {
	ctx := context.Background()
	p := NewMemoryProvider()
	require.NoError(t, p.Set(ctx, "k1", []byte("v"), time.Millisecond))
	time.Sleep(5 * time.Millisecond)

	_, err := p.Get(ctx, "k1")
	assert.ErrorIs(t, err, ErrNotFound)

	ok, err := p.Exists(ctx, "k1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryProviderIndexOrdersByScoreDescending(t *testing.T) {
	ctx := context.Background()
	p := NewMemoryProvider()
	require.NoError(t, p.AddToIndex(ctx, "recent", "a", 1))
	require.NoError(t, p.AddToIndex(ctx, "recent", "b", 3))
	require.NoError(t, p.AddToIndex(ctx, "recent", "c", 2))

	keys, err := p.ListByScoreDesc(ctx, "recent", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c", "a"}, keys)

	keys, err = p.ListByScoreDesc(ctx, "recent", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c"}, keys)

	require.NoError(t, p.RemoveFromIndex(ctx, "recent", "b"))
	keys, err = p.ListByScoreDesc(ctx, "recent", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a"}, keys)
}

func sampleRecord(corrID string, createdAt time.Time) EpisodeRecord {
	return EpisodeRecord{
		CorrelationID: corrID,
		CampaignID:    "camp_1",
		TemplateID:    "tmpl_b",
		CreatedAt:     createdAt,
		CompletedAt:   createdAt.Add(time.Minute),
		Snapshot: ledger.Snapshot{
			CorrelationID: corrID, CampaignID: "camp_1",
			CurrentState: "S7_REVIEW",
		},
		Outcome: "terminated",
	}
}

func TestEpisodeStoreStoreAndGetRoundTrips(t *testing.T) {
	ctx := context.Background()
	s := New(NewMemoryProvider(), nil)

	rec := sampleRecord("corr_1", time.Unix(1700000000, 0))
	require.NoError(t, s.Store(ctx, rec))

	got, ok, err := s.Get(ctx, "corr_1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, rec.CorrelationID, got.CorrelationID)
	assert.Equal(t, rec.Outcome, got.Outcome)
	assert.Equal(t, rec.Snapshot.CurrentState, got.Snapshot.CurrentState)
}

func TestEpisodeStoreGetMissingReturnsFalseNotError(t *testing.T) {
	ctx := context.Background()
	s := New(NewMemoryProvider(), nil)

	_, ok, err := s.Get(ctx, "no_such_episode")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEpisodeStoreListRecentOrdersByCreationTimeDescending(t *testing.T) {
	ctx := context.Background()
	s := New(NewMemoryProvider(), nil)

	base := time.Unix(1700000000, 0)
	require.NoError(t, s.Store(ctx, sampleRecord("corr_old", base)))
	require.NoError(t, s.Store(ctx, sampleRecord("corr_new", base.Add(time.Hour))))
	require.NoError(t, s.Store(ctx, sampleRecord("corr_mid", base.Add(30*time.Minute))))

	summaries, err := s.ListRecent(ctx, 0)
	require.NoError(t, err)
	require.Len(t, summaries, 3)
	assert.Equal(t, []string{"corr_new", "corr_mid", "corr_old"},
		[]string{summaries[0].CorrelationID, summaries[1].CorrelationID, summaries[2].CorrelationID})
}

func TestEpisodeStoreDeleteRemovesRecordAndIndexEntry(t *testing.T) {
	ctx := context.Background()
	s := New(NewMemoryProvider(), nil)

	rec := sampleRecord("corr_del", time.Unix(1700000000, 0))
	require.NoError(t, s.Store(ctx, rec))
	require.NoError(t, s.Delete(ctx, "corr_del"))

	_, ok, err := s.Get(ctx, "corr_del")
	require.NoError(t, err)
	assert.False(t, ok)

	summaries, err := s.ListRecent(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, summaries)
}
