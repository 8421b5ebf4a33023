package postgres_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tobyv/gamenight/internal/gameserver"
	pgstore "github.com/tobyv/gamenight/internal/storage/postgres"
	"github.com/tobyv/gamenight/internal/testutil"
)

func testSummaryRepo(t *testing.T) *pgstore.SummaryRepository {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	pc := testutil.NewPostgresContainer(t)
	pc.ApplyMigrations(t)
	return pgstore.NewSummaryRepository(pc.RawPool)
}

func sampleSummary(sessionID string, endedAt time.Time) gameserver.Summary {
	return gameserver.Summary{
		SessionID:   sessionID,
		GameType:    "mafia",
		HostID:      "u1",
		Winner:      "villagers",
		Rounds:      3,
		PlayerCount: 6,
		StartedAt:   endedAt.Add(-20 * time.Minute),
		EndedAt:     endedAt,
	}
}

func TestSummaryRepository_AppendAndGet(t *testing.T) {
	repo := testSummaryRepo(t)
	ctx := context.Background()

	ended := time.Now().UTC().Truncate(time.Microsecond)
	require.NoError(t, repo.Append(ctx, sampleSummary("sess-1", ended)))

	rec, err := repo.GetBySessionID(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, "sess-1", rec.SessionID)
	assert.Equal(t, "mafia", rec.GameType)
	assert.Equal(t, "u1", rec.HostID)
	assert.Equal(t, "villagers", rec.Winner)
	assert.Equal(t, 3, rec.Rounds)
	assert.Equal(t, 6, rec.PlayerCount)
	assert.True(t, rec.EndedAt.Equal(ended))
	assert.False(t, rec.CreatedAt.IsZero())
}

func TestSummaryRepository_GetMissing(t *testing.T) {
	repo := testSummaryRepo(t)

	_, err := repo.GetBySessionID(context.Background(), "no-such-session")
	assert.ErrorIs(t, err, pgstore.ErrSummaryNotFound)
}

func TestSummaryRepository_DuplicateSessionRejected(t *testing.T) {
	repo := testSummaryRepo(t)
	ctx := context.Background()

	ended := time.Now().UTC()
	require.NoError(t, repo.Append(ctx, sampleSummary("sess-dup", ended)))
	assert.ErrorIs(t, repo.Append(ctx, sampleSummary("sess-dup", ended)), pgstore.ErrSummaryExists)
}

func TestSummaryRepository_ListRecentOrdersByEnd(t *testing.T) {
	repo := testSummaryRepo(t)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Microsecond)
	for i := 0; i < 5; i++ {
		s := sampleSummary(fmt.Sprintf("sess-%d", i), base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, repo.Append(ctx, s))
	}

	recs, err := repo.ListRecent(ctx, 3)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, "sess-4", recs[0].SessionID)
	assert.Equal(t, "sess-3", recs[1].SessionID)
	assert.Equal(t, "sess-2", recs[2].SessionID)
}
