package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/exposurekit/internal/models"
)

func TestInitDatabase_MigratesAndWires(t *testing.T) {
	ctx := context.Background()

	repos, err := InitDatabase(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = repos.DB.Close() })

	// every table exists and every repository is usable
	require.NoError(t, repos.Packages.AddFetchedDays(ctx, "DE", map[string]models.PackageBlob{
		"2026-08-11": {Bin: []byte("b"), Signature: []byte("s"), ETag: `"e"`},
	}))
	days, err := repos.Packages.AllDays(ctx, "DE")
	require.NoError(t, err)
	assert.Equal(t, []string{"2026-08-11"}, days)

	require.NoError(t, repos.Checkins.Add(ctx, &models.Checkin{
		ID:             "ci-1",
		LocationIDHash: []byte("h"),
		Start:          time.Date(2026, 8, 12, 9, 0, 0, 0, time.UTC),
		End:            time.Date(2026, 8, 12, 10, 0, 0, 0, time.UTC),
	}))
	require.NoError(t, repos.TraceWarnings.Add(ctx, &models.TraceWarningMetadata{ID: 496100, Country: "DE", ETag: `"x"`}))
	require.NoError(t, repos.Matches.Add(ctx, &models.TraceTimeIntervalMatch{
		ID: "m-1", CheckinID: "ci-1", PackageID: 496100, Country: "DE",
		LocationIDHash: []byte("h"), TransmissionRiskLevel: 5,
		StartIntervalNumber: 2710980, EndIntervalNumber: 2710986,
	}))

	// cascade is active through the migrated schema
	require.NoError(t, repos.TraceWarnings.DeleteAll(ctx))
	all, err := repos.Matches.All(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)

	require.NoError(t, repos.State.SetBool(ctx, "k", true))
	v, err := repos.State.GetBool(ctx, "k", false)
	require.NoError(t, err)
	assert.True(t, v)
}
