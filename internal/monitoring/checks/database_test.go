package checks

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/snippets/internal/database"
	"github.com/charlesng35/snippets/internal/database/testutil"
	"github.com/charlesng35/snippets/internal/monitoring"
)

func TestDatabaseCheckReportsSchemaLag(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithSeedData())
	check := Database(db, time.Second)

	result := check.Run(context.Background())
	require.Equal(t, monitoring.StatusDegraded, result.Status)
	require.Contains(t, result.Details, "schema version 0")

	_, err := database.ApplyUpgrades(context.Background(), db, database.UpgradeSteps())
	require.NoError(t, err)

	result = check.Run(context.Background())
	require.Equal(t, monitoring.StatusUp, result.Status)
	require.Contains(t, result.Details, "open=")
}

func TestDatabaseCheckCurrentSchema(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithUpgrades())

	result := Database(db, time.Second).Run(context.Background())
	require.Equal(t, monitoring.StatusUp, result.Status)
}

func TestDatabaseCheckWithoutHandle(t *testing.T) {
	result := Database(nil, 0).Run(context.Background())
	require.Equal(t, monitoring.StatusDown, result.Status)
}
