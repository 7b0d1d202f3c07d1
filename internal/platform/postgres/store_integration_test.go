//go:build integration

package postgres_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-bi/internal/domain"
	"github.com/phrazzld/scry-bi/internal/platform/postgres"
	"github.com/phrazzld/scry-bi/internal/store"
	"github.com/phrazzld/scry-bi/internal/testdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChartLifecycle_Integration(t *testing.T) {
	db := testdb.Open(t)

	testdb.WithTx(t, db, func(t *testing.T, tx *sql.Tx) {
		ctx := context.Background()
		charts := postgres.NewPostgresChartStore(tx, nil)

		owner := uuid.New()
		chart, err := domain.NewChart(owner, "sales", "show growth", "line")
		require.NoError(t, err)
		require.NoError(t, charts.Create(ctx, chart))

		require.NoError(t, charts.Update(ctx, chart.ID, domain.Running()))
		require.NoError(t, charts.Update(ctx, chart.ID, domain.Succeeded(`{"series":[]}`, "up")))

		// Terminal charts never move again.
		err = charts.Update(ctx, chart.ID, domain.Failed("late failure"))
		assert.ErrorIs(t, err, store.ErrUpdateFailed)
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)

		got, err := charts.GetByID(ctx, chart.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.ChartStatusSucceeded, got.Status)
		assert.Equal(t, "up", got.GenResult)

		// Same name, different owner.
		foreign, err := domain.NewChart(uuid.New(), "sales", "show growth", "line")
		require.NoError(t, err)
		require.NoError(t, charts.Create(ctx, foreign))

		page, err := charts.ListByOwner(ctx, store.ChartQuery{OwnerID: owner, Name: "sal", Page: 1, PageSize: 10})
		require.NoError(t, err)
		require.Len(t, page.Records, 1)
		assert.Equal(t, int64(1), page.Total)
		assert.Equal(t, chart.ID, page.Records[0].ID)
		assert.Equal(t, owner, page.Records[0].OwnerID)
	})
}

func TestFindByStatusOlderThan_Integration(t *testing.T) {
	db := testdb.Open(t)

	testdb.WithTx(t, db, func(t *testing.T, tx *sql.Tx) {
		ctx := context.Background()
		charts := postgres.NewPostgresChartStore(tx, nil)

		stale, err := domain.NewChart(uuid.New(), "stale", "show growth", "line")
		require.NoError(t, err)
		require.NoError(t, charts.Create(ctx, stale))
		require.NoError(t, charts.Update(ctx, stale.ID, domain.Running()))
		_, err = tx.ExecContext(ctx, "UPDATE charts SET updated_at = $1 WHERE id = $2",
			time.Now().UTC().Add(-time.Hour), stale.ID)
		require.NoError(t, err)

		live, err := domain.NewChart(uuid.New(), "live", "show growth", "line")
		require.NoError(t, err)
		require.NoError(t, charts.Create(ctx, live))
		require.NoError(t, charts.Update(ctx, live.ID, domain.Running()))

		found, err := charts.FindByStatus(ctx, domain.ChartStatusRunning, 30*time.Minute)
		require.NoError(t, err)
		ids := make([]uuid.UUID, 0, len(found))
		for _, c := range found {
			ids = append(ids, c.ID)
		}
		assert.Contains(t, ids, stale.ID)
		assert.NotContains(t, ids, live.ID)

		all, err := charts.FindByStatus(ctx, domain.ChartStatusRunning, 0)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, len(all), 2)
	})
}

func TestDatasetRoundTrip_Integration(t *testing.T) {
	db := testdb.Open(t)

	testdb.WithTx(t, db, func(t *testing.T, tx *sql.Tx) {
		ctx := context.Background()
		datasets := postgres.NewPostgresDatasetStore(tx, nil)
		name := domain.DatasetTableName(uuid.New())

		require.NoError(t, datasets.CreateTable(ctx, name, []string{"month", "sales"}))
		require.NoError(t, datasets.InsertRows(ctx, name, [][]string{{"jan", "10"}, {"feb", "20"}}))

		ds, err := datasets.ReadRows(ctx, name)
		require.NoError(t, err)
		assert.Equal(t, []string{"month", "sales"}, ds.Fields)
		assert.Equal(t, [][]string{{"jan", "10"}, {"feb", "20"}}, ds.Rows)
	})
}
