package services

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blogem/attest-desk/database"
	"github.com/blogem/attest-desk/loaders"
	"github.com/blogem/attest-desk/models"
)

func directoryLoad(calls *atomic.Int64, rows ...models.Row) LoadFunc {
	return func(ctx context.Context) ([]loaders.TableData, error) {
		if calls != nil {
			calls.Add(1)
		}
		return []loaders.TableData{
			{Def: models.Tables[models.TableUserDirectory], Rows: rows},
		}, nil
	}
}

func newRefreshFixture(t *testing.T) (RefreshService, *database.Store, *clockwork.FakeClock) {
	t.Helper()

	db, err := database.Open(t.TempDir() + "/refresh.db")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	clock := clockwork.NewFakeClock()
	store := database.NewStore(db, discardLogger(), clock)
	return NewRefreshService(store, clock, discardLogger()), store, clock
}

func TestRegisterRejectsBadGroups(t *testing.T) {
	svc, _, _ := newRefreshFixture(t)

	assert.Error(t, svc.Register(TableGroup{Name: "", Load: directoryLoad(nil)}))
	assert.Error(t, svc.Register(TableGroup{Name: "directory"}))

	require.NoError(t, svc.Register(TableGroup{Name: "directory", Load: directoryLoad(nil)}))
	assert.Error(t, svc.Register(TableGroup{Name: "directory", Load: directoryLoad(nil)}),
		"duplicate registration")

	svc.Start(context.Background())
	defer svc.Stop()
	assert.Error(t, svc.Register(TableGroup{Name: "late", Load: directoryLoad(nil)}))
}

func TestStartRefreshesImmediatelyAndOnTicks(t *testing.T) {
	svc, store, clock := newRefreshFixture(t)

	var calls atomic.Int64
	require.NoError(t, svc.Register(TableGroup{
		Name:     "directory",
		Interval: time.Hour,
		Load:     directoryLoad(&calls, models.Row{"employee_id": "E1", "first_name": "Jane", "last_name": "Doe"}),
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.Start(ctx)
	defer svc.Stop()

	// The boot refresh publishes without waiting for the first tick.
	assert.Eventually(t, func() bool {
		h, err := store.Current(models.TableUserDirectory)
		if err != nil {
			return false
		}
		h.Close()
		return true
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, int64(1), calls.Load())

	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(time.Hour)

	assert.Eventually(t, func() bool {
		return calls.Load() == 2
	}, 2*time.Second, 10*time.Millisecond, "tick should drive a second refresh")
}

func TestManualOnlyGroupNeverAutoFires(t *testing.T) {
	svc, store, clock := newRefreshFixture(t)

	var calls atomic.Int64
	require.NoError(t, svc.Register(TableGroup{
		Name: "reference",
		Load: directoryLoad(&calls, models.Row{"employee_id": "E1", "first_name": "Jane", "last_name": "Doe"}),
	}))

	ctx := context.Background()
	svc.Start(ctx)
	defer svc.Stop()

	clock.Advance(240 * time.Hour)
	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, calls.Load(), "interval zero means manual only")
	_, err := store.Current(models.TableUserDirectory)
	var noSnap *database.ErrNoSnapshot
	assert.ErrorAs(t, err, &noSnap)

	require.NoError(t, svc.TriggerNow(ctx, "reference"))
	assert.Equal(t, int64(1), calls.Load())

	h, err := store.Current(models.TableUserDirectory)
	require.NoError(t, err)
	h.Close()
}

func TestTriggerNowUnknownGroup(t *testing.T) {
	svc, _, _ := newRefreshFixture(t)
	assert.Error(t, svc.TriggerNow(context.Background(), "nope"))
}

func TestValidationFailureKeepsLastGoodSnapshot(t *testing.T) {
	svc, store, _ := newRefreshFixture(t)
	ctx := context.Background()

	rows := []models.Row{{"employee_id": "E1", "first_name": "Jane", "last_name": "Doe"}}
	require.NoError(t, svc.Register(TableGroup{
		Name: "good",
		Load: directoryLoad(nil, rows...),
	}))
	require.NoError(t, svc.TriggerNow(ctx, "good"))

	// The next cycle delivers a row missing a required column. The refresh
	// reports the failure and the previous snapshot keeps serving.
	require.NoError(t, svc.Register(TableGroup{
		Name: "bad",
		Load: func(ctx context.Context) ([]loaders.TableData, error) {
			return []loaders.TableData{{
				Def:  models.Tables[models.TableUserDirectory],
				Rows: []models.Row{{"employee_id": "E2"}},
			}}, nil
		},
	}))

	err := svc.TriggerNow(ctx, "bad")
	var vErr *models.ValidationError
	require.ErrorAs(t, err, &vErr)

	h, err := store.Current(models.TableUserDirectory)
	require.NoError(t, err)
	defer h.Close()
	assert.Equal(t, models.TableUserDirectory, h.Logical())
}

func TestLoadValidationErrorIsNotRetried(t *testing.T) {
	svc, _, _ := newRefreshFixture(t)

	var calls atomic.Int64
	require.NoError(t, svc.Register(TableGroup{
		Name: "feed",
		Load: func(ctx context.Context) ([]loaders.TableData, error) {
			calls.Add(1)
			return nil, &models.ValidationError{Table: models.TableUserDirectory, Reason: "header mismatch"}
		},
	}))

	err := svc.TriggerNow(context.Background(), "feed")
	var vErr *models.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, int64(1), calls.Load(), "validation errors are final for the cycle")
}
