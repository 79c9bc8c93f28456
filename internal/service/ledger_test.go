package service

import (
	"MediaVault/internal/apperr"
	"MediaVault/internal/testutil"
	"MediaVault/model"
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReserveWithinLimit(t *testing.T) {
	env := testutil.Setup(t)
	ctx := context.Background()
	user := testutil.CreateUser(t, env.DB, 1000, 100)

	require.NoError(t, Reserve(ctx, nil, user.ID, 900))
	assert.Equal(t, uint64(1000), testutil.UsedBytes(t, env.DB, user.ID))

	err := Reserve(ctx, nil, user.ID, 1)
	assert.ErrorIs(t, err, apperr.ErrQuotaExceeded)
	assert.Equal(t, uint64(1000), testutil.UsedBytes(t, env.DB, user.ID))
}

func TestReserveZeroIsNoop(t *testing.T) {
	env := testutil.Setup(t)
	user := testutil.CreateUser(t, env.DB, 10, 10)

	require.NoError(t, Reserve(context.Background(), nil, user.ID, 0))
	require.NoError(t, Release(context.Background(), nil, user.ID, 0))
	assert.Equal(t, uint64(10), testutil.UsedBytes(t, env.DB, user.ID))
}

func TestReserveWithoutLedger(t *testing.T) {
	testutil.Setup(t)

	err := Reserve(context.Background(), nil, 4242, 10)
	assert.ErrorIs(t, err, apperr.ErrLedgerMissing)
}

func TestReleaseUnderflowIsReported(t *testing.T) {
	env := testutil.Setup(t)
	ctx := context.Background()
	user := testutil.CreateUser(t, env.DB, 1000, 50)

	require.NoError(t, Release(ctx, nil, user.ID, 20))
	assert.Equal(t, uint64(30), testutil.UsedBytes(t, env.DB, user.ID))

	err := Release(ctx, nil, user.ID, 31)
	assert.ErrorIs(t, err, apperr.ErrLedgerCorrupted)
	assert.Equal(t, uint64(30), testutil.UsedBytes(t, env.DB, user.ID), "underflow must not clamp")
}

func TestConcurrentReservesNeverExceedLimit(t *testing.T) {
	env := testutil.Setup(t)
	ctx := context.Background()
	user := testutil.CreateUser(t, env.DB, 1000, 0)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
		rejected int
	)
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := Reserve(ctx, nil, user.ID, 100)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				accepted++
				return
			}
			if assert.ErrorIs(t, err, apperr.ErrQuotaExceeded) {
				rejected++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, accepted)
	assert.Equal(t, 30, rejected)
	assert.Equal(t, uint64(1000), testutil.UsedBytes(t, env.DB, user.ID))
}

func TestCurrentUsageDerivesAvailability(t *testing.T) {
	env := testutil.Setup(t)
	user := testutil.CreateUser(t, env.DB, 10_000_000, 9_900_000)

	usage, err := CurrentUsage(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(9_900_000), usage.UsedBytes)
	assert.Equal(t, uint64(10_000_000), usage.LimitBytes)
	assert.Equal(t, uint64(100_000), usage.AvailableBytes)
	assert.InDelta(t, 99.0, usage.UsagePercent, 0.001)
}

func TestCurrentUsageProvisionsEmptyUser(t *testing.T) {
	env := testutil.Setup(t)
	user := &model.User{UserName: "fresh", Email: "fresh@example.com", Password: "x"}
	require.NoError(t, env.DB.Create(user).Error)

	usage, err := CurrentUsage(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Zero(t, usage.UsedBytes)
	assert.Equal(t, mediaPolicy().DefaultQuotaBytes, usage.LimitBytes)
}

func TestCurrentUsageMissingLedgerWithAssets(t *testing.T) {
	env := testutil.Setup(t)
	ctx := context.Background()
	user := testutil.CreateUser(t, env.DB, 1_000_000, 0)
	ingestImage(t, user.ID, 1000)
	require.NoError(t, env.DB.Where("user_id = ?", user.ID).Delete(&model.StorageLedger{}).Error)

	_, err := CurrentUsage(ctx, user.ID)
	assert.ErrorIs(t, err, apperr.ErrLedgerMissing)

	var count int64
	require.NoError(t, env.DB.Model(&model.StorageLedger{}).Where("user_id = ?", user.ID).Count(&count).Error)
	assert.Zero(t, count, "a missing ledger must not be fabricated")
}

func TestSetLimitBelowUsageBlocksNewReservations(t *testing.T) {
	env := testutil.Setup(t)
	ctx := context.Background()
	user := testutil.CreateUser(t, env.DB, 1000, 800)

	require.NoError(t, SetLimit(ctx, user.ID, 500))
	assert.ErrorIs(t, Reserve(ctx, nil, user.ID, 1), apperr.ErrQuotaExceeded)
	require.NoError(t, Release(ctx, nil, user.ID, 400))
	require.NoError(t, Reserve(ctx, nil, user.ID, 100))
	assert.Equal(t, uint64(500), testutil.UsedBytes(t, env.DB, user.ID))

	assert.ErrorIs(t, SetLimit(ctx, 9999, 1), apperr.ErrLedgerMissing)
}

func TestReconcileReportsAndFixesDrift(t *testing.T) {
	env := testutil.Setup(t)
	ctx := context.Background()
	user := testutil.CreateUser(t, env.DB, 1_000_000, 0)
	ingestImage(t, user.ID, 2000)

	report, err := Reconcile(ctx, user.ID, false)
	require.NoError(t, err)
	assert.Zero(t, report.Drift)
	assert.Equal(t, int64(1), report.LiveAssets)

	// a leaked reservation
	require.NoError(t, Reserve(ctx, nil, user.ID, 500))

	report, err = Reconcile(ctx, user.ID, false)
	require.NoError(t, err)
	assert.Equal(t, int64(500), report.Drift)
	assert.False(t, report.Fixed)
	assert.Equal(t, uint64(2500), testutil.UsedBytes(t, env.DB, user.ID))

	report, err = Reconcile(ctx, user.ID, true)
	require.NoError(t, err)
	assert.True(t, report.Fixed)
	assert.Equal(t, uint64(2000), testutil.UsedBytes(t, env.DB, user.ID))

	ids, err := ListLedgerUsers(ctx, 0, 10)
	require.NoError(t, err)
	assert.Contains(t, ids, user.ID)
}
