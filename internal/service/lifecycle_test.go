package service

import (
	"MediaVault/internal/apperr"
	"MediaVault/internal/storage"
	"MediaVault/internal/testutil"
	"MediaVault/model"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadAsset(t *testing.T, userID, assetID uint64) *model.Asset {
	t.Helper()
	a, err := GetAsset(context.Background(), userID, assetID)
	require.NoError(t, err)
	return a
}

func TestSoftDeleteTwiceConflicts(t *testing.T) {
	env := testutil.Setup(t)
	ctx := context.Background()
	user := testutil.CreateUser(t, env.DB, 1_000_000, 0)
	asset := ingestImage(t, user.ID, 5000)

	require.NoError(t, SoftDelete(ctx, user.ID, asset.ID))
	err := SoftDelete(ctx, user.ID, asset.ID)
	assert.ErrorIs(t, err, apperr.ErrConflict)

	got := loadAsset(t, user.ID, asset.ID)
	assert.Equal(t, model.StateTrashed, got.State)
	assert.NotNil(t, got.TrashedAt)
	assert.Equal(t, uint64(5000), testutil.UsedBytes(t, env.DB, user.ID))
}

func TestSoftDeleteThenRestore(t *testing.T) {
	env := testutil.Setup(t)
	ctx := context.Background()
	user := testutil.CreateUser(t, env.DB, 1_000_000, 0)
	asset := ingestImage(t, user.ID, 5000)

	require.NoError(t, SoftDelete(ctx, user.ID, asset.ID))
	require.NoError(t, Restore(ctx, user.ID, asset.ID))

	got := loadAsset(t, user.ID, asset.ID)
	assert.Equal(t, model.StateActive, got.State)
	assert.Nil(t, got.TrashedAt)
	assert.Equal(t, uint64(5000), testutil.UsedBytes(t, env.DB, user.ID))

	assert.ErrorIs(t, Restore(ctx, user.ID, asset.ID), apperr.ErrConflict)
}

func TestActiveCannotBePurged(t *testing.T) {
	env := testutil.Setup(t)
	ctx := context.Background()
	user := testutil.CreateUser(t, env.DB, 1_000_000, 0)
	asset := ingestImage(t, user.ID, 5000)

	assert.ErrorIs(t, PurgeAsset(ctx, user.ID, asset.ID), apperr.ErrConflict)
	err := UpdateLifecycleState(ctx, nil, user.ID, asset.ID, model.StateActive, model.StatePurged, nil)
	assert.ErrorIs(t, err, apperr.ErrConflict)

	got := loadAsset(t, user.ID, asset.ID)
	assert.Equal(t, model.StateActive, got.State)
	ok, err := env.Store.Exists(ctx, *got.StoragePath)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uint64(5000), testutil.UsedBytes(t, env.DB, user.ID))
}

func TestPurgeReleasesBytesAndDeletesBlob(t *testing.T) {
	env := testutil.Setup(t)
	ctx := context.Background()
	user := testutil.CreateUser(t, env.DB, 1_000_000, 0)
	keep := ingestImage(t, user.ID, 1000)
	asset := ingestImage(t, user.ID, 5000)
	key := *asset.StoragePath

	folder, err := CreateFolder(ctx, user.ID, "Trip")
	require.NoError(t, err)
	require.NoError(t, AddToFolder(ctx, user.ID, asset.ID, folder.ID))

	require.NoError(t, SoftDelete(ctx, user.ID, asset.ID))
	require.NoError(t, PurgeAsset(ctx, user.ID, asset.ID))

	got := loadAsset(t, user.ID, asset.ID)
	assert.Equal(t, model.StatePurged, got.State)
	assert.Nil(t, got.StoragePath)
	assert.NotNil(t, got.PurgedAt)
	assert.Empty(t, got.Folders)

	ok, err := env.Store.Exists(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, keep.Size, testutil.UsedBytes(t, env.DB, user.ID))
}

func TestPurgeWithMissingBlob(t *testing.T) {
	env := testutil.Setup(t)
	ctx := context.Background()
	user := testutil.CreateUser(t, env.DB, 1_000_000, 0)
	asset := ingestImage(t, user.ID, 5000)
	require.NoError(t, SoftDelete(ctx, user.ID, asset.ID))
	require.NoError(t, env.Store.Delete(ctx, *asset.StoragePath))

	require.NoError(t, PurgeAsset(ctx, user.ID, asset.ID))

	assert.Equal(t, model.StatePurged, loadAsset(t, user.ID, asset.ID).State)
	assert.Zero(t, testutil.UsedBytes(t, env.DB, user.ID))
}

func TestPurgeStorageFailureLeavesAssetTrashed(t *testing.T) {
	env := testutil.Setup(t)
	ctx := context.Background()
	user := testutil.CreateUser(t, env.DB, 1_000_000, 0)
	asset := ingestImage(t, user.ID, 5000)
	require.NoError(t, SoftDelete(ctx, user.ID, asset.ID))

	flaky := &testutil.FlakyStore{Store: env.Store, FailDeletes: true}
	flaky.Install(t)

	err := PurgeAsset(ctx, user.ID, asset.ID)
	assert.ErrorIs(t, err, apperr.ErrStorageIO)
	assert.Equal(t, model.StateTrashed, loadAsset(t, user.ID, asset.ID).State)
	assert.Equal(t, uint64(5000), testutil.UsedBytes(t, env.DB, user.ID))

	assert.Nil(t, loadAsset(t, user.ID, asset.ID).PurgingAt)

	flaky.FailDeletes = false
	require.NoError(t, PurgeAsset(ctx, user.ID, asset.ID))
	assert.Zero(t, testutil.UsedBytes(t, env.DB, user.ID))
}

// restoringStore restores the asset right after its blob is deleted.
type restoringStore struct {
	*testutil.FlakyStore
	restore    func() error
	restoreErr error
}

func (s *restoringStore) Delete(ctx context.Context, key string) error {
	if err := s.FlakyStore.Delete(ctx, key); err != nil {
		return err
	}
	s.restoreErr = s.restore()
	return nil
}

func TestRestoreDuringPurgeIsRefused(t *testing.T) {
	env := testutil.Setup(t)
	ctx := context.Background()
	user := testutil.CreateUser(t, env.DB, 1_000_000, 0)
	asset := ingestImage(t, user.ID, 5000)
	require.NoError(t, SoftDelete(ctx, user.ID, asset.ID))
	key := *loadAsset(t, user.ID, asset.ID).StoragePath

	store := &restoringStore{
		FlakyStore: &testutil.FlakyStore{Store: env.Store},
		restore:    func() error { return Restore(ctx, user.ID, asset.ID) },
	}
	prev := storage.Default
	storage.Default = store
	t.Cleanup(func() { storage.Default = prev })

	require.NoError(t, PurgeAsset(ctx, user.ID, asset.ID))
	assert.ErrorIs(t, store.restoreErr, apperr.ErrConflict)

	got := loadAsset(t, user.ID, asset.ID)
	assert.Equal(t, model.StatePurged, got.State)
	assert.Nil(t, got.StoragePath)
	assert.Nil(t, got.PurgingAt)
	exists, err := env.Store.Exists(ctx, key)
	require.NoError(t, err)
	assert.False(t, exists)
	assert.Zero(t, testutil.UsedBytes(t, env.DB, user.ID))
}

func TestPurgeClaim(t *testing.T) {
	env := testutil.Setup(t)
	ctx := context.Background()
	user := testutil.CreateUser(t, env.DB, 1_000_000, 0)
	asset := ingestImage(t, user.ID, 5000)
	require.NoError(t, SoftDelete(ctx, user.ID, asset.ID))

	setClaim := func(at time.Time) {
		require.NoError(t, env.DB.Model(&model.Asset{}).Where("id = ?", asset.ID).Update("purging_at", at).Error)
	}

	setClaim(time.Now())
	err := PurgeAsset(ctx, user.ID, asset.ID)
	assert.ErrorIs(t, err, apperr.ErrConflict)
	assert.Contains(t, err.Error(), "being purged")
	assert.ErrorIs(t, Restore(ctx, user.ID, asset.ID), apperr.ErrConflict)
	assert.Equal(t, uint64(5000), testutil.UsedBytes(t, env.DB, user.ID))

	setClaim(time.Now().Add(-2 * purgeClaimTTL))
	assert.ErrorIs(t, Restore(ctx, user.ID, asset.ID), apperr.ErrConflict)
	require.NoError(t, PurgeAsset(ctx, user.ID, asset.ID))
	assert.Equal(t, model.StatePurged, loadAsset(t, user.ID, asset.ID).State)
	assert.Zero(t, testutil.UsedBytes(t, env.DB, user.ID))
}

func TestConcurrentPurgeReleasesOnce(t *testing.T) {
	env := testutil.Setup(t)
	ctx := context.Background()
	user := testutil.CreateUser(t, env.DB, 1_000_000, 0)
	keep := ingestImage(t, user.ID, 700)
	asset := ingestImage(t, user.ID, 5000)
	require.NoError(t, SoftDelete(ctx, user.ID, asset.ID))

	const workers = 4
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = PurgeAsset(ctx, user.ID, asset.ID)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, apperr.ErrConflict)
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, keep.Size, testutil.UsedBytes(t, env.DB, user.ID))
}

func TestForeignAssetIsNotFound(t *testing.T) {
	env := testutil.Setup(t)
	ctx := context.Background()
	owner := testutil.CreateUser(t, env.DB, 1_000_000, 0)
	other := testutil.CreateUser(t, env.DB, 1_000_000, 0)
	asset := ingestImage(t, owner.ID, 5000)

	_, err := GetAsset(ctx, other.ID, asset.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.ErrorIs(t, SoftDelete(ctx, other.ID, asset.ID), apperr.ErrNotFound)
	assert.ErrorIs(t, SetFavorite(ctx, other.ID, asset.ID, true), apperr.ErrNotFound)

	require.NoError(t, SoftDelete(ctx, owner.ID, asset.ID))
	assert.ErrorIs(t, Restore(ctx, other.ID, asset.ID), apperr.ErrNotFound)
	assert.ErrorIs(t, PurgeAsset(ctx, other.ID, asset.ID), apperr.ErrNotFound)

	assert.Equal(t, model.StateTrashed, loadAsset(t, owner.ID, asset.ID).State)
	assert.Equal(t, uint64(5000), testutil.UsedBytes(t, env.DB, owner.ID))

	_, err = GetAsset(ctx, owner.ID, 987654)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestPurgedAcceptsNoMutation(t *testing.T) {
	env := testutil.Setup(t)
	ctx := context.Background()
	user := testutil.CreateUser(t, env.DB, 1_000_000, 0)
	asset := ingestImage(t, user.ID, 5000)
	folder, err := CreateFolder(ctx, user.ID, "Keep")
	require.NoError(t, err)
	require.NoError(t, SoftDelete(ctx, user.ID, asset.ID))
	require.NoError(t, PurgeAsset(ctx, user.ID, asset.ID))

	assert.ErrorIs(t, Restore(ctx, user.ID, asset.ID), apperr.ErrConflict)
	assert.ErrorIs(t, SoftDelete(ctx, user.ID, asset.ID), apperr.ErrConflict)
	assert.ErrorIs(t, PurgeAsset(ctx, user.ID, asset.ID), apperr.ErrConflict)
	assert.ErrorIs(t, SetFavorite(ctx, user.ID, asset.ID, true), apperr.ErrConflict)
	assert.ErrorIs(t, AddToFolder(ctx, user.ID, asset.ID, folder.ID), apperr.ErrConflict)
	_, _, err = AssetURL(ctx, user.ID, asset.ID)
	assert.ErrorIs(t, err, apperr.ErrConflict)
	assert.Zero(t, testutil.UsedBytes(t, env.DB, user.ID))
}

func TestLedgerMatchesAssetsAcrossLifecycle(t *testing.T) {
	env := testutil.Setup(t)
	ctx := context.Background()
	user := testutil.CreateUser(t, env.DB, 1_000_000, 0)
	check := func(step string) {
		t.Helper()
		assert.Equal(t, testutil.LiveBytes(t, env.DB, user.ID), testutil.UsedBytes(t, env.DB, user.ID), step)
	}

	a := ingestImage(t, user.ID, 1000)
	b := ingestImage(t, user.ID, 2000)
	c := ingestImage(t, user.ID, 4000)
	check("after ingest")

	require.NoError(t, SoftDelete(ctx, user.ID, a.ID))
	require.NoError(t, SoftDelete(ctx, user.ID, b.ID))
	check("after soft delete")

	require.NoError(t, Restore(ctx, user.ID, a.ID))
	check("after restore")

	require.NoError(t, PurgeAsset(ctx, user.ID, b.ID))
	check("after purge")

	require.NoError(t, SoftDelete(ctx, user.ID, c.ID))
	result, err := EmptyTrash(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Purged)
	assert.Equal(t, uint64(4000), result.FreedBytes)
	check("after empty trash")

	assert.Equal(t, uint64(1000), testutil.UsedBytes(t, env.DB, user.ID))
}

func TestBatchSoftDeleteReportsFailures(t *testing.T) {
	env := testutil.Setup(t)
	ctx := context.Background()
	user := testutil.CreateUser(t, env.DB, 1_000_000, 0)
	a := ingestImage(t, user.ID, 1000)
	b := ingestImage(t, user.ID, 1000)
	require.NoError(t, SoftDelete(ctx, user.ID, b.ID))

	result := BatchSoftDelete(ctx, user.ID, []uint64{a.ID, b.ID, 999999})
	assert.Equal(t, []uint64{a.ID}, result.Succeeded)
	require.Len(t, result.Failed, 2)
	assert.Contains(t, result.Failed[b.ID], apperr.ErrConflict.Error())
	assert.Contains(t, result.Failed[999999], apperr.ErrNotFound.Error())
}

func TestEmptyTrashContinuesPastFailures(t *testing.T) {
	env := testutil.Setup(t)
	ctx := context.Background()
	user := testutil.CreateUser(t, env.DB, 1_000_000, 0)
	a := ingestImage(t, user.ID, 1000)
	b := ingestImage(t, user.ID, 2000)
	require.NoError(t, SoftDelete(ctx, user.ID, a.ID))
	require.NoError(t, SoftDelete(ctx, user.ID, b.ID))

	flaky := &testutil.FlakyStore{Store: env.Store, FailDeletes: true}
	flaky.Install(t)

	result, err := EmptyTrash(ctx, user.ID)
	require.NoError(t, err)
	assert.Zero(t, result.Purged)
	assert.Equal(t, 2, result.Failed)
	assert.Equal(t, uint64(3000), testutil.UsedBytes(t, env.DB, user.ID))
}

func TestAssetURLAndOpen(t *testing.T) {
	env := testutil.Setup(t)
	ctx := context.Background()
	user := testutil.CreateUser(t, env.DB, 1_000_000, 0)
	asset := ingestImage(t, user.ID, 1500)

	url, ttl, err := AssetURL(ctx, user.ID, asset.ID)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "file://"), url)
	assert.Equal(t, time.Minute, ttl)

	got, body, info, err := OpenAsset(ctx, user.ID, asset.ID)
	require.NoError(t, err)
	defer body.Close()
	assert.Equal(t, asset.ID, got.ID)
	assert.Equal(t, int64(1500), info.Size)
	assert.Len(t, testutil.Blob(t, env.Store, *asset.StoragePath), 1500)

	require.NoError(t, env.Store.Delete(ctx, *asset.StoragePath))
	_, _, _, err = OpenAsset(ctx, user.ID, asset.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
