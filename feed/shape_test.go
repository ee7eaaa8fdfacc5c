package feed

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xiaoyuanzhu-com/local-first-todo/models"
)

func TestShape_SnapshotThenChanges(t *testing.T) {
	u := newUpstream(t, time.Second)
	ctx := context.Background()

	a, err := u.store.Insert(ctx, "a")
	require.NoError(t, err)
	_, err = u.store.Insert(ctx, "b")
	require.NoError(t, err)

	snap, err := u.shape.Read(ctx, Request{Offset: SnapshotOffset})
	require.NoError(t, err)
	assert.NotEmpty(t, snap.Handle)
	assert.Equal(t, int64(2), snap.Offset)
	assert.Len(t, snap.Changes(), 2)
	assert.True(t, snap.Has(ControlUpToDate))

	_, err = u.store.SetCompleted(ctx, a.ID, true)
	require.NoError(t, err)
	require.NoError(t, u.store.Delete(ctx, a.ID))

	next, err := u.shape.Read(ctx, Request{Offset: snap.Offset, Handle: snap.Handle})
	require.NoError(t, err)
	changes := next.Changes()
	require.Len(t, changes, 2)
	assert.Equal(t, models.OpUpdate, changes[0].Headers.Operation)
	assert.True(t, changes[0].Value.Completed)
	assert.Equal(t, models.OpDelete, changes[1].Headers.Operation)
	assert.Nil(t, changes[1].Value)
	assert.Equal(t, int64(4), next.Offset)
	assert.True(t, next.Has(ControlUpToDate))
}

func TestShape_Paging(t *testing.T) {
	u := newUpstream(t, time.Second)
	u.shape.pageSize = 2
	ctx := context.Background()

	snap, err := u.shape.Read(ctx, Request{Offset: SnapshotOffset})
	require.NoError(t, err)

	for _, title := range []string{"a", "b", "c"} {
		_, err := u.store.Insert(ctx, title)
		require.NoError(t, err)
	}

	page, err := u.shape.Read(ctx, Request{Offset: snap.Offset, Handle: snap.Handle})
	require.NoError(t, err)
	assert.Len(t, page.Changes(), 2)
	assert.False(t, page.Has(ControlUpToDate))

	page, err = u.shape.Read(ctx, Request{Offset: page.Offset, Handle: page.Handle})
	require.NoError(t, err)
	assert.Len(t, page.Changes(), 1)
	assert.True(t, page.Has(ControlUpToDate))
}

func TestShape_MustRefetch(t *testing.T) {
	u := newUpstream(t, time.Second)
	ctx := context.Background()

	snap, err := u.shape.Read(ctx, Request{Offset: SnapshotOffset})
	require.NoError(t, err)

	t.Run("stale handle", func(t *testing.T) {
		b, err := u.shape.Read(ctx, Request{Offset: snap.Offset, Handle: "not-the-handle"})
		require.NoError(t, err)
		assert.True(t, b.Has(ControlMustRefetch))
		assert.Equal(t, snap.Handle, b.Handle)
	})

	t.Run("compacted offset", func(t *testing.T) {
		for _, title := range []string{"a", "b", "c"} {
			_, err := u.store.Insert(ctx, title)
			require.NoError(t, err)
		}
		_, err := u.db.CompactChanges(ctx, 1)
		require.NoError(t, err)

		b, err := u.shape.Read(ctx, Request{Offset: snap.Offset, Handle: snap.Handle})
		require.NoError(t, err)
		assert.True(t, b.Has(ControlMustRefetch))

		// Readers at the compaction point can still resume.
		b, err = u.shape.Read(ctx, Request{Offset: 2, Handle: snap.Handle})
		require.NoError(t, err)
		assert.False(t, b.Has(ControlMustRefetch))
		assert.Len(t, b.Changes(), 1)
	})
}

func TestShape_LiveWaitsForCommit(t *testing.T) {
	u := newUpstream(t, 5*time.Second)
	ctx := context.Background()

	snap, err := u.shape.Read(ctx, Request{Offset: SnapshotOffset})
	require.NoError(t, err)

	go func() {
		time.Sleep(50 * time.Millisecond)
		u.store.Insert(context.Background(), "late")
	}()

	start := time.Now()
	b, err := u.shape.Read(ctx, Request{Offset: snap.Offset, Handle: snap.Handle, Live: true})
	require.NoError(t, err)
	require.Len(t, b.Changes(), 1)
	assert.Equal(t, "late", b.Changes()[0].Value.Title)
	assert.Less(t, time.Since(start), 4*time.Second)
}

func TestShape_LiveTimesOut(t *testing.T) {
	u := newUpstream(t, 100*time.Millisecond)
	ctx := context.Background()

	snap, err := u.shape.Read(ctx, Request{Offset: SnapshotOffset})
	require.NoError(t, err)

	b, err := u.shape.Read(ctx, Request{Offset: snap.Offset, Handle: snap.Handle, Live: true})
	require.NoError(t, err)
	assert.Empty(t, b.Changes())
	assert.True(t, b.Has(ControlUpToDate))
	assert.Equal(t, snap.Offset, b.Offset)
}
