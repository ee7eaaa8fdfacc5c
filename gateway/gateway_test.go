package gateway_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xiaoyuanzhu-com/local-first-todo/gateway"
	"github.com/xiaoyuanzhu-com/local-first-todo/memstore"
	"github.com/xiaoyuanzhu-com/local-first-todo/models"
)

func newGateway() *gateway.Gateway {
	return gateway.New(memstore.New(nil))
}

func TestGateway_Example(t *testing.T) {
	g := newGateway()
	ctx := context.Background()

	todo, err := g.Insert(ctx, "buy milk")
	require.NoError(t, err)
	assert.Equal(t, models.Todo{ID: 1, Title: "buy milk"}, todo)

	updated, err := g.Update(ctx, 1, true)
	require.NoError(t, err)
	assert.Equal(t, models.Todo{ID: 1, Title: "buy milk", Completed: true}, updated)

	require.NoError(t, g.Delete(ctx, 1))

	todos, err := g.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, todos)
}

func TestGateway_InsertRejectsBlankTitles(t *testing.T) {
	g := newGateway()
	ctx := context.Background()

	for _, title := range []string{"", "   ", "\t\n"} {
		_, err := g.Insert(ctx, title)
		assert.ErrorIs(t, err, models.ErrEmptyTitle, "title %q", title)
		assert.True(t, gateway.IsClientError(err))
	}

	_, err := g.Insert(ctx, strings.Repeat("x", models.MaxTitleLength+1))
	assert.ErrorIs(t, err, models.ErrTitleTooLong)

	todos, err := g.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, todos, "rejected inserts must not write")
}

func TestGateway_InsertTrims(t *testing.T) {
	g := newGateway()
	todo, err := g.Insert(context.Background(), "  walk dog  ")
	require.NoError(t, err)
	assert.Equal(t, "walk dog", todo.Title)
	assert.False(t, todo.Completed)
}

func TestGateway_ToggleTwiceRestores(t *testing.T) {
	g := newGateway()
	ctx := context.Background()

	original, err := g.Insert(ctx, "laundry")
	require.NoError(t, err)

	once, err := g.Toggle(ctx, original.ID)
	require.NoError(t, err)
	assert.True(t, once.Completed)

	twice, err := g.Toggle(ctx, original.ID)
	require.NoError(t, err)
	assert.Equal(t, original, twice)
}

func TestGateway_UpdateMissing(t *testing.T) {
	g := newGateway()
	ctx := context.Background()

	_, err := g.Update(ctx, 99, true)
	assert.ErrorIs(t, err, models.ErrTodoNotFound)

	_, err = g.Toggle(ctx, 99)
	assert.ErrorIs(t, err, models.ErrTodoNotFound)

	_, err = g.Update(ctx, 0, true)
	assert.ErrorIs(t, err, models.ErrInvalidTodoID)
}

func TestGateway_DeleteMissingIsNoop(t *testing.T) {
	g := newGateway()
	ctx := context.Background()

	keep, err := g.Insert(ctx, "keep")
	require.NoError(t, err)

	require.NoError(t, g.Delete(ctx, 12345))

	todos, err := g.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []models.Todo{keep}, todos)
}

type failingStore struct{ err error }

func (f failingStore) List(context.Context) ([]models.Todo, error) { return nil, f.err }
func (f failingStore) Insert(context.Context, string) (models.Todo, error) {
	return models.Todo{}, f.err
}
func (f failingStore) SetCompleted(context.Context, int64, bool) (*models.Todo, error) {
	return nil, f.err
}
func (f failingStore) Delete(context.Context, int64) error { return f.err }

func TestGateway_PropagatesStoreFailures(t *testing.T) {
	boom := errors.New("disk full")
	g := gateway.New(failingStore{err: boom})
	ctx := context.Background()

	_, err := g.Insert(ctx, "x")
	assert.ErrorIs(t, err, boom)
	assert.False(t, gateway.IsClientError(err))

	_, err = g.Update(ctx, 1, true)
	assert.ErrorIs(t, err, boom)

	_, err = g.Toggle(ctx, 1)
	assert.ErrorIs(t, err, boom)

	assert.ErrorIs(t, g.Delete(ctx, 1), boom)
}
