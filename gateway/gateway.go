// Package gateway validates to-do mutations and forwards each one as a
// single write to a pluggable Store.
package gateway

import (
	"context"
	"errors"

	"github.com/xiaoyuanzhu-com/local-first-todo/log"
	"github.com/xiaoyuanzhu-com/local-first-todo/models"
)

var logger = log.GetLogger("Gateway")

// Store is a backend that can hold todos. Titles passed to Insert are
// already normalized; SetCompleted returns nil when the id is absent and
// Delete of an absent id succeeds.
type Store interface {
	List(ctx context.Context) ([]models.Todo, error)
	Insert(ctx context.Context, title string) (models.Todo, error)
	SetCompleted(ctx context.Context, id int64, completed bool) (*models.Todo, error)
	Delete(ctx context.Context, id int64) error
}

// Getter is implemented by stores that can fetch a single row cheaply.
type Getter interface {
	Get(ctx context.Context, id int64) (*models.Todo, error)
}

// Gateway is the only write path the API and CLI use.
type Gateway struct {
	store Store
}

// New creates a gateway over store.
func New(store Store) *Gateway {
	return &Gateway{store: store}
}

// List returns every todo, newest first.
func (g *Gateway) List(ctx context.Context) ([]models.Todo, error) {
	return g.store.List(ctx)
}

// Insert creates a todo with completed=false.
func (g *Gateway) Insert(ctx context.Context, title string) (models.Todo, error) {
	title, err := models.NormalizeTitle(title)
	if err != nil {
		return models.Todo{}, err
	}

	todo, err := g.store.Insert(ctx, title)
	if err != nil {
		logger.Error().Err(err).Msg("insert failed")
		return models.Todo{}, err
	}

	logger.Debug().Int64("id", todo.ID).Msg("todo inserted")
	return todo, nil
}

// Update sets the completed flag. It returns ErrTodoNotFound, and writes
// nothing, if the id is absent.
func (g *Gateway) Update(ctx context.Context, id int64, completed bool) (models.Todo, error) {
	if err := models.ValidateID(id); err != nil {
		return models.Todo{}, err
	}

	todo, err := g.store.SetCompleted(ctx, id, completed)
	if err != nil {
		logger.Error().Err(err).Int64("id", id).Msg("update failed")
		return models.Todo{}, err
	}
	if todo == nil {
		return models.Todo{}, models.ErrTodoNotFound
	}

	logger.Debug().Int64("id", id).Bool("completed", completed).Msg("todo updated")
	return *todo, nil
}

// Toggle flips the completed flag of an existing todo.
func (g *Gateway) Toggle(ctx context.Context, id int64) (models.Todo, error) {
	current, err := g.find(ctx, id)
	if err != nil {
		return models.Todo{}, err
	}
	return g.Update(ctx, id, !current.Completed)
}

// Delete removes a todo. Deleting an absent id is not an error.
func (g *Gateway) Delete(ctx context.Context, id int64) error {
	if err := models.ValidateID(id); err != nil {
		return err
	}

	if err := g.store.Delete(ctx, id); err != nil {
		logger.Error().Err(err).Int64("id", id).Msg("delete failed")
		return err
	}

	logger.Debug().Int64("id", id).Msg("todo deleted")
	return nil
}

func (g *Gateway) find(ctx context.Context, id int64) (models.Todo, error) {
	if err := models.ValidateID(id); err != nil {
		return models.Todo{}, err
	}

	if getter, ok := g.store.(Getter); ok {
		todo, err := getter.Get(ctx, id)
		if err != nil {
			return models.Todo{}, err
		}
		if todo == nil {
			return models.Todo{}, models.ErrTodoNotFound
		}
		return *todo, nil
	}

	todos, err := g.store.List(ctx)
	if err != nil {
		return models.Todo{}, err
	}
	for _, t := range todos {
		if t.ID == id {
			return t, nil
		}
	}
	return models.Todo{}, models.ErrTodoNotFound
}

// IsClientError reports whether err was caused by invalid input rather
// than a storage failure.
func IsClientError(err error) bool {
	return errors.Is(err, models.ErrEmptyTitle) ||
		errors.Is(err, models.ErrTitleTooLong) ||
		errors.Is(err, models.ErrInvalidTodoID)
}
