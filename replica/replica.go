// Package replica keeps an embedded SQLite copy of the server's todos
// table current through the change feed. Reads are served locally; writes
// go to the server, and come back through the feed once committed.
package replica

import (
	"context"

	"github.com/xiaoyuanzhu-com/local-first-todo/feed"
	"github.com/xiaoyuanzhu-com/local-first-todo/log"
	"github.com/xiaoyuanzhu-com/local-first-todo/models"
	"github.com/xiaoyuanzhu-com/local-first-todo/remote"
)

var logger = log.GetLogger("Replica")

// Replica is an activated store: the local table, its subscription and
// the client used for writes.
type Replica struct {
	store  *Store
	remote *remote.Client
	sub    *feed.Subscription
}

func (r *Replica) List(ctx context.Context) ([]models.Todo, error) {
	return r.store.List(ctx)
}

func (r *Replica) Get(ctx context.Context, id int64) (*models.Todo, error) {
	return r.store.Get(ctx, id)
}

func (r *Replica) Insert(ctx context.Context, title string) (models.Todo, error) {
	return r.remote.Insert(ctx, title)
}

func (r *Replica) SetCompleted(ctx context.Context, id int64, completed bool) (*models.Todo, error) {
	return r.remote.SetCompleted(ctx, id, completed)
}

func (r *Replica) Delete(ctx context.Context, id int64) error {
	return r.remote.Delete(ctx, id)
}

// Store returns the local table.
func (r *Replica) Store() *Store {
	return r.store
}

// UpToDate is closed once the local table first caught up with the server.
func (r *Replica) UpToDate() <-chan struct{} {
	return r.sub.UpToDate()
}

func (r *Replica) close() {
	r.sub.Unsubscribe()
	if err := r.store.Close(); err != nil {
		logger.Warn().Err(err).Msg("failed to close replica store")
	}
}
