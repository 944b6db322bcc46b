// Package supervisor owns the gateway's shared resources and the set of
// per-SMSC connectors built from them, and coordinates their startup and
// teardown (spec §5 "Supervisor teardown cancels every connector's tasks
// and waits for them to finish, then closes shared resources").
package supervisor

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/relaysms/smppgw/internal/connector"
	"github.com/relaysms/smppgw/internal/gwlog"
	"github.com/relaysms/smppgw/internal/kvstore"
	"github.com/relaysms/smppgw/internal/queue"
)

// closer is implemented by kvstore.Store backends (e.g. kvstore.RedisStore)
// that hold an underlying connection worth releasing on teardown. Not every
// Store does (kvstore.MemStore has nothing to release), so Supervisor type-
// asserts for it rather than widening the Store contract.
type closer interface {
	Close() error
}

// Supervisor runs every configured connector to completion and owns the
// shared KV store and queue connection they were built against.
type Supervisor struct {
	Store      kvstore.Store
	Queue      queue.Queue
	Connectors []*connector.Connector
	Logger     *gwlog.Logger
}

// New builds a Supervisor over an already-dialed store, queue, and set of
// connectors (spec §5 "Shared resources").
func New(store kvstore.Store, q queue.Queue, connectors []*connector.Connector, logger *gwlog.Logger) *Supervisor {
	return &Supervisor{
		Store:      store,
		Queue:      q,
		Connectors: connectors,
		Logger:     logger,
	}
}

// Run starts every connector's Run loop under a shared errgroup and blocks
// until ctx is canceled or a connector returns a non-retryable error. On
// return it cancels every connector, waits for them to finish, then closes
// the queue connection and the store if it supports closing (spec §5
// "Supervisor teardown").
func (s *Supervisor) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(runCtx)
	for _, c := range s.Connectors {
		c := c
		g.Go(func() error {
			err := c.Run(gctx)
			if gctx.Err() != nil {
				// Shutdown in progress; this connector stopping because its
				// context was canceled is expected, not a group-ending error.
				return nil
			}
			if err != nil {
				s.Logger.ErrorF("supervisor: connector %s exited: %+v", c.Conf.Name, err)
			}
			return err
		})
	}

	err := g.Wait()
	cancel()
	s.teardown()
	return err
}

func (s *Supervisor) teardown() {
	if err := s.Queue.Close(); err != nil {
		s.Logger.ErrorF("supervisor: closing queue: %+v", err)
	}
	if c, ok := s.Store.(closer); ok {
		if err := c.Close(); err != nil {
			s.Logger.ErrorF("supervisor: closing store: %+v", err)
		}
	}
}
