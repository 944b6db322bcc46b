package supervisor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"go.uber.org/zap"

	"github.com/relaysms/smppgw/internal/gwlog"
	"github.com/relaysms/smppgw/internal/kvstore"
	"github.com/relaysms/smppgw/internal/queue"
)

type trackingQueue struct {
	closed atomic.Bool
}

func (q *trackingQueue) Publish(context.Context, string, []byte, string) error { return nil }
func (q *trackingQueue) Subscribe(context.Context, string, int, func(queue.Message)) error {
	return nil
}
func (q *trackingQueue) Close() error {
	q.closed.Store(true)
	return nil
}

type closingStore struct {
	kvstore.Store
	closed atomic.Bool
}

func (s *closingStore) Close() error {
	s.closed.Store(true)
	return nil
}

func newTestLogger() *gwlog.Logger {
	return gwlog.New(zap.NewNop(), gwlog.LevelDebug)
}

// TestTeardownClosesQueueAlways verifies the queue connection is released
// on teardown regardless of whether the store backend supports closing
// (spec §5 "Supervisor teardown ... closes shared resources").
func TestTeardownClosesQueueAlways(t *testing.T) {
	q := &trackingQueue{}
	s := &Supervisor{Store: kvstore.NewMemStore(), Queue: q, Logger: newTestLogger()}
	s.teardown()
	if !q.closed.Load() {
		t.Fatal("expected queue to be closed on teardown")
	}
}

// TestTeardownClosesStoreWhenSupported verifies a Store backend that
// implements Close (e.g. kvstore.RedisStore) is released too, while
// kvstore.MemStore (which does not) is left alone without error.
func TestTeardownClosesStoreWhenSupported(t *testing.T) {
	store := &closingStore{Store: kvstore.NewMemStore()}
	q := &trackingQueue{}
	s := &Supervisor{Store: store, Queue: q, Logger: newTestLogger()}
	s.teardown()
	if !store.closed.Load() {
		t.Fatal("expected store to be closed on teardown")
	}
}

// TestRunReturnsNilOnContextCancel exercises the top-level shutdown
// contract without depending on a real internal/connector.Connector
// (which is covered by internal/connector's own tests): an empty
// Supervisor's Run should return promptly once ctx is canceled.
func TestRunReturnsNilOnContextCancel(t *testing.T) {
	q := &trackingQueue{}
	s := &Supervisor{Store: kvstore.NewMemStore(), Queue: q, Logger: newTestLogger()}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := s.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		t.Fatalf("Run(canceled ctx) = %v", err)
	}
	if !q.closed.Load() {
		t.Fatal("expected queue to be closed on teardown")
	}
}
