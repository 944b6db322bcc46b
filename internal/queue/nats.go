package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// NatsQueue implements Queue with a NATS JetStream stream, grounded on
// absmach-magistrala/messaging/nats's Connect/Publish/Subscribe shape but
// promoted to JetStream so publishes survive subscriber restarts and carry
// ack/dedup semantics (spec §5 "at-least-once ... deduplicated by req_id").
type NatsQueue struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// DialNats connects to url and ensures the "smppgw" stream exists,
// capturing every subject this queue will ever publish on.
func DialNats(url string, subjects []string) (*NatsQueue, error) {
	conn, err := nats.Connect(url, nats.MaxReconnects(-1))
	if err != nil {
		return nil, fmt.Errorf("queue: connecting to nats: %w", err)
	}
	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("queue: acquiring jetstream context: %w", err)
	}
	_, err = js.AddStream(&nats.StreamConfig{
		Name:      "smppgw",
		Subjects:  subjects,
		Retention: nats.WorkQueuePolicy,
		Storage:   nats.FileStorage,
		MaxAge:    24 * time.Hour,
		Duplicates: 2 * time.Minute,
	})
	if err != nil && err != nats.ErrStreamNameAlreadyInUse {
		conn.Close()
		return nil, fmt.Errorf("queue: creating stream: %w", err)
	}
	return &NatsQueue{conn: conn, js: js}, nil
}

// Publish implements Queue. dedupID maps to JetStream's Nats-Msg-Id header,
// which the stream's Duplicates window uses to drop re-publishes of the
// same req_id (spec §5).
func (q *NatsQueue) Publish(ctx context.Context, subject string, data []byte, dedupID string) error {
	msg := &nats.Msg{Subject: subject, Data: data}
	opts := []nats.PubOpt{nats.Context(ctx)}
	if dedupID != "" {
		msg.Header = nats.Header{}
		msg.Header.Set(nats.MsgIdHdr, dedupID)
	}
	_, err := q.js.PublishMsg(msg, opts...)
	return err
}

// Subscribe implements Queue with a durable pull consumer named after the
// subject, so prefetch work-items are fetched in batches of prefetch and
// acked individually; an unacked message becomes visible again for another
// puller once AckWait elapses (spec §5 "visibility timeout").
func (q *NatsQueue) Subscribe(ctx context.Context, subject string, prefetch int, handler func(Message)) error {
	if prefetch < 1 {
		prefetch = 1
	}
	durable := consumerName(subject)
	sub, err := q.js.PullSubscribe(subject, durable, nats.AckWait(30*time.Second), nats.MaxAckPending(prefetch*4))
	if err != nil {
		return fmt.Errorf("queue: pull-subscribing %s: %w", subject, err)
	}
	defer sub.Unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		msgs, err := sub.Fetch(prefetch, nats.MaxWait(1*time.Second))
		if err != nil {
			if err == nats.ErrTimeout || err == context.DeadlineExceeded {
				continue
			}
			return fmt.Errorf("queue: fetching from %s: %w", subject, err)
		}
		for _, m := range msgs {
			msg := m
			handler(Message{
				ID:      msg.Header.Get(nats.MsgIdHdr),
				Subject: msg.Subject,
				Data:    msg.Data,
				Ack:     msg.Ack,
				Nak:     msg.Nak,
			})
		}
	}
}

// Close implements Queue.
func (q *NatsQueue) Close() error {
	q.conn.Close()
	return nil
}

func consumerName(subject string) string {
	return "worker_" + subject
}
