// Package queue defines the at-least-once queue transport contract
// (spec §1 "queue transport", §5 "Shared resources") and a
// github.com/nats-io/nats.go JetStream implementation of it.
package queue

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// Message is one delivered queue entry. Ack must be called once the
// handler has durably processed the payload; failing to Ack before the
// visibility timeout elapses makes the broker redeliver it, which is how
// at-least-once delivery is implemented (spec §5 "Ordering guarantees").
type Message struct {
	ID      string
	Subject string
	Data    []byte
	Ack     func() error
	Nak     func() error
}

// Queue is the contract internal/mtpipeline publishes through and
// internal/connector / internal/modlr consume through.
type Queue interface {
	// Publish enqueues data on subject. dedupID, when non-empty, is used
	// by the broker to drop duplicate publishes within its dedup window
	// (spec §5 "at-least-once ... deduplicated by req_id").
	Publish(ctx context.Context, subject string, data []byte, dedupID string) error
	// Subscribe delivers messages published to subject to handler, one at
	// a time per prefetch slot, until ctx is canceled. handler must call
	// msg.Ack (or msg.Nak to force immediate redelivery).
	Subscribe(ctx context.Context, subject string, prefetch int, handler func(Message)) error
	// Close releases the underlying connection.
	Close() error
}

var (
	spaceStripper = strings.NewReplacer(" ", "")
	nameSanitizer = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)
)

// ConnectorSubject derives the per-connector work-queue subject name,
// matching spec §6's "<prefix>smppconn_<sanitized_name><suffix>": spaces
// are deleted, any other disallowed character becomes "-", case is
// preserved.
func ConnectorSubject(prefix, connectorName, suffix string) string {
	sanitized := nameSanitizer.ReplaceAllString(spaceStripper.Replace(connectorName), "-")
	return fmt.Sprintf("%ssmppconn_%s%s", prefix, sanitized, suffix)
}

// DLRSubject is the fixed subject delivery receipt events are published
// to, per spec §6.
func DLRSubject(prefix, suffix string) string {
	return fmt.Sprintf("%sdlr%s", prefix, suffix)
}

// MOSubject is the fixed subject mobile-originated events are published
// to, per spec §6.
func MOSubject(prefix, suffix string) string {
	return fmt.Sprintf("%smo%s", prefix, suffix)
}
