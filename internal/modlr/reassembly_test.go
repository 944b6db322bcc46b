package modlr

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/relaysms/smppgw/internal/gwmodel"
	"github.com/relaysms/smppgw/internal/kvstore"
	"github.com/relaysms/smppgw/internal/queue"
	"github.com/relaysms/smppgw/pdu"
)

type fakeQueue struct {
	mu        sync.Mutex
	published []publishedMsg
}

type publishedMsg struct {
	subject string
	data    []byte
}

func (q *fakeQueue) Publish(_ context.Context, subject string, data []byte, _ string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.published = append(q.published, publishedMsg{subject: subject, data: data})
	return nil
}

func (q *fakeQueue) Subscribe(context.Context, string, int, func(queue.Message)) error { return nil }
func (q *fakeQueue) Close() error                                                     { return nil }

func TestReassemblerUDHTwoSegments(t *testing.T) {
	q := &fakeQueue{}
	r := &Reassembler{
		Store:      kvstore.NewMemStore(),
		Queue:      q,
		MOPrefix:   "",
		MOSuffix:   "",
		SegmentTTL: 300 * time.Second,
		Mode:       Lenient,
	}

	udhEsm := pdu.EsmClass{Mode: pdu.StoreAndForwardEsmMode, Type: pdu.DefaultEsmType, Feature: pdu.UDHIEsmFeat}
	first := &pdu.DeliverSm{
		SourceAddr:      "447428666666",
		DestinationAddr: "447428555555",
		EsmClass:        udhEsm,
		ShortMessage:    string([]byte{0x05, 0x00, 0x03, 0x01, 0x02, 0x01}) + "Hello",
	}
	second := &pdu.DeliverSm{
		SourceAddr:      "447428666666",
		DestinationAddr: "447428555555",
		EsmClass:        udhEsm,
		ShortMessage:    string([]byte{0x05, 0x00, 0x03, 0x01, 0x02, 0x02}) + " World",
	}

	if err := r.HandleDeliverSM(context.Background(), "conn1", first); err != nil {
		t.Fatalf("segment 1: %v", err)
	}
	if len(q.published) != 0 {
		t.Fatalf("expected no publish before terminal segment, got %d", len(q.published))
	}
	if err := r.HandleDeliverSM(context.Background(), "conn1", second); err != nil {
		t.Fatalf("segment 2: %v", err)
	}
	if len(q.published) != 1 {
		t.Fatalf("expected exactly one MO event published, got %d", len(q.published))
	}

	var ev gwmodel.MOEvent
	if err := json.Unmarshal(q.published[0].data, &ev); err != nil {
		t.Fatalf("unmarshal mo event: %v", err)
	}
	got, err := base64.StdEncoding.DecodeString(ev.Msg)
	if err != nil {
		t.Fatalf("decode msg: %v", err)
	}
	if string(got) != "Hello World" {
		t.Fatalf("reassembled msg = %q, want %q", got, "Hello World")
	}
}

func TestReassemblerSinglePart(t *testing.T) {
	q := &fakeQueue{}
	r := &Reassembler{Store: kvstore.NewMemStore(), Queue: q, SegmentTTL: 300 * time.Second}
	d := &pdu.DeliverSm{
		SourceAddr:      "447428666666",
		DestinationAddr: "447428555555",
		EsmClass:        pdu.EsmClass{Mode: pdu.StoreAndForwardEsmMode, Type: pdu.DefaultEsmType},
		ShortMessage:    "hello",
	}
	if err := r.HandleDeliverSM(context.Background(), "conn1", d); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(q.published) != 1 {
		t.Fatalf("expected one publish, got %d", len(q.published))
	}
}

func TestReassemblerDLRDropsWithoutCorrelation(t *testing.T) {
	q := &fakeQueue{}
	r := &Reassembler{Store: kvstore.NewMemStore(), Queue: q}
	d := &pdu.DeliverSm{
		EsmClass:     pdu.EsmClass{Type: pdu.DelRecEsmType},
		ShortMessage: "id:abc sub:001 dlvrd:001 submit date:0610190851 done date:0610190951 stat:DELIVRD err:000 text:",
	}
	if err := r.HandleDeliverSM(context.Background(), "conn1", d); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(q.published) != 0 {
		t.Fatalf("expected no publish without a correlation record, got %d", len(q.published))
	}
}

func TestReassemblerDLRPublishesWithCorrelation(t *testing.T) {
	q := &fakeQueue{}
	store := kvstore.NewMemStore()
	corr := gwmodel.CorrelationRecord{OriginalRequestID: "req-1", DLRURL: "http://example.com", DLRMethod: "GET", DLRLevel: gwmodel.DLRLevelTerminal}
	raw, _ := json.Marshal(corr)
	if err := store.Set(context.Background(), "dlr_corr:abc", string(raw), time.Hour); err != nil {
		t.Fatalf("seed correlation: %v", err)
	}
	r := &Reassembler{Store: store, Queue: q, DLRPrefix: "", DLRSuffix: ""}
	d := &pdu.DeliverSm{
		EsmClass:     pdu.EsmClass{Type: pdu.DelRecEsmType},
		ShortMessage: "id:abc sub:001 dlvrd:001 submit date:0610190851 done date:0610190951 stat:DELIVRD err:000 text:",
	}
	if err := r.HandleDeliverSM(context.Background(), "conn1", d); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(q.published) != 1 {
		t.Fatalf("expected one dlr publish, got %d", len(q.published))
	}
	var ev gwmodel.DLREvent
	if err := json.Unmarshal(q.published[0].data, &ev); err != nil {
		t.Fatalf("unmarshal dlr event: %v", err)
	}
	if ev.ID != "req-1" || ev.MessageStatus != "DELIVRD" {
		t.Fatalf("unexpected dlr event: %+v", ev)
	}
}
