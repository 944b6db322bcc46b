package modlr

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/gofrs/uuid"

	"github.com/relaysms/smppgw/internal/gwlog"
	"github.com/relaysms/smppgw/internal/gwmodel"
	"github.com/relaysms/smppgw/internal/kvstore"
	"github.com/relaysms/smppgw/internal/metrics"
	"github.com/relaysms/smppgw/internal/queue"
	"github.com/relaysms/smppgw/pdu"
)

// ReassemblyMode resolves the open question from spec §9: whether a
// multipart MO missing segments still publishes on receipt of the
// terminal segment.
type ReassemblyMode int

const (
	// Lenient publishes whatever segments are present once the terminal
	// segment arrives, even if some are missing (spec §4.6 step 3,
	// scenario 6's assumed behavior). This is the default.
	Lenient ReassemblyMode = iota
	// Strict withholds publication until every segment 1..total has
	// arrived.
	Strict
)

// Reassembler implements MO/DLR Reassembly (spec §4.6): DLR text parsing
// and multipart MO concatenation, fed one deliver_sm at a time by
// internal/connector.
type Reassembler struct {
	Store       kvstore.Store
	Queue       queue.Queue
	MOPrefix    string
	MOSuffix    string
	DLRPrefix   string
	DLRSuffix   string
	Mode        ReassemblyMode
	SegmentTTL  time.Duration
	Logger      *gwlog.Logger
	Metrics     *metrics.Metrics
}

// isDeliveryReceiptClass reports whether esm's message-type bits mark
// this deliver_sm as carrying a delivery receipt rather than an MO
// payload (spec §4.6 "contains-delivery-ack or contains-manual-ack").
func isDeliveryReceiptClass(esm pdu.EsmClass) bool {
	return esm.Type == pdu.DelRecEsmType || esm.Type == pdu.UsrAckEsmType
}

// HandleDeliverSM dispatches an inbound deliver_sm to DLR parsing or MO
// reassembly depending on its esm_class (spec §4.6).
func (r *Reassembler) HandleDeliverSM(ctx context.Context, connectorName string, d *pdu.DeliverSm) error {
	if d.DataCoding == 2 {
		if r.Logger != nil {
			r.Logger.ErrorF("unsupported coding class 2 from %s, dropping deliver_sm", connectorName)
		}
		return nil
	}
	if isDeliveryReceiptClass(d.EsmClass) {
		if r.Metrics != nil {
			r.Metrics.DeliverReceipts.WithLabelValues(connectorName, "dlr").Inc()
		}
		return r.handleDLR(ctx, connectorName, d)
	}
	if d.EsmClass.Type == pdu.DefaultEsmType {
		if r.Metrics != nil {
			r.Metrics.DeliverReceipts.WithLabelValues(connectorName, "mo").Inc()
		}
		return r.handleMO(ctx, connectorName, d)
	}
	return nil
}

func (r *Reassembler) handleDLR(ctx context.Context, connectorName string, d *pdu.DeliverSm) error {
	receipt, ok := ParseDeliveryReceipt(d.ShortMessage)
	if !ok {
		if r.Logger != nil {
			r.Logger.ErrorF("dropping deliver_sm from %s: delivery receipt missing id or stat", connectorName)
		}
		return nil
	}

	key := correlationKey(receipt.ID)
	raw, found, err := r.Store.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("modlr: reading dlr correlation: %w", err)
	}
	if !found {
		if r.Logger != nil {
			r.Logger.ErrorF("dropping dlr for id=%s from %s: no correlation record", receipt.ID, connectorName)
		}
		return nil
	}
	var corr gwmodel.CorrelationRecord
	if err := json.Unmarshal([]byte(raw), &corr); err != nil {
		return fmt.Errorf("modlr: decoding dlr correlation: %w", err)
	}
	if corr.DLRLevel == gwmodel.DLRLevelSMSCSubmit {
		return nil
	}

	event := gwmodel.DLREvent{
		ID:            corr.OriginalRequestID,
		IDSmsc:        receipt.ID,
		Connector:     connectorName,
		Level:         corr.DLRLevel,
		Method:        corr.DLRMethod,
		URL:           corr.DLRURL,
		MessageStatus: receipt.Stat,
		SubDate:       receipt.SDate,
		DoneDate:      receipt.DDate,
		Sub:           receipt.Sub,
		Dlvrd:         receipt.Dlvrd,
		Err:           receipt.Err,
		Text:          receipt.Text,
	}
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("modlr: marshaling dlr event: %w", err)
	}
	subject := queue.DLRSubject(r.DLRPrefix, r.DLRSuffix)
	return r.Queue.Publish(ctx, subject, body, "")
}

func (r *Reassembler) handleMO(ctx context.Context, connectorName string, d *pdu.DeliverSm) error {
	if d.Options != nil {
		if _, present := d.Options.Get(pdu.TagSarMsgRefNum); present {
			return r.handleSegment(ctx, connectorName, "sar", d.Options.SarMsgRefNum(), d.Options.SarTotalSegments(), d.Options.SarSegmentSeqnum(), []byte(d.ShortMessage), d)
		}
	}
	if d.EsmClass.Feature == pdu.UDHIEsmFeat && len(d.ShortMessage) >= 6 {
		body := []byte(d.ShortMessage)
		if body[0] == 0x05 && body[1] == 0x00 && body[2] == 0x03 {
			ref, total, seq := int(body[3]), int(body[4]), int(body[5])
			return r.handleSegment(ctx, connectorName, "udh", ref, total, seq, body[6:], d)
		}
	}
	return r.publishSinglePart(ctx, connectorName, []byte(d.ShortMessage), d)
}

func (r *Reassembler) publishSinglePart(ctx context.Context, connectorName string, payload []byte, d *pdu.DeliverSm) error {
	id, err := uuid.NewV4()
	if err != nil {
		return fmt.Errorf("modlr: generating mo id: %w", err)
	}
	event := gwmodel.MOEvent{
		ID:              id.String(),
		To:              d.DestinationAddr,
		From:            d.SourceAddr,
		Coding:          d.DataCoding,
		OriginConnector: connectorName,
		Msg:             base64.StdEncoding.EncodeToString(payload),
		Retries:         0,
	}
	return r.publishMO(ctx, event)
}

func (r *Reassembler) publishMO(ctx context.Context, event gwmodel.MOEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("modlr: marshaling mo event: %w", err)
	}
	subject := queue.MOSubject(r.MOPrefix, r.MOSuffix)
	return r.Queue.Publish(ctx, subject, body, "")
}

// handleSegment implements spec §4.6 step 3 ("Multi-part"): store the
// segment keyed by sequence number under a per-(connector,ref,dest)
// hash, then, on the terminal segment, reassemble and publish.
func (r *Reassembler) handleSegment(ctx context.Context, connectorName, split string, ref, total, seq int, payload []byte, d *pdu.DeliverSm) error {
	if total <= 0 || seq <= 0 {
		return r.publishSinglePart(ctx, connectorName, payload, d)
	}
	key := fmt.Sprintf("long_sms:%s:%d:%s", connectorName, ref, d.DestinationAddr)
	seg := gwmodel.ReassemblySegment{
		TotalSegments: total,
		MsgRefNum:     ref,
		SegmentSeqnum: seq,
		PayloadBytes:  base64.StdEncoding.EncodeToString(payload),
	}
	raw, err := json.Marshal(seg)
	if err != nil {
		return fmt.Errorf("modlr: marshaling segment: %w", err)
	}
	if err := r.Store.HSet(ctx, key, strconv.Itoa(seq), string(raw), r.SegmentTTL); err != nil {
		return fmt.Errorf("modlr: storing segment: %w", err)
	}
	if seq != total {
		return nil
	}

	vals, err := r.Store.HVals(ctx, key)
	if err != nil {
		return fmt.Errorf("modlr: reading segments: %w", err)
	}
	segments := make([]gwmodel.ReassemblySegment, 0, len(vals))
	for _, v := range vals {
		var s gwmodel.ReassemblySegment
		if err := json.Unmarshal([]byte(v), &s); err != nil {
			continue
		}
		segments = append(segments, s)
	}
	if len(segments) != total {
		if r.Mode == Strict {
			return nil
		}
		if r.Logger != nil {
			r.Logger.ErrorF("reassembling %s: got %d/%d segments, publishing what was collected", key, len(segments), total)
		}
	}
	sort.Slice(segments, func(i, j int) bool { return segments[i].SegmentSeqnum < segments[j].SegmentSeqnum })

	var msg []byte
	for _, s := range segments {
		b, err := base64.StdEncoding.DecodeString(s.PayloadBytes)
		if err != nil {
			continue
		}
		msg = append(msg, b...)
	}
	_ = r.Store.Del(ctx, key)

	id, err := uuid.NewV4()
	if err != nil {
		return fmt.Errorf("modlr: generating mo id: %w", err)
	}
	event := gwmodel.MOEvent{
		ID:              id.String(),
		To:              d.DestinationAddr,
		From:            d.SourceAddr,
		Coding:          d.DataCoding,
		OriginConnector: connectorName,
		Msg:             base64.StdEncoding.EncodeToString(msg),
		Retries:         0,
	}
	return r.publishMO(ctx, event)
}

func correlationKey(smscMessageID string) string {
	return "dlr_corr:" + smscMessageID
}
