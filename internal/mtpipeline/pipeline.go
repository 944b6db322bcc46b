// Package mtpipeline implements the MT Pipeline (spec §4.5): turning a
// validated HTTP send request into one or more submit_sm PDU templates,
// routing them to a connector, and enqueuing the result.
package mtpipeline

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofrs/uuid"

	"github.com/relaysms/smppgw/internal/gsm7"
	"github.com/relaysms/smppgw/internal/gwconfig"
	"github.com/relaysms/smppgw/internal/gwlog"
	"github.com/relaysms/smppgw/internal/gwmodel"
	"github.com/relaysms/smppgw/internal/queue"
	"github.com/relaysms/smppgw/internal/route"
	"github.com/relaysms/smppgw/pdu"
	smpptime "github.com/relaysms/smppgw/time"
)

// Pipeline wires the route table, connector overlay configuration, and
// queue publish step together (spec §4.5).
type Pipeline struct {
	Routes       *route.Table
	Status       route.StatusSource
	Connectors   map[string]gwconfig.ConnectorConfig
	Interceptors []Interceptor
	Queue        queue.Queue
	QueuePrefix  string
	QueueSuffix  string
	Logger       *gwlog.Logger

	refs *gsm7.RefCounter
}

// New builds a Pipeline. refCounter is shared across every request the
// pipeline handles, matching spec §4.5's "per-process counter".
func New(routes *route.Table, status route.StatusSource, connectors map[string]gwconfig.ConnectorConfig, interceptors []Interceptor, q queue.Queue, prefix, suffix string, logger *gwlog.Logger) *Pipeline {
	return &Pipeline{
		Routes:       routes,
		Status:       status,
		Connectors:   connectors,
		Interceptors: interceptors,
		Queue:        q,
		QueuePrefix:  prefix,
		QueueSuffix:  suffix,
		Logger:       logger,
		refs:         gsm7.NewRefCounter(),
	}
}

// Handle implements the full pipeline: validated request in, req_id out.
// Returns *ValidationError for 400s (most are surfaced by ParseRequest;
// Handle returns one itself when the content cannot be encoded, e.g.
// invalid hex-content), *NoRouteError for 412s, or a plain error for
// internal failures (queue publish faults etc).
func (p *Pipeline) Handle(ctx context.Context, req *Request) (string, error) {
	shortMessage, err := p.encodeShortMessage(req)
	if err != nil {
		return "", &ValidationError{err.Error()}
	}

	policy := gsm7.PolicyFor(req.Coding)
	smLength := policy.SMLength(shortMessage)
	numParts := gsm7.NumParts(policy, smLength)

	id, err := uuid.NewV4()
	if err != nil {
		return "", fmt.Errorf("mtpipeline: generating req_id: %w", err)
	}
	reqID := id.String()

	event := &gwmodel.MTEvent{
		ReqID: reqID,
		To:    req.To,
		From:  req.From,
		Msg:   req.Content,
		Tags:  req.Tags,
	}
	if req.DLR {
		event.DLR = &gwmodel.DLRRequest{URL: req.DLRURL, Level: req.DLRLevel, Method: req.DLRMethod}
	}

	connectorName, ok := p.Routes.Select(event, p.Status)
	if !ok {
		return "", &NoRouteError{}
	}
	event.Connector = connectorName

	event = runInterceptors(event, p.Interceptors, p.Logger)

	connector, known := p.Connectors[event.Connector]
	pdus := p.buildPDUTemplates(req, shortMessage, numParts, connector.SplitMethod)
	if known {
		applyOverlay(pdus, connector, event.Locked)
	}
	event.PDUs = pdus

	body, err := json.Marshal(event)
	if err != nil {
		return "", fmt.Errorf("mtpipeline: marshaling event: %w", err)
	}
	subject := queue.ConnectorSubject(p.QueuePrefix, event.Connector, p.QueueSuffix)
	if err := p.Queue.Publish(ctx, subject, body, reqID); err != nil {
		return "", fmt.Errorf("mtpipeline: publishing event: %w", err)
	}
	return reqID, nil
}

// encodeShortMessage implements spec §4.5 "Short-message encoding".
func (p *Pipeline) encodeShortMessage(req *Request) ([]byte, error) {
	if req.HexContent != "" {
		return hex.DecodeString(req.HexContent)
	}
	if req.Coding == 0 {
		return gsm7.Encode(req.Content), nil
	}
	return []byte(req.Content), nil
}

// buildPDUTemplates implements segmentation (spec §4.5 "Segmentation
// policy") and applies the fixed default parameters, returning numParts
// PDU templates. splitMethod selects between the two splitting
// conventions spec §4.5 names: "sar" builds SAR-TLV segments, anything
// else (including "") builds the default UDH-concatenated segments.
func (p *Pipeline) buildPDUTemplates(req *Request, shortMessage []byte, numParts int, splitMethod string) []gwmodel.PDUTemplate {
	policy := gsm7.PolicyFor(req.Coding)
	validity := ""
	if req.HasValidity {
		t, err := smpptime.Format(smpptime.Relative, time.Now().Add(time.Duration(req.ValidityPeriod)*time.Second))
		if err == nil {
			validity = t
		}
	}

	// Ton/Npi default values per spec §4.5 "Default parameters": national
	// source addressing, ISDN numbering, international destination
	// addressing.
	const (
		defaultSourceAddrTon = 2
		defaultSourceAddrNpi = 1
		defaultDestAddrTon   = 1
		defaultDestAddrNpi   = 1
	)

	esmDefault := pdu.EsmClass{Mode: pdu.StoreAndForwardEsmMode, Type: pdu.DefaultEsmType}

	defaults := func() gwmodel.PDUTemplate {
		return gwmodel.PDUTemplate{
			SourceAddrTon:        defaultSourceAddrTon,
			SourceAddrNpi:        defaultSourceAddrNpi,
			SourceAddr:           req.From,
			DestAddrTon:          defaultDestAddrTon,
			DestAddrNpi:          defaultDestAddrNpi,
			DestinationAddr:      req.To,
			EsmClass:             int(esmDefault.Byte()),
			ProtocolID:           0,
			PriorityFlag:         req.Priority,
			ScheduleDeliveryTime: req.Sdt,
			ValidityPeriod:       validity,
			RegisteredDelivery:   0,
			ReplaceIfPresentFlag: 0,
			DataCoding:           req.Coding,
			SmDefaultMsgID:       0,
		}
	}

	if numParts <= 1 {
		t := defaults()
		t.ShortMessage = string(shortMessage)
		if req.DLR {
			t.RegisteredDelivery = pdu.YesDeliveryReceipt
		}
		return []gwmodel.PDUTemplate{t}
	}

	ref := p.refs.Next()
	chunks := gsm7.Chunk(shortMessage, policy.Bits, policy.SlicedMax, numParts)

	var out []gwmodel.PDUTemplate
	if splitMethod == "sar" {
		out = make([]gwmodel.PDUTemplate, 0, len(chunks))
		for i, chunk := range chunks {
			t := defaults()
			t.ShortMessageHex = hex.EncodeToString(chunk)
			t.ShortMessage = ""
			t.SarMsgRefNum = ref
			t.SarTotalSegments = len(chunks)
			t.SarSegmentSeqnum = i + 1
			out = append(out, t)
		}
	} else {
		udhEsm := pdu.EsmClass{Mode: pdu.StoreAndForwardEsmMode, Type: pdu.DefaultEsmType, Feature: pdu.UDHIEsmFeat}
		out = make([]gwmodel.PDUTemplate, 0, len(chunks))
		for i, chunk := range chunks {
			t := defaults()
			t.EsmClass = int(udhEsm.Byte())
			prefixed := append(gsm7.UDHPrefix(ref, len(chunks), i+1), chunk...)
			t.ShortMessageHex = hex.EncodeToString(prefixed)
			t.ShortMessage = ""
			t.MoreMessages = i != len(chunks)-1
			out = append(out, t)
		}
	}
	if req.DLR {
		out[len(out)-1].RegisteredDelivery = pdu.YesDeliveryReceipt
	}
	return out
}

// applyOverlay implements spec §4.5 "Connector parameter overlay": each
// listed field is set from the connector's configuration unless the
// field name is in locked.
func applyOverlay(pdus []gwmodel.PDUTemplate, c gwconfig.ConnectorConfig, locked []string) {
	isLocked := func(name string) bool {
		for _, l := range locked {
			if l == name {
				return true
			}
		}
		return false
	}
	for i := range pdus {
		t := &pdus[i]
		if !isLocked("protocol_id") {
			t.ProtocolID = c.ProtocolID
		}
		if !isLocked("replace_if_present_flag") {
			t.ReplaceIfPresentFlag = c.ReplaceIfPresentFlag
		}
		if !isLocked("dest_addr_ton") {
			t.DestAddrTon = c.DestAddrTon
		}
		if !isLocked("source_addr_npi") {
			t.SourceAddrNpi = c.SourceAddrNpi
		}
		if !isLocked("dest_addr_npi") {
			t.DestAddrNpi = c.DestAddrNpi
		}
		if !isLocked("service_type") {
			t.ServiceType = c.ServiceType
		}
		if !isLocked("source_addr_ton") {
			t.SourceAddrTon = c.SourceAddrTon
		}
		if !isLocked("sm_default_msg_id") {
			t.SmDefaultMsgID = c.SmDefaultMsgID
		}
	}
}
