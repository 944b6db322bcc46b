// Package gwmodel holds the wire-format structs shared between the MT
// pipeline, the connector, and the MO/DLR reassembly layer: everything that
// crosses a queue boundary as JSON.
package gwmodel

// PDUTemplate is one queued submit_sm worth of parameters. It mirrors the
// mandatory/optional fields of pdu.SubmitSm closely enough that a connector
// can build the real PDU from it without touching the HTTP layer.
type PDUTemplate struct {
	ServiceType          string `json:"service_type"`
	SourceAddrTon        int    `json:"source_addr_ton"`
	SourceAddrNpi        int    `json:"source_addr_npi"`
	SourceAddr           string `json:"source_addr"`
	DestAddrTon          int    `json:"dest_addr_ton"`
	DestAddrNpi          int    `json:"dest_addr_npi"`
	DestinationAddr      string `json:"destination_addr"`
	EsmClass             int    `json:"esm_class"`
	ProtocolID           int    `json:"protocol_id"`
	PriorityFlag         int    `json:"priority_flag"`
	ScheduleDeliveryTime string `json:"schedule_delivery_time,omitempty"`
	ValidityPeriod       string `json:"validity_period,omitempty"`
	RegisteredDelivery   int    `json:"registered_delivery"`
	ReplaceIfPresentFlag int    `json:"replace_if_present_flag"`
	DataCoding           int    `json:"data_coding"`
	SmDefaultMsgID       int    `json:"sm_default_msg_id"`
	// ShortMessage carries the raw (non-UDH) payload. Mutually exclusive
	// with ShortMessageHex, which carries the UDH-prefixed hex form (I3).
	ShortMessage    string `json:"short_message,omitempty"`
	ShortMessageHex string `json:"short_message_hex,omitempty"`
	MoreMessages    bool   `json:"more_messages_to_send"`
	SarTotalSegments  int `json:"sar_total_segments,omitempty"`
	SarSegmentSeqnum  int `json:"sar_segment_seqnum,omitempty"`
	SarMsgRefNum      int `json:"sar_msg_ref_num,omitempty"`
}

// DLRRequest is the DLR sub-object carried on an MT event and echoed on
// published DLR events.
type DLRRequest struct {
	URL    string `json:"url"`
	Level  int    `json:"level"`
	Method string `json:"method"`
}

// MTEvent is the in-memory/queued representation of one HTTP send request
// translated into one or more PDUs, per spec §3.
type MTEvent struct {
	ReqID     string        `json:"req_id"`
	Connector string        `json:"connector"`
	PDUs      []PDUTemplate `json:"pdus"`
	DLR       *DLRRequest   `json:"dlr,omitempty"`

	// Fields below are carried in-process between the route table and the
	// queue publish step; they are not part of the wire payload.
	To              string   `json:"-"`
	From            string   `json:"-"`
	Msg             string   `json:"-"`
	Tags            []int    `json:"-"`
	Locked          []string `json:"-"`
	OriginConnector string   `json:"-"`
}

// IsLocked reports whether an interceptor (or the pipeline itself) pinned a
// PDU parameter name, preventing connector overlay from touching it.
func (e *MTEvent) IsLocked(param string) bool {
	for _, p := range e.Locked {
		if p == param {
			return true
		}
	}
	return false
}

// DLREvent is published to the DLR queue, either as an immediate
// submission-accepted acknowledgment or after a deliver_sm carrying a parsed
// delivery receipt.
type DLREvent struct {
	ID            string `json:"id"`
	IDSmsc        string `json:"id_smsc,omitempty"`
	Connector     string `json:"connector"`
	Level         int    `json:"level"`
	Method        string `json:"method"`
	URL           string `json:"url"`
	MessageStatus string `json:"message_status"`
	SubDate       string `json:"subdate,omitempty"`
	DoneDate      string `json:"donedate,omitempty"`
	Sub           string `json:"sub,omitempty"`
	Dlvrd         string `json:"dlvrd,omitempty"`
	Err           string `json:"err,omitempty"`
	Text          string `json:"text,omitempty"`
	Retries       int    `json:"retries"`
}

// MOEvent is published to the MO queue for a fully (or leniently)
// reassembled inbound message.
type MOEvent struct {
	ID               string `json:"id"`
	To               string `json:"to"`
	From             string `json:"from"`
	Coding           int    `json:"coding"`
	OriginConnector  string `json:"origin-connector"`
	Msg              string `json:"msg"`
	Retries          int    `json:"retries"`
}

// DLR delivery-receipt levels, per spec §6 (dlr-level).
const (
	DLRLevelSMSCSubmit  = 1
	DLRLevelTerminal    = 2
	DLRLevelBoth        = 3
)

// CorrelationRecord is stored in the KV store keyed by the SMSC-returned
// message_id, TTL = dlr_expiry (spec §3 "DLR correlation record").
type CorrelationRecord struct {
	OriginalRequestID string `json:"original_request_id"`
	DLRURL            string `json:"dlr_url"`
	DLRMethod         string `json:"dlr_method"`
	DLRLevel          int    `json:"dlr_level"`
}

// ReassemblySegment is one hash field of a multipart reassembly record
// (spec §3 "Multipart reassembly record").
type ReassemblySegment struct {
	TotalSegments   int    `json:"total_segments"`
	MsgRefNum       int    `json:"msg_ref_num"`
	SegmentSeqnum   int    `json:"segment_seqnum"`
	PayloadBytes    string `json:"payload_bytes"`
}
