package connector

import (
	"encoding/hex"
	"fmt"

	"github.com/relaysms/smppgw/internal/gwmodel"
	"github.com/relaysms/smppgw/pdu"
	smpptime "github.com/relaysms/smppgw/time"
)

// buildSubmitSm turns a queued PDU template back into a submit_sm request
// (spec §3 "MT event", §4.3 "MT submission").
func buildSubmitSm(t gwmodel.PDUTemplate) (*pdu.SubmitSm, error) {
	sm := &pdu.SubmitSm{
		ServiceType:          t.ServiceType,
		SourceAddrTon:        t.SourceAddrTon,
		SourceAddrNpi:        t.SourceAddrNpi,
		SourceAddr:           t.SourceAddr,
		DestAddrTon:          t.DestAddrTon,
		DestAddrNpi:          t.DestAddrNpi,
		DestinationAddr:      t.DestinationAddr,
		EsmClass:             pdu.ParseEsmClass(byte(t.EsmClass)),
		ProtocolID:           t.ProtocolID,
		PriorityFlag:         t.PriorityFlag,
		RegisteredDelivery:   pdu.ParseRegisteredDelivery(byte(t.RegisteredDelivery)),
		ReplaceIfPresentFlag: t.ReplaceIfPresentFlag,
		DataCoding:           t.DataCoding,
		SmDefaultMsgID:       t.SmDefaultMsgID,
	}

	if t.ShortMessageHex != "" {
		raw, err := hex.DecodeString(t.ShortMessageHex)
		if err != nil {
			return nil, fmt.Errorf("connector: decoding short_message_hex: %w", err)
		}
		sm.ShortMessage = string(raw)
	} else {
		sm.ShortMessage = t.ShortMessage
	}

	var err error
	if sm.ScheduleDeliveryTime, err = smpptime.Parse([]byte(t.ScheduleDeliveryTime)); err != nil {
		return nil, fmt.Errorf("connector: parsing schedule_delivery_time: %w", err)
	}
	if sm.ValidityPeriod, err = smpptime.Parse([]byte(t.ValidityPeriod)); err != nil {
		return nil, fmt.Errorf("connector: parsing validity_period: %w", err)
	}

	if t.MoreMessages {
		opts := pdu.NewOptions()
		opts.SetSingle(pdu.TagMoreMessagesToSend, 1)
		sm.Options = opts
	}
	if t.SarTotalSegments > 0 {
		opts := sm.Options
		if opts == nil {
			opts = pdu.NewOptions()
		}
		opts.SetSarMsgRefNum(t.SarMsgRefNum)
		opts.SetSarTotalSegments(t.SarTotalSegments)
		opts.SetSarSegmentSeqnum(t.SarSegmentSeqnum)
		sm.Options = opts
	}
	return sm, nil
}
