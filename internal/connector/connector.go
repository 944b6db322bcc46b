// Package connector implements the per-SMSC Connector lifecycle (spec
// §4.3): connect-and-bind, enquire_link keepalive, MT submission pulled
// off the connector's work queue, and inbound deliver_sm dispatch to MO/DLR
// reassembly.
package connector

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	smpp "github.com/relaysms/smppgw"
	"github.com/relaysms/smppgw/internal/gwconfig"
	"github.com/relaysms/smppgw/internal/gwlog"
	"github.com/relaysms/smppgw/internal/gwmodel"
	"github.com/relaysms/smppgw/internal/kvstore"
	"github.com/relaysms/smppgw/internal/metrics"
	"github.com/relaysms/smppgw/internal/modlr"
	"github.com/relaysms/smppgw/internal/queue"
	"github.com/relaysms/smppgw/internal/route"
	"github.com/relaysms/smppgw/pdu"
)

// Connector owns the bound-or-reconnecting session to one SMSC and the
// consumer loop draining its work queue (spec §4.3).
type Connector struct {
	Conf        gwconfig.ConnectorConfig
	Store       kvstore.Store
	Queue       queue.Queue
	Reassembler *modlr.Reassembler
	Status      *route.ConnectorStatus
	Logger      *gwlog.Logger
	Metrics     *metrics.Metrics
	QueuePrefix string
	QueueSuffix string
}

// New builds a Connector ready for Run. It has no metrics attached; until
// WithMetrics is called, metric recording is skipped.
func New(conf gwconfig.ConnectorConfig, store kvstore.Store, q queue.Queue, reassembler *modlr.Reassembler, status *route.ConnectorStatus, logger *gwlog.Logger, queuePrefix, queueSuffix string) *Connector {
	return &Connector{
		Conf:        conf,
		Store:       store,
		Queue:       q,
		Reassembler: reassembler,
		Status:      status,
		Logger:      logger,
		QueuePrefix: queuePrefix,
		QueueSuffix: queueSuffix,
	}
}

// WithMetrics attaches a Metrics collector to record against; Run, the
// submit loop, and the SessionState hook all nil-check this field so it
// remains optional.
func (c *Connector) WithMetrics(m *metrics.Metrics) *Connector {
	c.Metrics = m
	return c
}

// Run drives the connect/bind/serve/reconnect loop until ctx is canceled,
// or, when ConnLossRetry is false, until the first connection loss (spec
// §4.3 "Perpetual lifecycle", §7 "Connection loss").
func (c *Connector) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		sess, err := c.connect()
		if err != nil {
			c.Logger.ErrorF("connector %s: bind failed: %+v", c.Conf.Name, err)
			if !c.Conf.ConnLossRetry {
				return err
			}
			if !sleepOrDone(ctx, c.Conf.ReconnectDelay) {
				return ctx.Err()
			}
			continue
		}

		runCtx, cancel := context.WithCancel(ctx)
		done := make(chan struct{})
		go func() {
			defer close(done)
			c.consumeQueue(runCtx, sess)
		}()
		go c.enquireLinkLoop(runCtx, sess)

		select {
		case <-sess.NotifyClosed():
		case <-ctx.Done():
			sess.Close()
		}
		cancel()
		<-done
		c.Status.Update(c.Conf.Name, "CLOSED")

		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !c.Conf.ConnLossRetry {
			return nil
		}
		if !sleepOrDone(ctx, c.Conf.ReconnectDelay) {
			return ctx.Err()
		}
	}
}

func sleepOrDone(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// connect dials and binds transceiver, wiring a Handler that dispatches
// inbound deliver_sm to Reassembler and tracks bind state via the
// session's SessionState hook (spec §4.4 "Connector-status feed").
func (c *Connector) connect() (*smpp.Session, error) {
	sessConf := smpp.SessionConf{
		Type:          smpp.ESME,
		WindowTimeout: c.Conf.BindTimeout,
		Logger:        connectorLogger{c.Logger, c.Conf.Name},
		Handler:       smpp.HandlerFunc(c.serveSMPP),
		SessionState: func(_, _ string, state smpp.SessionState) {
			label := sessionStateLabel(state)
			c.Status.Update(c.Conf.Name, label)
			if c.Metrics != nil {
				c.Metrics.SetConnectorBound(c.Conf.Name, strings.HasPrefix(label, "BOUND"))
			}
		},
	}
	bindConf := smpp.BindConf{
		Addr:       c.Conf.Addr,
		SystemID:   c.Conf.SystemID,
		Password:   c.Conf.Password,
		SystemType: c.Conf.SystemType,
		AddrTon:    c.Conf.AddrTon,
		AddrNpi:    c.Conf.AddrNpi,
		AddrRange:  c.Conf.AddrRange,
	}
	sess, err := smpp.BindTRx(sessConf, bindConf)
	if err != nil {
		if sess != nil {
			sess.Close()
		}
		return nil, err
	}
	return sess, nil
}

func sessionStateLabel(state smpp.SessionState) string {
	switch state {
	case smpp.StateBoundTRx:
		return "BOUND_TRX"
	case smpp.StateBoundTx:
		return "BOUND_TX"
	case smpp.StateBoundRx:
		return "BOUND_RX"
	case smpp.StateBinding:
		return "BINDING"
	case smpp.StateUnbinding, smpp.StateClosing:
		return "UNBINDING"
	case smpp.StateClosed:
		return "CLOSED"
	default:
		return "OPEN"
	}
}

// serveSMPP handles requests the SMSC sends us on the bound session: mainly
// deliver_sm (MO/DLR), and unbind (spec §4.3, §4.6).
func (c *Connector) serveSMPP(ctx *smpp.Context) {
	switch ctx.CommandID() {
	case pdu.DeliverSmID:
		d, err := ctx.DeliverSm()
		if err != nil {
			c.Logger.ErrorF("connector %s: %+v", c.Conf.Name, err)
			return
		}
		if err := ctx.Respond(d.Response(""), pdu.StatusOK); err != nil {
			c.Logger.ErrorF("connector %s: responding to deliver_sm: %+v", c.Conf.Name, err)
			return
		}
		if err := c.Reassembler.HandleDeliverSM(ctx.Context(), c.Conf.Name, d); err != nil {
			c.Logger.ErrorF("connector %s: reassembly: %+v", c.Conf.Name, err)
		}
	case pdu.EnquireLinkID:
		el, err := ctx.EnquireLink()
		if err != nil {
			return
		}
		ctx.Respond(el.Response(), pdu.StatusOK)
	case pdu.UnbindID:
		ub, err := ctx.Unbind()
		if err != nil {
			return
		}
		ctx.Respond(ub.Response(), pdu.StatusOK)
		ctx.CloseSession()
	default:
		ctx.Respond(&pdu.GenericNack{}, pdu.StatusInvCmdID)
	}
}

// enquireLinkLoop keeps the bind alive per spec §5's enquire_link timeout
// defaults, closing the session on a timed-out response (spec §7
// "Timeouts").
func (c *Connector) enquireLinkLoop(ctx context.Context, sess *smpp.Session) {
	period := c.Conf.EnquireLinkPeriod
	if period <= 0 {
		period = 30 * time.Second
	}
	t := time.NewTicker(period)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			reqCtx, cancel := context.WithTimeout(ctx, c.Conf.EnquireLinkTimeout)
			_, err := smpp.SendEnquireLink(reqCtx, sess, &pdu.EnquireLink{})
			cancel()
			if err != nil {
				c.Logger.ErrorF("connector %s: enquire_link failed, closing session: %+v", c.Conf.Name, err)
				sess.Close()
				return
			}
		}
	}
}

// consumeQueue pulls queued MT events off this connector's work queue and
// submits them PDU-by-PDU, in order, over sess (spec §4.3 "MT
// submission", §5 "Ordering guarantees").
func (c *Connector) consumeQueue(ctx context.Context, sess *smpp.Session) {
	subject := queue.ConnectorSubject(c.QueuePrefix, c.Conf.Name, c.QueueSuffix)
	prefetch := c.Conf.QueuePrefetch
	if prefetch < 1 {
		prefetch = 1
	}
	err := c.Queue.Subscribe(ctx, subject, prefetch, func(msg queue.Message) {
		c.handleWorkMessage(ctx, sess, msg)
	})
	if err != nil && ctx.Err() == nil {
		c.Logger.ErrorF("connector %s: queue consumer stopped: %+v", c.Conf.Name, err)
	}
}

func (c *Connector) handleWorkMessage(ctx context.Context, sess *smpp.Session, msg queue.Message) {
	var event gwmodel.MTEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		c.Logger.ErrorF("connector %s: dropping malformed mt event: %+v", c.Conf.Name, err)
		msg.Ack()
		return
	}
	if len(event.PDUs) == 0 {
		c.Logger.ErrorF("connector %s: dropping mt event %s: no pdus", c.Conf.Name, event.ReqID)
		msg.Ack()
		return
	}

	var lastMsgID string
	bundleComplete := false
	for i, tmpl := range event.PDUs {
		sm, err := buildSubmitSm(tmpl)
		if err != nil {
			c.Logger.ErrorF("connector %s: req %s: building pdu %d: %+v", c.Conf.Name, event.ReqID, i, err)
			break
		}
		reqCtx, cancel := context.WithTimeout(ctx, c.Conf.SubmitTimeout)
		resp, err := smpp.SendSubmitSm(reqCtx, sess, sm)
		cancel()
		if err != nil {
			c.Logger.ErrorF("connector %s: req %s: submit_sm part %d/%d failed: %+v", c.Conf.Name, event.ReqID, i+1, len(event.PDUs), err)
			if c.Metrics != nil {
				c.Metrics.SubmitFailures.WithLabelValues(c.Conf.Name).Inc()
			}
			break
		}
		if c.Metrics != nil {
			c.Metrics.SubmitsTotal.WithLabelValues(c.Conf.Name).Inc()
		}
		if i == len(event.PDUs)-1 {
			bundleComplete = true
			if resp != nil {
				lastMsgID = resp.MessageID
			}
		}
	}

	if event.DLR != nil && bundleComplete && lastMsgID != "" {
		c.storeCorrelation(ctx, event, lastMsgID)
	}
	msg.Ack()
}

// storeCorrelation persists a correlation record keyed by the SMSC's
// message_id so a later deliver_sm DLR can be matched back to this event
// (spec §3 "DLR correlation record", §4.5 "DLR request flag"). Levels 1
// and 3 additionally publish an immediate submission-accepted DLR.
func (c *Connector) storeCorrelation(ctx context.Context, event gwmodel.MTEvent, msgID string) {
	corr := gwmodel.CorrelationRecord{
		OriginalRequestID: event.ReqID,
		DLRURL:            event.DLR.URL,
		DLRMethod:         event.DLR.Method,
		DLRLevel:          event.DLR.Level,
	}
	raw, err := json.Marshal(corr)
	if err != nil {
		c.Logger.ErrorF("connector %s: marshaling dlr correlation: %+v", c.Conf.Name, err)
		return
	}
	key := fmt.Sprintf("dlr_corr:%s", msgID)
	if err := c.Store.Set(ctx, key, string(raw), c.Conf.DLRExpiry); err != nil {
		c.Logger.ErrorF("connector %s: storing dlr correlation: %+v", c.Conf.Name, err)
		return
	}

	if corr.DLRLevel != gwmodel.DLRLevelSMSCSubmit && corr.DLRLevel != gwmodel.DLRLevelBoth {
		return
	}
	immediate := gwmodel.DLREvent{
		ID:            event.ReqID,
		IDSmsc:        msgID,
		Connector:     c.Conf.Name,
		Level:         corr.DLRLevel,
		Method:        corr.DLRMethod,
		URL:           corr.DLRURL,
		MessageStatus: "ACCEPTD",
	}
	body, err := json.Marshal(immediate)
	if err != nil {
		c.Logger.ErrorF("connector %s: marshaling immediate dlr: %+v", c.Conf.Name, err)
		return
	}
	subject := queue.DLRSubject("", "")
	if err := c.Queue.Publish(ctx, subject, body, ""); err != nil {
		c.Logger.ErrorF("connector %s: publishing immediate dlr: %+v", c.Conf.Name, err)
	}
}

// connectorLogger tags every smpp.Logger line with the owning connector
// name so log lines stay attributable with many connectors running.
type connectorLogger struct {
	logger *gwlog.Logger
	name   string
}

func (l connectorLogger) InfoF(msg string, params ...interface{}) {
	l.logger.InfoF("["+l.name+"] "+msg, params...)
}

func (l connectorLogger) ErrorF(msg string, params ...interface{}) {
	l.logger.ErrorF("["+l.name+"] "+msg, params...)
}
