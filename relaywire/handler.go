package relaywire

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"

	"github.com/chainrelay/chainrelay/metrics"
	"github.com/chainrelay/chainrelay/sa"
	"github.com/chainrelay/chainrelay/verifier"
)

// handler holds the dependencies shared by every connection: the admission
// pipeline, the store (for REQ backlog queries), and the registry used to
// fan out newly accepted events to other connections' live subscriptions.
type handler struct {
	dispatcher      *verifier.Dispatcher
	store           *sa.Store
	registry        *registry
	log             zerolog.Logger
	scope           metrics.Scope
	maxMessageBytes int64
}

// handleFrame decodes one client frame and dispatches it by message type.
// A malformed frame produces a NOTICE and the connection stays open;
// per-frame panics are recovered so one bad message cannot take down the
// read loop or the process.
func (h *handler) handleFrame(ctx context.Context, c *conn, raw []byte) {
	defer func() {
		if r := recover(); r != nil {
			h.log.Error().Interface("panic", r).Msg("recovered panic handling client frame")
			c.send(encodeNotice("error: internal error processing message"))
		}
	}()

	h.scope.Inc("messages_in", 1)
	msgType, tail, err := decodeInbound(raw)
	if err != nil {
		c.send(encodeNotice("error: " + err.Error()))
		return
	}

	switch msgType {
	case typeEvent:
		h.handleEvent(ctx, c, tail)
	case typeReq:
		h.handleReq(c, tail)
	case typeClose:
		h.handleClose(c, tail)
	default:
		c.send(encodeNotice("error: unknown message type " + msgType))
	}
}

// handleEvent admits ev via the dispatcher, answers with OK, and — if
// accepted — fans it out to every connection's matching live subscriptions.
func (h *handler) handleEvent(ctx context.Context, c *conn, tail []json.RawMessage) {
	ev, err := decodeEventFrame(tail)
	if err != nil {
		c.send(encodeNotice("error: " + err.Error()))
		return
	}
	accepted, reason := h.dispatcher.Admit(ctx, ev)
	c.send(encodeOK(ev.ID, accepted, reason))
	if accepted {
		h.registry.broadcast(ev)
	}
}

// handleReq registers a subscription and serves its initial backlog from
// the store, terminated by EOSE.
func (h *handler) handleReq(c *conn, tail []json.RawMessage) {
	subID, filters, err := decodeReqFrame(tail)
	if err != nil {
		c.send(encodeNotice("error: " + err.Error()))
		return
	}
	subID = normalizeSubID(subID)

	if !c.setSub(subID, filters) {
		c.send(encodeClosed(subID, "error: too many open subscriptions"))
		return
	}

	for _, f := range filters {
		events, err := h.store.Query(toStoreFilter(f))
		if err != nil {
			h.log.Error().Err(err).Str("sub", subID).Msg("backlog query failed")
			continue
		}
		for _, ev := range events {
			c.send(encodeEvent(subID, ev))
		}
	}
	c.send(encodeEOSE(subID))
}

func (h *handler) handleClose(c *conn, tail []json.RawMessage) {
	subID, err := decodeCloseFrame(tail)
	if err != nil {
		c.send(encodeNotice("error: " + err.Error()))
		return
	}
	c.dropSub(normalizeSubID(subID))
}
