// Package relaywire implements the relay's wire front end: a JSON-array
// protocol carried over a websocket connection. Clients send
// ["EVENT", <event>] to publish, ["REQ", <sub-id>, <filter>...] to
// subscribe, and ["CLOSE", <sub-id>] to unsubscribe. The relay answers with
// ["OK", id, accepted, reason], ["EVENT", sub-id, <event>], ["EOSE",
// sub-id], ["CLOSED", sub-id, reason], and ["NOTICE", message].
package relaywire

import (
	"encoding/json"
	"fmt"

	"github.com/chainrelay/chainrelay/core"
)

// inbound message type labels.
const (
	typeEvent = "EVENT"
	typeReq   = "REQ"
	typeClose = "CLOSE"
)

// clientFilter is the wire shape of a single REQ filter entry; it mirrors
// sa.Filter's fields under the ecosystem's conventional wire names.
type clientFilter struct {
	IDs     []string `json:"ids,omitempty"`
	Authors []string `json:"authors,omitempty"`
	Kinds   []int    `json:"kinds,omitempty"`
	ETag    []string `json:"#e,omitempty"`
	PTag    []string `json:"#p,omitempty"`
	ATag    []string `json:"#a,omitempty"`
	DTag    []string `json:"#d,omitempty"`
	Since   *int64   `json:"since,omitempty"`
	Until   *int64   `json:"until,omitempty"`
	Limit   int      `json:"limit,omitempty"`
}

// decodeInbound splits a raw client frame into its message type and the
// remaining array elements, without fully decoding the payload: the caller
// decodes the tail according to the type.
func decodeInbound(raw []byte) (string, []json.RawMessage, error) {
	var frame []json.RawMessage
	if err := json.Unmarshal(raw, &frame); err != nil {
		return "", nil, fmt.Errorf("malformed frame: %w", err)
	}
	if len(frame) == 0 {
		return "", nil, fmt.Errorf("empty frame")
	}
	var msgType string
	if err := json.Unmarshal(frame[0], &msgType); err != nil {
		return "", nil, fmt.Errorf("frame type is not a string: %w", err)
	}
	return msgType, frame[1:], nil
}

func decodeEventFrame(tail []json.RawMessage) (*core.Event, error) {
	if len(tail) != 1 {
		return nil, fmt.Errorf("EVENT frame wants exactly one element, got %d", len(tail))
	}
	var ev core.Event
	if err := json.Unmarshal(tail[0], &ev); err != nil {
		return nil, fmt.Errorf("malformed event: %w", err)
	}
	return &ev, nil
}

func decodeReqFrame(tail []json.RawMessage) (string, []clientFilter, error) {
	if len(tail) < 1 {
		return "", nil, fmt.Errorf("REQ frame missing subscription id")
	}
	var subID string
	if err := json.Unmarshal(tail[0], &subID); err != nil {
		return "", nil, fmt.Errorf("subscription id is not a string: %w", err)
	}
	if subID == "" {
		return "", nil, fmt.Errorf("subscription id must not be empty")
	}
	filters := make([]clientFilter, 0, len(tail)-1)
	for _, raw := range tail[1:] {
		var f clientFilter
		if err := json.Unmarshal(raw, &f); err != nil {
			return "", nil, fmt.Errorf("malformed filter: %w", err)
		}
		filters = append(filters, f)
	}
	return subID, filters, nil
}

func decodeCloseFrame(tail []json.RawMessage) (string, error) {
	if len(tail) != 1 {
		return "", fmt.Errorf("CLOSE frame wants exactly one element, got %d", len(tail))
	}
	var subID string
	if err := json.Unmarshal(tail[0], &subID); err != nil {
		return "", fmt.Errorf("subscription id is not a string: %w", err)
	}
	return subID, nil
}

func encodeOK(id string, accepted bool, reason string) []byte {
	b, _ := json.Marshal([]interface{}{"OK", id, accepted, reason})
	return b
}

func encodeEvent(subID string, ev *core.Event) []byte {
	b, _ := json.Marshal([]interface{}{"EVENT", subID, ev})
	return b
}

func encodeEOSE(subID string) []byte {
	b, _ := json.Marshal([]interface{}{"EOSE", subID})
	return b
}

func encodeClosed(subID, reason string) []byte {
	b, _ := json.Marshal([]interface{}{"CLOSED", subID, reason})
	return b
}

func encodeNotice(message string) []byte {
	b, _ := json.Marshal([]interface{}{"NOTICE", message})
	return b
}
