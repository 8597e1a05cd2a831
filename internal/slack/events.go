package slack

import (
	"encoding/json"

	"github.com/chilltask/internal/faults"
)

// Event is the closed set of inbound Slack webhook payloads ChillTask
// recognizes. Anything else is rejected at decode time instead of
// being poked at deep inside business logic.
type Event interface {
	eventType() string
}

// URLVerification is Slack's one-time handshake. The challenge must be
// echoed back verbatim.
type URLVerification struct {
	Challenge string `json:"challenge"`
}

func (URLVerification) eventType() string { return "url_verification" }

// MessageEvent is a message posted to a channel the app is in.
type MessageEvent struct {
	Channel string `json:"channel"`
	Message
	EventTs string `json:"event_ts"`
}

func (MessageEvent) eventType() string { return "message" }

type envelope struct {
	Type  string          `json:"type"`
	Event json.RawMessage `json:"event"`
}

type innerEvent struct {
	Type string `json:"type"`
	MessageEvent
}

// DecodeEvent parses a raw Slack webhook body into one of the
// recognized event variants. Unrecognized shapes fail with a
// validation fault so the handler can answer 400 early.
func DecodeEvent(body []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, faults.Validation("malformed slack payload: %v", err)
	}

	switch env.Type {
	case "url_verification":
		var v URLVerification
		if err := json.Unmarshal(body, &v); err != nil || v.Challenge == "" {
			return nil, faults.Validation("url_verification payload missing challenge")
		}
		return v, nil

	case "event_callback":
		if len(env.Event) == 0 {
			return nil, faults.Validation("event_callback payload missing event")
		}
		var inner innerEvent
		if err := json.Unmarshal(env.Event, &inner); err != nil {
			return nil, faults.Validation("malformed inner event: %v", err)
		}
		if inner.Type != "message" {
			return nil, faults.Validation("unrecognized event type %q", inner.Type)
		}
		ev := inner.MessageEvent
		if ev.Channel == "" || ev.Ts == "" {
			return nil, faults.Validation("message event missing channel or ts")
		}
		return ev, nil

	case "":
		return nil, faults.Validation("slack payload missing type")

	default:
		return nil, faults.Validation("unrecognized slack payload type %q", env.Type)
	}
}
