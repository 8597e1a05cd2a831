package slack

// Message is a single Slack channel message. The provider timestamp
// doubles as the message id within a channel.
type Message struct {
	Ts       string `json:"ts"`
	User     string `json:"user"`
	Text     string `json:"text"`
	ThreadTs string `json:"thread_ts,omitempty"`
	Subtype  string `json:"subtype,omitempty"`

	// Call carries huddle/call metadata when the message marks a call.
	Call *CallInfo `json:"call,omitempty"`
}

// ThreadKey returns the identifier grouping a reply chain: the parent
// timestamp for replies, the message's own timestamp otherwise.
func (m Message) ThreadKey() string {
	if m.ThreadTs != "" {
		return m.ThreadTs
	}
	return m.Ts
}

// IsCall reports whether the message marks a call or huddle.
func (m Message) IsCall() bool {
	return m.Call != nil || m.Subtype == "huddle_thread"
}

// CallInfo describes a call or huddle attached to a message.
type CallInfo struct {
	DurationSeconds int               `json:"duration_seconds"`
	Participants    []string          `json:"participants"`
	Transcript      []TranscriptEntry `json:"transcript,omitempty"`
}

// TranscriptEntry is one utterance in a call transcript.
type TranscriptEntry struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}
