package api

import (
	"encoding/json"
	"time"
)

// StopReason explains why the model stopped generating.
type StopReason string

const (
	StopReasonStop          StopReason = "stop"
	StopReasonMaxTokens     StopReason = "max_tokens"
	StopReasonToolCalls     StopReason = "tool_calls"
	StopReasonContentFilter StopReason = "content_filter"
	StopReasonUnknown       StopReason = "unknown"
)

// ChatCompletionChoice is one candidate completion.
type ChatCompletionChoice struct {
	Message    ChatMessage `json:"message"`
	StopReason StopReason  `json:"stop_reason"`
}

// ModelUsage holds token counts reported by the backend.
type ModelUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// ModelOutput is the result of a successful generate call.
type ModelOutput struct {
	Model   string                 `json:"model"`
	Choices []ChatCompletionChoice `json:"choices"`
	Usage   *ModelUsage            `json:"usage,omitempty"`
}

// Message returns the first choice's message.
func (o *ModelOutput) Message() ChatMessage {
	if o == nil || len(o.Choices) == 0 {
		return ChatMessage{Role: RoleAssistant}
	}
	return o.Choices[0].Message
}

// Completion returns the first choice's text.
func (o *ModelOutput) Completion() string {
	return o.Message().Content
}

// StopReason returns the first choice's stop reason.
func (o *ModelOutput) StopReason() StopReason {
	if o == nil || len(o.Choices) == 0 {
		return StopReasonUnknown
	}
	return o.Choices[0].StopReason
}

// ModelCall is the audit record of one network interaction with a backend:
// the exact request body sent, the exact response body received, and the
// wall-clock duration of that single round trip.
//
// ModelCall values are created once by an adapter and never modified
// afterwards. Use the accessor methods; the fields are unexported so a
// consumer holding a *ModelCall cannot alter the record.
type ModelCall struct {
	id       string
	request  json.RawMessage
	response json.RawMessage
	elapsed  time.Duration
	created  time.Time
}

// NewModelCall builds a ModelCall. request and response are stored as JSON:
// []byte and json.RawMessage values are kept verbatim, anything else is
// marshaled.
func NewModelCall(request, response any, elapsed time.Duration) *ModelCall {
	if elapsed < 0 {
		elapsed = 0
	}
	return &ModelCall{
		id:       NewCallID(),
		request:  toRawJSON(request),
		response: toRawJSON(response),
		elapsed:  elapsed,
		created:  time.Now().UTC(),
	}
}

// RestoreModelCall rebuilds a ModelCall from persisted fields.
func RestoreModelCall(id string, request, response json.RawMessage, elapsed time.Duration, created time.Time) *ModelCall {
	return &ModelCall{id: id, request: request, response: response, elapsed: elapsed, created: created}
}

// ID returns the call identifier.
func (c *ModelCall) ID() string { return c.id }

// Request returns a copy of the request body.
func (c *ModelCall) Request() json.RawMessage { return cloneRaw(c.request) }

// Response returns a copy of the response body. It is empty when the call
// failed before a response arrived.
func (c *ModelCall) Response() json.RawMessage { return cloneRaw(c.response) }

// Time returns the elapsed round-trip time.
func (c *ModelCall) Time() time.Duration { return c.elapsed }

// CreatedAt returns when the record was made.
func (c *ModelCall) CreatedAt() time.Time { return c.created }

// MarshalJSON encodes the record for logging.
func (c *ModelCall) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID        string          `json:"id"`
		Request   json.RawMessage `json:"request,omitempty"`
		Response  json.RawMessage `json:"response,omitempty"`
		Time      float64         `json:"time"`
		CreatedAt time.Time       `json:"created_at"`
	}{c.id, c.request, c.response, c.elapsed.Seconds(), c.created})
}

func toRawJSON(v any) json.RawMessage {
	switch b := v.(type) {
	case nil:
		return nil
	case json.RawMessage:
		return cloneRaw(b)
	case []byte:
		if len(b) == 0 {
			return nil
		}
		if json.Valid(b) {
			return cloneRaw(b)
		}
		data, _ := json.Marshal(string(b))
		return data
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return data
}

func cloneRaw(b []byte) json.RawMessage {
	if b == nil {
		return nil
	}
	out := make(json.RawMessage, len(b))
	copy(out, b)
	return out
}
