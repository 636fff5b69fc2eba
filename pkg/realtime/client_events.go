package realtime

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// ClientEvent is an event sent from client to server. Every implementation
// serializes its own fixed "type" literal plus its fields.
type ClientEvent interface {
	eventType() string
	ensureEventID(id string) string
}

// generateEventID generates a unique client event ID.
func generateEventID() string {
	return "evt_" + uuid.New().String()[:12]
}

// EventHeader carries the client-assigned event ID common to all client
// events. The server echoes it in addressed error events.
type EventHeader struct {
	EventID string `json:"event_id,omitzero"`
}

// ensureEventID fills in a generated ID when the caller did not set one
// and returns the effective ID.
func (h *EventHeader) ensureEventID(id string) string {
	if h.EventID == "" {
		h.EventID = id
	}
	return h.EventID
}

// encodeClientEvent serializes a client event, injecting the fixed type
// literal ahead of the event's own fields. Per-field omission policies
// (omit-on-zero vs. explicit null, see SessionConfig.MarshalJSON) are the
// responsibility of each event's own marshaling.
func encodeClientEvent(event ClientEvent) ([]byte, error) {
	fields, err := json.Marshal(event)
	if err != nil {
		return nil, wrapError(err, "encode client event")
	}
	if len(fields) < 2 || fields[0] != '{' {
		return nil, fmt.Errorf("encode client event: %s did not marshal to an object", event.eventType())
	}

	var buf bytes.Buffer
	buf.Grow(len(fields) + len(event.eventType()) + 16)
	buf.WriteString(`{"type":`)
	typeLit, _ := json.Marshal(event.eventType())
	buf.Write(typeLit)
	if !bytes.Equal(fields, []byte("{}")) {
		buf.WriteByte(',')
		buf.Write(fields[1 : len(fields)-1])
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// SessionUpdateEvent requests a wholesale session configuration update.
// Acknowledged by session.updated.
type SessionUpdateEvent struct {
	EventHeader
	Session *SessionConfig `json:"session"`
}

func (*SessionUpdateEvent) eventType() string { return EventTypeSessionUpdate }

// InputAudioBufferAppendEvent streams one chunk of base64 input audio.
// Fire-and-forget: the server never acknowledges appends.
type InputAudioBufferAppendEvent struct {
	EventHeader
	Audio string `json:"audio"`
}

func (*InputAudioBufferAppendEvent) eventType() string { return EventTypeInputAudioBufferAppend }

// InputAudioBufferCommitEvent commits the input buffer into a user item.
// Acknowledged by input_audio_buffer.committed.
type InputAudioBufferCommitEvent struct {
	EventHeader
}

func (*InputAudioBufferCommitEvent) eventType() string { return EventTypeInputAudioBufferCommit }

// InputAudioBufferClearEvent discards the input buffer.
// Acknowledged by input_audio_buffer.cleared.
type InputAudioBufferClearEvent struct {
	EventHeader
}

func (*InputAudioBufferClearEvent) eventType() string { return EventTypeInputAudioBufferClear }

// ConversationItemCreateEvent appends an item to the conversation.
// Acknowledged by conversation.item.created.
type ConversationItemCreateEvent struct {
	EventHeader
	PreviousItemID string            `json:"previous_item_id,omitzero"`
	Item           *ConversationItem `json:"item"`
}

func (*ConversationItemCreateEvent) eventType() string { return EventTypeConversationItemCreate }

// ConversationItemTruncateEvent removes audio past a point from an
// assistant item. ContentIndex and AudioEndMs are always serialized, even
// when zero; the server requires both keys.
// Acknowledged by conversation.item.truncated.
type ConversationItemTruncateEvent struct {
	EventHeader
	ItemID       string `json:"item_id"`
	ContentIndex int    `json:"content_index"`
	AudioEndMs   int    `json:"audio_end_ms"`
}

func (*ConversationItemTruncateEvent) eventType() string { return EventTypeConversationItemTruncate }

// ConversationItemDeleteEvent removes an item from the conversation.
// Acknowledged by conversation.item.deleted.
type ConversationItemDeleteEvent struct {
	EventHeader
	ItemID string `json:"item_id"`
}

func (*ConversationItemDeleteEvent) eventType() string { return EventTypeConversationItemDelete }

// ResponseCreateEvent asks the model to generate a response. Satisfied
// only by a response.done whose status has left in_progress.
type ResponseCreateEvent struct {
	EventHeader
	Response *ResponseCreateOptions `json:"response,omitzero"`
}

func (*ResponseCreateEvent) eventType() string { return EventTypeResponseCreate }

// ResponseCancelEvent cancels an in-progress response. Resolves when the
// response reaches a terminal state; the server rejects the cancel if
// nothing is in flight.
type ResponseCancelEvent struct {
	EventHeader
	ResponseID string `json:"response_id,omitzero"`
}

func (*ResponseCancelEvent) eventType() string { return EventTypeResponseCancel }

// RawEvent sends an arbitrary event map for types not covered by the
// typed events. Fields must not contain a "type" key of its own.
type RawEvent struct {
	Type   string
	Fields map[string]any
}

func (e *RawEvent) eventType() string { return e.Type }

func (e *RawEvent) ensureEventID(id string) string {
	if e.Fields == nil {
		e.Fields = make(map[string]any)
	}
	if existing, ok := e.Fields["event_id"].(string); ok && existing != "" {
		return existing
	}
	e.Fields["event_id"] = id
	return id
}

// MarshalJSON serializes only the fields; the type literal is injected by
// encodeClientEvent.
func (e *RawEvent) MarshalJSON() ([]byte, error) {
	if e.Fields == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(e.Fields)
}
