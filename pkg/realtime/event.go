package realtime

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// Client event types (sent from client to server).
const (
	// Session events
	EventTypeSessionUpdate = "session.update"

	// Input audio buffer events
	EventTypeInputAudioBufferAppend = "input_audio_buffer.append"
	EventTypeInputAudioBufferCommit = "input_audio_buffer.commit"
	EventTypeInputAudioBufferClear  = "input_audio_buffer.clear"

	// Conversation item events
	EventTypeConversationItemCreate   = "conversation.item.create"
	EventTypeConversationItemTruncate = "conversation.item.truncate"
	EventTypeConversationItemDelete   = "conversation.item.delete"

	// Response events
	EventTypeResponseCreate = "response.create"
	EventTypeResponseCancel = "response.cancel"
)

// Server event types (sent from server to client).
const (
	// Error event
	EventTypeError = "error"

	// Session events
	EventTypeSessionCreated = "session.created"
	EventTypeSessionUpdated = "session.updated"

	// Conversation events
	EventTypeConversationCreated     = "conversation.created"
	EventTypeConversationItemCreated = "conversation.item.created"
	EventTypeConversationItemInputAudioTranscriptionCompleted = "conversation.item.input_audio_transcription.completed"
	EventTypeConversationItemInputAudioTranscriptionDelta     = "conversation.item.input_audio_transcription.delta"
	EventTypeConversationItemInputAudioTranscriptionFailed    = "conversation.item.input_audio_transcription.failed"
	EventTypeConversationItemTruncated = "conversation.item.truncated"
	EventTypeConversationItemDeleted   = "conversation.item.deleted"

	// Input audio buffer events
	EventTypeInputAudioBufferCommitted     = "input_audio_buffer.committed"
	EventTypeInputAudioBufferCleared       = "input_audio_buffer.cleared"
	EventTypeInputAudioBufferSpeechStarted = "input_audio_buffer.speech_started"
	EventTypeInputAudioBufferSpeechStopped = "input_audio_buffer.speech_stopped"

	// Response events
	EventTypeResponseCreated          = "response.created"
	EventTypeResponseDone             = "response.done"
	EventTypeResponseOutputItemAdded  = "response.output_item.added"
	EventTypeResponseOutputItemDone   = "response.output_item.done"
	EventTypeResponseContentPartAdded = "response.content_part.added"
	EventTypeResponseContentPartDone  = "response.content_part.done"

	// Response text events
	EventTypeResponseTextDelta = "response.text.delta"
	EventTypeResponseTextDone  = "response.text.done"

	// Response audio events
	EventTypeResponseAudioDelta = "response.audio.delta"
	EventTypeResponseAudioDone  = "response.audio.done"

	// Response audio transcript events
	EventTypeResponseAudioTranscriptDelta = "response.audio_transcript.delta"
	EventTypeResponseAudioTranscriptDone  = "response.audio_transcript.done"

	// Response function call events
	EventTypeResponseFunctionCallArgumentsDelta = "response.function_call_arguments.delta"
	EventTypeResponseFunctionCallArgumentsDone  = "response.function_call_arguments.done"

	// Rate limits event
	EventTypeRateLimitsUpdated = "rate_limits.updated"
)

// eventFamily classifies a server event for decode and dispatch decisions.
type eventFamily int

const (
	familyNone eventFamily = iota
	familyError
	familySession
	familyConversation
	familyItem
	familyTranscription
	familyInputAudioBuffer
	familyResponse
	familyOutputItem
	familyContentPart
	familyTextDelta
	familyAudioDelta
	familyAudioTranscript
	familyFunctionCallArgs
	familyRateLimits
)

// exactEventFamilies is the event catalog: every recognized server event
// type maps to its family.
var exactEventFamilies = map[string]eventFamily{
	EventTypeError: familyError,

	EventTypeSessionCreated: familySession,
	EventTypeSessionUpdated: familySession,

	EventTypeConversationCreated: familyConversation,

	EventTypeConversationItemCreated:   familyItem,
	EventTypeConversationItemTruncated: familyItem,
	EventTypeConversationItemDeleted:   familyItem,

	EventTypeConversationItemInputAudioTranscriptionCompleted: familyTranscription,
	EventTypeConversationItemInputAudioTranscriptionDelta:     familyTranscription,
	EventTypeConversationItemInputAudioTranscriptionFailed:    familyTranscription,

	EventTypeInputAudioBufferCommitted:     familyInputAudioBuffer,
	EventTypeInputAudioBufferCleared:       familyInputAudioBuffer,
	EventTypeInputAudioBufferSpeechStarted: familyInputAudioBuffer,
	EventTypeInputAudioBufferSpeechStopped: familyInputAudioBuffer,

	EventTypeResponseCreated: familyResponse,
	EventTypeResponseDone:    familyResponse,

	EventTypeResponseOutputItemAdded: familyOutputItem,
	EventTypeResponseOutputItemDone:  familyOutputItem,

	EventTypeResponseContentPartAdded: familyContentPart,
	EventTypeResponseContentPartDone:  familyContentPart,

	EventTypeResponseTextDelta: familyTextDelta,
	EventTypeResponseTextDone:  familyTextDelta,

	EventTypeResponseAudioDelta: familyAudioDelta,
	EventTypeResponseAudioDone:  familyAudioDelta,

	EventTypeResponseAudioTranscriptDelta: familyAudioTranscript,
	EventTypeResponseAudioTranscriptDone:  familyAudioTranscript,

	EventTypeResponseFunctionCallArgumentsDelta: familyFunctionCallArgs,
	EventTypeResponseFunctionCallArgumentsDone:  familyFunctionCallArgs,

	EventTypeRateLimitsUpdated: familyRateLimits,
}

// prefixEventFamilies maps namespace families the service has renamed
// across API revisions (e.g. "response.output_audio.delta"). Rules are
// tried in order, most specific first, so that "response.audio_transcript"
// is never masked by "response.audio".
var prefixEventFamilies = []struct {
	prefix string
	family eventFamily
}{
	{"conversation.item.input_audio_transcription.", familyTranscription},
	{"response.output_audio_transcript.", familyAudioTranscript},
	{"response.output_audio.", familyAudioDelta},
	{"response.output_text.", familyTextDelta},
	{"response.audio_transcript", familyAudioTranscript},
	{"response.audio", familyAudioDelta},
}

// classifyServerEvent resolves an event type string against the catalog:
// exact matches first, then the ordered prefix rules.
func classifyServerEvent(eventType string) (eventFamily, bool) {
	if f, ok := exactEventFamilies[eventType]; ok {
		return f, true
	}
	for _, rule := range prefixEventFamilies {
		if strings.HasPrefix(eventType, rule.prefix) {
			return rule.family, true
		}
	}
	return familyNone, false
}

// ServerEvent represents a server event received from the Realtime API.
// It is a flat union: which fields are populated depends on Type.
type ServerEvent struct {
	// Type is the event type.
	Type string `json:"type"`

	// EventID is the unique identifier for this event.
	EventID string `json:"event_id,omitzero"`

	// Session contains session state (session.created, session.updated).
	Session *SessionResource `json:"session,omitzero"`

	// Conversation contains conversation info (conversation.created).
	Conversation *ConversationResource `json:"conversation,omitzero"`

	// Item contains a conversation item (conversation.item.* events,
	// response.output_item.*).
	Item *ConversationItem `json:"item,omitzero"`

	// PreviousItemID is the ID of the previous item
	// (input_audio_buffer.committed, conversation.item.created).
	PreviousItemID string `json:"previous_item_id,omitzero"`

	// ItemID is the ID of the item (various events).
	ItemID string `json:"item_id,omitzero"`

	// AudioStartMs is the speech start time in ms (speech_started).
	AudioStartMs int `json:"audio_start_ms,omitzero"`

	// AudioEndMs is the speech end time in ms (speech_stopped, truncated).
	AudioEndMs int `json:"audio_end_ms,omitzero"`

	// Transcript is the transcription text.
	Transcript string `json:"transcript,omitzero"`

	// ContentIndex is the index of the content part.
	ContentIndex int `json:"content_index,omitzero"`

	// ErrorDetail carries the error payload of "error" events and
	// transcription failures.
	ErrorDetail *EventError `json:"error,omitzero"`

	// Response contains response state (response.created, response.done).
	Response *ResponseResource `json:"response,omitzero"`

	// ResponseID is the response identifier.
	ResponseID string `json:"response_id,omitzero"`

	// OutputIndex is the index of the output item.
	OutputIndex int `json:"output_index,omitzero"`

	// Part contains content part information (response.content_part.*).
	Part *ContentPart `json:"part,omitzero"`

	// Delta contains an incremental fragment (*.delta events). For audio
	// deltas this is base64; see Audio.
	Delta string `json:"delta,omitzero"`

	// Text is the complete text (response.text.done).
	Text string `json:"text,omitzero"`

	// Audio contains decoded audio bytes, populated while parsing audio
	// delta events.
	Audio []byte `json:"-"`

	// CallID is the function call ID.
	CallID string `json:"call_id,omitzero"`

	// Name is the function name.
	Name string `json:"name,omitzero"`

	// Arguments is the complete function arguments
	// (response.function_call_arguments.done).
	Arguments string `json:"arguments,omitzero"`

	// RateLimits contains rate limit snapshots (rate_limits.updated).
	RateLimits []RateLimit `json:"rate_limits,omitzero"`

	// Raw contains the original JSON frame.
	Raw []byte `json:"-"`

	family eventFamily
}

// Family-level predicates used by the correlator and accumulator.

// IsDelta reports whether the event is a streamed fragment.
func (e *ServerEvent) IsDelta() bool {
	switch e.family {
	case familyTextDelta, familyAudioDelta, familyAudioTranscript, familyFunctionCallArgs:
		return strings.HasSuffix(e.Type, ".delta")
	}
	return false
}

// Err returns the event's error payload as an error, or nil.
func (e *ServerEvent) Err() error {
	if e.ErrorDetail == nil {
		return nil
	}
	return e.ErrorDetail.ToError()
}

// decodeServerEvent decodes one text frame into exactly one server event.
// The type discriminator is resolved against the catalog before the full
// payload is unmarshaled; an unrecognized discriminator is a hard decode
// failure so that the correlator never desynchronizes on silently dropped
// events.
func decodeServerEvent(data []byte) (*ServerEvent, error) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, &MalformedPayloadError{Raw: data, Err: err}
	}

	family, ok := classifyServerEvent(envelope.Type)
	if !ok {
		return nil, &UnknownEventTypeError{EventType: envelope.Type, Raw: data}
	}

	var event ServerEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, &MalformedPayloadError{Raw: data, Err: err}
	}
	event.Raw = data
	event.family = family

	// Audio deltas carry base64 in the "delta" field.
	if family == familyAudioDelta && event.Delta != "" {
		decoded, err := base64.StdEncoding.DecodeString(event.Delta)
		if err != nil {
			return nil, &MalformedPayloadError{Raw: data, Err: fmt.Errorf("decode audio delta: %w", err)}
		}
		event.Audio = decoded
	}

	return &event, nil
}
