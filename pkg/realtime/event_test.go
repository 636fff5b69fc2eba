package realtime

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestClassifyServerEvent_Exact(t *testing.T) {
	tests := []struct {
		eventType string
		family    eventFamily
	}{
		{EventTypeError, familyError},
		{EventTypeSessionCreated, familySession},
		{EventTypeSessionUpdated, familySession},
		{EventTypeConversationCreated, familyConversation},
		{EventTypeConversationItemCreated, familyItem},
		{EventTypeInputAudioBufferCommitted, familyInputAudioBuffer},
		{EventTypeInputAudioBufferSpeechStarted, familyInputAudioBuffer},
		{EventTypeResponseDone, familyResponse},
		{EventTypeResponseOutputItemAdded, familyOutputItem},
		{EventTypeResponseContentPartDone, familyContentPart},
		{EventTypeResponseTextDelta, familyTextDelta},
		{EventTypeResponseAudioDelta, familyAudioDelta},
		{EventTypeResponseAudioTranscriptDelta, familyAudioTranscript},
		{EventTypeResponseFunctionCallArgumentsDone, familyFunctionCallArgs},
		{EventTypeRateLimitsUpdated, familyRateLimits},
	}

	for _, tt := range tests {
		t.Run(tt.eventType, func(t *testing.T) {
			family, ok := classifyServerEvent(tt.eventType)
			if !ok {
				t.Fatalf("classifyServerEvent(%q) not found", tt.eventType)
			}
			if family != tt.family {
				t.Errorf("classifyServerEvent(%q) = %d, want %d", tt.eventType, family, tt.family)
			}
		})
	}
}

func TestClassifyServerEvent_PrefixOrder(t *testing.T) {
	// The audio_transcript prefix must win over the shorter audio prefix.
	tests := []struct {
		eventType string
		family    eventFamily
	}{
		{"response.audio_transcript.delta.v2", familyAudioTranscript},
		{"response.audio.delta.v2", familyAudioDelta},
		{"response.output_audio.delta", familyAudioDelta},
		{"response.output_audio_transcript.delta", familyAudioTranscript},
		{"response.output_text.delta", familyTextDelta},
		{"conversation.item.input_audio_transcription.segment", familyTranscription},
	}

	for _, tt := range tests {
		family, ok := classifyServerEvent(tt.eventType)
		if !ok {
			t.Fatalf("classifyServerEvent(%q) not found", tt.eventType)
		}
		if family != tt.family {
			t.Errorf("classifyServerEvent(%q) = %d, want %d", tt.eventType, family, tt.family)
		}
	}
}

func TestClassifyServerEvent_Unknown(t *testing.T) {
	if _, ok := classifyServerEvent("totally.unknown.event"); ok {
		t.Error("unknown type should not classify")
	}
}

func TestDecodeServerEvent(t *testing.T) {
	data := []byte(`{"type":"response.text.delta","event_id":"event_1","response_id":"resp_1","item_id":"item_1","output_index":0,"content_index":0,"delta":"Hel"}`)

	ev, err := decodeServerEvent(data)
	if err != nil {
		t.Fatalf("decodeServerEvent: %v", err)
	}
	if ev.Type != EventTypeResponseTextDelta {
		t.Errorf("Type = %q", ev.Type)
	}
	if ev.Delta != "Hel" {
		t.Errorf("Delta = %q", ev.Delta)
	}
	if ev.ItemID != "item_1" {
		t.Errorf("ItemID = %q", ev.ItemID)
	}
	if !ev.IsDelta() {
		t.Error("IsDelta() = false")
	}
	if string(ev.Raw) != string(data) {
		t.Error("Raw not preserved")
	}
}

func TestDecodeServerEvent_AudioDeltaDecodesBase64(t *testing.T) {
	// "aGVsbG8=" is base64 for "hello".
	data := []byte(`{"type":"response.audio.delta","item_id":"item_1","delta":"aGVsbG8="}`)

	ev, err := decodeServerEvent(data)
	if err != nil {
		t.Fatalf("decodeServerEvent: %v", err)
	}
	if string(ev.Audio) != "hello" {
		t.Errorf("Audio = %q, want %q", ev.Audio, "hello")
	}
}

func TestDecodeServerEvent_AudioDeltaBadBase64(t *testing.T) {
	data := []byte(`{"type":"response.audio.delta","item_id":"item_1","delta":"not!!base64"}`)

	_, err := decodeServerEvent(data)
	var malformedErr *MalformedPayloadError
	if !errors.As(err, &malformedErr) {
		t.Fatalf("err = %v, want MalformedPayloadError", err)
	}
}

func TestDecodeServerEvent_UnknownType(t *testing.T) {
	_, err := decodeServerEvent([]byte(`{"type":"totally.unknown.event"}`))
	var unknownErr *UnknownEventTypeError
	if !errors.As(err, &unknownErr) {
		t.Fatalf("err = %v, want UnknownEventTypeError", err)
	}
	if unknownErr.EventType != "totally.unknown.event" {
		t.Errorf("EventType = %q", unknownErr.EventType)
	}
}

func TestDecodeServerEvent_MalformedJSON(t *testing.T) {
	_, err := decodeServerEvent([]byte(`{"type":`))
	var malformedErr *MalformedPayloadError
	if !errors.As(err, &malformedErr) {
		t.Fatalf("err = %v, want MalformedPayloadError", err)
	}
}

func TestDecodeServerEvent_ErrorEvent(t *testing.T) {
	data := []byte(`{"type":"error","error":{"type":"invalid_request_error","code":"invalid_value","message":"bad voice","event_id":"evt_abc"}}`)

	ev, err := decodeServerEvent(data)
	if err != nil {
		t.Fatalf("decodeServerEvent: %v", err)
	}
	apiErr, ok := AsError(ev.Err())
	if !ok {
		t.Fatalf("Err() = %v, want *Error", ev.Err())
	}
	if apiErr.Code != "invalid_value" {
		t.Errorf("Code = %q", apiErr.Code)
	}
	if apiErr.EventID != "evt_abc" {
		t.Errorf("EventID = %q", apiErr.EventID)
	}
}

func TestEncodeClientEvent_TypeLiteral(t *testing.T) {
	tests := []struct {
		name  string
		event ClientEvent
		want  string
	}{
		{
			name:  "commit has only type",
			event: &InputAudioBufferCommitEvent{},
			want:  `{"type":"input_audio_buffer.commit"}`,
		},
		{
			name:  "append carries audio",
			event: &InputAudioBufferAppendEvent{Audio: "AAAA"},
			want:  `{"type":"input_audio_buffer.append","audio":"AAAA"}`,
		},
		{
			name:  "delete carries item id",
			event: &ConversationItemDeleteEvent{ItemID: "item_1"},
			want:  `{"type":"conversation.item.delete","item_id":"item_1"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := encodeClientEvent(tt.event)
			if err != nil {
				t.Fatalf("encodeClientEvent: %v", err)
			}
			if string(data) != tt.want {
				t.Errorf("got %s, want %s", data, tt.want)
			}
		})
	}
}

func TestEncodeClientEvent_TruncateAlwaysSerializesZeros(t *testing.T) {
	data, err := encodeClientEvent(&ConversationItemTruncateEvent{
		ItemID: "item_1",
	})
	if err != nil {
		t.Fatalf("encodeClientEvent: %v", err)
	}
	for _, key := range []string{`"content_index":0`, `"audio_end_ms":0`} {
		if !strings.Contains(string(data), key) {
			t.Errorf("encoded event %s missing %s", data, key)
		}
	}
}

func TestEncodeClientEvent_RoundTrip(t *testing.T) {
	temp := 0.7
	ev := &ResponseCreateEvent{
		Response: &ResponseCreateOptions{
			Modalities:   []string{ModalityText},
			Instructions: "be brief",
			Temperature:  &temp,
		},
	}
	ev.EventID = "evt_roundtrip"

	data, err := encodeClientEvent(ev)
	if err != nil {
		t.Fatalf("encodeClientEvent: %v", err)
	}

	var decoded struct {
		Type     string                 `json:"type"`
		EventID  string                 `json:"event_id"`
		Response *ResponseCreateOptions `json:"response"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.Type != EventTypeResponseCreate {
		t.Errorf("type = %q", decoded.Type)
	}
	if decoded.EventID != "evt_roundtrip" {
		t.Errorf("event_id = %q", decoded.EventID)
	}
	if decoded.Response == nil || decoded.Response.Instructions != "be brief" {
		t.Errorf("response = %+v", decoded.Response)
	}
	if decoded.Response.Temperature == nil || *decoded.Response.Temperature != 0.7 {
		t.Errorf("temperature = %v", decoded.Response.Temperature)
	}
}

func TestSessionConfig_TurnDetectionNull(t *testing.T) {
	cfg := SessionConfig{
		Voice:                 VoiceAlloy,
		TurnDetectionDisabled: true,
	}
	data, err := json.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(data), `"turn_detection":null`) {
		t.Errorf("want explicit null turn_detection, got %s", data)
	}
}

func TestSessionConfig_TurnDetectionOmittedWhenNil(t *testing.T) {
	cfg := SessionConfig{Voice: VoiceAlloy}
	data, err := json.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if strings.Contains(string(data), "turn_detection") {
		t.Errorf("turn_detection should be omitted, got %s", data)
	}
}

func TestRawEvent_Encode(t *testing.T) {
	ev := &RawEvent{
		Type:   "output_audio_buffer.clear",
		Fields: map[string]any{"event_id": "evt_raw"},
	}
	data, err := encodeClientEvent(ev)
	if err != nil {
		t.Fatalf("encodeClientEvent: %v", err)
	}
	want := `{"type":"output_audio_buffer.clear","event_id":"evt_raw"}`
	if string(data) != want {
		t.Errorf("got %s, want %s", data, want)
	}
}
