package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
)

const (
	testAPIKey         = "test-key"
	testEphemeralToken = "eph_secret"
)

// newRealtimeTestServer runs a minimal realtime endpoint: a /sessions
// bootstrap that mints an ephemeral credential and a /ws endpoint that
// completes the handshake and answers a few commands.
func newRealtimeTestServer(t *testing.T) *Client {
	t.Helper()

	upgrader := websocket.Upgrader{}
	mux := http.NewServeMux()

	mux.HandleFunc("/sessions", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if r.Header.Get("Authorization") != "Bearer "+testAPIKey {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]any{
				"error": map[string]any{"type": "invalid_request_error", "code": "invalid_api_key", "message": "bad key"},
			})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"id":            "sess_boot",
			"model":         ModelGPT4oRealtimePreview,
			"client_secret": map[string]any{"value": testEphemeralToken, "expires_at": 1900000000},
		})
	})

	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+testEphemeralToken {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if r.Header.Get("OpenAI-Beta") != "realtime=v1" {
			http.Error(w, "missing beta header", http.StatusBadRequest)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		conn.WriteJSON(map[string]any{
			"type":    "session.created",
			"session": map[string]any{"id": "sess_ws", "model": r.URL.Query().Get("model"), "voice": "alloy"},
		})

		for {
			var frame map[string]any
			if err := conn.ReadJSON(&frame); err != nil {
				return
			}
			switch frame["type"] {
			case EventTypeSessionUpdate:
				session, _ := frame["session"].(map[string]any)
				session["id"] = "sess_ws"
				conn.WriteJSON(map[string]any{"type": EventTypeSessionUpdated, "session": session})
			case EventTypeInputAudioBufferCommit:
				conn.WriteJSON(map[string]any{"type": EventTypeInputAudioBufferCommitted, "item_id": "item_audio"})
			case EventTypeResponseCreate:
				conn.WriteJSON(map[string]any{
					"type":     EventTypeResponseCreated,
					"response": map[string]any{"id": "resp_1", "status": "in_progress"},
				})
				conn.WriteJSON(map[string]any{
					"type": EventTypeResponseTextDelta, "item_id": "item_1", "content_index": 0, "delta": "pong",
				})
				conn.WriteJSON(map[string]any{
					"type":     EventTypeResponseDone,
					"response": map[string]any{"id": "resp_1", "status": "completed"},
				})
			}
		}
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return NewClient(testAPIKey,
		WithHTTPURL(srv.URL),
		WithWebSocketURL("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws"),
	)
}

func TestConnectWebSocket(t *testing.T) {
	client := newRealtimeTestServer(t)

	s, err := client.ConnectWebSocket(context.Background(), &ConnectConfig{Model: ModelGPT4oRealtimePreview})
	if err != nil {
		t.Fatalf("ConnectWebSocket: %v", err)
	}
	defer s.Close()

	if s.SessionID() != "sess_ws" {
		t.Errorf("SessionID = %q", s.SessionID())
	}
	if res := s.Resource(); res == nil || res.Model != ModelGPT4oRealtimePreview {
		t.Errorf("Resource = %+v", res)
	}
}

func TestWebSocketSession_RoundTrips(t *testing.T) {
	client := newRealtimeTestServer(t)

	s, err := client.ConnectWebSocket(context.Background(), nil)
	if err != nil {
		t.Fatalf("ConnectWebSocket: %v", err)
	}
	defer s.Close()

	ctx := context.Background()

	res, err := s.UpdateSession(ctx, &SessionConfig{Voice: VoiceEcho})
	if err != nil {
		t.Fatalf("UpdateSession: %v", err)
	}
	if res.Voice != VoiceEcho {
		t.Errorf("Voice = %q", res.Voice)
	}

	itemID, err := s.CommitInput(ctx)
	if err != nil {
		t.Fatalf("CommitInput: %v", err)
	}
	if itemID != "item_audio" {
		t.Errorf("itemID = %q", itemID)
	}

	resp, acc, err := CollectResponse(ctx, s, nil)
	if err != nil {
		t.Fatalf("CollectResponse: %v", err)
	}
	if resp.Status != ResponseStatusCompleted {
		t.Errorf("Status = %q", resp.Status)
	}
	if got := acc.Text("item_1", 0); got != "pong" {
		t.Errorf("accumulated text = %q", got)
	}
}

func TestWebSocketSession_SendAfterCloseFailsFast(t *testing.T) {
	client := newRealtimeTestServer(t)

	s, err := client.ConnectWebSocket(context.Background(), nil)
	if err != nil {
		t.Fatalf("ConnectWebSocket: %v", err)
	}
	s.Close()

	err = s.AppendAudio([]byte("pcm"))
	var connErr *ConnectionClosedError
	if !errors.As(err, &connErr) {
		t.Fatalf("err = %v, want ConnectionClosedError", err)
	}
}

func TestCreateEphemeralToken(t *testing.T) {
	client := newRealtimeTestServer(t)

	token, err := client.CreateEphemeralToken(context.Background(), nil)
	if err != nil {
		t.Fatalf("CreateEphemeralToken: %v", err)
	}
	if token.Value != testEphemeralToken {
		t.Errorf("Value = %q", token.Value)
	}
	if token.SessionID != "sess_boot" {
		t.Errorf("SessionID = %q", token.SessionID)
	}
}

func TestCreateEphemeralToken_AuthError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"type": "invalid_request_error", "code": "invalid_api_key", "message": "bad key"},
		})
	}))
	defer srv.Close()

	client := NewClient("wrong-key", WithHTTPURL(srv.URL))
	_, err := client.CreateEphemeralToken(context.Background(), nil)

	apiErr, ok := AsError(err)
	if !ok {
		t.Fatalf("err = %v, want *Error", err)
	}
	if !apiErr.IsAuthError() {
		t.Errorf("IsAuthError() = false for %+v", apiErr)
	}
}

func TestCreateEphemeralToken_MissingClientSecret(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"id": "sess_boot"})
	}))
	defer srv.Close()

	client := NewClient(testAPIKey, WithHTTPURL(srv.URL))
	_, err := client.CreateEphemeralToken(context.Background(), nil)

	apiErr, ok := AsError(err)
	if !ok || apiErr.Code != "missing_client_secret" {
		t.Fatalf("err = %v", err)
	}
}
