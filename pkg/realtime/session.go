package realtime

import (
	"context"
	"encoding/base64"
	"fmt"
	"iter"
	"log/slog"
	"sync"
	"time"
)

// Session is the common interface for realtime sessions. Both the
// WebSocket and WebRTC implementations share one session core and satisfy
// this interface.
type Session interface {
	// === Session Management ===

	// UpdateSession replaces the session configuration wholesale and
	// waits for the session.updated acknowledgment. The returned resource
	// is the server's negotiated state.
	UpdateSession(ctx context.Context, config *SessionConfig) (*SessionResource, error)

	// Close closes the session. All pending commands fail with a
	// connection-closed error. Idempotent.
	Close() error

	// SessionID returns the server-assigned session ID.
	SessionID() string

	// Resource returns a snapshot of the negotiated session state. The
	// snapshot is replaced atomically on session.created/updated and is
	// never partially mutated.
	Resource() *SessionResource

	// RateLimits returns the latest advisory rate limit snapshot.
	RateLimits() []RateLimit

	// === Audio Input ===

	// AppendAudio streams PCM audio into the input buffer.
	// Fire-and-forget: it neither blocks on nor receives a server
	// acknowledgment. Audio format: 24kHz 16-bit mono little-endian PCM.
	AppendAudio(audio []byte) error

	// AppendAudioBase64 streams base64-encoded audio into the input buffer.
	AppendAudioBase64(audioBase64 string) error

	// CommitInput commits the audio buffer into a user item and returns
	// the new item's ID. In server_vad mode the server commits on its own
	// after detecting end of speech.
	CommitInput(ctx context.Context) (string, error)

	// ClearInput clears the input audio buffer without creating an item.
	ClearInput(ctx context.Context) error

	// === Conversation Management ===

	// AddUserMessage appends a user text message and waits for the
	// server-created item.
	AddUserMessage(ctx context.Context, text string) (*ConversationItem, error)

	// AddUserAudio appends a user audio message. Transcript is optional.
	AddUserAudio(ctx context.Context, audioBase64, transcript string) (*ConversationItem, error)

	// AddAssistantMessage appends an assistant text message.
	AddAssistantMessage(ctx context.Context, text string) (*ConversationItem, error)

	// AddFunctionCallOutput appends a function call result.
	AddFunctionCallOutput(ctx context.Context, callID, output string) (*ConversationItem, error)

	// TruncateItem deletes the audio portion of an assistant item past
	// audioEndMs, server-confirmed.
	TruncateItem(ctx context.Context, itemID string, contentIndex, audioEndMs int) error

	// DeleteItem removes a conversation item, server-confirmed.
	DeleteItem(ctx context.Context, itemID string) error

	// === Response Control ===

	// CreateResponse asks the model to generate a response and waits for
	// the terminal response.done. In-progress response events do not
	// complete the call.
	CreateResponse(ctx context.Context, opts *ResponseCreateOptions) (*ResponseResource, error)

	// CancelResponse cancels the in-flight response. Fails if nothing is
	// in flight.
	CancelResponse(ctx context.Context, responseID string) error

	// === Generic Send ===

	// Send transmits a client event. For acknowledged event types it
	// registers a waiter before transmitting and blocks until the
	// matching terminal server event, a server error, cancellation, or
	// the call timeout. Fire-and-forget types return (nil, nil)
	// immediately after the frame is written.
	Send(ctx context.Context, event ClientEvent, opts ...SendOption) (*ServerEvent, error)

	// === Event Reception ===

	// Events returns an iterator over server events in arrival order.
	// The iterator ends when the session closes; a transport-level
	// failure is yielded as a final error. Frame-level decode failures do
	// not appear here (see OnDecodeError in the client options).
	Events() iter.Seq2[*ServerEvent, error]

	// Subscribe registers a push handler invoked synchronously for every
	// server event, in arrival order. Handlers must be fast or hand off
	// to their own goroutine. The returned func removes the handler.
	Subscribe(fn func(*ServerEvent)) (cancel func())
}

// SendOption configures one Send call.
type SendOption func(*sendOptions)

type sendOptions struct {
	timeout time.Duration
}

// WithSendTimeout overrides the per-call timeout for one Send.
func WithSendTimeout(d time.Duration) SendOption {
	return func(o *sendOptions) {
		o.timeout = d
	}
}

type eventOrError struct {
	event *ServerEvent
	err   error
}

// session is the core shared by both transports: it owns one transport,
// the correlator, the negotiated session resource, and event fan-out.
type session struct {
	client *Client
	config *ConnectConfig
	corr   *correlator

	mu         sync.Mutex
	tr         transport
	sessionID  string
	resource   *SessionResource
	rateLimits []RateLimit
	handlers   map[int]func(*ServerEvent)
	nextSub    int
	connecting bool

	eventsCh  chan eventOrError
	closeCh   chan struct{}
	closeOnce sync.Once
}

func newSession(client *Client, config *ConnectConfig) *session {
	return &session{
		client:   client,
		config:   config,
		corr:     newCorrelator(),
		handlers: make(map[int]func(*ServerEvent)),
		eventsCh: make(chan eventOrError, 100),
		closeCh:  make(chan struct{}),
	}
}

// start attaches the transport. Frames may arrive immediately afterwards.
func (s *session) start(tr transport) {
	s.mu.Lock()
	s.tr = tr
	s.mu.Unlock()
}

// waitReady blocks until the session.created handshake event arrives, an
// error event arrives, or the timeout elapses, whichever first. On
// failure the session is closed; a half-open session is never returned.
// Only one connect may be in flight per session.
func (s *session) waitReady(ctx context.Context, timeout time.Duration) error {
	s.mu.Lock()
	if s.connecting {
		s.mu.Unlock()
		return fmt.Errorf("realtime: connect already in flight")
	}
	s.connecting = true
	s.mu.Unlock()

	w, err := s.corr.register(generateEventID(), "connect", resolveOn(EventTypeSessionCreated), timeout)
	if err != nil {
		s.Close()
		return wrapError(err, "connect")
	}
	if _, err := s.corr.wait(ctx, w); err != nil {
		s.Close()
		return wrapError(err, "connect")
	}
	return nil
}

// === transportHandler ===

func (s *session) handleMessage(data []byte) {
	if slog.Default().Enabled(context.Background(), slog.LevelDebug) {
		slog.Debug("received frame", "len", len(data), "content", truncateForLog(string(data), 1000))
	}

	event, err := decodeServerEvent(data)
	if err != nil {
		// Fatal to this frame only; the receive loop keeps going.
		s.client.config.decodeErrorHandler(err)
		return
	}

	s.applyStateUpdates(event)

	// Push handlers run before the correlator settles any waiter, so a
	// subscriber registered ahead of an awaitable send is guaranteed to
	// observe the resolving event before the send returns. The iterator
	// queue comes last: a slow iterator consumer may stall the receive
	// loop, but never correlation.
	s.notifyHandlers(event)
	s.corr.dispatch(event)
	s.queueEvent(event)
}

func (s *session) handleError(err error) {
	s.corr.rejectAll(err)
	select {
	case <-s.closeCh:
	case s.eventsCh <- eventOrError{err: err}:
	}
}

func (s *session) handleClose(code int, reason string) {
	s.corr.close(&ConnectionClosedError{Code: code, Reason: reason})
	s.closeOnce.Do(func() {
		close(s.closeCh)
	})
}

// applyStateUpdates maintains the session-owned snapshots. Resources are
// swapped in whole, so readers never observe a half-updated configuration.
func (s *session) applyStateUpdates(event *ServerEvent) {
	switch event.Type {
	case EventTypeSessionCreated:
		if event.Session != nil {
			s.mu.Lock()
			s.sessionID = event.Session.ID
			s.resource = event.Session
			s.mu.Unlock()
		}
	case EventTypeSessionUpdated:
		if event.Session != nil {
			s.mu.Lock()
			s.resource = event.Session
			s.mu.Unlock()
		}
	case EventTypeRateLimitsUpdated:
		s.mu.Lock()
		s.rateLimits = event.RateLimits
		s.mu.Unlock()
	}
}

func (s *session) notifyHandlers(event *ServerEvent) {
	s.mu.Lock()
	handlers := make([]func(*ServerEvent), 0, len(s.handlers))
	for i := 0; i < s.nextSub; i++ {
		if fn, ok := s.handlers[i]; ok {
			handlers = append(handlers, fn)
		}
	}
	s.mu.Unlock()

	for _, fn := range handlers {
		fn(event)
	}
}

func (s *session) queueEvent(event *ServerEvent) {
	select {
	case <-s.closeCh:
	case s.eventsCh <- eventOrError{event: event}:
	}
}

// === Session interface ===

func (s *session) Send(ctx context.Context, event ClientEvent, opts ...SendOption) (*ServerEvent, error) {
	o := sendOptions{timeout: s.client.config.callTimeout}
	for _, opt := range opts {
		opt(&o)
	}

	eventID, data, err := s.encodeWithID(event)
	if err != nil {
		return nil, err
	}

	newRule, acknowledged := correlationRules[event.eventType()]
	if !acknowledged {
		// Fire-and-forget: no waiter, no phantom timeout.
		return nil, s.write(data)
	}

	// Register before transmitting: the reply can beat the send returning.
	w, err := s.corr.register(eventID, event.eventType(), newRule(), o.timeout)
	if err != nil {
		return nil, err
	}
	if err := s.write(data); err != nil {
		s.corr.fail(eventID, err)
		<-w.ch
		return nil, err
	}
	return s.corr.wait(ctx, w)
}

// encodeWithID serializes the event, generating an event_id when the
// caller did not set one. The event_id keys the waiter so addressed
// server errors reject exactly the offending command.
func (s *session) encodeWithID(event ClientEvent) (string, []byte, error) {
	id := event.ensureEventID(generateEventID())
	data, err := encodeClientEvent(event)
	if err != nil {
		return "", nil, err
	}
	return id, data, nil
}

func (s *session) write(data []byte) error {
	s.mu.Lock()
	tr := s.tr
	s.mu.Unlock()
	if tr == nil {
		return &ConnectionClosedError{}
	}

	if slog.Default().Enabled(context.Background(), slog.LevelDebug) {
		slog.Debug("sending frame", "content", truncateForLog(string(data), 500))
	}
	return tr.Send(data)
}

func (s *session) UpdateSession(ctx context.Context, config *SessionConfig) (*SessionResource, error) {
	ev, err := s.Send(ctx, &SessionUpdateEvent{Session: config})
	if err != nil {
		return nil, err
	}
	return ev.Session, nil
}

func (s *session) AppendAudio(audio []byte) error {
	return s.AppendAudioBase64(base64.StdEncoding.EncodeToString(audio))
}

func (s *session) AppendAudioBase64(audioBase64 string) error {
	_, err := s.Send(context.Background(), &InputAudioBufferAppendEvent{Audio: audioBase64})
	return err
}

func (s *session) CommitInput(ctx context.Context) (string, error) {
	ev, err := s.Send(ctx, &InputAudioBufferCommitEvent{})
	if err != nil {
		return "", err
	}
	return ev.ItemID, nil
}

func (s *session) ClearInput(ctx context.Context) error {
	_, err := s.Send(ctx, &InputAudioBufferClearEvent{})
	return err
}

func (s *session) createItem(ctx context.Context, item *ConversationItem) (*ConversationItem, error) {
	ev, err := s.Send(ctx, &ConversationItemCreateEvent{Item: item})
	if err != nil {
		return nil, err
	}
	return ev.Item, nil
}

func (s *session) AddUserMessage(ctx context.Context, text string) (*ConversationItem, error) {
	return s.createItem(ctx, &ConversationItem{
		Type: ItemTypeMessage,
		Role: RoleUser,
		Content: []ContentPart{
			{Type: ContentTypeInputText, Text: text},
		},
	})
}

func (s *session) AddUserAudio(ctx context.Context, audioBase64, transcript string) (*ConversationItem, error) {
	return s.createItem(ctx, &ConversationItem{
		Type: ItemTypeMessage,
		Role: RoleUser,
		Content: []ContentPart{
			{Type: ContentTypeInputAudio, Audio: audioBase64, Transcript: transcript},
		},
	})
}

func (s *session) AddAssistantMessage(ctx context.Context, text string) (*ConversationItem, error) {
	return s.createItem(ctx, &ConversationItem{
		Type: ItemTypeMessage,
		Role: RoleAssistant,
		Content: []ContentPart{
			{Type: ContentTypeText, Text: text},
		},
	})
}

func (s *session) AddFunctionCallOutput(ctx context.Context, callID, output string) (*ConversationItem, error) {
	return s.createItem(ctx, &ConversationItem{
		Type:   ItemTypeFunctionCallOutput,
		CallID: callID,
		Output: output,
	})
}

func (s *session) TruncateItem(ctx context.Context, itemID string, contentIndex, audioEndMs int) error {
	_, err := s.Send(ctx, &ConversationItemTruncateEvent{
		ItemID:       itemID,
		ContentIndex: contentIndex,
		AudioEndMs:   audioEndMs,
	})
	return err
}

func (s *session) DeleteItem(ctx context.Context, itemID string) error {
	_, err := s.Send(ctx, &ConversationItemDeleteEvent{ItemID: itemID})
	return err
}

func (s *session) CreateResponse(ctx context.Context, opts *ResponseCreateOptions) (*ResponseResource, error) {
	ev, err := s.Send(ctx, &ResponseCreateEvent{Response: opts})
	if err != nil {
		return nil, err
	}
	return ev.Response, nil
}

func (s *session) CancelResponse(ctx context.Context, responseID string) error {
	_, err := s.Send(ctx, &ResponseCancelEvent{ResponseID: responseID})
	return err
}

func (s *session) Events() iter.Seq2[*ServerEvent, error] {
	return func(yield func(*ServerEvent, error) bool) {
		for {
			select {
			case <-s.closeCh:
				// Drain what was queued before the close, then stop.
				for {
					select {
					case item := <-s.eventsCh:
						if !yield(item.event, item.err) {
							return
						}
						if item.err != nil {
							return
						}
					default:
						return
					}
				}
			case item := <-s.eventsCh:
				if !yield(item.event, item.err) {
					return
				}
				if item.err != nil {
					return
				}
			}
		}
	}
}

func (s *session) Subscribe(fn func(*ServerEvent)) (cancel func()) {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.handlers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.handlers, id)
		s.mu.Unlock()
	}
}

func (s *session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.closeCh)
		s.corr.close(&ConnectionClosedError{})
		s.mu.Lock()
		tr := s.tr
		s.mu.Unlock()
		if tr != nil {
			err = tr.Close()
		}
	})
	return err
}

func (s *session) SessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionID
}

func (s *session) Resource() *SessionResource {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resource
}

func (s *session) RateLimits() []RateLimit {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rateLimits
}

func truncateForLog(s string, max int) string {
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}

// CollectResponse subscribes an accumulator, triggers a response, and
// returns the accumulator once the response reaches a terminal state. The
// subscription is registered before response.create is sent, so no delta
// can slip past it.
func CollectResponse(ctx context.Context, s Session, opts *ResponseCreateOptions) (*ResponseResource, *ResponseAccumulator, error) {
	acc := NewResponseAccumulator()
	cancel := s.Subscribe(acc.Feed)
	defer cancel()

	resp, err := s.CreateResponse(ctx, opts)
	if err != nil {
		return nil, nil, err
	}
	return resp, acc, nil
}
