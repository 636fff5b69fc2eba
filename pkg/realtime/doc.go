// Package realtime provides a client for a realtime speech-to-speech API.
//
// The Realtime API enables low-latency, multimodal conversations over a
// single persistent connection. It supports both WebSocket and WebRTC
// transports; both share one session core, so commands, correlation, and
// delta accumulation behave identically on either.
//
// # Connection Modes
//
// WebSocket mode is suitable for server-side applications:
//
//	client := realtime.NewClient(apiKey)
//	session, err := client.ConnectWebSocket(ctx, &realtime.ConnectConfig{
//	    Model: realtime.ModelGPT4oRealtimePreview,
//	})
//	if err != nil {
//	    return err
//	}
//	defer session.Close()
//
// WebRTC mode is suitable for client-side applications with lower latency:
//
//	session, err := client.ConnectWebRTC(ctx, &realtime.ConnectConfig{
//	    Model: realtime.ModelGPT4oRealtimePreview,
//	})
//
// Connect blocks until the server's session.created handshake arrives; on
// error or timeout the connection is torn down, never left half-open.
//
// # Commands
//
// Commands that the server acknowledges are awaitable. The wire protocol
// has no request ID echo, so acknowledgment is implied by type pairing:
// each Send registers a waiter whose rule matches the eventual terminal
// event for that command type. Multiple commands of different types may
// be in flight at once and resolve out of order.
//
//	item, err := session.AddUserMessage(ctx, "What's the weather like?")
//	resp, err := session.CreateResponse(ctx, nil)
//
// Audio appends are fire-and-forget and never block:
//
//	// PCM 16-bit, 24kHz, mono
//	err = session.AppendAudio(pcmData)
//
// # Receiving Events
//
// Use the Events iterator or a Subscribe handler to receive server events
// in arrival order:
//
//	for event, err := range session.Events() {
//	    if err != nil {
//	        return err
//	    }
//	    switch event.Type {
//	    case realtime.EventTypeResponseAudioDelta:
//	        playAudio(event.Audio)
//	    case realtime.EventTypeResponseTextDelta:
//	        fmt.Print(event.Delta)
//	    }
//	}
//
// # Assembling Streamed Values
//
// ResponseAccumulator merges text, audio, transcript, and function-call
// argument deltas into final values keyed by item and index:
//
//	resp, acc, err := realtime.CollectResponse(ctx, session, nil)
//	text, err := acc.ItemText(resp.Output[0].ID)
package realtime
