package realtime

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v3"
)

// dataChannelName is the application data channel carrying JSON events.
const dataChannelName = "oai-events"

// WebRTCSession is a WebRTC-based realtime session, suitable for
// client-side applications with lower latency requirements. JSON events
// flow over the data channel; audio flows over negotiated media tracks.
type WebRTCSession struct {
	*session

	pc *webrtc.PeerConnection
	dc *webrtc.DataChannel

	trackMu     sync.Mutex
	remoteTrack *webrtc.TrackRemote
	localTrack  *webrtc.TrackLocalStaticSample
}

// rtcTransport adapts a WebRTC data channel to the transport contract.
// The data channel carries text only; audio never passes through here.
type rtcTransport struct {
	pc        *webrtc.PeerConnection
	dc        *webrtc.DataChannel
	closeOnce sync.Once
}

func (t *rtcTransport) Send(data []byte) error {
	if t.dc.ReadyState() != webrtc.DataChannelStateOpen {
		return &ConnectionClosedError{Reason: "data channel not open"}
	}
	return t.dc.SendText(string(data))
}

func (t *rtcTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		if t.dc != nil {
			t.dc.Close()
		}
		if t.pc != nil {
			err = t.pc.Close()
		}
	})
	return err
}

// connectWebRTC performs the SDP offer/answer exchange over HTTP and
// waits for the data channel to open and the session.created handshake.
func (c *Client) connectWebRTC(ctx context.Context, config *ConnectConfig) (*WebRTCSession, error) {
	if config == nil {
		config = &ConnectConfig{}
	}
	if config.Model == "" && config.Deployment == "" {
		config.Model = ModelGPT4oRealtimePreview
	}

	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{
			{URLs: []string{"stun:stun.l.google.com:19302"}},
		},
	})
	if err != nil {
		return nil, wrapError(err, "create peer connection")
	}

	s := newSession(c, config)
	rtcs := &WebRTCSession{session: s, pc: pc}

	if _, err := pc.AddTransceiverFromKind(webrtc.RTPCodecTypeAudio, webrtc.RTPTransceiverInit{
		Direction: webrtc.RTPTransceiverDirectionRecvonly,
	}); err != nil {
		pc.Close()
		return nil, wrapError(err, "add audio transceiver")
	}

	dc, err := pc.CreateDataChannel(dataChannelName, nil)
	if err != nil {
		pc.Close()
		return nil, wrapError(err, "create data channel")
	}
	rtcs.dc = dc

	opened := make(chan struct{})
	dc.OnOpen(func() {
		close(opened)
	})
	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		s.handleMessage(msg.Data)
	})
	dc.OnClose(func() {
		s.handleClose(0, "data channel closed")
	})
	dc.OnError(func(err error) {
		s.handleError(err)
	})

	pc.OnTrack(func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
		if track.Kind() == webrtc.RTPCodecTypeAudio {
			rtcs.trackMu.Lock()
			rtcs.remoteTrack = track
			rtcs.trackMu.Unlock()
		}
	})

	offer, err := pc.CreateOffer(nil)
	if err != nil {
		pc.Close()
		return nil, wrapError(err, "create offer")
	}
	if err := pc.SetLocalDescription(offer); err != nil {
		pc.Close()
		return nil, wrapError(err, "set local description")
	}

	// Wait for ICE gathering so the offer carries all candidates.
	select {
	case <-webrtc.GatheringCompletePromise(pc):
	case <-ctx.Done():
		pc.Close()
		return nil, ctx.Err()
	}

	answer, err := c.exchangeSDP(ctx, config, pc.LocalDescription().SDP)
	if err != nil {
		pc.Close()
		return nil, wrapError(err, "exchange SDP")
	}
	if err := pc.SetRemoteDescription(webrtc.SessionDescription{
		Type: webrtc.SDPTypeAnswer,
		SDP:  answer,
	}); err != nil {
		pc.Close()
		return nil, wrapError(err, "set remote description")
	}

	s.start(&rtcTransport{pc: pc, dc: dc})

	select {
	case <-opened:
	case <-ctx.Done():
		s.Close()
		return nil, ctx.Err()
	}

	if err := s.waitReady(ctx, c.config.connectTimeout); err != nil {
		return nil, err
	}
	return rtcs, nil
}

// exchangeSDP POSTs the local offer as application/sdp, authorized by the
// long-lived API credential, and returns the peer's answer.
func (c *Client) exchangeSDP(ctx context.Context, config *ConnectConfig, sdp string) (string, error) {
	sdpURL := c.config.httpURL + "?" + endpointQuery(config)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sdpURL, strings.NewReader(sdp))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/sdp")
	c.setAuthHeaders(req)

	resp, err := c.config.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return "", c.readAPIError(resp, "sdp_exchange_failed")
	}

	answer, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(answer), nil
}

// === WebRTC-specific methods ===

// AudioTrack returns the remote audio track, or nil if none has been
// received yet.
func (s *WebRTCSession) AudioTrack() *webrtc.TrackRemote {
	s.trackMu.Lock()
	defer s.trackMu.Unlock()
	return s.remoteTrack
}

// AddAudioTrack attaches a local audio track for sending audio. This is
// the preferred way to send audio in WebRTC mode; the input buffer events
// remain available for text-frame audio.
func (s *WebRTCSession) AddAudioTrack(track *webrtc.TrackLocalStaticSample) error {
	s.trackMu.Lock()
	defer s.trackMu.Unlock()

	if s.localTrack != nil {
		return fmt.Errorf("realtime: local audio track already added")
	}
	if _, err := s.pc.AddTrack(track); err != nil {
		return err
	}
	s.localTrack = track
	return nil
}

// ReadRemoteRTP reads one RTP packet from the remote audio track. The
// payload codec is whatever the peer negotiated (typically Opus).
func (s *WebRTCSession) ReadRemoteRTP() (*rtp.Packet, error) {
	track := s.AudioTrack()
	if track == nil {
		return nil, fmt.Errorf("realtime: no remote audio track")
	}
	pkt, _, err := track.ReadRTP()
	return pkt, err
}

// DrainRemoteAudio reads RTP packets from the remote audio track and
// writes their payloads to w until ctx is cancelled or the track ends.
func (s *WebRTCSession) DrainRemoteAudio(ctx context.Context, w io.Writer) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		pkt, err := s.ReadRemoteRTP()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return wrapError(err, "read rtp")
		}
		if len(pkt.Payload) == 0 {
			continue
		}
		if _, err := w.Write(pkt.Payload); err != nil {
			return err
		}
	}
}

// DataChannel returns the data channel used for events.
func (s *WebRTCSession) DataChannel() *webrtc.DataChannel {
	return s.dc
}

// PeerConnection returns the underlying peer connection.
func (s *WebRTCSession) PeerConnection() *webrtc.PeerConnection {
	return s.pc
}

var _ Session = (*WebRTCSession)(nil)
