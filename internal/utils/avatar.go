package utils

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"music-tutor/internal/metrics"
	"music-tutor/internal/models"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	DefaultDIDBaseURL   = "https://api.d-id.com"
	DefaultMaleAvatar   = "https://create-images-results.d-id.com/DefaultPresenters/William_m/image.jpeg"
	DefaultFemaleAvatar = "https://create-images-results.d-id.com/DefaultPresenters/Emma_f/image.jpeg"
	DefaultMaleVoice    = "tr-TR-AhmetNeural"
	DefaultFemaleVoice  = "tr-TR-EmelNeural"

	videoDataURLPrefix = "data:video/mp4;base64,"
)

var (
	ErrNoActiveSession = errors.New("no active avatar stream")
	ErrClipFailed      = errors.New("avatar clip generation failed")
)

// ConnectionError reports a failed request to the avatar provider or a failed
// stream handshake. Status is zero when no HTTP response was received.
type ConnectionError struct {
	Op     string
	Status int
	Err    error
}

func (e *ConnectionError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("D-ID %s failed with status %d", e.Op, e.Status)
	}
	return fmt.Sprintf("D-ID %s failed: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

type VideoFrame struct {
	Data       []byte
	URL        string
	ReceivedAt time.Time
}

type StreamSession struct {
	ID         string
	ICEServers []json.RawMessage
}

type AvatarConfig struct {
	APIKey       string
	BaseURL      string
	Avatars      map[models.Gender]string
	Voices       map[models.Gender]string
	PollInterval time.Duration
	HTTPClient   *http.Client
}

func DefaultAvatarConfig(apiKey string) AvatarConfig {
	return AvatarConfig{
		APIKey:  apiKey,
		BaseURL: DefaultDIDBaseURL,
		Avatars: map[models.Gender]string{
			models.GenderMale:   DefaultMaleAvatar,
			models.GenderFemale: DefaultFemaleAvatar,
		},
		Voices: map[models.Gender]string{
			models.GenderMale:   DefaultMaleVoice,
			models.GenderFemale: DefaultFemaleVoice,
		},
		PollInterval: time.Second,
	}
}

type AvatarAPI interface {
	StartStream(ctx context.Context, gender models.Gender, initialText string) (*StreamSession, error)
	SendNewText(ctx context.Context, text string) error
	Disconnect()
	IsConnected() bool
	GenerateClip(ctx context.Context, gender models.Gender, text string) (string, error)
}

// AvatarClient drives one talking-avatar stream. Each lesson session owns its
// own client; frames arrive on the OnVideo handler from the reader goroutine.
type AvatarClient struct {
	logger  *logrus.Entry
	cfg     AvatarConfig
	http    *http.Client
	onVideo func(VideoFrame)

	// delivering is set while onVideo runs on the reader goroutine.
	delivering atomic.Bool

	mu      sync.Mutex
	conn    *websocket.Conn
	session *StreamSession
	voice   string
	done    chan struct{}
}

// NewAvatarClient builds a client. onVideo runs on the reader goroutine and may
// call Disconnect; a Disconnect made while onVideo runs does not wait for the
// reader to stop.
func NewAvatarClient(logger *logrus.Entry, cfg AvatarConfig, onVideo func(VideoFrame)) *AvatarClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultDIDBaseURL
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &AvatarClient{
		logger:  logger,
		cfg:     cfg,
		http:    httpClient,
		onVideo: onVideo,
	}
}

type talkScript struct {
	Type     string        `json:"type"`
	Input    string        `json:"input"`
	Provider voiceProvider `json:"provider"`
}

type voiceProvider struct {
	Type    string `json:"type"`
	VoiceID string `json:"voice_id"`
}

type talkRequest struct {
	SourceURL string     `json:"source_url,omitempty"`
	SessionID string     `json:"session_id,omitempty"`
	Script    talkScript `json:"script"`
}

type streamResponse struct {
	ID                string            `json:"id"`
	SessionID         string            `json:"session_id"`
	ICEServers        []json.RawMessage `json:"ice_servers"`
	ConnectionDetails struct {
		ICEServers []json.RawMessage `json:"ice_servers"`
	} `json:"connection_details"`
}

func newScript(text, voice string) talkScript {
	return talkScript{
		Type:     "text",
		Input:    text,
		Provider: voiceProvider{Type: "microsoft", VoiceID: voice},
	}
}

// StartStream creates a stream for the persona of the given gender and opens
// its channel. Any stream already open on this client is closed first.
func (c *AvatarClient) StartStream(ctx context.Context, gender models.Gender, initialText string) (*StreamSession, error) {
	c.Disconnect()

	voice := c.cfg.Voices[gender]
	var resp streamResponse
	err := c.doJSON(ctx, "create stream", http.MethodPost, "/talks/streams", talkRequest{
		SourceURL: c.cfg.Avatars[gender],
		Script:    newScript(initialText, voice),
	}, &resp)
	if err != nil {
		return nil, err
	}

	id := resp.ID
	if id == "" {
		id = resp.SessionID
	}
	if id == "" {
		return nil, &ConnectionError{Op: "create stream", Err: errors.New("response has no stream id")}
	}
	session := &StreamSession{ID: id, ICEServers: resp.ICEServers}
	if len(session.ICEServers) == 0 {
		session.ICEServers = resp.ConnectionDetails.ICEServers
	}

	wsURL, err := c.streamURL(id)
	if err != nil {
		return nil, &ConnectionError{Op: "open stream", Err: err}
	}
	header := http.Header{}
	header.Set("Authorization", "Basic "+c.cfg.APIKey)
	dialer := websocket.Dialer{HandshakeTimeout: 15 * time.Second}
	conn, httpResp, err := dialer.DialContext(ctx, wsURL, header)
	if err != nil {
		cerr := &ConnectionError{Op: "open stream", Err: err}
		if httpResp != nil {
			cerr.Status = httpResp.StatusCode
		}
		c.logger.WithError(err).WithField("streamId", id).Error("Failed to open avatar stream")
		metrics.AvatarStreams.WithLabelValues("error").Inc()
		return nil, cerr
	}

	done := make(chan struct{})
	c.mu.Lock()
	c.conn = conn
	c.session = session
	c.voice = voice
	c.done = done
	c.mu.Unlock()

	go c.readLoop(conn, done)
	metrics.AvatarStreams.WithLabelValues("connected").Inc()

	c.logger.WithFields(logrus.Fields{
		"streamId": id,
		"gender":   gender,
	}).Info("Avatar stream connected")
	return session, nil
}

// SendNewText asks the open stream to speak text.
func (c *AvatarClient) SendNewText(ctx context.Context, text string) error {
	c.mu.Lock()
	session, voice := c.session, c.voice
	c.mu.Unlock()
	if session == nil {
		return ErrNoActiveSession
	}
	return c.doJSON(ctx, "send text", http.MethodPost, "/talks/streams/"+url.PathEscape(session.ID), talkRequest{
		SessionID: session.ID,
		Script:    newScript(text, voice),
	}, nil)
}

// Disconnect closes the channel and waits for the reader to stop. Safe to call repeatedly.
func (c *AvatarClient) Disconnect() {
	c.mu.Lock()
	conn, done := c.conn, c.done
	c.conn, c.session, c.done = nil, nil, nil
	c.mu.Unlock()

	if conn == nil {
		return
	}
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	conn.Close()
	if !c.delivering.Load() {
		<-done
	}
	c.logger.Info("Avatar stream disconnected")
}

func (c *AvatarClient) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

func (c *AvatarClient) readLoop(conn *websocket.Conn, done chan struct{}) {
	defer close(done)
	for {
		msgType, raw, err := conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			dropped := c.conn == conn
			if dropped {
				c.conn, c.session, c.done = nil, nil, nil
			}
			c.mu.Unlock()
			if dropped {
				c.logger.WithError(err).Warn("Avatar stream closed by peer")
				conn.Close()
			}
			return
		}
		if msgType == websocket.BinaryMessage {
			c.deliver(raw)
			continue
		}
		c.handleMessage(raw)
	}
}

func (c *AvatarClient) handleMessage(raw []byte) {
	var envelope struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		c.logger.WithError(err).Warn("Failed to parse avatar stream message")
		return
	}

	switch envelope.Type {
	case "video_data":
		data, err := decodeVideoData(envelope.Data)
		if err != nil {
			c.logger.WithError(err).Warn("Failed to decode video data")
			return
		}
		c.deliver(data)
	default:
		c.logger.WithField("type", envelope.Type).Debug("Ignoring avatar stream message")
	}
}

func (c *AvatarClient) deliver(data []byte) {
	if c.onVideo == nil || len(data) == 0 {
		return
	}
	metrics.AvatarFrames.Inc()
	c.delivering.Store(true)
	defer c.delivering.Store(false)
	c.onVideo(VideoFrame{
		Data:       data,
		URL:        videoDataURLPrefix + base64.StdEncoding.EncodeToString(data),
		ReceivedAt: time.Now(),
	})
}

// decodeVideoData accepts a base64 string or a JSON byte array.
func decodeVideoData(raw json.RawMessage) ([]byte, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		s = strings.TrimPrefix(s, videoDataURLPrefix)
		data, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return nil, fmt.Errorf("invalid base64 video payload: %w", err)
		}
		return data, nil
	}
	var ints []int
	if err := json.Unmarshal(raw, &ints); err != nil {
		return nil, fmt.Errorf("unsupported video payload: %w", err)
	}
	data := make([]byte, len(ints))
	for i, v := range ints {
		if v < 0 || v > 255 {
			return nil, fmt.Errorf("video byte out of range: %d", v)
		}
		data[i] = byte(v)
	}
	return data, nil
}

type talkStatus struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	ResultURL string `json:"result_url"`
}

// GenerateClip renders a non-streamed clip and polls until it is ready.
func (c *AvatarClient) GenerateClip(ctx context.Context, gender models.Gender, text string) (string, error) {
	var created talkStatus
	err := c.doJSON(ctx, "create talk", http.MethodPost, "/talks", talkRequest{
		SourceURL: c.cfg.Avatars[gender],
		Script:    newScript(text, c.cfg.Voices[gender]),
	}, &created)
	if err != nil {
		return "", err
	}
	if created.ID == "" {
		return "", &ConnectionError{Op: "create talk", Err: errors.New("response has no talk id")}
	}

	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()
	for {
		var status talkStatus
		if err := c.doJSON(ctx, "get talk", http.MethodGet, "/talks/"+url.PathEscape(created.ID), nil, &status); err != nil {
			return "", err
		}
		switch status.Status {
		case "done":
			return status.ResultURL, nil
		case "error", "rejected":
			return "", fmt.Errorf("%w: talk %s is %s", ErrClipFailed, created.ID, status.Status)
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *AvatarClient) streamURL(id string) (string, error) {
	u, err := url.Parse(c.cfg.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	if u.Scheme == "http" {
		u.Scheme = "ws"
	} else {
		u.Scheme = "wss"
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/talks/streams/" + url.PathEscape(id)
	return u.String(), nil
}

func (c *AvatarClient) doJSON(ctx context.Context, op, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal %s request: %w", op, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, strings.TrimSuffix(c.cfg.BaseURL, "/")+path, reader)
	if err != nil {
		return &ConnectionError{Op: op, Err: err}
	}
	req.Header.Set("Authorization", "Basic "+c.cfg.APIKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &ConnectionError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.WithFields(logrus.Fields{
			"op":     op,
			"status": resp.StatusCode,
		}).Error("D-ID request failed")
		return &ConnectionError{Op: op, Status: resp.StatusCode}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &ConnectionError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}
