package utils

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"music-tutor/internal/models"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDID struct {
	t        *testing.T
	mu       sync.Mutex
	requests []talkRequest
	paths    []string
	auth     []string
	polls    int
	server   *httptest.Server
	conns    chan *websocket.Conn
}

func newFakeDID(t *testing.T) *fakeDID {
	f := &fakeDID{t: t, conns: make(chan *websocket.Conn, 1)}
	upgrader := websocket.Upgrader{}
	mux := http.NewServeMux()
	mux.HandleFunc("/talks/streams", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		json.NewEncoder(w).Encode(map[string]any{"id": "strm_1", "ice_servers": []any{map[string]string{"urls": "stun:x"}}})
	})
	mux.HandleFunc("/talks/streams/strm_1", func(w http.ResponseWriter, r *http.Request) {
		if websocket.IsWebSocketUpgrade(r) {
			conn, err := upgrader.Upgrade(w, r, nil)
			if err != nil {
				return
			}
			f.conns <- conn
			return
		}
		f.record(r)
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/talks", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]string{"id": "tlk_1", "status": "created"})
	})
	mux.HandleFunc("/talks/tlk_1", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.polls++
		polls := f.polls
		f.mu.Unlock()
		status := "started"
		if polls >= 2 {
			status = "done"
		}
		json.NewEncoder(w).Encode(map[string]string{"id": "tlk_1", "status": status, "result_url": "https://cdn.example/tlk_1.mp4"})
	})
	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeDID) record(r *http.Request) {
	var req talkRequest
	json.NewDecoder(r.Body).Decode(&req)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	f.paths = append(f.paths, r.URL.Path)
	f.auth = append(f.auth, r.Header.Get("Authorization"))
}

func newTestAvatarClient(baseURL string, onVideo func(VideoFrame)) *AvatarClient {
	cfg := DefaultAvatarConfig("user:key")
	cfg.BaseURL = baseURL
	cfg.PollInterval = 10 * time.Millisecond
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return NewAvatarClient(logrus.NewEntry(l), cfg, onVideo)
}

func TestAvatarClientStream(t *testing.T) {
	ctx := context.Background()
	did := newFakeDID(t)
	frames := make(chan VideoFrame, 4)
	client := newTestAvatarClient(did.server.URL, func(f VideoFrame) { frames <- f })

	err := client.SendNewText(ctx, "erken")
	assert.ErrorIs(t, err, ErrNoActiveSession)

	session, err := client.StartStream(ctx, models.GenderFemale, "Merhaba!")
	require.NoError(t, err)
	assert.Equal(t, "strm_1", session.ID)
	assert.Len(t, session.ICEServers, 1)
	assert.True(t, client.IsConnected())

	server := <-did.conns
	defer server.Close()

	did.mu.Lock()
	first := did.requests[0]
	assert.Equal(t, "Basic user:key", did.auth[0])
	did.mu.Unlock()
	assert.Equal(t, DefaultFemaleAvatar, first.SourceURL)
	assert.Equal(t, "Merhaba!", first.Script.Input)
	assert.Equal(t, "microsoft", first.Script.Provider.Type)
	assert.Equal(t, DefaultFemaleVoice, first.Script.Provider.VoiceID)

	payload := []byte("fake-mp4")
	require.NoError(t, server.WriteJSON(map[string]any{"type": "video_data", "data": base64.StdEncoding.EncodeToString(payload)}))
	require.NoError(t, server.WriteMessage(websocket.TextMessage, []byte("not json")))
	require.NoError(t, server.WriteJSON(map[string]any{"type": "video_data", "data": "%%% not base64 %%%"}))
	require.NoError(t, server.WriteJSON(map[string]any{"type": "video_data", "data": []int{1, 2, 3}}))

	select {
	case f := <-frames:
		assert.Equal(t, payload, f.Data)
		assert.True(t, strings.HasPrefix(f.URL, "data:video/mp4;base64,"))
	case <-time.After(2 * time.Second):
		t.Fatal("no video frame delivered")
	}
	select {
	case f := <-frames:
		assert.Equal(t, []byte{1, 2, 3}, f.Data, "malformed message must be dropped, not delivered")
	case <-time.After(2 * time.Second):
		t.Fatal("second frame not delivered")
	}

	require.NoError(t, client.SendNewText(ctx, "Bir sonraki akor"))
	did.mu.Lock()
	last := did.requests[len(did.requests)-1]
	lastPath := did.paths[len(did.paths)-1]
	did.mu.Unlock()
	assert.Equal(t, "/talks/streams/strm_1", lastPath)
	assert.Equal(t, DefaultFemaleVoice, last.Script.Provider.VoiceID)

	client.Disconnect()
	client.Disconnect()
	assert.False(t, client.IsConnected())
	assert.ErrorIs(t, client.SendNewText(ctx, "late"), ErrNoActiveSession)
}

func TestDecodeVideoData(t *testing.T) {
	data, err := decodeVideoData(json.RawMessage(`"data:video/mp4;base64,` + base64.StdEncoding.EncodeToString([]byte("mp4")) + `"`))
	require.NoError(t, err)
	assert.Equal(t, []byte("mp4"), data)

	_, err = decodeVideoData(json.RawMessage(`"not-base64!"`))
	assert.Error(t, err)

	_, err = decodeVideoData(json.RawMessage(`[1, 300]`))
	assert.Error(t, err)

	_, err = decodeVideoData(json.RawMessage(`{"x":1}`))
	assert.Error(t, err)
}

func TestDisconnectFromFrameHandler(t *testing.T) {
	did := newFakeDID(t)
	handled := make(chan struct{})
	var client *AvatarClient
	client = newTestAvatarClient(did.server.URL, func(VideoFrame) {
		client.Disconnect()
		close(handled)
	})

	_, err := client.StartStream(context.Background(), models.GenderMale, "Merhaba")
	require.NoError(t, err)
	server := <-did.conns
	defer server.Close()

	require.NoError(t, server.WriteMessage(websocket.BinaryMessage, []byte("frame")))
	select {
	case <-handled:
	case <-time.After(2 * time.Second):
		t.Fatal("Disconnect inside the frame handler did not return")
	}
	assert.False(t, client.IsConnected())
}

func TestAvatarClientErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("create stream rejected", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusPaymentRequired)
		}))
		defer srv.Close()

		client := newTestAvatarClient(srv.URL, nil)
		_, err := client.StartStream(ctx, models.GenderMale, "Merhaba")
		var connErr *ConnectionError
		require.True(t, errors.As(err, &connErr))
		assert.Equal(t, http.StatusPaymentRequired, connErr.Status)
		assert.False(t, client.IsConnected())
	})

	t.Run("handshake fails", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodPost {
				json.NewEncoder(w).Encode(map[string]string{"session_id": "abc"})
				return
			}
			w.WriteHeader(http.StatusForbidden)
		}))
		defer srv.Close()

		client := newTestAvatarClient(srv.URL, nil)
		_, err := client.StartStream(ctx, models.GenderMale, "Merhaba")
		var connErr *ConnectionError
		require.True(t, errors.As(err, &connErr))
		assert.Equal(t, "open stream", connErr.Op)
	})
}

func TestGenerateClip(t *testing.T) {
	did := newFakeDID(t)
	client := newTestAvatarClient(did.server.URL, nil)

	resultURL, err := client.GenerateClip(context.Background(), models.GenderMale, "Hoş geldin")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example/tlk_1.mp4", resultURL)
	assert.Equal(t, DefaultMaleVoice, did.requests[0].Script.Provider.VoiceID)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = client.GenerateClip(ctx, models.GenderMale, "Hoş geldin")
	assert.Error(t, err)
}
