package voice

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranscribe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/stt", r.URL.Path)

		var req transcribeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		decoded, err := base64.StdEncoding.DecodeString(req.Audio)
		require.NoError(t, err)
		assert.Equal(t, []byte("fake-wav"), decoded)
		assert.Equal(t, "wav", req.Format)
		assert.Equal(t, 16000, req.SampleRate)

		json.NewEncoder(w).Encode(transcribeResponse{Text: "turn on the lights"})
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL, "nova", 1.0)
	text, err := client.Transcribe(context.Background(), []byte("fake-wav"), "wav", 16000)
	require.NoError(t, err)
	assert.Equal(t, "turn on the lights", text)
}

func TestTranscribe_EmptyTranscript(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(transcribeResponse{Text: ""})
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL, "nova", 1.0)
	text, err := client.Transcribe(context.Background(), []byte("silence"), "wav", 0)
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestSynthesize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/tts", r.URL.Path)

		var req synthesizeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "hello", req.Text)
		assert.Equal(t, "nova", req.Voice) // default voice applied

		json.NewEncoder(w).Encode(synthesizeResponse{
			Audio: base64.StdEncoding.EncodeToString([]byte("fake-mp3")),
		})
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL, "nova", 1.0)
	audio, err := client.Synthesize(context.Background(), "hello", "")
	require.NoError(t, err)
	assert.Equal(t, []byte("fake-mp3"), audio)
}

func TestSynthesize_ServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL, "nova", 1.0)
	_, err := client.Synthesize(context.Background(), "hello", "")
	assert.Error(t, err)
}
