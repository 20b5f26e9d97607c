package gateway

import (
	"bytes"
	"encoding/base64"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/BaSui01/dashscope-router/types"
)

type filePart struct {
	name        string
	contentType string
	data        []byte
}

func multipartRequest(t *testing.T, target string, fields map[string]string, file *filePart) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if file != nil {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="file"; filename="`+file.name+`"`)
		if file.contentType != "" {
			h.Set("Content-Type", file.contentType)
		}
		part, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(file.data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, target, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func requireInvalidRequest(t *testing.T, err error, contains string) {
	t.Helper()
	require.Error(t, err)
	e, ok := types.AsError(err)
	require.True(t, ok, "expected *types.Error, got %T", err)
	assert.Equal(t, types.ErrInvalidRequest, e.Type)
	assert.Equal(t, http.StatusBadRequest, e.HTTPStatus)
	if contains != "" {
		assert.Contains(t, e.Message, contains)
	}
}

func TestNormalizer_Transcription(t *testing.T) {
	n := NewNormalizer(newTestTable(), 0)
	audio := []byte("RIFF....WAVEfmt ")

	req := multipartRequest(t, "/v1/audio/transcriptions", map[string]string{
		"model":           "whisper-1",
		"language":        "zh",
		"prompt":          "会议记录",
		"response_format": "SRT",
		"temperature":     "0.2",
	}, &filePart{name: "meeting.wav", data: audio})

	got, err := n.Transcription(httptest.NewRecorder(), req)
	require.NoError(t, err)
	assert.Equal(t, ModalityTranscription, got.Modality())
	assert.Equal(t, "whisper-1", got.PublicModel)
	assert.Equal(t, "qwen3-asr-flash", got.BackendModel)
	assert.Equal(t, "srt", got.OutputFormat)
	assert.Equal(t, "zh", got.Language)
	assert.Equal(t, "会议记录", got.Prompt)
	assert.Equal(t, "meeting.wav", got.Filename)
	assert.Equal(t, "audio/wav", got.MIMEType)
	assert.Equal(t, audio, got.Audio)
	assert.Equal(t, "data:audio/wav;base64,"+base64.StdEncoding.EncodeToString(audio), got.AudioDataURI)
}

func TestNormalizer_Transcription_Defaults(t *testing.T) {
	n := NewNormalizer(newTestTable(), 0)
	req := multipartRequest(t, "/v1/audio/transcriptions", nil,
		&filePart{name: "clip.bin", contentType: "audio/ogg", data: []byte{1, 2, 3}})

	got, err := n.Transcription(httptest.NewRecorder(), req)
	require.NoError(t, err)
	assert.Equal(t, "qwen3-asr-flash", got.BackendModel)
	assert.Equal(t, "json", got.OutputFormat)
	assert.Equal(t, "audio/ogg", got.MIMEType, "declared content type wins")
	assert.Empty(t, got.Language)
	assert.Empty(t, got.Prompt)
}

func TestNormalizer_Transcription_Invalid(t *testing.T) {
	n := NewNormalizer(newTestTable(), 1024)

	t.Run("missing file", func(t *testing.T) {
		req := multipartRequest(t, "/", map[string]string{"model": "qwen3-asr-flash"}, nil)
		_, err := n.Transcription(httptest.NewRecorder(), req)
		requireInvalidRequest(t, err, "file")
	})

	t.Run("empty file", func(t *testing.T) {
		req := multipartRequest(t, "/", nil, &filePart{name: "a.mp3"})
		_, err := n.Transcription(httptest.NewRecorder(), req)
		requireInvalidRequest(t, err, "empty")
	})

	t.Run("not multipart", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"file":"x"}`))
		req.Header.Set("Content-Type", "application/json")
		_, err := n.Transcription(httptest.NewRecorder(), req)
		requireInvalidRequest(t, err, "multipart")
	})

	t.Run("too large", func(t *testing.T) {
		req := multipartRequest(t, "/", nil, &filePart{name: "a.mp3", data: bytes.Repeat([]byte("a"), 4096)})
		_, err := n.Transcription(httptest.NewRecorder(), req)
		require.Error(t, err)
		e, ok := types.AsError(err)
		require.True(t, ok)
		assert.Equal(t, http.StatusBadRequest, e.HTTPStatus)
	})
}

func TestResolveAudioMIME(t *testing.T) {
	tests := []struct {
		declared string
		filename string
		want     string
	}{
		{"audio/x-custom", "a.mp3", "audio/x-custom"},
		{"application/octet-stream", "a.mp3", "audio/mpeg"},
		{"", "a.WAV", "audio/wav"},
		{"", "a.flac", "audio/flac"},
		{"", "a.m4a", "audio/mp4"},
		{"", "a.ogg", "audio/ogg"},
		{"", "a.webm", "audio/webm"},
		{"", "a.mp4", "audio/mp4"},
		{"", "a.opus", "audio/opus"},
		{"", "a.aac", "audio/aac"},
		{"", "a.wma", "audio/x-ms-wma"},
		{"", "a.amr", "audio/amr"},
		{"", "a.pcm", "audio/pcm"},
		{"", "recording", "audio/mpeg"},
		{"", "a.zzzunknown", "audio/mpeg"},
		{"", "page.html", "text/html; charset=utf-8"},
	}
	for _, tt := range tests {
		t.Run(tt.declared+"|"+tt.filename, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveAudioMIME(tt.declared, tt.filename))
		})
	}
}

func TestNormalizer_Speech(t *testing.T) {
	n := NewNormalizer(newTestTable(), 0)

	tests := []struct {
		name        string
		contentType string
		body        string
		model       string
		voice       string
		format      string
	}{
		{
			name:        "json",
			contentType: "application/json",
			body:        `{"model":"tts-1","input":"你好","voice":"nova","response_format":"WAV","speed":1.5}`,
			model:       "qwen3-tts-flash", voice: "Vivian", format: "wav",
		},
		{
			name:        "json charset",
			contentType: "application/json; charset=utf-8",
			body:        `{"input":"hi","voice":null}`,
			model:       "qwen3-tts-flash", voice: "Chelsie", format: "mp3",
		},
		{
			name:        "urlencoded",
			contentType: "application/x-www-form-urlencoded",
			body:        url.Values{"input": {"hi"}, "voice": {"Jennifer"}, "model": {"qwen-tts"}}.Encode(),
			model:       "qwen-tts", voice: "Jennifer", format: "mp3",
		},
		{
			name:        "unknown content type parsed as json",
			contentType: "text/plain",
			body:        `{"input":"hi","voice":"echo"}`,
			model:       "qwen3-tts-flash", voice: "Kai", format: "mp3",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/v1/audio/speech", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", tt.contentType)

			got, err := n.Speech(httptest.NewRecorder(), req)
			require.NoError(t, err)
			assert.Equal(t, ModalitySpeech, got.Modality())
			assert.Equal(t, tt.model, got.BackendModel)
			assert.Equal(t, tt.voice, got.BackendVoice)
			assert.Equal(t, tt.format, got.OutputFormat)
			assert.NotEmpty(t, got.Input)
		})
	}

	t.Run("multipart", func(t *testing.T) {
		req := multipartRequest(t, "/v1/audio/speech", map[string]string{"input": "hello", "voice": "ALLOY"}, nil)
		got, err := n.Speech(httptest.NewRecorder(), req)
		require.NoError(t, err)
		assert.Equal(t, "hello", got.Input)
		assert.Equal(t, "ALLOY", got.PublicVoice)
		assert.Equal(t, "Chelsie", got.BackendVoice)
	})
}

func TestNormalizer_Speech_Invalid(t *testing.T) {
	n := NewNormalizer(newTestTable(), 0)

	tests := []struct {
		name        string
		contentType string
		body        string
		contains    string
	}{
		{"missing input", "application/json", `{"voice":"alloy"}`, "input"},
		{"empty input", "application/json", `{"input":""}`, "input"},
		{"invalid json", "application/json", `{"input":`, "JSON"},
		{"json array", "application/json", `["input"]`, "JSON"},
		{"unsupported content type", "text/plain", `input=hi`, "text/plain"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/v1/audio/speech", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", tt.contentType)
			_, err := n.Speech(httptest.NewRecorder(), req)
			requireInvalidRequest(t, err, tt.contains)
		})
	}
}

func TestNormalizer_Image(t *testing.T) {
	n := NewNormalizer(newTestTable(), 0)

	t.Run("json with defaults", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/v1/images/generations", strings.NewReader(`{"prompt":"a cat"}`))
		req.Header.Set("Content-Type", "application/json")

		got, err := n.Image(httptest.NewRecorder(), req)
		require.NoError(t, err)
		assert.Equal(t, ModalityImage, got.Modality())
		assert.Equal(t, "qwen-image-plus", got.BackendModel)
		assert.Equal(t, "a cat", got.Prompt)
		assert.Equal(t, "1664*928", got.Size)
		assert.Equal(t, 1, got.N)
		assert.True(t, got.PromptExtend)
		assert.False(t, got.Watermark)
		assert.Empty(t, got.NegativePrompt)
		assert.Equal(t, "url", got.OutputFormat)
	})

	t.Run("json explicit", func(t *testing.T) {
		body := `{"model":"dall-e-3","prompt":"a dog","n":2,"size":"1024x1024",` +
			`"response_format":"B64_JSON","negative_prompt":"blurry","prompt_extend":false,"watermark":true}`
		req := httptest.NewRequest(http.MethodPost, "/v1/images/generations", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")

		got, err := n.Image(httptest.NewRecorder(), req)
		require.NoError(t, err)
		assert.Equal(t, "dall-e-3", got.PublicModel)
		assert.Equal(t, "qwen-image-max", got.BackendModel)
		assert.Equal(t, 2, got.N)
		assert.Equal(t, "1024*1024", got.Size)
		assert.Equal(t, "b64_json", got.OutputFormat)
		assert.Equal(t, "blurry", got.NegativePrompt)
		assert.False(t, got.PromptExtend)
		assert.True(t, got.Watermark)
	})

	t.Run("form", func(t *testing.T) {
		body := url.Values{
			"prompt": {"a bird"}, "n": {"3"}, "size": {"928X1664"},
			"prompt_extend": {"0"}, "watermark": {"TRUE"}, "model": {"wan2.6-t2i"},
		}.Encode()
		req := httptest.NewRequest(http.MethodPost, "/v1/images/generations", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		got, err := n.Image(httptest.NewRecorder(), req)
		require.NoError(t, err)
		assert.Equal(t, "wan2.6-t2i", got.BackendModel)
		assert.Equal(t, 3, got.N)
		assert.Equal(t, "928*1664", got.Size)
		assert.False(t, got.PromptExtend)
		assert.True(t, got.Watermark)
	})
}

func TestNormalizer_Image_Invalid(t *testing.T) {
	n := NewNormalizer(newTestTable(), 0)

	tests := []struct {
		name     string
		body     string
		contains string
	}{
		{"missing prompt", `{"n":1}`, "prompt"},
		{"blank prompt", `{"prompt":"   "}`, "prompt"},
		{"zero n", `{"prompt":"x","n":0}`, "'n'"},
		{"negative n", `{"prompt":"x","n":-2}`, "'n'"},
		{"fractional n", `{"prompt":"x","n":1.5}`, "'n'"},
		{"string n", `{"prompt":"x","n":"two"}`, "'n'"},
		{"bad prompt_extend", `{"prompt":"x","prompt_extend":"maybe"}`, "prompt_extend"},
		{"bad watermark", `{"prompt":"x","watermark":3}`, "watermark"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/v1/images/generations", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			_, err := n.Image(httptest.NewRecorder(), req)
			requireInvalidRequest(t, err, tt.contains)
		})
	}
}

func TestNormalizeSize(t *testing.T) {
	assert.Equal(t, "1664*928", NormalizeSize("1664x928", "def"))
	assert.Equal(t, "1664*928", NormalizeSize("1664X928", "def"))
	assert.Equal(t, "1664*928", NormalizeSize("1664*928", "def"))
	assert.Equal(t, "def", NormalizeSize("", "def"))
	assert.Equal(t, "def", NormalizeSize("  ", "def"))
}

func TestNormalizeSize_Property(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		w := rapid.IntRange(1, 8192).Draw(t, "w")
		h := rapid.IntRange(1, 8192).Draw(t, "h")
		sep := rapid.SampledFrom([]string{"x", "X", "*"}).Draw(t, "sep")

		in := strings.Join([]string{strconv.Itoa(w), strconv.Itoa(h)}, sep)
		want := strconv.Itoa(w) + "*" + strconv.Itoa(h)
		if got := NormalizeSize(in, "default"); got != want {
			t.Fatalf("NormalizeSize(%q) = %q, want %q", in, got, want)
		}
		if got := NormalizeSize(NormalizeSize(in, "default"), "default"); got != want {
			t.Fatalf("NormalizeSize not idempotent for %q", in)
		}
	})
}
