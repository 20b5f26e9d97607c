package gateway

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BaSui01/dashscope-router/api"
)

// =============================================================================
// 📤 响应规范化（canonical → wire）
// =============================================================================

const (
	contentTypeJSON = "application/json"
	contentTypeText = "text/plain; charset=utf-8"

	srtTemplate = "1\n00:00:00,000 --> 99:59:59,999\n"
	vttTemplate = "WEBVTT\n\n00:00:00.000 --> 99:59:59.999\n"

	defaultFetchConcurrency = 4
)

// speechMIMETypes 合成音频格式 → MIME
var speechMIMETypes = map[string]string{
	"mp3":  "audio/mpeg",
	"opus": "audio/opus",
	"aac":  "audio/aac",
	"flac": "audio/flac",
	"wav":  "audio/wav",
	"pcm":  "audio/pcm",
}

// Payload 待写出的响应体
type Payload struct {
	ContentType string
	Headers     map[string]string
	Body        []byte
}

// Renderer 把规范化结果渲染为 OpenAI 兼容的响应
type Renderer struct {
	fetcher     AssetFetcher
	concurrency int
	now         func() time.Time
	logger      *zap.Logger
}

// NewRenderer 创建渲染器。concurrency 限制单个响应内并发下载的图片数。
func NewRenderer(fetcher AssetFetcher, concurrency int, logger *zap.Logger) *Renderer {
	if concurrency <= 0 {
		concurrency = defaultFetchConcurrency
	}
	return &Renderer{
		fetcher:     fetcher,
		concurrency: concurrency,
		now:         time.Now,
		logger:      logger.With(zap.String("component", "renderer")),
	}
}

// Transcription 按输出格式渲染转写文本。未知格式按 json 处理。
func (r *Renderer) Transcription(format string, res *Result) (*Payload, error) {
	switch format {
	case "text":
		return &Payload{ContentType: contentTypeText, Body: []byte(res.Text)}, nil
	case "srt":
		return &Payload{ContentType: contentTypeText, Body: []byte(FormatSRT(res.Text))}, nil
	case "vtt":
		return &Payload{ContentType: contentTypeText, Body: []byte(FormatVTT(res.Text))}, nil
	case "verbose_json":
		return jsonPayload(api.VerboseTranscriptionResponse{
			Task:     "transcribe",
			Language: "unknown",
			Duration: res.Elapsed.Seconds(),
			Text:     res.Text,
			Segments: []any{},
			Words:    []any{},
		})
	default:
		return jsonPayload(api.TranscriptionResponse{Text: res.Text})
	}
}

// Speech 输出原始音频字节，附带下载文件名。未知格式按 mp3 命名，
// 调用方的原始值不会进入响应头。
func (r *Renderer) Speech(format string, res *Result) *Payload {
	ext := format
	if _, ok := speechMIMETypes[ext]; !ok {
		ext = "mp3"
	}
	return &Payload{
		ContentType: SpeechMIME(format),
		Headers: map[string]string{
			"Content-Disposition": `attachment; filename="speech.` + ext + `"`,
		},
		Body: res.Audio,
	}
}

// Images 渲染生图结果。b64_json 时并发下载每张图片，
// 单张下载失败只回退为该张的 url，不影响整体。
func (r *Renderer) Images(ctx context.Context, format string, res *Result) (*Payload, error) {
	data := make([]api.ImageData, len(res.Assets))
	for i, a := range res.Assets {
		data[i] = api.ImageData{RevisedPrompt: a.RevisedPrompt}
		if format != "b64_json" {
			data[i].URL = a.URL
		}
	}

	if format == "b64_json" {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(r.concurrency)
		for i, a := range res.Assets {
			g.Go(func() error {
				img, err := r.fetcher.Download(gctx, "image", a.URL)
				if err != nil {
					r.logger.Warn("image download failed, falling back to url",
						zap.Int("index", i),
						zap.Error(err))
					data[i].URL = a.URL
					return nil
				}
				data[i].B64JSON = base64.StdEncoding.EncodeToString(img)
				return nil
			})
		}
		_ = g.Wait()
	}

	return jsonPayload(api.ImageResponse{Created: r.now().Unix(), Data: data})
}

// FormatSRT 单条覆盖全程的 SRT 字幕
func FormatSRT(text string) string { return srtTemplate + text + "\n" }

// FormatVTT 单条覆盖全程的 WebVTT 字幕
func FormatVTT(text string) string { return vttTemplate + text + "\n" }

// SpeechMIME 返回音频格式对应的 MIME，未知格式为 audio/mpeg
func SpeechMIME(format string) string {
	if m, ok := speechMIMETypes[format]; ok {
		return m
	}
	return "audio/mpeg"
}

func jsonPayload(v any) (*Payload, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return &Payload{ContentType: contentTypeJSON, Body: body}, nil
}
