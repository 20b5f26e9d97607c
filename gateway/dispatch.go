package gateway

import (
	"context"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/BaSui01/dashscope-router/dashscope"
	"github.com/BaSui01/dashscope-router/types"
)

// =============================================================================
// 🚦 后端分发
// =============================================================================

// Backend DashScope 两种调用约定的抽象，*dashscope.Client 实现该接口
type Backend interface {
	Transcribe(ctx context.Context, apiKey string, p dashscope.TranscribeParams) (string, error)
	Synthesize(ctx context.Context, apiKey string, p dashscope.SpeechParams) (*dashscope.AudioOutput, error)
	GenerateImageSync(ctx context.Context, apiKey string, p dashscope.ImageParams) ([]dashscope.ImageResult, error)
	// GenerateImageAsync 提交任务并阻塞到终态
	GenerateImageAsync(ctx context.Context, apiKey string, p dashscope.ImageParams) ([]dashscope.ImageResult, error)
}

// AssetFetcher 下载生成资源
type AssetFetcher interface {
	Download(ctx context.Context, kind, url string) ([]byte, error)
}

// UpstreamRecorder 记录一次后端调用
type UpstreamRecorder interface {
	RecordUpstreamCall(modality, convention, model string, status int, duration time.Duration)
}

type nopUpstreamRecorder struct{}

func (nopUpstreamRecorder) RecordUpstreamCall(string, string, string, int, time.Duration) {}

// Dispatcher 为规范化请求选择调用约定并执行，一次请求只尝试一次
type Dispatcher struct {
	backend  Backend
	fetcher  AssetFetcher
	table    *CapabilityTable
	bridge   *Bridge
	recorder UpstreamRecorder
	tracer   trace.Tracer
	logger   *zap.Logger
}

// DispatcherOption 分发器选项
type DispatcherOption func(*Dispatcher)

// WithUpstreamRecorder 设置调用指标记录器
func WithUpstreamRecorder(r UpstreamRecorder) DispatcherOption {
	return func(d *Dispatcher) { d.recorder = r }
}

// WithTracer 设置 tracer
func WithTracer(t trace.Tracer) DispatcherOption {
	return func(d *Dispatcher) { d.tracer = t }
}

// NewDispatcher 创建分发器
func NewDispatcher(backend Backend, fetcher AssetFetcher, table *CapabilityTable, bridge *Bridge, logger *zap.Logger, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		backend:  backend,
		fetcher:  fetcher,
		table:    table,
		bridge:   bridge,
		recorder: nopUpstreamRecorder{},
		tracer:   noop.NewTracerProvider().Tracer(""),
		logger:   logger.With(zap.String("component", "dispatcher")),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// SelectConvention 生图调用约定：仅异步 → 异步；可同步 → 同步；其余 → 异步
func (d *Dispatcher) SelectConvention(backendModel string) Convention {
	entry := d.table.Classify(backendModel)
	switch {
	case entry.AsyncOnly():
		return ConventionAsync
	case entry.SyncOnly(), entry.SyncCapable:
		return ConventionSync
	default:
		return ConventionAsync
	}
}

// Transcribe 调用 Qwen ASR
func (d *Dispatcher) Transcribe(ctx context.Context, apiKey string, req *TranscriptionRequest) (*Result, error) {
	res := &Result{Modality: ModalityTranscription, Convention: ConventionSync}
	err := d.invoke(ctx, req, res, func(ctx context.Context) error {
		text, err := d.backend.Transcribe(ctx, apiKey, dashscope.TranscribeParams{
			Model:        req.BackendModel,
			AudioDataURI: req.AudioDataURI,
			Language:     req.Language,
			Prompt:       req.Prompt,
		})
		res.Text = text
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Speak 调用 Qwen TTS 并取回音频字节：优先内联数据，否则按 URL 下载
func (d *Dispatcher) Speak(ctx context.Context, apiKey string, req *SpeechRequest) (*Result, error) {
	res := &Result{Modality: ModalitySpeech, Convention: ConventionSync}
	err := d.invoke(ctx, req, res, func(ctx context.Context) error {
		out, err := d.backend.Synthesize(ctx, apiKey, dashscope.SpeechParams{
			Model: req.BackendModel,
			Text:  req.Input,
			Voice: req.BackendVoice,
		})
		if err != nil {
			return err
		}

		if out.Data != "" {
			res.Audio, err = dashscope.DecodeAudioData(out.Data)
			return err
		}
		audio, err := d.fetcher.Download(ctx, "audio", out.URL)
		if err != nil {
			return types.NewUpstreamError("failed to download synthesized audio").
				WithProvider(providerDashScope).
				WithCause(err)
		}
		res.Audio = audio
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// GenerateImage 按能力表选择同步或异步约定。异步约定经 Bridge 执行。
func (d *Dispatcher) GenerateImage(ctx context.Context, apiKey string, req *ImageRequest) (*Result, error) {
	convention := d.SelectConvention(req.BackendModel)
	res := &Result{Modality: ModalityImage, Convention: convention}
	params := dashscope.ImageParams{
		Model:          req.BackendModel,
		Prompt:         req.Prompt,
		NegativePrompt: req.NegativePrompt,
		Size:           req.Size,
		N:              req.N,
		PromptExtend:   req.PromptExtend,
		Watermark:      req.Watermark,
	}

	err := d.invoke(ctx, req, res, func(ctx context.Context) error {
		var (
			images []dashscope.ImageResult
			err    error
		)
		if convention == ConventionSync {
			images, err = d.backend.GenerateImageSync(ctx, apiKey, params)
		} else {
			err = d.bridge.Run(ctx, func(ctx context.Context) error {
				var runErr error
				images, runErr = d.backend.GenerateImageAsync(ctx, apiKey, params)
				return runErr
			})
		}
		if err != nil {
			return err
		}
		if len(images) == 0 {
			return types.NewUpstreamError("upstream response contained no image data").
				WithProvider(providerDashScope)
		}

		res.Assets = make([]Asset, 0, len(images))
		for _, img := range images {
			res.Assets = append(res.Assets, Asset{URL: img.URL, RevisedPrompt: img.ActualPrompt})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// invoke 包裹一次后端调用：span、耗时、指标、错误归一
func (d *Dispatcher) invoke(ctx context.Context, req Request, res *Result, call func(context.Context) error) error {
	modality := string(req.Modality())
	model := req.Model()

	ctx, span := d.tracer.Start(ctx, "dispatch."+modality,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("dashscope.model", model),
			attribute.String("dashscope.convention", string(res.Convention)),
		))
	defer span.End()

	start := time.Now()
	err := call(ctx)
	res.Elapsed = time.Since(start)

	if err != nil {
		mapped := MapError(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, mapped.Message)
		span.SetAttributes(attribute.Int("http.response.status_code", mapped.HTTPStatus))
		d.recorder.RecordUpstreamCall(modality, string(res.Convention), model, mapped.HTTPStatus, res.Elapsed)
		d.logger.Error("upstream call failed",
			zap.String("modality", modality),
			zap.String("model", model),
			zap.String("convention", string(res.Convention)),
			zap.Int("status", mapped.HTTPStatus),
			zap.Duration("elapsed", res.Elapsed),
			zap.Error(err))
		return mapped
	}

	d.recorder.RecordUpstreamCall(modality, string(res.Convention), model, http.StatusOK, res.Elapsed)
	d.logger.Info("upstream call completed",
		zap.String("modality", modality),
		zap.String("model", model),
		zap.String("convention", string(res.Convention)),
		zap.Duration("elapsed", res.Elapsed))
	return nil
}
