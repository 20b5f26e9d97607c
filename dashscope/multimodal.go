package dashscope

import (
	"context"
	"strings"

	"go.uber.org/zap"
)

// Transcribe 调用 Qwen ASR 模型识别音频，返回识别文本。
// Endpoint: POST /services/aigc/multimodal-generation/generation
func (c *Client) Transcribe(ctx context.Context, apiKey string, p TranscribeParams) (string, error) {
	body := multimodalRequest{
		Model: p.Model,
		Input: multimodalInput{
			Messages: []requestMessage{
				{Role: RoleSystem, Content: []map[string]string{{"text": p.Prompt}}},
				{Role: RoleUser, Content: []map[string]string{{"audio": p.AudioDataURI}}},
			},
		},
		Parameters: asrParameters{
			ResultFormat: "message",
			ASROptions:   asrOptions{EnableITN: false, Language: p.Language},
		},
	}

	var resp multimodalResponse
	if err := c.postJSON(ctx, apiKey, multimodalPath, body, nil, &resp); err != nil {
		return "", err
	}

	if len(resp.Output.Choices) == 0 {
		return "", malformed("transcription response has no choices")
	}
	content := resp.Output.Choices[0].Message.Content
	if len(content) == 0 {
		return "", malformed("transcription response has empty message content")
	}

	c.logger.Debug("transcription completed",
		zap.String("model", p.Model),
		zap.String("request_id", resp.RequestID),
		zap.Int("text_len", len(content[0].Text)))
	return content[0].Text, nil
}

// Synthesize 调用 Qwen TTS 模型合成语音，返回内联数据或音频 URL。
// Endpoint: POST /services/aigc/multimodal-generation/generation
func (c *Client) Synthesize(ctx context.Context, apiKey string, p SpeechParams) (*AudioOutput, error) {
	body := multimodalRequest{
		Model: p.Model,
		Input: multimodalInput{Text: p.Text, Voice: p.Voice},
	}

	var resp multimodalResponse
	if err := c.postJSON(ctx, apiKey, multimodalPath, body, nil, &resp); err != nil {
		return nil, err
	}

	audio := resp.Output.Audio
	if audio == nil {
		return nil, malformed("speech response has no output.audio")
	}
	if audio.Data == "" && audio.URL == "" {
		return nil, malformed("speech response output.audio has neither url nor data")
	}
	return audio, nil
}

// GenerateImageSync 通过多模态同步接口生成图片（qwen-image 系列）。
// 成功但不含图片时返回空切片，由调用方决定如何报告。
func (c *Client) GenerateImageSync(ctx context.Context, apiKey string, p ImageParams) ([]ImageResult, error) {
	body := multimodalRequest{
		Model: p.Model,
		Input: multimodalInput{
			Messages: []requestMessage{
				{Role: RoleUser, Content: []map[string]string{{"text": p.Prompt}}},
			},
		},
		Parameters: imageSyncParameters{
			ResultFormat:   "message",
			Stream:         false,
			Watermark:      p.Watermark,
			PromptExtend:   p.PromptExtend,
			NegativePrompt: p.NegativePrompt,
			Size:           p.Size,
			N:              p.N,
		},
	}

	var resp multimodalResponse
	if err := c.postJSON(ctx, apiKey, multimodalPath, body, nil, &resp); err != nil {
		return nil, err
	}

	var images []ImageResult
	for _, choice := range resp.Output.Choices {
		for _, part := range choice.Message.Content {
			if url := strings.TrimSpace(part.Image); url != "" {
				images = append(images, ImageResult{URL: url})
			}
		}
	}
	return images, nil
}
