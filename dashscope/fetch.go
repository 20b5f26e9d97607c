package dashscope

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// maxAssetBytes 单个生成资源（图片/音频）的下载上限
const maxAssetBytes = 64 << 20

// Download 以普通 GET 下载生成资源（OSS 签名 URL，无需鉴权头）。
// kind 仅用于指标与日志，例如 "image"、"audio"。
func (c *Client) Download(ctx context.Context, kind, assetURL string) ([]byte, error) {
	data, err := c.download(ctx, assetURL)
	c.recorder.RecordAssetFetch(kind, err == nil, len(data))
	if err != nil {
		c.logger.Warn("asset download failed",
			zap.String("kind", kind),
			zap.String("url", truncateURL(assetURL)),
			zap.Error(err))
		return nil, err
	}
	return data, nil
}

func (c *Client) download(ctx context.Context, assetURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, assetURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build asset request: %w", err)
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	resp, err := c.assets.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch asset: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch asset: unexpected status %d", resp.StatusCode)
	}

	buf := c.buffers.Get()
	defer c.buffers.Put(buf)

	n, err := buf.ReadFrom(io.LimitReader(resp.Body, maxAssetBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read asset: %w", err)
	}
	if n > maxAssetBytes {
		return nil, fmt.Errorf("asset exceeds %d bytes", maxAssetBytes)
	}

	// buf 会被复用，返回独立副本
	return bytes.Clone(buf.Bytes()), nil
}

// DecodeAudioData 解码 TTS 内联音频，支持 data URI 与裸 base64 两种形式
func DecodeAudioData(data string) ([]byte, error) {
	payload := strings.TrimSpace(data)
	if strings.HasPrefix(payload, "data:") {
		_, after, ok := strings.Cut(payload, ",")
		if !ok {
			return nil, malformed("audio data URI has no payload")
		}
		payload = after
	}

	out, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		// 部分模型返回无填充的 base64
		if raw, rawErr := base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "=")); rawErr == nil {
			return raw, nil
		}
		return nil, malformed("decode inline audio: %v", err)
	}
	return out, nil
}

func truncateURL(u string) string {
	const limit = 120
	if len(u) <= limit {
		return u
	}
	return u[:limit] + "..."
}
