package main

import (
	"context"
	"runtime"
	"runtime/debug"
	"time"

	"go.uber.org/zap"
)

// runPeriodicGC 按固定间隔强制 GC 并把空闲堆归还操作系统，直到 ctx 结束。
// 大块上传音频与下载的图片会让堆在请求结束后长时间保持高水位。
func runPeriodicGC(ctx context.Context, interval time.Duration, logger *zap.Logger) {
	if interval <= 0 {
		logger.Info("periodic GC disabled")
		return
	}
	logger.Info("periodic GC started", zap.Duration("interval", interval))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			released := collectGarbage()
			if released > 0 {
				logger.Debug("periodic GC", zap.Uint64("released_bytes", released))
			}
		}
	}
}

// collectGarbage 返回本轮归还给操作系统的字节数
func collectGarbage() uint64 {
	var before, after runtime.MemStats
	runtime.ReadMemStats(&before)
	runtime.GC()
	debug.FreeOSMemory()
	runtime.ReadMemStats(&after)
	if after.HeapReleased <= before.HeapReleased {
		return 0
	}
	return after.HeapReleased - before.HeapReleased
}
