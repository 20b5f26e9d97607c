package gateway

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/BaSui01/dashscope-router/internal/pool"
	"github.com/BaSui01/dashscope-router/types"
)

// =============================================================================
// 🌉 阻塞调用桥
// =============================================================================

// Bridge 在有界工作池上执行阻塞的后端调用（提交任务 + 轮询），
// 请求处理 goroutine 只在等待结果时挂起。
type Bridge struct {
	pool     *pool.Pool
	queueDur metric.Float64Histogram
	logger   *zap.Logger
}

// NewBridge 创建桥。meter 为 nil 时不记录排队时长。
func NewBridge(p *pool.Pool, meter metric.Meter, logger *zap.Logger) (*Bridge, error) {
	b := &Bridge{
		pool:   p,
		logger: logger.With(zap.String("component", "bridge")),
	}
	if meter != nil {
		h, err := meter.Float64Histogram("bridge.queue.duration",
			metric.WithDescription("Time a blocking call waited for a bridge worker"),
			metric.WithUnit("s"))
		if err != nil {
			return nil, err
		}
		b.queueDur = h
	}
	return b, nil
}

// Run 把 fn 交给工作池并等待其完成。
//
// 排队期间若 ctx 已结束，任务直接放弃；一旦开始执行，fn 拿到的是
// 与请求解绑的 context，客户端断开不会中止它，只受后端超时约束。
// 工作池已满返回 503 upstream_error / bridge_saturated。
func (b *Bridge) Run(ctx context.Context, fn func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	enqueued := time.Now()
	task := func(detached context.Context) error {
		if b.queueDur != nil {
			b.queueDur.Record(detached, time.Since(enqueued).Seconds())
		}
		if err := ctx.Err(); err != nil {
			// 尚未派发，调用方已离开
			return err
		}
		return fn(detached)
	}

	done, err := b.pool.Go(context.WithoutCancel(ctx), task)
	if err != nil {
		if errors.Is(err, pool.ErrPoolFull) || errors.Is(err, pool.ErrPoolClosed) {
			stats := b.pool.Stats()
			b.logger.Warn("bridge rejected blocking call",
				zap.Error(err),
				zap.Int("active", stats.Active),
				zap.Int("queued", stats.Queued))
			return types.NewError(types.ErrUpstream, "bridge saturated, retry later").
				WithCode(types.CodeBridgeFull).
				WithHTTPStatus(http.StatusServiceUnavailable).
				WithCause(err)
		}
		return err
	}
	return <-done
}

// Stats 返回底层工作池统计
func (b *Bridge) Stats() pool.Stats { return b.pool.Stats() }
