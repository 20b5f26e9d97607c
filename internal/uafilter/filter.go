package uafilter

import (
	"strings"
	"sync/atomic"

	"github.com/gobwas/glob"
	"go.uber.org/zap"

	"github.com/BaSui01/dashscope-router/config"
)

// ruleSet 一次编译得到的不可变规则快照
type ruleSet struct {
	enabled  bool
	patterns []string
	globs    []glob.Glob
}

// Filter 判断 User-Agent 是否在白名单内，规则可在运行时原子替换。
type Filter struct {
	rules  atomic.Pointer[ruleSet]
	logger *zap.Logger
}

// New 根据白名单配置创建过滤器
func New(cfg config.UAWhitelistConfig, logger *zap.Logger) *Filter {
	if logger == nil {
		logger = zap.NewNop()
	}
	f := &Filter{logger: logger.With(zap.String("component", "ua_filter"))}
	f.Update(cfg)
	return f
}

// Update 编译并替换规则。无法解析的规则按字面量匹配。
func (f *Filter) Update(cfg config.UAWhitelistConfig) {
	rs := &ruleSet{enabled: cfg.Enabled}
	for _, raw := range cfg.Rules {
		pattern := strings.ToLower(strings.TrimSpace(raw))
		if pattern == "" {
			continue
		}
		g, err := glob.Compile(pattern)
		if err != nil {
			f.logger.Warn("invalid UA rule, matching literally",
				zap.String("rule", raw), zap.Error(err))
			g = glob.MustCompile(glob.QuoteMeta(pattern))
		}
		rs.patterns = append(rs.patterns, pattern)
		rs.globs = append(rs.globs, g)
	}
	f.rules.Store(rs)

	f.logger.Info("UA whitelist updated",
		zap.Bool("enabled", rs.enabled),
		zap.Strings("rules", rs.patterns))
}

// Allowed 返回 ua 是否放行：
// 未启用或无规则时放行；启用且 UA 为空时拒绝；否则不区分大小写地做通配符匹配。
func (f *Filter) Allowed(ua string) bool {
	rs := f.rules.Load()
	if !rs.enabled || len(rs.globs) == 0 {
		return true
	}
	if ua == "" {
		return false
	}

	lower := strings.ToLower(ua)
	for _, g := range rs.globs {
		if g.Match(lower) {
			return true
		}
	}
	return false
}

// Rules 返回当前生效的（小写）规则
func (f *Filter) Rules() []string {
	rs := f.rules.Load()
	out := make([]string, len(rs.patterns))
	copy(out, rs.patterns)
	return out
}

// Enabled 返回白名单是否启用
func (f *Filter) Enabled() bool {
	return f.rules.Load().enabled
}
