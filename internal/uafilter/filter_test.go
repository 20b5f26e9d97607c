package uafilter

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"

	"github.com/BaSui01/dashscope-router/config"
)

func TestFilter_Allowed(t *testing.T) {
	tests := []struct {
		name  string
		cfg   config.UAWhitelistConfig
		ua    string
		allow bool
	}{
		{name: "disabled allows everything", cfg: config.UAWhitelistConfig{Enabled: false, Rules: []string{"curl/*"}}, ua: "wget/1.0", allow: true},
		{name: "enabled without rules allows", cfg: config.UAWhitelistConfig{Enabled: true}, ua: "", allow: true},
		{name: "empty UA denied", cfg: config.UAWhitelistConfig{Enabled: true, Rules: []string{"*"}}, ua: "", allow: false},
		{name: "prefix match crosses slash", cfg: config.UAWhitelistConfig{Enabled: true, Rules: []string{"curl/*"}}, ua: "curl/8.4.0", allow: true},
		{name: "case insensitive", cfg: config.UAWhitelistConfig{Enabled: true, Rules: []string{"*OpenAI*"}}, ua: "openai/python 1.30.1", allow: true},
		{name: "rule upper UA lower", cfg: config.UAWhitelistConfig{Enabled: true, Rules: []string{"CURL/*"}}, ua: "curl/7.0", allow: true},
		{name: "no match denied", cfg: config.UAWhitelistConfig{Enabled: true, Rules: []string{"curl/*"}}, ua: "Mozilla/5.0", allow: false},
		{name: "question mark single char", cfg: config.UAWhitelistConfig{Enabled: true, Rules: []string{"app-?"}}, ua: "app-1", allow: true},
		{name: "question mark not two chars", cfg: config.UAWhitelistConfig{Enabled: true, Rules: []string{"app-?"}}, ua: "app-12", allow: false},
		{name: "char class", cfg: config.UAWhitelistConfig{Enabled: true, Rules: []string{"bot[0-9]"}}, ua: "bot7", allow: true},
		{name: "whole string anchored", cfg: config.UAWhitelistConfig{Enabled: true, Rules: []string{"curl"}}, ua: "curl/8", allow: false},
		{name: "blank rules ignored", cfg: config.UAWhitelistConfig{Enabled: true, Rules: []string{"  ", ""}}, ua: "anything", allow: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := New(tt.cfg, nil)
			assert.Equal(t, tt.allow, f.Allowed(tt.ua))
		})
	}
}

func TestFilter_Update(t *testing.T) {
	f := New(config.UAWhitelistConfig{Enabled: true, Rules: []string{"curl/*"}}, nil)
	assert.False(t, f.Allowed("python-requests/2.31"))

	f.Update(config.UAWhitelistConfig{Enabled: true, Rules: []string{"Python-*"}})
	assert.True(t, f.Allowed("python-requests/2.31"))
	assert.False(t, f.Allowed("curl/8.0"))
	assert.Equal(t, []string{"python-*"}, f.Rules())
	assert.True(t, f.Enabled())

	f.Update(config.UAWhitelistConfig{Enabled: false})
	assert.True(t, f.Allowed("curl/8.0"))
	assert.False(t, f.Enabled())
}

func TestFilter_ConcurrentUpdate(t *testing.T) {
	f := New(config.UAWhitelistConfig{Enabled: true, Rules: []string{"a*"}}, nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				f.Allowed("abc")
			}
		}()
		go func(i int) {
			defer wg.Done()
			f.Update(config.UAWhitelistConfig{Enabled: i%2 == 0, Rules: []string{"a*"}})
		}(i)
	}
	wg.Wait()
	assert.True(t, f.Allowed("abc"))
}

// 任意非空 UA 都能被自身（转义后）或 "*" 匹配
func TestFilter_Property_LiteralAndStar(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		ua := rapid.StringMatching(`[A-Za-z0-9/ .;()_-]{1,40}`).Draw(t, "ua")

		star := New(config.UAWhitelistConfig{Enabled: true, Rules: []string{"*"}}, nil)
		if !star.Allowed(ua) {
			t.Fatalf("'*' should match %q", ua)
		}

		self := New(config.UAWhitelistConfig{Enabled: true, Rules: []string{strings.ToUpper(ua)}}, nil)
		if !self.Allowed(ua) {
			t.Fatalf("rule equal to UA (different case) should match %q", ua)
		}
	})
}
