package gateway

import (
	"sort"
	"strings"
)

// =============================================================================
// 📋 模型能力表
// =============================================================================

// Modality 请求模态
type Modality string

const (
	ModalityTranscription Modality = "transcription"
	ModalitySpeech        Modality = "speech"
	ModalityImage         Modality = "image"
)

// Convention DashScope 调用约定
type Convention string

const (
	// ConventionSync 多模态同步接口，直接返回结果
	ConventionSync Convention = "sync"
	// ConventionAsync 提交任务后轮询，经 Bridge 执行
	ConventionAsync Convention = "async"
)

// CapabilityEntry 后端模型支持的调用约定
type CapabilityEntry struct {
	BackendModel string
	SyncCapable  bool
	AsyncCapable bool
}

// SyncOnly 仅支持同步
func (e CapabilityEntry) SyncOnly() bool { return e.SyncCapable && !e.AsyncCapable }

// AsyncOnly 仅支持异步
func (e CapabilityEntry) AsyncOnly() bool { return e.AsyncCapable && !e.SyncCapable }

var (
	asrModels = []string{
		"qwen3-asr-flash",
		"qwen3-asr-flash-2025-09-08",
		"qwen3-asr-flash-filetrans",
		"qwen3-asr-flash-filetrans-2025-11-17",
	}

	ttsModels = []string{
		"qwen3-tts-instruct-flash",
		"qwen3-tts-instruct-flash-2026-01-26",
		"qwen3-tts-vd-2026-01-26",
		"qwen3-tts-vc-2026-01-22",
		"qwen3-tts-flash",
		"qwen3-tts-flash-2025-11-27",
		"qwen3-tts-flash-2025-09-18",
		"qwen-tts",
		"qwen-tts-latest",
		"qwen-tts-2025-05-22",
		"qwen-tts-2025-04-10",
	}

	syncImageModels = []string{
		"qwen-image-max",
		"qwen-image-max-2025-12-30",
		"qwen-image-plus",
		"qwen-image-plus-2026-01-09",
		"qwen-image",
	}

	asyncImageModels = []string{
		"qwen-image-plus",
		"qwen-image-plus-2026-01-09",
		"qwen-image",
		"wan2.6-t2i",
		"wan2.5-t2i-preview",
		"wan2.2-t2i-plus",
		"wan2.2-t2i-flash",
		"wanx2.1-t2i-plus",
		"wanx2.1-t2i-turbo",
		"wanx2.0-t2i-turbo",
	}

	// 对外别名 → 后端模型；空值表示该模态的默认模型
	publicModelAliases = map[Modality]map[string]string{
		ModalityTranscription: {
			"whisper-1":              "",
			"gpt-4o-transcribe":      "",
			"gpt-4o-mini-transcribe": "",
		},
		ModalitySpeech: {
			"tts-1":    "qwen3-tts-flash",
			"tts-1-hd": "qwen3-tts-flash",
		},
		ModalityImage: {
			"dall-e-2":    "qwen-image-plus",
			"dall-e-3":    "qwen-image-max",
			"gpt-image-1": "qwen-image-max",
		},
	}

	publicVoiceAliases = map[string]string{
		"alloy":   "Chelsie",
		"ash":     "Ethan",
		"ballad":  "Serena",
		"coral":   "Cherry",
		"echo":    "Kai",
		"fable":   "Maia",
		"onyx":    "Nofish",
		"nova":    "Vivian",
		"sage":    "Moon",
		"shimmer": "Bella",
	}
)

// TableConfig 能力表的可配置默认值
type TableConfig struct {
	DefaultASR   string
	DefaultTTS   string
	DefaultImage string
	DefaultVoice string
	// DefaultSize 生图默认尺寸（W*H）
	DefaultSize string
}

// ModelInfo /v1/models 列表项
type ModelInfo struct {
	ID      string
	OwnedBy string
}

// CapabilityTable 启动时构建的只读模型/音色表，可被并发读取
type CapabilityTable struct {
	defaults     map[Modality]string
	defaultVoice string
	defaultSize  string

	modelAliases map[Modality]map[string]string
	voiceAliases map[string]string

	images map[string]CapabilityEntry
	models []ModelInfo
}

// NewCapabilityTable 构建能力表
func NewCapabilityTable(cfg TableConfig) *CapabilityTable {
	t := &CapabilityTable{
		defaults: map[Modality]string{
			ModalityTranscription: orDefault(cfg.DefaultASR, "qwen3-asr-flash"),
			ModalitySpeech:        orDefault(cfg.DefaultTTS, "qwen3-tts-flash"),
			ModalityImage:         orDefault(cfg.DefaultImage, "qwen-image-plus"),
		},
		defaultVoice: orDefault(cfg.DefaultVoice, "Chelsie"),
		defaultSize:  orDefault(cfg.DefaultSize, "1664*928"),
		modelAliases: make(map[Modality]map[string]string, len(publicModelAliases)),
		voiceAliases: make(map[string]string, len(publicVoiceAliases)),
		images:       make(map[string]CapabilityEntry),
	}

	for modality, aliases := range publicModelAliases {
		m := make(map[string]string, len(aliases))
		for public, backend := range aliases {
			if backend == "" {
				backend = t.defaults[modality]
			}
			m[public] = backend
		}
		t.modelAliases[modality] = m
	}
	for public, backend := range publicVoiceAliases {
		t.voiceAliases[public] = backend
	}

	for _, id := range syncImageModels {
		e := t.images[id]
		e.BackendModel, e.SyncCapable = id, true
		t.images[id] = e
	}
	for _, id := range asyncImageModels {
		e := t.images[id]
		e.BackendModel, e.AsyncCapable = id, true
		t.images[id] = e
	}

	t.models = t.buildModelList()
	return t
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

// DefaultModel 返回模态的默认后端模型
func (t *CapabilityTable) DefaultModel(m Modality) string { return t.defaults[m] }

// DefaultVoice 返回默认音色
func (t *CapabilityTable) DefaultVoice() string { return t.defaultVoice }

// DefaultSize 返回生图默认尺寸
func (t *CapabilityTable) DefaultSize() string { return t.defaultSize }

// ResolveModel 将对外模型名解析为后端模型。空值取默认模型；
// 别名匹配不区分大小写；未登记的名字原样透传。
func (t *CapabilityTable) ResolveModel(m Modality, public string) string {
	public = strings.TrimSpace(public)
	if public == "" {
		return t.defaults[m]
	}
	if backend, ok := t.modelAliases[m][strings.ToLower(public)]; ok {
		return backend
	}
	return public
}

// ResolveVoice 将对外音色名解析为后端音色，规则同 ResolveModel
func (t *CapabilityTable) ResolveVoice(public string) string {
	public = strings.TrimSpace(public)
	if public == "" {
		return t.defaultVoice
	}
	if backend, ok := t.voiceAliases[strings.ToLower(public)]; ok {
		return backend
	}
	return public
}

// Classify 返回生图模型支持的调用约定。按后端 id 精确匹配（区分大小写），
// 未登记的模型视为仅支持异步。
func (t *CapabilityTable) Classify(backend string) CapabilityEntry {
	if e, ok := t.images[backend]; ok {
		return e
	}
	return CapabilityEntry{BackendModel: backend, AsyncCapable: true}
}

// Models 返回 /v1/models 列表：ASR、TTS、生图模型与全部对外别名
func (t *CapabilityTable) Models() []ModelInfo {
	out := make([]ModelInfo, len(t.models))
	copy(out, t.models)
	return out
}

func (t *CapabilityTable) buildModelList() []ModelInfo {
	seen := make(map[string]struct{})
	var out []ModelInfo
	add := func(ids ...string) {
		for _, id := range ids {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, ModelInfo{ID: id, OwnedBy: "dashscope"})
		}
	}

	add(asrModels...)
	add(ttsModels...)

	images := make([]string, 0, len(t.images))
	for id := range t.images {
		images = append(images, id)
	}
	sort.Strings(images)
	add(images...)

	for _, m := range []Modality{ModalityTranscription, ModalitySpeech, ModalityImage} {
		aliases := make([]string, 0, len(t.modelAliases[m]))
		for public := range t.modelAliases[m] {
			aliases = append(aliases, public)
		}
		sort.Strings(aliases)
		add(aliases...)
	}
	return out
}
