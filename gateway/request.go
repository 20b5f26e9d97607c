package gateway

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BaSui01/dashscope-router/types"
)

// =============================================================================
// 📥 请求规范化（wire → canonical）
// =============================================================================

const (
	defaultMaxUploadBytes = 100 << 20
	// multipart 解析时驻留内存的上限，超出部分落临时文件
	multipartMemory = 32 << 20

	fallbackAudioMIME = "audio/mpeg"
	octetStream       = "application/octet-stream"
)

// audioMIMETypes 常见音频扩展名，优先于系统 mime 表
var audioMIMETypes = map[string]string{
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".flac": "audio/flac",
	".m4a":  "audio/mp4",
	".ogg":  "audio/ogg",
	".webm": "audio/webm",
	".mp4":  "audio/mp4",
	".opus": "audio/opus",
	".aac":  "audio/aac",
	".wma":  "audio/x-ms-wma",
	".amr":  "audio/amr",
	".pcm":  "audio/pcm",
}

// Normalizer 把三个端点的原始请求转换为规范化请求，不做任何后端调用
type Normalizer struct {
	table          *CapabilityTable
	maxUploadBytes int64
}

// NewNormalizer 创建请求规范化器。maxUploadBytes <= 0 时使用 100MB。
func NewNormalizer(table *CapabilityTable, maxUploadBytes int64) *Normalizer {
	if maxUploadBytes <= 0 {
		maxUploadBytes = defaultMaxUploadBytes
	}
	return &Normalizer{table: table, maxUploadBytes: maxUploadBytes}
}

// Transcription 解析 multipart 转写请求
func (n *Normalizer) Transcription(w http.ResponseWriter, r *http.Request) (*TranscriptionRequest, error) {
	r.Body = http.MaxBytesReader(w, r.Body, n.maxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		return nil, n.bodyError(err, "request must be multipart/form-data with a 'file' field")
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, types.NewInvalidRequestError("Missing required parameter: file")
	}
	defer file.Close()

	audio, err := io.ReadAll(file)
	if err != nil {
		return nil, types.NewInvalidRequestError("failed to read uploaded file").WithCause(err)
	}
	if len(audio) == 0 {
		return nil, types.NewInvalidRequestError("The uploaded audio file is empty.")
	}

	mimeType := ResolveAudioMIME(header.Header.Get("Content-Type"), header.Filename)
	f := formFields(r)
	req := &TranscriptionRequest{
		Common: Common{
			PublicModel:  f.str("model"),
			OutputFormat: f.format("response_format", "json"),
		},
		Audio:        audio,
		MIMEType:     mimeType,
		AudioDataURI: "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(audio),
		Filename:     header.Filename,
		Language:     f.str("language"),
		Prompt:       f.str("prompt"),
	}
	// temperature 仅为兼容而接受
	req.BackendModel = n.table.ResolveModel(ModalityTranscription, req.PublicModel)
	return req, nil
}

// Speech 解析语音合成请求（JSON / multipart / urlencoded）
func (n *Normalizer) Speech(w http.ResponseWriter, r *http.Request) (*SpeechRequest, error) {
	f, err := n.fields(w, r)
	if err != nil {
		return nil, err
	}

	input := f.str("input")
	if input == "" {
		return nil, types.NewInvalidRequestError("Missing required parameter: input")
	}

	voice := strings.TrimSpace(f.str("voice"))
	if voice == "" {
		voice = n.table.DefaultVoice()
	}

	// speed 仅为兼容而接受
	req := &SpeechRequest{
		Common: Common{
			PublicModel:  f.str("model"),
			OutputFormat: f.format("response_format", "mp3"),
		},
		Input:        input,
		PublicVoice:  voice,
		BackendVoice: n.table.ResolveVoice(voice),
	}
	req.BackendModel = n.table.ResolveModel(ModalitySpeech, req.PublicModel)
	return req, nil
}

// Image 解析文生图请求（JSON / multipart / urlencoded）
func (n *Normalizer) Image(w http.ResponseWriter, r *http.Request) (*ImageRequest, error) {
	f, err := n.fields(w, r)
	if err != nil {
		return nil, err
	}

	prompt := f.str("prompt")
	if strings.TrimSpace(prompt) == "" {
		return nil, types.NewInvalidRequestError("Missing required parameter: prompt")
	}

	count, err := f.positiveInt("n", 1)
	if err != nil {
		return nil, err
	}
	promptExtend, err := f.boolean("prompt_extend", true)
	if err != nil {
		return nil, err
	}
	watermark, err := f.boolean("watermark", false)
	if err != nil {
		return nil, err
	}

	req := &ImageRequest{
		Common: Common{
			PublicModel:  f.str("model"),
			OutputFormat: f.format("response_format", "url"),
		},
		Prompt:         prompt,
		NegativePrompt: f.str("negative_prompt"),
		Size:           NormalizeSize(f.str("size"), n.table.DefaultSize()),
		N:              count,
		PromptExtend:   promptExtend,
		Watermark:      watermark,
	}
	req.BackendModel = n.table.ResolveModel(ModalityImage, req.PublicModel)
	return req, nil
}

// NormalizeSize 将 "WxH" / "WXH" 转为 DashScope 的 "W*H"，空值返回 def
func NormalizeSize(size, def string) string {
	size = strings.TrimSpace(size)
	if size == "" {
		return def
	}
	return strings.NewReplacer("x", "*", "X", "*").Replace(size)
}

// ResolveAudioMIME 依次取声明的类型、扩展名表、系统 mime 表，最后回落到 audio/mpeg
func ResolveAudioMIME(declared, filename string) string {
	declared = strings.TrimSpace(declared)
	if declared != "" && !strings.EqualFold(declared, octetStream) {
		return declared
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		return fallbackAudioMIME
	}
	if m, ok := audioMIMETypes[ext]; ok {
		return m
	}
	if m := mime.TypeByExtension(ext); m != "" {
		return m
	}
	return fallbackAudioMIME
}

// -----------------------------------------------------------------------------
// 请求体字段
// -----------------------------------------------------------------------------

// fieldSet 统一 JSON 与表单两种请求体的字段读取
type fieldSet map[string]string

// fields 按 Content-Type 解析请求体。未知类型按 JSON 尝试，失败时报告该类型。
func (n *Normalizer) fields(w http.ResponseWriter, r *http.Request) (fieldSet, error) {
	r.Body = http.MaxBytesReader(w, r.Body, n.maxUploadBytes)
	contentType := r.Header.Get("Content-Type")
	mediaType, _, _ := mime.ParseMediaType(contentType)

	switch mediaType {
	case "application/json":
		f, err := jsonFields(r.Body)
		if err != nil {
			return nil, n.bodyError(err, "Request body must be valid JSON.")
		}
		return f, nil

	case "multipart/form-data":
		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			return nil, n.bodyError(err, "failed to parse multipart form")
		}
		return formFields(r), nil

	case "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			return nil, n.bodyError(err, "failed to parse form body")
		}
		return formFields(r), nil

	default:
		f, err := jsonFields(r.Body)
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				return nil, n.bodyError(err, "")
			}
			return nil, types.NewInvalidRequestError(
				"Unsupported Content-Type: %q. Use application/json.", contentType).WithCause(err)
		}
		return f, nil
	}
}

func (n *Normalizer) bodyError(err error, message string) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return types.NewInvalidRequestError("Request body exceeds %d bytes.", n.maxUploadBytes).WithCause(err)
	}
	return types.NewInvalidRequestError("%s", message).WithCause(err)
}

// jsonFields 解析 JSON 对象；null 视为缺省，非字符串标量保留原始文本
func jsonFields(body io.Reader) (fieldSet, error) {
	var raw map[string]json.RawMessage
	if err := json.NewDecoder(body).Decode(&raw); err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, errors.New("request body is not a JSON object")
	}

	f := make(fieldSet, len(raw))
	for k, v := range raw {
		v = bytes.TrimSpace(v)
		switch {
		case len(v) == 0 || string(v) == "null":
			continue
		case v[0] == '"':
			var s string
			if err := json.Unmarshal(v, &s); err != nil {
				return nil, fmt.Errorf("field %q: %w", k, err)
			}
			f[k] = s
		default:
			f[k] = string(v)
		}
	}
	return f, nil
}

func formFields(r *http.Request) fieldSet {
	f := make(fieldSet, len(r.PostForm))
	for k, vs := range r.PostForm {
		if len(vs) > 0 {
			f[k] = vs[0]
		}
	}
	return f
}

func (f fieldSet) str(name string) string { return f[name] }

// format 读取输出格式：小写，空值取默认
func (f fieldSet) format(name, def string) string {
	v := strings.ToLower(strings.TrimSpace(f[name]))
	if v == "" {
		return def
	}
	return v
}

func (f fieldSet) positiveInt(name string, def int) (int, error) {
	v := strings.TrimSpace(f[name])
	if v == "" {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil || i < 1 {
		return 0, types.NewInvalidRequestError("Invalid value for '%s': must be a positive integer.", name)
	}
	return i, nil
}

func (f fieldSet) boolean(name string, def bool) (bool, error) {
	v := strings.TrimSpace(f[name])
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, types.NewInvalidRequestError("Invalid value for '%s': must be a boolean.", name)
	}
	return b, nil
}
