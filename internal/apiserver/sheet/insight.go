package sheet

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"sheet-insights/internal/shared/model"
	"sheet-insights/pkg/logging"

	openai "github.com/sashabaranov/go-openai"
)

// 摘要不可用时返回给前端的占位文案
const (
	insightNoAPIKey = "AI API key not configured."
	insightFailed   = "Failed to generate AI insights."
	insightEmpty    = "No insights generated."
)

// insightSystemPrompt 摘要生成的系统提示词
const insightSystemPrompt = "You are a data analyst. Given a JSON array of spreadsheet rows, " +
	"summarize the data in a few concise sentences: what the columns represent, " +
	"notable patterns or outliers, and anything a business user should know. " +
	"Respond in plain text without markdown."

// Summarizer 表格数据摘要能力
//
// Summarize 永远返回可展示的文本：生成失败时返回占位文案而不是错误。
// 摘要是尽力而为的增强，它的失败不允许影响摄取管道的其余部分。
type Summarizer interface {
	Summarize(ctx context.Context, rows []model.Row) string
}

// ============================================================================
// OpenAISummarizer
// ============================================================================

// OpenAISummarizer 基于 OpenAI Chat Completion 的摘要实现
type OpenAISummarizer struct {
	client   *openai.Client
	model    string
	timeout  time.Duration
	maxBytes int
	log      *slog.Logger
}

// SummarizerOptions OpenAISummarizer 配置
type SummarizerOptions struct {
	APIKey string
	// Model 为空时使用 gpt-4o-mini
	Model string
	// Timeout 单次摘要调用的超时，零值时 30s
	Timeout time.Duration
	// MaxBytes 提交给模型的行数据 JSON 上限（字节），零值时 12000
	MaxBytes int
	Logger   *slog.Logger
}

// NewOpenAISummarizer 创建摘要器；未配置 API key 时返回 nil，
// 调用方应以占位实现替代
func NewOpenAISummarizer(opts SummarizerOptions) *OpenAISummarizer {
	if opts.APIKey == "" {
		return nil
	}
	if opts.Model == "" {
		opts.Model = openai.GPT4oMini
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = 12000
	}
	if opts.Logger == nil {
		opts.Logger = logging.Default()
	}
	return &OpenAISummarizer{
		client:   openai.NewClient(opts.APIKey),
		model:    opts.Model,
		timeout:  opts.Timeout,
		maxBytes: opts.MaxBytes,
		log:      opts.Logger,
	}
}

func (s *OpenAISummarizer) Summarize(ctx context.Context, rows []model.Row) string {
	payload, err := encodeRows(rows, s.maxBytes)
	if err != nil {
		s.log.Warn("encode rows for insight failed", logging.WithError(err))
		return insightFailed
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: insightSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: payload},
		},
	})
	if err != nil {
		s.log.Warn("insight generation failed", logging.WithError(err))
		return insightFailed
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return insightEmpty
	}
	return resp.Choices[0].Message.Content
}

// encodeRows 将行序列化为 JSON 数组，超出 maxBytes 时按整行边界截断。
// 截断发生在编码边界上，提交给模型的永远是合法 JSON。
func encodeRows(rows []model.Row, maxBytes int) (string, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for _, row := range rows {
		encoded, err := json.Marshal(row)
		if err != nil {
			return "", err
		}
		// +2 预留分隔逗号和收尾的 ']'
		if buf.Len()+len(encoded)+2 > maxBytes {
			break
		}
		if buf.Len() > 1 {
			buf.WriteByte(',')
		}
		buf.Write(encoded)
	}
	buf.WriteByte(']')
	return buf.String(), nil
}

// ============================================================================
// 占位实现
// ============================================================================

// NoKeySummarizer 未配置 API key 时的占位摘要器
type NoKeySummarizer struct{}

func (NoKeySummarizer) Summarize(ctx context.Context, rows []model.Row) string {
	return insightNoAPIKey
}

var (
	_ Summarizer = (*OpenAISummarizer)(nil)
	_ Summarizer = NoKeySummarizer{}
)
