package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"

	"scribe-eye-go/internal/config"
	apperrors "scribe-eye-go/pkg/errors"
)

// StructuredRequest 描述一次受 JSON schema 约束的生成请求。
type StructuredRequest struct {
	Name         string
	Description  string
	Instructions string
	Input        string
	Schema       map[string]interface{}
}

// StructuredClient 生成符合 schema 的 JSON，并解码到 out。
// 输出无法解码时返回 ErrMalformedExtraction。
type StructuredClient interface {
	GenerateStructured(ctx context.Context, req StructuredRequest, out any) error
}

type openAIStructuredClient struct {
	client          *openai.Client
	model           string
	temperature     float64
	maxOutputTokens int64
}

// NewStructuredClient 使用 OpenAI Responses API 的 json_schema 输出格式。
// extraction 中未配置的模型回退到 llm.model。
func NewStructuredClient(llmCfg config.LLMConfig, extCfg config.ExtractionConfig, opts ...option.RequestOption) StructuredClient {
	base := []option.RequestOption{
		option.WithAPIKey(llmCfg.APIKey),
		// 重试由调用方根据错误类型决定
		option.WithMaxRetries(0),
	}
	if llmCfg.BaseURL != "" {
		base = append(base, option.WithBaseURL(llmCfg.BaseURL))
	}
	client := openai.NewClient(append(base, opts...)...)

	model := extCfg.Model
	if model == "" {
		model = llmCfg.Model
	}
	maxTokens := int64(extCfg.MaxOutputTokens)
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	return &openAIStructuredClient{
		client:          &client,
		model:           model,
		temperature:     extCfg.Temperature,
		maxOutputTokens: maxTokens,
	}
}

func (c *openAIStructuredClient) GenerateStructured(ctx context.Context, req StructuredRequest, out any) error {
	format := responses.ResponseFormatTextConfigUnionParam{
		OfJSONSchema: &responses.ResponseFormatTextJSONSchemaConfigParam{
			Name:        req.Name,
			Schema:      req.Schema,
			Strict:      openai.Bool(true),
			Description: openai.String(req.Description),
			Type:        "json_schema",
		},
	}
	params := responses.ResponseNewParams{
		Model:           c.model,
		MaxOutputTokens: openai.Int(c.maxOutputTokens),
		Temperature:     openai.Float(c.temperature),
		Instructions:    openai.String(req.Instructions),
		Input: responses.ResponseNewParamsInputUnion{
			OfInputItemList: []responses.ResponseInputItemUnionParam{
				responses.ResponseInputItemParamOfMessage(req.Input, responses.EasyInputMessageRoleUser),
			},
		},
		Text: responses.ResponseTextConfigParam{
			Format: format,
		},
	}

	resp, err := c.client.Responses.New(ctx, params)
	if err != nil {
		return classifyOpenAIError(err)
	}
	if err := decodeModelJSON(resp.OutputText(), out); err != nil {
		return apperrors.Wrap(apperrors.ErrMalformedExtraction, err, "structured output is not valid JSON")
	}
	return nil
}

func classifyOpenAIError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= 500 {
			return apperrors.Wrap(apperrors.ErrProviderUnavailable, err, "structured generation failed")
		}
		return apperrors.Wrap(apperrors.ErrInvalidInput, err, "structured generation rejected")
	}
	return apperrors.Wrap(apperrors.ErrProviderUnavailable, err, "structured generation failed")
}

// decodeModelJSON unmarshals JSON from a model response, tolerating text
// around the first top-level JSON object.
func decodeModelJSON(outputText string, v any) error {
	s := strings.TrimSpace(outputText)
	if s == "" {
		return io.ErrUnexpectedEOF
	}
	if err := json.Unmarshal([]byte(s), v); err == nil {
		return nil
	}

	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start == -1 || end == -1 || end <= start {
		return fmt.Errorf("no JSON object found in model output (len=%d)", len(s))
	}
	sub := s[start : end+1]
	if err := json.Unmarshal([]byte(sub), v); err != nil {
		return fmt.Errorf("failed to unmarshal extracted JSON (len=%d): %w", len(sub), err)
	}
	return nil
}
