package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"rag-chat-be/internal/constant"
	"rag-chat-be/pkg/llm"
)

const (
	DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	DefaultModel   = "gemini-1.5-flash"
)

type GeminiProvider struct {
	ApiKey    string
	BaseURL   string
	ModelName string
	Client    *http.Client

	// StreamClient serves ChatStream; it has no overall timeout.
	StreamClient *http.Client
}

var _ llm.LLMProvider = &GeminiProvider{}

func NewGeminiProvider(apiKey, modelName string) *GeminiProvider {
	if modelName == "" {
		modelName = DefaultModel
	}
	return &GeminiProvider{
		ApiKey:    apiKey,
		BaseURL:   DefaultBaseURL,
		ModelName: modelName,
		Client:    llm.NewClient(),

		StreamClient: llm.NewStreamingClient(),
	}
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
	Role  string       `json:"role,omitempty"`
}

type generationConfig struct {
	Temperature     *float64 `json:"temperature,omitempty"`
	MaxOutputTokens int      `json:"maxOutputTokens,omitempty"`
}

type geminiRequest struct {
	Contents          []geminiContent   `json:"contents"`
	SystemInstruction *geminiContent    `json:"systemInstruction,omitempty"`
	GenerationConfig  *generationConfig `json:"generationConfig,omitempty"`
}

type geminiCandidate struct {
	Content      *geminiContent `json:"content"`
	FinishReason string         `json:"finishReason,omitempty"`
}

type geminiResponse struct {
	Candidates     []geminiCandidate `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason,omitempty"`
	} `json:"promptFeedback,omitempty"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// text joins the parts of the first candidate.
func (r *geminiResponse) text() (string, error) {
	if r.Error != nil {
		return "", fmt.Errorf("gemini error %d: %s", r.Error.Code, r.Error.Message)
	}
	if r.PromptFeedback != nil && r.PromptFeedback.BlockReason != "" {
		return "", fmt.Errorf("gemini blocked prompt: %s", r.PromptFeedback.BlockReason)
	}
	if len(r.Candidates) == 0 || r.Candidates[0].Content == nil {
		return "", nil
	}
	var sb strings.Builder
	for _, part := range r.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}
	return sb.String(), nil
}

// buildRequest moves system messages into systemInstruction and renames
// the assistant role to "model".
func (p *GeminiProvider) buildRequest(history []llm.Message, opts llm.Options) geminiRequest {
	req := geminiRequest{}
	var system []string
	for _, msg := range history {
		switch msg.Role {
		case constant.ChatMessageRoleSystem:
			system = append(system, msg.Content)
		case constant.ChatMessageRoleAssistant, constant.GeminiRoleModel:
			req.Contents = append(req.Contents, geminiContent{
				Role:  constant.GeminiRoleModel,
				Parts: []geminiPart{{Text: msg.Content}},
			})
		default:
			req.Contents = append(req.Contents, geminiContent{
				Role:  constant.ChatMessageRoleUser,
				Parts: []geminiPart{{Text: msg.Content}},
			})
		}
	}
	if len(system) > 0 {
		req.SystemInstruction = &geminiContent{
			Parts: []geminiPart{{Text: strings.Join(system, "\n\n")}},
		}
	}
	if opts.Temperature > 0 || opts.MaxTokens > 0 {
		cfg := &generationConfig{MaxOutputTokens: opts.MaxTokens}
		if opts.Temperature > 0 {
			t := opts.Temperature
			cfg.Temperature = &t
		}
		req.GenerationConfig = cfg
	}
	return req
}

func (p *GeminiProvider) post(ctx context.Context, client *http.Client, endpoint string, payload geminiRequest) (*http.Response, error) {
	payloadJson, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBuffer(payloadJson))
	if err != nil {
		return nil, err
	}
	req.Header.Set("x-goog-api-key", p.ApiKey)
	req.Header.Set("Content-Type", "application/json")

	res, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gemini request failed: %w", err)
	}
	if res.StatusCode != http.StatusOK {
		defer res.Body.Close()
		resBody, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf(
			"status error, got status %d. with response body %s",
			res.StatusCode,
			string(resBody),
		)
	}
	return res, nil
}

func (p *GeminiProvider) model(opts llm.Options) string {
	if opts.Model != "" {
		return opts.Model
	}
	return p.ModelName
}

func (p *GeminiProvider) Chat(ctx context.Context, history []llm.Message, options ...llm.Option) (string, error) {
	opts := llm.ApplyOptions(llm.Options{}, options...)
	endpoint := fmt.Sprintf("%s/models/%s:generateContent", p.BaseURL, p.model(opts))

	res, err := p.post(ctx, p.Client, endpoint, p.buildRequest(history, opts))
	if err != nil {
		return "", err
	}
	defer res.Body.Close()

	var geminiRes geminiResponse
	if err := json.NewDecoder(res.Body).Decode(&geminiRes); err != nil {
		return "", err
	}
	text, err := geminiRes.text()
	if err != nil {
		return "", err
	}
	if text == "" {
		return "", fmt.Errorf("empty response from gemini")
	}
	return text, nil
}

func (p *GeminiProvider) Generate(ctx context.Context, prompt string, options ...llm.Option) (string, error) {
	return p.Chat(ctx, []llm.Message{{Role: constant.ChatMessageRoleUser, Content: prompt}}, options...)
}

// ChatStream uses streamGenerateContent with alt=sse; every event carries a full
// geminiResponse holding the next slice of text.
func (p *GeminiProvider) ChatStream(ctx context.Context, history []llm.Message, options ...llm.Option) (*llm.Stream, error) {
	opts := llm.ApplyOptions(llm.Options{}, options...)
	endpoint := fmt.Sprintf("%s/models/%s:streamGenerateContent?alt=sse", p.BaseURL, p.model(opts))
	payload := p.buildRequest(history, opts)

	return llm.NewStream(ctx, func(ctx context.Context, emit func(string) error) error {
		res, err := p.post(ctx, p.StreamClient, endpoint, payload)
		if err != nil {
			return err
		}
		defer res.Body.Close()

		return llm.ReadSSE(res.Body, func(data string) error {
			var chunk geminiResponse
			if err := json.Unmarshal([]byte(data), &chunk); err != nil {
				return fmt.Errorf("decode gemini stream chunk: %w", err)
			}
			text, err := chunk.text()
			if err != nil {
				return err
			}
			return emit(text)
		})
	}), nil
}

func (p *GeminiProvider) GenerateStream(ctx context.Context, prompt string, options ...llm.Option) (*llm.Stream, error) {
	return p.ChatStream(ctx, []llm.Message{{Role: constant.ChatMessageRoleUser, Content: prompt}}, options...)
}
