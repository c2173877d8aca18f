package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"medicose-chatbot-backend/apperrors"
	"medicose-chatbot-backend/config"
	"medicose-chatbot-backend/models"

	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"
)

const (
	defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta/models"
	defaultAITimeout     = 12 * time.Second
)

const assistantInstructions = "You are MediBot, an assistant inside an online medication and prescription tracking app called MediCose. " +
	"Answer in 3-5 short sentences. Focus ONLY on helping the user navigate app features (appointments, prescriptions, refills, medications, orders, dashboards, notifications). " +
	"Do NOT give any medical diagnosis, treatment, or dosing advice. Always remind users to consult a healthcare professional for medical decisions. " +
	"The user prefers language: "

// SystemPrompt returns the assistant instructions for the given language.
func SystemPrompt(lang models.Language) string {
	if lang == models.LanguageHindi {
		return assistantInstructions + "Hindi. Respond in simple, conversational Hindi (you may mix a little English for medical terms), use short sentences, and avoid complex or technical words."
	}
	return assistantInstructions + "English. Respond in simple, clear English with short sentences."
}

// UserPrompt carries the question and the canned answer to refine.
func UserPrompt(req CompletionRequest) string {
	role := req.Role
	if role == "" {
		role = models.RoleUser
	}
	prompt := fmt.Sprintf("User role: %s. Question: %s.", role, req.Question)
	if req.Suggestion != "" {
		prompt += "\n\nYou can refine this suggested navigation answer: " + req.Suggestion
	}
	return prompt
}

// BuildRefinementPrompt joins the system and user prompts for providers
// that take a single text part.
func BuildRefinementPrompt(req CompletionRequest) string {
	return SystemPrompt(req.Language) + "\n\n" + UserPrompt(req)
}

// NewCompleter picks the completion provider from config. A missing key or
// provider "none" yields a completer that is always unavailable.
func NewCompleter(cfg *config.Config) Completer {
	if !cfg.AIEnabled() {
		log.Info().Msg("AI completion disabled, replies use canned text")
		return NoopCompleter{}
	}
	switch cfg.AI.Provider {
	case "openai":
		return NewOpenAICompleter(cfg.AI.APIKey, cfg.AI.Model, cfg.AI.Timeout)
	default:
		return NewGeminiCompleter(cfg.AI.APIKey, cfg.AI.Model, cfg.AI.MaxTokens, cfg.AI.Timeout)
	}
}

type NoopCompleter struct{}

func (NoopCompleter) Complete(ctx context.Context, req CompletionRequest) CompletionResult {
	return Unavailable()
}

func normalizeTimeout(timeout time.Duration) time.Duration {
	if timeout <= 0 {
		return defaultAITimeout
	}
	return timeout
}

func available(text string) CompletionResult {
	text = strings.TrimSpace(text)
	if text == "" {
		return Unavailable()
	}
	return CompletionResult{Text: text, Available: true}
}

// GeminiCompleter calls the Gemini generateContent REST endpoint.
type GeminiCompleter struct {
	apiKey     string
	baseURL    string
	model      string
	maxTokens  int
	timeout    time.Duration
	httpClient *http.Client
}

func NewGeminiCompleter(apiKey, model string, maxTokens int, timeout time.Duration) *GeminiCompleter {
	if model == "" {
		model = "gemini-1.5-flash"
	}
	return &GeminiCompleter{
		apiKey:     apiKey,
		baseURL:    defaultGeminiBaseURL,
		model:      model,
		maxTokens:  maxTokens,
		timeout:    normalizeTimeout(timeout),
		httpClient: &http.Client{},
	}
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents         []geminiContent        `json:"contents"`
	GenerationConfig map[string]interface{} `json:"generationConfig,omitempty"`
	SafetySettings   []map[string]string    `json:"safetySettings,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

func (s *GeminiCompleter) Complete(ctx context.Context, req CompletionRequest) CompletionResult {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	text, err := s.generate(ctx, BuildRefinementPrompt(req))
	if err != nil {
		log.Warn().Err(err).Str("provider", "gemini").Msg("completion unavailable")
		return Unavailable()
	}
	return available(text)
}

func (s *GeminiCompleter) generate(ctx context.Context, prompt string) (string, error) {
	endpoint := fmt.Sprintf("%s/%s:generateContent?key=%s", s.baseURL, url.PathEscape(s.model), url.QueryEscape(s.apiKey))

	payload := geminiRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: prompt}}}},
		SafetySettings: []map[string]string{
			{"category": "HARM_CATEGORY_HARASSMENT", "threshold": "BLOCK_ONLY_HIGH"},
			{"category": "HARM_CATEGORY_HATE_SPEECH", "threshold": "BLOCK_ONLY_HIGH"},
		},
	}
	if s.maxTokens > 0 {
		payload.GenerationConfig = map[string]interface{}{
			"temperature":     0.7,
			"maxOutputTokens": s.maxTokens,
		}
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		// the request URL carries the API key, keep it out of the error
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			return "", apperrors.NewExternalError("gemini request failed", urlErr.Err)
		}
		return "", apperrors.NewExternalError("gemini request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	if resp.StatusCode != http.StatusOK {
		return "", apperrors.NewExternalError(fmt.Sprintf("gemini API status %d", resp.StatusCode), nil)
	}

	var result geminiResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", err
	}

	if len(result.Candidates) == 0 || len(result.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("no response generated")
	}
	parts := make([]string, 0, len(result.Candidates[0].Content.Parts))
	for _, part := range result.Candidates[0].Content.Parts {
		parts = append(parts, part.Text)
	}
	return strings.Join(parts, " "), nil
}

// OpenAICompleter calls the chat completion API through go-openai.
type OpenAICompleter struct {
	client  *openai.Client
	model   string
	timeout time.Duration
}

func NewOpenAICompleter(apiKey, model string, timeout time.Duration) *OpenAICompleter {
	return newOpenAICompleter(openai.NewClient(apiKey), model, timeout)
}

func newOpenAICompleter(client *openai.Client, model string, timeout time.Duration) *OpenAICompleter {
	if model == "" {
		model = openai.GPT3Dot5Turbo
	}
	return &OpenAICompleter{client: client, model: model, timeout: normalizeTimeout(timeout)}
}

func (c *OpenAICompleter) Complete(ctx context.Context, req CompletionRequest) CompletionResult {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	text, err := c.chat(ctx, req)
	if err != nil {
		log.Warn().Err(err).Str("provider", "openai").Msg("completion unavailable")
		return Unavailable()
	}
	return available(text)
}

func (c *OpenAICompleter) chat(ctx context.Context, req CompletionRequest) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: SystemPrompt(req.Language)},
			{Role: openai.ChatMessageRoleUser, Content: UserPrompt(req)},
		},
		Temperature: 0.2,
	})
	if err != nil {
		return "", apperrors.NewExternalError("openai chat completion failed", err)
	}
	if len(resp.Choices) == 0 {
		return "", apperrors.NewExternalError("openai returned no choices", nil)
	}
	return resp.Choices[0].Message.Content, nil
}
