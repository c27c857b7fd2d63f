package analyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/ktindi/document-pipeline-api/internal/models"
	"github.com/ktindi/document-pipeline-api/internal/utils"
)

const maxTextChars = 20000

var validSentiments = map[string]bool{
	"positive": true,
	"negative": true,
	"neutral":  true,
	"mixed":    true,
}

// Analyzer is the LLM analysis collaborator consumed by the worker.
type Analyzer interface {
	Analyze(ctx context.Context, text string) (*models.LLMAnalysisResult, error)
}

type openAIAnalyzer struct {
	apiKey  string
	baseURL string
	model   string
	logger  *utils.Logger
	client  *http.Client
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
	Temperature    float64         `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []chatChoice `json:"choices"`
	Error   *struct {
		Message string `json:"message"`
		Code    string `json:"code"`
	} `json:"error,omitempty"`
}

type chatChoice struct {
	Message chatMessage `json:"message"`
}

func NewOpenAIAnalyzer(apiKey, baseURL, model string, logger *utils.Logger) Analyzer {
	return &openAIAnalyzer{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		logger:  logger,
		client: &http.Client{
			Timeout: 45 * time.Second,
		},
	}
}

func buildPrompt(text string) string {
	if len(text) > maxTextChars {
		text = text[:maxTextChars]
	}

	return fmt.Sprintf(`Analyze the document text and return ONLY valid JSON with this exact shape:
{
  "summary": "3-5 sentence concise summary",
  "key_topics": ["topic1", "topic2"],
  "sentiment": "positive|negative|neutral|mixed",
  "actionable_items": ["item1", "item2"]
}

Rules:
- summary must be 3-5 sentences.
- key_topics and actionable_items must be arrays of strings.
- sentiment must be exactly one of: positive, negative, neutral, mixed.
- If no actionable items are present, return an empty array.

Document text:
%s`, text)
}

// Analyze calls the chat completions API and validates the model output
// against the analysis contract. Every failure is an *AnalysisError.
func (a *openAIAnalyzer) Analyze(ctx context.Context, text string) (*models.LLMAnalysisResult, error) {
	if a.apiKey == "" {
		return nil, newAnalysisError("OPENAI_API_KEY is not configured", nil)
	}

	reqBody := chatRequest{
		Model: a.model,
		Messages: []chatMessage{
			{
				Role:    "system",
				Content: "You are a precise document analysis assistant.",
			},
			{
				Role:    "user",
				Content: buildPrompt(text),
			},
		},
		ResponseFormat: &responseFormat{Type: "json_object"},
		Temperature:    0.2,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, newAnalysisError("failed to marshal request", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", a.baseURL+"/chat/completions", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, newAnalysisError("failed to create request", err)
	}

	req.Header.Set("Authorization", "Bearer "+a.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, newAnalysisError("failed to reach model API", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, newAnalysisError("failed to read model response", err)
	}

	if resp.StatusCode != http.StatusOK {
		a.logger.Error("Model API error", "status", resp.StatusCode, "body", string(body))
		return nil, newAnalysisError(fmt.Sprintf("model API returned status %d", resp.StatusCode), nil)
	}

	var completion chatResponse
	if err := json.Unmarshal(body, &completion); err != nil {
		return nil, newAnalysisError("failed to unmarshal model response", err)
	}

	if completion.Error != nil {
		return nil, newAnalysisError("model API error: "+completion.Error.Message, nil)
	}

	if len(completion.Choices) == 0 || strings.TrimSpace(completion.Choices[0].Message.Content) == "" {
		return nil, newAnalysisError("empty completion content", nil)
	}

	result, err := parseAnalysis(completion.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}

	result.RawModelOutput = json.RawMessage(body)
	return result, nil
}

var sentenceSplitter = regexp.MustCompile(`[.!?]+`)

func countSentences(text string) int {
	parts := sentenceSplitter.Split(text, -1)
	count := 0
	for _, part := range parts {
		if strings.TrimSpace(part) != "" {
			count++
		}
	}
	return count
}

// normalizeStringList coerces a raw JSON value into a list of trimmed,
// non-empty strings. Absent or non-array input becomes an empty list.
func normalizeStringList(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return []string{}
	}

	var items []interface{}
	if err := json.Unmarshal(raw, &items); err != nil {
		return []string{}
	}

	normalized := []string{}
	for _, item := range items {
		s := strings.TrimSpace(fmt.Sprint(item))
		if s != "" {
			normalized = append(normalized, s)
		}
	}
	return normalized
}

// parseAnalysis parses and validates the model's JSON payload.
func parseAnalysis(content string) (*models.LLMAnalysisResult, error) {
	var parsed struct {
		Summary         string          `json:"summary"`
		KeyTopics       json.RawMessage `json:"key_topics"`
		Sentiment       string          `json:"sentiment"`
		ActionableItems json.RawMessage `json:"actionable_items"`
	}

	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return nil, newAnalysisError("failed to parse model output as JSON", err)
	}

	summary := strings.TrimSpace(parsed.Summary)
	sentences := countSentences(summary)
	if sentences < 3 || sentences > 5 {
		return nil, newAnalysisError("model summary is not within 3-5 sentences", nil)
	}

	if !validSentiments[parsed.Sentiment] {
		return nil, newAnalysisError("model returned invalid sentiment value", nil)
	}

	return &models.LLMAnalysisResult{
		Summary:         summary,
		KeyTopics:       normalizeStringList(parsed.KeyTopics),
		Sentiment:       parsed.Sentiment,
		ActionableItems: normalizeStringList(parsed.ActionableItems),
	}, nil
}
