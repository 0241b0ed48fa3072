package llm

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/billsense/billsense/internal/common"
	"github.com/billsense/billsense/internal/model"
)

const defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// categorizationPrompt instructs the model to answer with a single JSON
// object. The normalizer tolerates fenced or partially malformed output.
const categorizationPrompt = `Analyze this image and categorize it. Provide your response as a JSON object with the following structure:

{
    "categories": [
        {
            "name": "category_name",
            "confidence": 0.95,
            "description": "Brief description of why this category applies"
        }
    ],
    "primary_category": "main_category_name",
    "bill_recognised": true,
    "bill_details": {
        "total_amount": 1234.56,
        "currency": "INR",
        "tax": 50.00,
        "vendor_name": "Store Name",
        "date": "2024-12-25",
        "items": [
            {
                "name": "Item description",
                "quantity": 2,
                "price": 100.00,
                "currency": "INR"
            }
        ]
    },
    "summary": "Brief summary of what the image contains"
}

IMPORTANT RULES:
1. bill_recognised must be a boolean (true/false), set to true if the image is a bill, receipt, invoice, or any document showing prices/transactions
2. If bill_recognised is true, you MUST include bill_details with at least total_amount
3. If bill_recognised is false, set bill_details to null
4. Extract ALL visible line items with their prices
5. Currency should be detected from the bill (INR, USD, EUR, etc.)
6. For quantity, use 1 if not explicitly shown

Categories should be specific. Only the following categories are allowed:
- food
- fuel
- medical

Provide at least 1 and up to 5 relevant categories, ordered by confidence (highest first).
Only respond with the JSON object, no additional text.`

// geminiClient implements the Client interface for the Gemini REST API.
type geminiClient struct {
	httpClient *http.Client
	apiKey     string
	model      string
	baseURL    string
}

// newGeminiClient creates a new Gemini API client. A client without an API
// key is returned unconfigured rather than failing, so the surrounding
// service can start and report itself degraded.
func newGeminiClient(cfg Config) (Client, error) {
	geminiModel := cfg.Model
	if geminiModel == "" {
		geminiModel = "gemini-2.0-flash"
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultGeminiBaseURL
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}

	return &geminiClient{
		apiKey:  cfg.APIKey,
		model:   geminiModel,
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}, nil
}

// IsConfigured reports whether the client has an API key.
func (c *geminiClient) IsConfigured() bool {
	return c.apiKey != ""
}

// Categorize sends the categorization prompt plus the payload to Gemini and
// returns the raw response text.
func (c *geminiClient) Categorize(ctx context.Context, payload model.ImagePayload, filename string) (string, error) {
	if !c.IsConfigured() {
		return "", fmt.Errorf("%w: GEMINI_API_KEY is not set", common.ErrClassifierUnavailable)
	}

	parts := []map[string]any{
		{"text": categorizationPrompt},
	}
	if payload.IsText() {
		parts = append(parts, map[string]any{"text": string(payload.Data)})
	} else {
		parts = append(parts, map[string]any{
			"inline_data": map[string]any{
				"mime_type": payload.MIMEType,
				"data":      base64.StdEncoding.EncodeToString(payload.Data),
			},
		})
	}

	return c.generateContent(ctx, parts)
}

// CheckHealth verifies the API is reachable with a minimal request.
func (c *geminiClient) CheckHealth(ctx context.Context) bool {
	if !c.IsConfigured() {
		return false
	}

	text, err := c.generateContent(ctx, []map[string]any{{"text": "Reply with 'ok'"}})
	if err != nil {
		return false
	}
	return strings.Contains(strings.ToLower(text), "ok")
}

func (c *geminiClient) generateContent(ctx context.Context, parts []map[string]any) (string, error) {
	requestBody := map[string]any{
		"contents": []map[string]any{
			{"parts": parts},
		},
	}

	jsonBody, err := json.Marshal(requestBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, c.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(string(jsonBody)))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: request failed: %v", common.ErrClassifierUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: gemini API error (status %d): %s", common.ErrClassifierUnavailable, resp.StatusCode, string(body))
	}

	var response geminiResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}

	if len(response.Candidates) == 0 || len(response.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("no content in response")
	}

	var sb strings.Builder
	for _, part := range response.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}

	return sb.String(), nil
}

// geminiResponse represents the Gemini API response structure.
type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
			Role string `json:"role"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
}
