package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/pkg/errors"
)

const defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// DefaultModel is used when a user's feature config does not pin a model.
const DefaultModel = "gemini-2.0-flash"

// GeminiClient implements Client against the Gemini generateContent API.
// Transient failures are retried by the underlying retryablehttp transport.
type GeminiClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewGeminiClient creates a Gemini-backed narrative client.
func NewGeminiClient() *GeminiClient {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 2
	retryClient.RetryWaitMin = 1 * time.Second
	retryClient.RetryWaitMax = 10 * time.Second
	retryClient.HTTPClient = &http.Client{Timeout: 60 * time.Second}
	retryClient.Logger = nil

	return &GeminiClient{
		baseURL:    defaultGeminiBaseURL,
		httpClient: retryClient.StandardClient(),
	}
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	SystemInstruction *geminiContent  `json:"system_instruction,omitempty"`
	Contents          []geminiContent `json:"contents"`
	GenerationConfig  struct {
		Temperature     float64 `json:"temperature"`
		MaxOutputTokens int     `json:"maxOutputTokens"`
	} `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int32 `json:"promptTokenCount"`
		CandidatesTokenCount int32 `json:"candidatesTokenCount"`
		TotalTokenCount      int32 `json:"totalTokenCount"`
	} `json:"usageMetadata"`
}

// Complete sends a system+user message pair to Gemini and returns the raw
// text plus token usage.
func (c *GeminiClient) Complete(ctx context.Context, creds Credentials, messages []Message) (*Completion, error) {
	if creds.APIKey == "" {
		return nil, &ProviderError{
			Code:     ErrProviderUnavailable,
			Message:  "API key is empty",
			Provider: "gemini",
		}
	}
	model := creds.Model
	if model == "" {
		model = DefaultModel
	}

	var reqBody geminiRequest
	for _, m := range messages {
		if m.Role == RoleSystem {
			reqBody.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: m.Content}}}
			continue
		}
		reqBody.Contents = append(reqBody.Contents, geminiContent{Parts: []geminiPart{{Text: m.Content}}})
	}
	reqBody.GenerationConfig.Temperature = 0.1
	reqBody.GenerationConfig.MaxOutputTokens = 4096

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal request")
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, model, creds.APIKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &ProviderError{
			Code:      ErrProviderUnavailable,
			Message:   "Gemini API call failed",
			Provider:  "gemini",
			Retryable: true,
			Cause:     err,
		}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read response")
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, &ProviderError{
			Code:      ErrProviderRateLimited,
			Message:   "Gemini API rate limited",
			Provider:  "gemini",
			Retryable: true,
		}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &ProviderError{
			Code:     ErrProviderUnavailable,
			Message:  fmt.Sprintf("Gemini API error %d: %s", resp.StatusCode, truncate(string(respBody), 200)),
			Provider: "gemini",
		}
	}

	var gr geminiResponse
	if err := json.Unmarshal(respBody, &gr); err != nil {
		return nil, &ProviderError{
			Code:     ErrMalformedResponse,
			Message:  "failed to parse Gemini response envelope",
			Provider: "gemini",
			Cause:    err,
		}
	}
	if len(gr.Candidates) == 0 || len(gr.Candidates[0].Content.Parts) == 0 {
		return nil, &ProviderError{
			Code:     ErrEmptyResponse,
			Message:  "empty Gemini response",
			Provider: "gemini",
		}
	}

	return &Completion{
		Content: gr.Candidates[0].Content.Parts[0].Text,
		Usage: TokenUsage{
			PromptTokens:     gr.UsageMetadata.PromptTokenCount,
			CompletionTokens: gr.UsageMetadata.CandidatesTokenCount,
			TotalTokens:      gr.UsageMetadata.TotalTokenCount,
		},
	}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
