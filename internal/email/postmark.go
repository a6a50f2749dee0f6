package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

const postmarkBaseURL = "https://api.postmarkapp.com"

type PostmarkProvider struct {
	apiKey     string
	from       string
	baseURL    string
	httpClient *http.Client
}

type postmarkResponse struct {
	ErrorCode int    `json:"ErrorCode"`
	Message   string `json:"Message"`
	MessageID string `json:"MessageID"`
}

type postmarkEmail struct {
	From          string            `json:"From"`
	To            string            `json:"To"`
	Subject       string            `json:"Subject"`
	TextBody      string            `json:"TextBody,omitempty"`
	HtmlBody      string            `json:"HtmlBody,omitempty"`
	Tag           string            `json:"Tag,omitempty"`
	Metadata      map[string]string `json:"Metadata,omitempty"`
	MessageStream string            `json:"MessageStream"`
}

func NewPostmarkProvider(apiKey, from string) *PostmarkProvider {
	return &PostmarkProvider{
		apiKey:     apiKey,
		from:       from,
		baseURL:    postmarkBaseURL,
		httpClient: newHTTPClient(),
	}
}

func (p *PostmarkProvider) SendEmail(ctx context.Context, email *Email) error {
	if err := validateEmail(email); err != nil {
		return err
	}

	message := postmarkEmail{
		From:          p.from,
		To:            email.To,
		Subject:       email.Subject,
		TextBody:      email.Text,
		HtmlBody:      email.HTML,
		Tag:           email.tag(),
		MessageStream: "outbound",
	}
	if email.Reference != "" {
		message.Metadata = map[string]string{"order": email.Reference}
	}
	payload, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal email: %w", err)
	}

	body, status, err := p.do(ctx, http.MethodPost, "/email", payload)
	if err != nil {
		return fmt.Errorf("failed to send email via postmark: %w", err)
	}

	var result postmarkResponse
	if jsonErr := json.Unmarshal(body, &result); jsonErr == nil && result.ErrorCode != 0 {
		return fmt.Errorf("postmark error (%d): %s", result.ErrorCode, result.Message)
	}
	if status != http.StatusOK {
		return fmt.Errorf("postmark API returned status %d: %s", status, string(body))
	}
	return nil
}

func (p *PostmarkProvider) ValidateAPIKey(ctx context.Context) error {
	body, status, err := p.do(ctx, http.MethodGet, "/server", nil)
	if err != nil {
		return fmt.Errorf("failed to validate postmark API key: %w", err)
	}
	if status != http.StatusOK {
		return fmt.Errorf("invalid postmark API key: received status %d: %s", status, string(body))
	}
	return nil
}

func (p *PostmarkProvider) do(ctx context.Context, method, path string, payload []byte) ([]byte, int, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, reader)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Postmark-Server-Token", p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read postmark response: %w", err)
	}
	return body, resp.StatusCode, nil
}
