package email

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

const mailgunBaseURL = "https://api.mailgun.net/v3"

type MailgunProvider struct {
	apiKey     string
	from       string
	domain     string
	baseURL    string
	httpClient *http.Client
}

type mailgunResponse struct {
	Message string `json:"message"`
	ID      string `json:"id"`
}

func NewMailgunProvider(apiKey, domain, from string) *MailgunProvider {
	return &MailgunProvider{
		apiKey:     apiKey,
		domain:     domain,
		from:       from,
		baseURL:    mailgunBaseURL,
		httpClient: newHTTPClient(),
	}
}

func (m *MailgunProvider) SendEmail(ctx context.Context, email *Email) error {
	if err := validateEmail(email); err != nil {
		return err
	}

	form := url.Values{}
	form.Set("from", m.from)
	form.Set("to", email.To)
	form.Set("subject", email.Subject)
	form.Set("o:tag", email.tag())
	if email.Reference != "" {
		form.Set("v:order", email.Reference)
	}
	if email.Text != "" {
		form.Set("text", email.Text)
	}
	if email.HTML != "" {
		form.Set("html", email.HTML)
	}

	body, status, err := m.do(ctx, http.MethodPost, "/messages", strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to send email via mailgun: %w", err)
	}
	if status != http.StatusOK {
		var errResp mailgunResponse
		if json.Unmarshal(body, &errResp) == nil && errResp.Message != "" {
			return fmt.Errorf("mailgun error (%d): %s", status, errResp.Message)
		}
		return fmt.Errorf("mailgun API returned status %d: %s", status, string(body))
	}
	return nil
}

func (m *MailgunProvider) ValidateAPIKey(ctx context.Context) error {
	body, status, err := m.do(ctx, http.MethodGet, "", nil)
	if err != nil {
		return fmt.Errorf("failed to validate mailgun API key: %w", err)
	}
	if status != http.StatusOK {
		return fmt.Errorf("invalid mailgun API key: received status %d: %s", status, string(body))
	}
	return nil
}

// do calls {baseURL}/domains/{domain}{path} for validation and
// {baseURL}/{domain}{path} for everything else.
func (m *MailgunProvider) do(ctx context.Context, method, path string, form io.Reader) ([]byte, int, error) {
	endpoint := fmt.Sprintf("%s/%s%s", m.baseURL, m.domain, path)
	if method == http.MethodGet {
		endpoint = fmt.Sprintf("%s/domains/%s%s", m.baseURL, m.domain, path)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, form)
	if err != nil {
		return nil, 0, err
	}
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	req.SetBasicAuth("api", m.apiKey)

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read mailgun response: %w", err)
	}
	return body, resp.StatusCode, nil
}
