// Package email sends transactional order emails through Resend, Postmark
// or Mailgun.
package email

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kumamontessori/kuma/internal/observability"
)

const (
	ProviderNone     = "none"
	ProviderResend   = "resend"
	ProviderPostmark = "postmark"
	ProviderMailgun  = "mailgun"
)

type Provider interface {
	SendEmail(ctx context.Context, email *Email) error
	ValidateAPIKey(ctx context.Context) error
}

// Email is one rendered message. Tag names the template so providers can
// group deliveries; Reference is the order number the message is about.
type Email struct {
	To        string
	Subject   string
	Text      string
	HTML      string
	Tag       string
	Reference string
}

type Config struct {
	Provider string
	APIKey   string
	From     string
	Domain   string // Mailgun only
}

// NewProvider returns nil without an error when email is disabled.
func NewProvider(config Config) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(config.Provider)) {
	case "", ProviderNone:
		return nil, nil
	case ProviderPostmark:
		return NewPostmarkProvider(config.APIKey, config.From), nil
	case ProviderMailgun:
		return NewMailgunProvider(config.APIKey, config.Domain, config.From), nil
	case ProviderResend:
		return NewResendProvider(config.APIKey, config.From), nil
	default:
		return nil, fmt.Errorf("EMAIL_PROVIDER must be one of 'none', 'postmark', 'mailgun' or 'resend'")
	}
}

func newHTTPClient() *http.Client {
	return observability.NewHTTPClient(30 * time.Second)
}

func validateEmail(email *Email) error {
	if email == nil {
		return fmt.Errorf("email is required")
	}
	if strings.TrimSpace(email.To) == "" {
		return fmt.Errorf("email recipient is required")
	}
	if email.HTML == "" && email.Text == "" {
		return fmt.Errorf("email body is empty")
	}
	return nil
}

const defaultTag = "pedidos"

func (e *Email) tag() string {
	if e.Tag == "" {
		return defaultTag
	}
	return e.Tag
}
