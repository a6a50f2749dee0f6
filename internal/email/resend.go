package email

import (
	"context"
	"fmt"

	resend "github.com/resend/resend-go/v3"
)

// ResendProvider sends through the Resend SDK. Deliveries carry the template
// as a "category" tag, and the order number as X-Entity-Ref-ID so mail
// clients never thread two orders together.
type ResendProvider struct {
	from   string
	client *resend.Client
}

func NewResendProvider(apiKey, from string) *ResendProvider {
	return &ResendProvider{
		from:   from,
		client: resend.NewClient(apiKey),
	}
}

func (r *ResendProvider) SendEmail(ctx context.Context, email *Email) error {
	if err := validateEmail(email); err != nil {
		return err
	}

	params := &resend.SendEmailRequest{
		From:    r.from,
		To:      []string{email.To},
		Subject: email.Subject,
		Html:    email.HTML,
		Text:    email.Text,
		Tags:    []resend.Tag{{Name: "category", Value: email.tag()}},
	}
	if email.Reference != "" {
		params.Headers = map[string]string{"X-Entity-Ref-ID": email.Reference}
	}
	if _, err := r.client.Emails.SendWithContext(ctx, params); err != nil {
		return fmt.Errorf("failed to send %s email via resend: %w", email.tag(), err)
	}
	return nil
}

func (r *ResendProvider) ValidateAPIKey(ctx context.Context) error {
	if _, err := r.client.ApiKeys.ListWithContext(ctx); err != nil {
		return fmt.Errorf("invalid resend API key: %w", err)
	}
	return nil
}
