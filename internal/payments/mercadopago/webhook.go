package mercadopago

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	ErrMissingSignature = errors.New("missing x-signature header")
	ErrInvalidSignature = errors.New("invalid webhook signature")
)

// Notification is the subset of a MercadoPago webhook body the store acts on.
type Notification struct {
	Type   string
	Action string
	DataID string
}

// IsPayment reports whether the notification refers to a payment.
func (n Notification) IsPayment() bool {
	if n.Type == "payment" {
		return true
	}
	return n.Action == "payment.created" || n.Action == "payment.updated"
}

type notificationBody struct {
	Type   string `json:"type"`
	Topic  string `json:"topic"`
	Action string `json:"action"`
	Data   struct {
		ID json.RawMessage `json:"id"`
	} `json:"data"`
}

// ParseNotification reads the JSON body and falls back to the query string
// form (?type=payment&data.id=123 or ?topic=payment&id=123).
func ParseNotification(r *http.Request, body []byte) (Notification, error) {
	var n Notification
	if len(strings.TrimSpace(string(body))) > 0 {
		var decoded notificationBody
		if err := json.Unmarshal(body, &decoded); err != nil {
			return n, fmt.Errorf("invalid notification body: %w", err)
		}
		n.Type = decoded.Type
		if n.Type == "" {
			n.Type = decoded.Topic
		}
		n.Action = decoded.Action
		n.DataID = rawID(decoded.Data.ID)
	}

	query := r.URL.Query()
	if n.Type == "" {
		n.Type = firstNonEmpty(query.Get("type"), query.Get("topic"))
	}
	if n.DataID == "" {
		n.DataID = firstNonEmpty(query.Get("data.id"), query.Get("id"))
	}
	return n, nil
}

// rawID accepts both numeric and string JSON ids.
func rawID(raw json.RawMessage) string {
	value := strings.TrimSpace(string(raw))
	if value == "" || value == "null" {
		return ""
	}
	return strings.Trim(value, `"`)
}

// VerifySignature checks the x-signature header against the HMAC-SHA256 of
// the manifest "id:{data.id};request-id:{x-request-id};ts:{ts};".
func VerifySignature(r *http.Request, dataID, secret string) error {
	header := strings.TrimSpace(r.Header.Get("x-signature"))
	if header == "" {
		return ErrMissingSignature
	}

	var ts, v1 string
	for _, part := range strings.Split(header, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch strings.TrimSpace(key) {
		case "ts":
			ts = strings.TrimSpace(value)
		case "v1":
			v1 = strings.TrimSpace(value)
		}
	}
	if ts == "" || v1 == "" {
		return ErrInvalidSignature
	}

	expected := Sign(dataID, r.Header.Get("x-request-id"), ts, secret)
	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(v1))) {
		return ErrInvalidSignature
	}
	return nil
}

// Sign builds the hex HMAC MercadoPago sends in x-signature.
func Sign(dataID, requestID, ts, secret string) string {
	var manifest strings.Builder
	if dataID != "" {
		manifest.WriteString("id:" + strings.ToLower(dataID) + ";")
	}
	if requestID != "" {
		manifest.WriteString("request-id:" + requestID + ";")
	}
	manifest.WriteString("ts:" + ts + ";")

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(manifest.String()))
	return hex.EncodeToString(mac.Sum(nil))
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value)
		}
	}
	return ""
}
