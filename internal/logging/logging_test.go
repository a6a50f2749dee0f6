package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestFromContextFallbacks(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	fallback := slog.New(slog.NewTextHandler(&buf, nil))

	if got := FromContext(context.Background(), fallback); got != fallback {
		t.Fatalf("expected fallback logger")
	}
	if got := FromContext(context.Background(), nil); got == nil {
		t.Fatalf("expected discard logger")
	}

	scoped := slog.New(slog.NewTextHandler(&buf, nil))
	ctx := WithLogger(context.Background(), scoped)
	if got := FromContext(ctx, fallback); got != scoped {
		t.Fatalf("expected context logger")
	}
}

func TestWithAddsAttributes(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	ctx := With(context.Background(), slog.New(slog.NewJSONHandler(&buf, nil)), "order_id", "abc")
	FromContext(ctx, nil).Info("payment applied")

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("invalid json log: %v", err)
	}
	if record["order_id"] != "abc" || record["msg"] != "payment applied" {
		t.Fatalf("unexpected record %v", record)
	}
}

func TestNewFormats(t *testing.T) {
	t.Parallel()

	var jsonBuf bytes.Buffer
	New(Options{Level: slog.LevelInfo, Format: "json", Output: &jsonBuf}).Debug("hidden")
	New(Options{Level: slog.LevelInfo, Format: "JSON", Output: &jsonBuf}).Info("shown")
	if strings.Contains(jsonBuf.String(), "hidden") || !strings.Contains(jsonBuf.String(), `"msg":"shown"`) {
		t.Fatalf("unexpected json output %q", jsonBuf.String())
	}

	var textBuf bytes.Buffer
	New(Options{Level: slog.LevelDebug, Output: &textBuf}).Debug("tinted")
	if !strings.Contains(textBuf.String(), "tinted") {
		t.Fatalf("unexpected text output %q", textBuf.String())
	}
}

type recordingHandler struct {
	level   slog.Level
	records *[]string
}

func (h recordingHandler) Enabled(_ context.Context, level slog.Level) bool { return level >= h.level }
func (h recordingHandler) Handle(_ context.Context, r slog.Record) error {
	*h.records = append(*h.records, r.Message)
	return nil
}
func (h recordingHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h recordingHandler) WithGroup(string) slog.Handler      { return h }

func TestFanoutRespectsLevels(t *testing.T) {
	t.Parallel()

	var all, errorsOnly []string
	logger := slog.New(Fanout(
		recordingHandler{level: slog.LevelDebug, records: &all},
		nil,
		recordingHandler{level: slog.LevelError, records: &errorsOnly},
	))
	logger.Info("order created")
	logger.Error("payment webhook failed")

	if len(all) != 2 || len(errorsOnly) != 1 || errorsOnly[0] != "payment webhook failed" {
		t.Fatalf("unexpected fan out all=%v errors=%v", all, errorsOnly)
	}
}

func TestFanoutSingleHandlerIsUnwrapped(t *testing.T) {
	t.Parallel()

	var records []string
	handler := recordingHandler{level: slog.LevelInfo, records: &records}
	if got := Fanout(nil, handler); got != slog.Handler(handler) {
		t.Fatalf("expected the only handler back, got %T", got)
	}
}

func TestRedact(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(Redact(slog.NewJSONHandler(&buf, nil))).With("Authorization", "Bearer APP_USR-1")
	logger.Info("admin login",
		"email", "ana@kuma.example",
		"password", "hunter2",
		slog.Group("mercadopago", "access_token", "APP_USR-2", "payment_id", "123"),
	)

	out := buf.String()
	for _, secret := range []string{"hunter2", "APP_USR-1", "APP_USR-2"} {
		if strings.Contains(out, secret) {
			t.Fatalf("secret %q leaked into %q", secret, out)
		}
	}

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("invalid json log: %v", err)
	}
	if record["password"] != redacted || record["Authorization"] != redacted || record["email"] != "ana@kuma.example" {
		t.Fatalf("unexpected record %v", record)
	}
	group, ok := record["mercadopago"].(map[string]any)
	if !ok || group["payment_id"] != "123" || group["access_token"] != redacted {
		t.Fatalf("unexpected group %v", record["mercadopago"])
	}
}
