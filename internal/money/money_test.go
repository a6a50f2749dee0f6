package money

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func TestCentsRoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		amount string
		cents  int64
	}{
		{name: "whole", amount: "1200", cents: 120000},
		{name: "fraction", amount: "15.5", cents: 1550},
		{name: "rounds half up", amount: "0.125", cents: 13},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			amount := decimal.RequireFromString(tt.amount)
			if got := ToCents(amount); got != tt.cents {
				t.Fatalf("ToCents(%s) = %d, want %d", tt.amount, got, tt.cents)
			}
			back := FromCents(tt.cents)
			if !back.Equal(amount.Round(2)) {
				t.Fatalf("FromCents(%d) = %s, want %s", tt.cents, back, amount.Round(2))
			}
		})
	}
}

func TestParse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{input: "1234.50", want: "1234.5"},
		{input: "1.234,50", want: "1234.5"},
		{input: "$ 999", want: "999"},
		{input: "", wantErr: true},
		{input: "abc", wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()

			got, err := Parse(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %s", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !got.Equal(decimal.RequireFromString(tt.want)) {
				t.Fatalf("Parse(%q) = %s, want %s", tt.input, got, tt.want)
			}
		})
	}
}

func TestFormatUsesLocalSeparators(t *testing.T) {
	t.Parallel()

	got := Format(decimal.RequireFromString("1234567.5"))
	if !strings.HasPrefix(got, "$ ") {
		t.Fatalf("expected currency prefix, got %q", got)
	}
	if !strings.Contains(got, "234.567") || !strings.HasSuffix(got, ",50") {
		t.Fatalf("expected es-AR separators, got %q", got)
	}
}
