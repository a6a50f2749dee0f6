package crypto

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestNewSealer(t *testing.T) {
	t.Parallel()

	t.Run("missing key", func(t *testing.T) {
		t.Parallel()

		_, err := NewSealer("")
		if !errors.Is(err, ErrMissingKey) {
			t.Fatalf("expected ErrMissingKey, got %v", err)
		}
	})

	t.Run("invalid key length", func(t *testing.T) {
		t.Parallel()

		_, err := NewSealer("short")
		if !errors.Is(err, ErrInvalidKey) {
			t.Fatalf("expected ErrInvalidKey, got %v", err)
		}
	})

	t.Run("valid key length", func(t *testing.T) {
		t.Parallel()

		sealer, err := NewSealer(strings.Repeat("k", 32))
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if sealer == nil {
			t.Fatal("expected sealer instance")
		}
	})
}

func TestSealOpenRoundTrip(t *testing.T) {
	t.Parallel()

	sealer, err := NewSealer(strings.Repeat("k", 32))
	if err != nil {
		t.Fatalf("failed to build sealer: %v", err)
	}

	payload := []byte(`{"items":[]}`)
	first, err := sealer.Seal(payload)
	if err != nil {
		t.Fatalf("seal failed: %v", err)
	}
	second, err := sealer.Seal(payload)
	if err != nil {
		t.Fatalf("seal failed: %v", err)
	}
	if first == second {
		t.Fatal("expected a fresh nonce per seal")
	}

	opened, err := sealer.Open(first)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if !bytes.Equal(opened, payload) {
		t.Fatalf("opened %q, want %q", opened, payload)
	}
}

func TestOpenRejectsTamperedValue(t *testing.T) {
	t.Parallel()

	sealer, err := NewSealer(strings.Repeat("k", 32))
	if err != nil {
		t.Fatalf("failed to build sealer: %v", err)
	}

	sealed, err := sealer.Seal([]byte("cart"))
	if err != nil {
		t.Fatalf("seal failed: %v", err)
	}

	tampered := []byte(sealed)
	mid := len(tampered) / 2
	if tampered[mid] == 'A' {
		tampered[mid] = 'B'
	} else {
		tampered[mid] = 'A'
	}

	if _, err := sealer.Open(string(tampered)); err == nil {
		t.Fatal("expected error for tampered value")
	}
	if _, err := sealer.Open("AAAA"); !errors.Is(err, ErrSealedTooShort) {
		t.Fatalf("expected ErrSealedTooShort, got %v", err)
	}
}

func TestSigner(t *testing.T) {
	t.Parallel()

	if _, err := NewSigner("short"); !errors.Is(err, ErrWeakSecret) {
		t.Fatalf("expected ErrWeakSecret, got %v", err)
	}

	signer, err := NewSigner(strings.Repeat("s", 32))
	if err != nil {
		t.Fatalf("failed to build signer: %v", err)
	}

	signed := signer.Sign("2f1c5e1e-7a4a-4d3c-9d8f-0a1b2c3d4e5f")
	if !strings.HasPrefix(signed, "2f1c5e1e-7a4a-4d3c-9d8f-0a1b2c3d4e5f.") {
		t.Fatalf("expected readable value prefix, got %q", signed)
	}

	value, err := signer.Verify(signed)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if value != "2f1c5e1e-7a4a-4d3c-9d8f-0a1b2c3d4e5f" {
		t.Fatalf("unexpected value %q", value)
	}

	for _, bad := range []string{"", "no-tag", "value.", ".tag", "other-value." + strings.Split(signed, ".")[1]} {
		if _, err := signer.Verify(bad); !errors.Is(err, ErrInvalidSignature) {
			t.Fatalf("Verify(%q) expected ErrInvalidSignature, got %v", bad, err)
		}
	}

	other, err := NewSigner(strings.Repeat("o", 32))
	if err != nil {
		t.Fatalf("failed to build signer: %v", err)
	}
	if _, err := other.Verify(signed); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected signature from another secret to be rejected, got %v", err)
	}
}
