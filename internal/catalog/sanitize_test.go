package catalog

import (
	"strings"
	"testing"
)

func TestSanitizeDescription(t *testing.T) {
	t.Parallel()

	got := SanitizeDescription(`<p>Madera <strong>natural</strong></p><script>alert(1)</script>`)
	if strings.Contains(got, "<script>") {
		t.Fatalf("expected script to be removed, got %q", got)
	}
	if !strings.Contains(got, "<strong>natural</strong>") {
		t.Fatalf("expected basic formatting to survive, got %q", got)
	}
}
