package catalog

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var descriptionPolicy = bluemonday.UGCPolicy()

// SanitizeDescription strips markup that is unsafe to render on product pages.
func SanitizeDescription(description string) string {
	return strings.TrimSpace(descriptionPolicy.Sanitize(description))
}
