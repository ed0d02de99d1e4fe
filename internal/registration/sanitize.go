package registration

import (
	"html"
	"sync"

	"github.com/microcosm-cc/bluemonday"

	strutil "eventreg/pkg/platform/strings"
)

// maxFieldLength bounds free-text contact fields and the search box.
const maxFieldLength = 200

// maxSanitizePasses bounds how many layers of entity encoding are peeled.
const maxSanitizePasses = 5

var (
	textPolicyOnce sync.Once
	textPolicy     *bluemonday.Policy
)

// SanitizeText strips markup from a free-text field, folds whitespace and
// bounds its length. Stripping and entity decoding repeat until the text is
// stable, so "Ana & Bia" survives while entity-encoded markup is removed.
// Text that is still changing after maxSanitizePasses is left escaped.
func SanitizeText(raw string) string {
	policy := textSanitizer()
	cleaned := raw
	stable := false
	for range maxSanitizePasses {
		next := html.UnescapeString(policy.Sanitize(cleaned))
		if next == cleaned {
			stable = true
			break
		}
		cleaned = next
	}
	if !stable {
		cleaned = policy.Sanitize(cleaned)
	}
	return strutil.Truncate(strutil.CollapseSpaces(cleaned), maxFieldLength)
}

func textSanitizer() *bluemonday.Policy {
	textPolicyOnce.Do(func() {
		textPolicy = bluemonday.StrictPolicy()
	})
	return textPolicy
}
