package registration

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain text untouched", "Maria Souza", "Maria Souza"},
		{"markup stripped", "<b>Maria</b> <script>alert(1)</script>Souza", "Maria Souza"},
		{"ampersand kept", "Ana & Bia", "Ana & Bia"},
		{"whitespace folded", "  Maria \t  Souza ", "Maria Souza"},
		{"accents kept", "João Araújo", "João Araújo"},
		{"encoded markup stripped", "&lt;script&gt;alert(1)&lt;/script&gt;Maria", "Maria"},
		{"double encoded markup stripped", "&amp;lt;b&amp;gt;Maria&amp;lt;/b&amp;gt; Souza", "Maria Souza"},
		{"encoded ampersand decoded", "Ana &amp; Bia", "Ana & Bia"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeText(tt.in))
		})
	}
}

func TestSanitizeTextBoundsLength(t *testing.T) {
	got := SanitizeText(strings.Repeat("á", 500))
	assert.Equal(t, maxFieldLength, len([]rune(got)))
}

func TestSanitizeTextNeverReturnsMarkup(t *testing.T) {
	in := "&lt;img src=x onerror=alert(1)&gt;" + strings.Repeat("&amp;", 8) + "lt;script&gt;x"
	got := SanitizeText(in)
	assert.NotContains(t, got, "<img")
	assert.NotContains(t, got, "<script")
}
