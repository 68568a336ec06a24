package normalizers

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Ramsey-B/fern/pkg/models"
)

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "john@example.com", NormalizeEmail("  John@Example.COM "))
	assert.Equal(t, "", NormalizeEmail("   "))

	v := NormalizeEmailValue(models.String(" A@X.com"))
	s, _ := v.AsString()
	assert.Equal(t, "a@x.com", s)

	n := models.Number(42)
	assert.True(t, NormalizeEmailValue(n).Equal(n), "non-string values pass through")
}

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"(555) 123-4567", "5551234567"},
		{" +33 6 12 34 56 78", "+33612345678"},
		{"555.123.4567 ext +2", "55512345672"},
		{"", ""},
		{"abc", ""},
		{"+", "+"},
		{" +abc", "+"},
		{"٣٤٥ 12", "12"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizePhone(tt.input))
		})
	}
}

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"strips trailing slash", "https://example.com/about/", "https://example.com/about"},
		{"strips fragment", "https://example.com/a#section", "https://example.com/a"},
		{"root path", "https://Example.com/", "https://example.com"},
		{"keeps query", "https://example.com/p/?q=1", "https://example.com/p?q=1"},
		{"no scheme falls back", "  Example.COM/Page ", "example.com/page"},
		{"garbage falls back", "%%NOT A URL", "%%not a url"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeURL(tt.input))
		})
	}
}

func TestNormalizeSocialHandles(t *testing.T) {
	attrs := models.Attributes{
		"twitter":  models.String("  @JohnDoe "),
		"github":   models.String("JDoe"),
		"linkedin": models.Number(12),
		"email":    models.String("ignored@x.com"),
	}

	handles := NormalizeSocialHandles(attrs)
	assert.Equal(t, map[string]string{
		"twitter": "@johndoe",
		"github":  "jdoe",
	}, handles)
}

func TestApply(t *testing.T) {
	assert.Equal(t, "+15551234567", Apply("+1 (555) 123-4567", "nphone"))
	assert.Equal(t, " x ", Apply(" x ", "unknown"))
}

func TestNormalizeForKey(t *testing.T) {
	v := NormalizeForKey("website", models.String("https://x.com/"))
	s, _ := v.AsString()
	assert.Equal(t, "https://x.com", s)

	email, _ := NormalizeForKey("email", models.String(" John@X.com")).AsString()
	assert.Equal(t, "john@x.com", email)

	n := models.Number(7)
	assert.True(t, NormalizeForKey("email", n).Equal(n), "non-string email values pass through")

	other := models.String(" Keep ")
	assert.True(t, NormalizeForKey("nickname", other).Equal(other))
}
