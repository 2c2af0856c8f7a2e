package render

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStripHTML(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "simple HTML tags",
			input:    "<p>Hello <strong>World</strong></p>",
			expected: "Hello World",
		},
		{
			name:     "HTML entities",
			input:    "&amp; &lt; &gt; &quot;",
			expected: "& < > \"",
		},
		{
			name:     "plain text",
			input:    "No HTML here",
			expected: "No HTML here",
		},
		{
			name:     "empty string",
			input:    "",
			expected: "",
		},
		{
			name:     "multiple spaces",
			input:    "<p>Multiple    spaces   here</p>",
			expected: "Multiple spaces here",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, StripHTML(tt.input))
		})
	}
}

func TestRenderInjectsUnsubscribeURL(t *testing.T) {
	r := New()

	msg, err := r.Render("<p>Hi</p>", "https://mail.example/unsubscribe/abc/def", nil)
	require.NoError(t, err)

	assert.Contains(t, msg.HTML, "<p>Hi</p>")
	assert.Contains(t, msg.HTML, `href="https://mail.example/unsubscribe/abc/def"`)
	assert.Contains(t, msg.Text, "Unsubscribe: https://mail.example/unsubscribe/abc/def")
	assert.Equal(t, "Hi", strings.SplitN(msg.Text, "\n", 2)[0])
}

func TestRenderDeterministic(t *testing.T) {
	r := New()

	first, err := r.Render("<p>Vereinsausfahrt am Sonntag</p>", PreviewToken, nil)
	require.NoError(t, err)
	second, err := r.Render("<p>Vereinsausfahrt am Sonntag</p>", PreviewToken, nil)
	require.NoError(t, err)

	assert.Equal(t, first.HTML, second.HTML)
	assert.Equal(t, first.Text, second.Text)
}

func TestRenderLiquidVariables(t *testing.T) {
	r := New()

	msg, err := r.Render(`<p>Hello {{ first_name | default: "member" }}</p>`, "#",
		map[string]interface{}{"first_name": "Greta"})
	require.NoError(t, err)
	assert.Contains(t, msg.HTML, "Hello Greta")

	msg, err = r.Render(`<p>Hello {{ first_name | default: "member" }}</p>`, "#", nil)
	require.NoError(t, err)
	assert.Contains(t, msg.HTML, "Hello member")
}

func TestRenderBadTemplate(t *testing.T) {
	r := New()

	_, err := r.Render(`{% unknown_tag %}`, "#", nil)
	assert.Error(t, err)
}

func TestUnsubscribeSignerRoundTrip(t *testing.T) {
	s := NewUnsubscribeSigner("secret", "https://mail.example")

	url := s.URL("send-123")
	assert.True(t, strings.HasPrefix(url, "https://mail.example/unsubscribe/"))

	parts := strings.Split(strings.TrimPrefix(url, "https://mail.example/unsubscribe/"), "/")
	require.Len(t, parts, 2)

	sendID, err := s.Verify(parts[0], parts[1])
	require.NoError(t, err)
	assert.Equal(t, "send-123", sendID)
}

func TestUnsubscribeSignerRejectsTampering(t *testing.T) {
	s := NewUnsubscribeSigner("secret", "https://mail.example")

	url := s.URL("send-123")
	parts := strings.Split(strings.TrimPrefix(url, "https://mail.example/unsubscribe/"), "/")
	require.Len(t, parts, 2)

	_, err := s.Verify(parts[0], "0000000000000000")
	assert.Error(t, err)

	// A token signed for one send must not verify as another.
	other := NewUnsubscribeSigner("other-key", "https://mail.example")
	_, err = other.Verify(parts[0], parts[1])
	assert.Error(t, err)
}
