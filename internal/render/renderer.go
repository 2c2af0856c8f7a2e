// Package render turns raw campaign content into complete, deliverable
// message bodies. Rendering is a pure function of its inputs: the same
// content and unsubscribe reference always produce identical output, which
// preview and test sends rely on.
package render

import (
	"fmt"
	"html"
	"regexp"
	"strings"

	"github.com/osteele/liquid"
)

// Message is a fully rendered email body pair.
type Message struct {
	HTML string `json:"html"`
	Text string `json:"text"`
}

// Renderer renders campaign content with Liquid personalization and wraps it
// in the standard club layout with an unsubscribe footer.
type Renderer struct {
	engine *liquid.Engine
}

// New creates a renderer with the club's Liquid filters registered.
func New() *Renderer {
	engine := liquid.NewEngine()

	// {{ first_name | default: "Clubmitglied" }}
	engine.RegisterFilter("default", func(value interface{}, defaultVal string) interface{} {
		if value == nil {
			return defaultVal
		}
		s := fmt.Sprintf("%v", value)
		if s == "" || s == "<nil>" {
			return defaultVal
		}
		return value
	})

	// {{ name | capitalize }}
	engine.RegisterFilter("capitalize", func(s string) string {
		if len(s) == 0 {
			return s
		}
		return strings.ToUpper(string(s[0])) + strings.ToLower(s[1:])
	})

	return &Renderer{engine: engine}
}

const layout = `<!DOCTYPE html>
<html>
<body>
%s
<hr>
<p style="font-size:12px;color:#666">
You receive this email as a member of the club mailing list.
<a href="%s">Unsubscribe</a>
</p>
</body>
</html>`

// Render produces the HTML and plain-text bodies for one recipient. The
// unsubscribe URL is specific to a single ledger row; preview and test sends
// pass a placeholder instead.
func (r *Renderer) Render(content, unsubscribeURL string, vars map[string]interface{}) (Message, error) {
	bindings := map[string]interface{}{
		"unsubscribe_url": unsubscribeURL,
	}
	for k, v := range vars {
		bindings[k] = v
	}

	body, err := r.engine.ParseAndRenderString(content, bindings)
	if err != nil {
		return Message{}, fmt.Errorf("render content: %w", err)
	}

	htmlBody := fmt.Sprintf(layout, body, unsubscribeURL)
	textBody := StripHTML(body) + "\n\nUnsubscribe: " + unsubscribeURL

	return Message{HTML: htmlBody, Text: textBody}, nil
}

var tagRegex = regexp.MustCompile(`<[^>]*>`)

// StripHTML derives a plain-text rendition from HTML content: tags removed,
// entities decoded, whitespace normalized.
func StripHTML(input string) string {
	text := tagRegex.ReplaceAllString(input, "")
	text = html.UnescapeString(text)
	text = strings.Join(strings.Fields(text), " ")
	return text
}
