// Package prompt renders the system prompts sent with LLM completions.
package prompt

import (
	"embed"
	"fmt"
	"strings"
	"text/template"

	"concierge/pkg/catalog"
)

// Concierge is the system prompt used for open-ended guest questions.
const Concierge = "concierge"

//go:embed templates/*.md
var templatesFS embed.FS

var templates = template.Must(template.New("prompts").ParseFS(templatesFS, "templates/*.md"))

// Data is the view the templates render against.
type Data struct {
	HotelName string
	Content   catalog.Content
}

// Render executes the named system prompt template.
func Render(name string, data Data) (string, error) {
	tmpl := templates.Lookup(templateFile(name))
	if tmpl == nil {
		return "", fmt.Errorf("prompt template %q not found", name)
	}

	var out strings.Builder
	if err := tmpl.Execute(&out, data); err != nil {
		return "", fmt.Errorf("render %s prompt: %w", name, err)
	}

	rendered := strings.TrimSpace(out.String())
	if rendered == "" {
		return "", fmt.Errorf("prompt template %q rendered empty", name)
	}

	return rendered, nil
}

func templateFile(name string) string {
	return strings.TrimSpace(name) + ".md"
}
