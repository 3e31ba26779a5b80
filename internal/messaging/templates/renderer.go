package templates

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"text/template"
)

// ErrUnknownTemplate is returned when a catalog has no entry for a name.
var ErrUnknownTemplate = errors.New("templates: unknown template")

// Renderer renders small text templates for outbound replies.
type Renderer struct{}

// Render compiles the provided template text with strict missing-key semantics.
func (Renderer) Render(name, tmpl string, data any) (string, error) {
	t, err := parse(name, tmpl)
	if err != nil {
		return "", err
	}
	return execute(t, data)
}

// Catalog holds pre-parsed template variants grouped by name. It is safe for
// concurrent use once built.
type Catalog struct {
	variants map[string][]*template.Template
}

// NewCatalog parses every variant up front so bad templates fail at startup.
func NewCatalog(sources map[string][]string) (*Catalog, error) {
	c := &Catalog{variants: make(map[string][]*template.Template, len(sources))}
	for name, texts := range sources {
		if len(texts) == 0 {
			return nil, fmt.Errorf("templates: %s has no variants", name)
		}
		parsed := make([]*template.Template, 0, len(texts))
		for i, text := range texts {
			t, err := parse(fmt.Sprintf("%s[%d]", name, i), text)
			if err != nil {
				return nil, err
			}
			parsed = append(parsed, t)
		}
		c.variants[name] = parsed
	}
	return c, nil
}

// Count returns how many variants exist for name.
func (c *Catalog) Count(name string) int {
	return len(c.variants[name])
}

// Names returns the catalog entries in sorted order.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.variants))
	for name := range c.variants {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Execute renders variant index of name.
func (c *Catalog) Execute(name string, index int, data any) (string, error) {
	variants, ok := c.variants[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownTemplate, name)
	}
	if index < 0 || index >= len(variants) {
		return "", fmt.Errorf("templates: variant %d out of range for %s", index, name)
	}
	return execute(variants[index], data)
}

func parse(name, text string) (*template.Template, error) {
	if text == "" {
		return nil, fmt.Errorf("templates: template text required")
	}
	t, err := template.New(name).Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("templates: parse: %w", err)
	}
	return t, nil
}

func execute(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("templates: execute: %w", err)
	}
	return buf.String(), nil
}
