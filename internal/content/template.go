package content

import (
	"fmt"
	"strings"

	"github.com/osteele/liquid"
)

// Renderer expands Liquid variables in campaign subjects and bodies.
type Renderer struct {
	engine *liquid.Engine
}

// NewRenderer creates a Renderer with the stock Liquid tag and filter set.
func NewRenderer() *Renderer {
	return &Renderer{engine: liquid.NewEngine()}
}

// Render expands the template with per-recipient bindings. The unsubscribe
// placeholder is shielded from the template engine so tracking injection
// can resolve it afterwards.
func (r *Renderer) Render(tmpl string, bindings map[string]any) (string, error) {
	const shield = "__unsubscribe_token__"
	shielded := strings.ReplaceAll(tmpl, UnsubscribePlaceholder, shield)

	out, err := r.engine.ParseAndRenderString(shielded, bindings)
	if err != nil {
		return "", fmt.Errorf("render template: %w", err)
	}
	return strings.ReplaceAll(out, shield, UnsubscribePlaceholder), nil
}
