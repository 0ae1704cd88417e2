package main

import (
	"github.com/charmbracelet/glamour"
	"go.uber.org/zap"
)

// renderMarkdown styles md for the terminal unless --plain is set. Styling
// failures fall back to the raw text.
func renderMarkdown(md string) string {
	if md == "" {
		return ""
	}
	if plain {
		return md + "\n"
	}
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		logger.Debug("markdown renderer unavailable", zap.Error(err))
		return md
	}
	out, err := renderer.Render(md)
	if err != nil {
		logger.Debug("markdown render failed", zap.Error(err))
		return md
	}
	return out
}
