package agents

import (
	"embed"
	"fmt"
)

//go:embed prompts/*.md
var promptFiles embed.FS

// LoadPrompt returns the embedded system prompt prompts/<name>.md.
func LoadPrompt(name string) (string, error) {
	content, err := promptFiles.ReadFile(fmt.Sprintf("prompts/%s.md", name))
	if err != nil {
		return "", fmt.Errorf("failed to load prompt %s: %w", name, err)
	}
	return string(content), nil
}
