package llm

import (
	"fmt"
	"os"
	"strings"
	"sync"
)

const userIDPlaceholder = "{USER_ID}"

// PromptLoader reads the system prompt from disk once and substitutes
// the per-call user id placeholder on each request.
type PromptLoader struct {
	path string

	once   sync.Once
	prompt string
	err    error
}

func NewPromptLoader(path string) *PromptLoader {
	return &PromptLoader{path: path}
}

// For returns the system prompt with the user's id substituted in.
func (p *PromptLoader) For(userID string) (string, error) {
	p.once.Do(func() {
		raw, err := os.ReadFile(p.path)
		if err != nil {
			p.err = fmt.Errorf("read system prompt: %w", err)
			return
		}
		p.prompt = strings.TrimSpace(string(raw))
	})
	if p.err != nil {
		return "", p.err
	}
	return strings.ReplaceAll(p.prompt, userIDPlaceholder, userID), nil
}
