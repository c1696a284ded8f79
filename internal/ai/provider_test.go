package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProviderDefaults(t *testing.T) {
	t.Run("openai default model", func(t *testing.T) {
		p := NewOpenAIProvider("key", "", "")
		assert.Equal(t, "gpt-4o-mini", p.model)
	})

	t.Run("openai explicit model kept", func(t *testing.T) {
		p := NewOpenAIProvider("key", "", "gpt-4o")
		assert.Equal(t, "gpt-4o", p.model)
	})

	t.Run("gemini default model", func(t *testing.T) {
		p := NewGeminiProvider("key", "")
		assert.Equal(t, "gemini-1.5-flash", p.model)
	})

	t.Run("ollama default base url", func(t *testing.T) {
		p := NewOllamaProvider("", "llama3")
		assert.Equal(t, "http://localhost:11434", p.baseURL)
	})
}
