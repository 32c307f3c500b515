package embedding

import "fmt"

func NewEmbeddingProvider(providerType, geminiKey, ollamaBaseURL, ollamaModel string) (EmbeddingProvider, error) {
	switch providerType {
	case "gemini", "":
		return NewGeminiProvider(geminiKey), nil
	case "ollama":
		return NewOllamaProvider(ollamaBaseURL, ollamaModel), nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", providerType)
	}
}
