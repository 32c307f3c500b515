package prompt

import (
	"strings"

	"rag-chat-be/internal/constant"
	"rag-chat-be/internal/entity"
	"rag-chat-be/pkg/llm"
)

// JoinContext concatenates retrieved chunks, blank line separated.
func JoinContext(docs []*entity.RetrievedDocument) string {
	parts := make([]string, 0, len(docs))
	for _, d := range docs {
		if text := strings.TrimSpace(d.PageContent); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n\n")
}

// Grounded builds the single prompt used for whole-response generation.
// Without context the prompt is the question alone.
func Grounded(question string, docs []*entity.RetrievedDocument) string {
	context := JoinContext(docs)
	if context == "" {
		return question
	}

	var prompt strings.Builder
	prompt.WriteString(constant.GroundedPromptInstruction)
	prompt.WriteString("\n\nContext:\n")
	prompt.WriteString(context)
	prompt.WriteString("\n\nQuestion: ")
	prompt.WriteString(question)
	prompt.WriteString("\nAnswer:")
	return prompt.String()
}

// ChatMessages builds the streaming template: a system turn with the persona
// and a human turn with context and question.
func ChatMessages(question string, docs []*entity.RetrievedDocument) []llm.Message {
	human := question
	if context := JoinContext(docs); context != "" {
		human = "Context:\n" + context + "\n\nQuestion: " + question
	}

	return []llm.Message{
		{Role: constant.ChatMessageRoleSystem, Content: constant.ChatSystemPrompt},
		{Role: constant.ChatMessageRoleUser, Content: human},
	}
}
