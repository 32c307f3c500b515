package constant

const (
	ChatMessageRoleUser      = "user"
	ChatMessageRoleAssistant = "assistant"
	ChatMessageRoleSystem    = "system"

	// Gemini calls the assistant "model"
	GeminiRoleModel = "model"

	EmbeddingTaskRetrievalQuery    = "RETRIEVAL_QUERY"
	EmbeddingTaskRetrievalDocument = "RETRIEVAL_DOCUMENT"

	DocumentMetadataSource = "source"

	ChunkSize    = 1000
	ChunkOverlap = 100

	DefaultVectorIndexName = "document_chunks"
	DefaultVectorMetric    = "cosine"

	TruncatedMarker = "[response truncated]"
)

// Whole-response prompt. The context block is dropped when retrieval found nothing.
const (
	GroundedPromptInstruction = `You are an assistant tasked with using the provided context to answer the question below **if it's relevant**.
If the question is casual, conversational, or unrelated to the context, respond naturally without relying on the context.`

	ChatSystemPrompt = `You are a helpful assistant for the documents the user has uploaded.
Use the provided context only if it is relevant to the question. Otherwise, respond naturally without relying on the context.`
)
