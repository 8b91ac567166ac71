package chat

import (
	"fmt"
	"strings"

	"github.com/mohammad-safakhou/newsrag/internal/vectorstore"
)

// RefusalPhrase is what the model is told to answer when the retrieved
// context does not cover the question.
const RefusalPhrase = "I apologize, but the required information is not available in the provided news articles."

// SystemInstruction constrains the model to the retrieved news context.
const SystemInstruction = "You are an expert News Intelligence Bot. Your primary function is to answer questions " +
	"based **ONLY** on the context provided below from news articles.\n" +
	"If the context does not contain the answer, state clearly, \"" + RefusalPhrase + "\" " +
	"Do not use outside knowledge.\n" +
	"Format your answer clearly, referencing specific news sources or topics where possible."

const contextSeparator = "\n---\n"

// FormatContext renders retrieved chunks, each tagged with its source, in
// ranking order.
func FormatContext(hits []vectorstore.Hit) string {
	parts := make([]string, len(hits))
	for i, h := range hits {
		parts[i] = fmt.Sprintf("[Source ID: %s, Chunk: %d] %s", h.Payload.ArticleID, h.Payload.ChunkID, h.Payload.Text)
	}
	return strings.Join(parts, contextSeparator)
}

// BuildPrompt assembles the augmented user turn sent to the model.
func BuildPrompt(query string, hits []vectorstore.Hit) string {
	var b strings.Builder
	b.WriteString("SYSTEM INSTRUCTION: ")
	b.WriteString(SystemInstruction)
	b.WriteString("\n\n--- NEWS CONTEXT ---\n")
	b.WriteString(FormatContext(hits))
	b.WriteString("\n--- USER QUERY ---\n")
	b.WriteString(query)
	return b.String()
}
