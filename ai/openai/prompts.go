package openai

import (
	"fmt"
	"strings"
)

const directSystemPrompt = `You are a helpful assistant. Provide concise and friendly responses.`

const groundedSystemPrompt = `You are a helpful assistant that answers questions based on the provided context.
Use only the information from the context to answer the question.
Passages marked [MAIN CHUNK] are the best match; passages marked [Context] surround it.
If the context doesn't contain enough information to answer the question, say so politely.
Provide clear and concise answers.`

const groundedUserTemplate = `Context:
%s

Question: %s

Please answer the question based on the provided context.`

// buildPrompts returns the system and user messages for a query.
func buildPrompts(contextPassage, query string) (string, string) {
	if strings.TrimSpace(contextPassage) == "" {
		return directSystemPrompt, query
	}
	return groundedSystemPrompt, fmt.Sprintf(groundedUserTemplate, contextPassage, query)
}
