package prompts

import (
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
)

// Prelabel asks one question about one document. The job's system prompt
// and the document text are template variables, so braces inside them are
// passed through untouched.
//
// Variables: system_prompt, question, text.
func Prelabel() prompt.ChatTemplate {
	return prompt.FromMessages(
		schema.FString,
		schema.SystemMessage(`{system_prompt}`),
		schema.UserMessage("Question: {question}\n\nText: {text}"),
	)
}
