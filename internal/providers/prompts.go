package providers

import (
	"encoding/json"
	"fmt"
)

// analysisSystemPrompt instructs the backend to critique a prompt and answer
// with a JSON object matching AnalysisResult.
const analysisSystemPrompt = `You are an expert prompt engineer. Analyze the user's prompt for clarity, specificity, structure, and completeness.

Respond ONLY with a JSON object in exactly this format, with no surrounding text:
{
  "issues": ["list of concrete problems with the prompt"],
  "suggestions": ["list of actionable improvements"],
  "score": 75
}

The score is an integer from 0 (unusable) to 100 (excellent).`

// optimizationSystemPrompt instructs the backend to rewrite a prompt using a
// prior analysis and answer with a JSON object matching OptimizedPrompt.
const optimizationSystemPrompt = `You are an expert prompt engineer. Rewrite the user's prompt to address the issues found in the analysis while preserving the original intent.

Respond ONLY with a JSON object in exactly this format, with no surrounding text:
{
  "text": "the rewritten prompt",
  "improvements": ["list of changes you made and why"],
  "reasoning": "brief explanation of your overall approach"
}`

// optimizationUserMessage formats the user turn for an optimization request:
// the original prompt plus the serialized analysis as context.
func optimizationUserMessage(prompt string, analysis *AnalysisResult) string {
	encoded, err := json.Marshal(analysis)
	if err != nil {
		// AnalysisResult contains only strings and ints; this cannot fail
		// in practice, but degrade to the prompt alone rather than panic.
		return fmt.Sprintf("Original Prompt: %s", prompt)
	}
	return fmt.Sprintf("Original Prompt: %s\n\nAnalysis: %s", prompt, encoded)
}
