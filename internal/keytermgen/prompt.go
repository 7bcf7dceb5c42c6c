package keytermgen

import (
	"fmt"
	"strings"
)

const promptTemplate = `You are assisting with audio transcription accuracy by generating a keyterm list for a speech-to-text keyterm prompting feature.

TASK:
Research the following show/movie and create a focused list of keyterms that will improve transcription accuracy: %q

%sKEYTERMS TO IDENTIFY (priority order):
1. Character names that sound like common words or might be misheard
2. Fictional location names and place names
3. Unique terminology, jargon, or invented words specific to the show
4. Multi-word phrases that are commonly used together
5. Organization, company, or group names

FORMATTING RULES:
- Proper nouns keep their capitalization; common nouns stay lowercase.
- Generate ONLY the 20-50 most critical terms.
- Avoid generic common words and terms that are rarely misrecognized.

OUTPUT FORMAT:
Provide ONLY a simple comma-separated list of keyterms. No headers, notes, or explanations.`

func buildPrompt(req Request) string {
	return fmt.Sprintf(promptTemplate, req.ShowName, existingSection(req))
}

func existingSection(req Request) string {
	if len(req.Existing) == 0 {
		return ""
	}
	list := strings.Join(req.Existing, ", ")
	if req.Preserve {
		return fmt.Sprintf(`EXISTING KEYTERMS TO PRESERVE:
The following keyterms are already defined and must all appear in your response:
%s

ADD new keyterms that complement these existing ones.

`, list)
	}
	return fmt.Sprintf(`REFERENCE KEYTERMS (previously used, for inspiration only):
%s

`, list)
}

// Prices per 1M tokens, blended as roughly 85% input / 15% output.
var tokenPricing = map[string]struct{ input, output float64 }{
	"gpt-4o-mini":              {0.15, 0.60},
	"gpt-4-turbo":              {10.00, 30.00},
	"claude-haiku-4-20250514":  {0.25, 1.25},
	"claude-sonnet-4-20250514": {3.00, 15.00},
}

func tokenCost(model string, tokens int) float64 {
	pricing, ok := tokenPricing[model]
	if !ok {
		return 0
	}
	inputTokens := float64(tokens) * 0.85
	outputTokens := float64(tokens) - inputTokens
	return inputTokens/1e6*pricing.input + outputTokens/1e6*pricing.output
}
