package extractor

import "fmt"

// extractionSchemaPrompt instructs the model to emit the Extractor's output
// contract: {"facts":[{subject,predicate,object,confidence}]}, confidence in
// [0,1]. Unlike the teacher's free-text Japanese summarization prompt, this
// one constrains the model to structured JSON the caller can parse directly.
const extractionSchemaPrompt = `Extract factual claims from the article text below as a JSON object of the exact shape:
{"facts": [{"subject": string, "predicate": string, "object": string, "confidence": number}]}

Rules:
- subject, predicate, and object are short noun/verb phrases, not full sentences.
- confidence is your calibrated belief the claim is stated as fact in the text, between 0.0 and 1.0.
- Only include claims explicitly stated in the text, not inferences.
- Respond with the JSON object only, no surrounding prose or markdown fences.

Article text:
%s`

func buildExtractionPrompt(text string) string {
	return fmt.Sprintf(extractionSchemaPrompt, text)
}
