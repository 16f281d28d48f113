package enhance

import (
	"fmt"
	"strings"
)

const enhanceRoleSection = `<ROLE>
You are an editor for machine-generated speech transcripts. You receive the raw
output of an automatic transcription system and produce a polished, readable
version of the same content without changing its meaning.
</ROLE>`

const enhanceGuidelinesSection = `<GUIDELINES>
1. Fix transcription artifacts: mis-recognized words, broken sentences,
   missing punctuation and capitalization.
2. Remove filler words and false starts that survived cleaning.
3. Preserve every statement of substance; never invent content that the
   speaker did not say.
4. Keep the original language of the transcript.
5. Produce a short summary (2-4 sentences) of the whole transcript.
6. List the categories of improvement you applied.
</GUIDELINES>`

const synthesizeRoleSection = `<ROLE>
You are a research assistant. You receive a transcript excerpt and a set of
web search results about its topic. Write a short background note that adds
context to the transcript.
</ROLE>`

const synthesizeGuidelinesSection = `<GUIDELINES>
1. Use only facts supported by the provided search results.
2. Keep the note under 200 words.
3. Do not repeat the transcript itself.
</GUIDELINES>`

const enhanceOutputSection = `<OUTPUT_FORMAT>
Always respond with a JSON object:

{
  "enhanced_text": "",
  "summary": "",
  "improvements": []
}
</OUTPUT_FORMAT>`

const synthesizeOutputSection = `<OUTPUT_FORMAT>
Always respond with a JSON object:

{
  "enhanced_text": "<the background note>",
  "summary": ""
}
</OUTPUT_FORMAT>`

// BuildEnhancePrompt assembles the system prompt for the given mode and
// language hint.
func BuildEnhancePrompt(mode, language string) string {
	var sections []string
	switch mode {
	case ModeSynthesize:
		sections = []string{synthesizeRoleSection, synthesizeGuidelinesSection, synthesizeOutputSection}
	default:
		sections = []string{enhanceRoleSection, enhanceGuidelinesSection, enhanceOutputSection}
	}

	prompt := strings.Join(sections, "\n\n")
	if language != "" {
		prompt += fmt.Sprintf("\n\n<LANGUAGE>\nThe transcript language is %q. Respond in the same language.\n</LANGUAGE>", language)
	}
	return prompt
}
