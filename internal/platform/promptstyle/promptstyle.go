// Package promptstyle prepends a consistent guidance preamble to system
// prompts so every agent call (Router, Synthesizer) shares the same
// grounding/format discipline without repeating it at each call site.
package promptstyle

import "strings"

const marker = "UNIROAD_PROMPT_STYLE_V1"

// ApplySystem prepends a concise guidance block to system, once. mode
// "json" adds the strict-JSON-only instruction the Router needs; any other
// mode is treated as free-form streamed prose (the Synthesizer's case).
func ApplySystem(system string, mode string) string {
	base := strings.TrimSpace(system)
	if base == "" {
		return base
	}
	if strings.Contains(base, marker) {
		return base
	}
	mode = strings.ToLower(strings.TrimSpace(mode))

	taskSummary := ""
	for _, line := range strings.Split(base, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed != "" {
			taskSummary = trimmed
			break
		}
	}

	var b strings.Builder
	b.WriteString(marker)
	b.WriteString("\nYou are a careful assistant for Korean university admissions counseling.")
	if taskSummary != "" {
		b.WriteString("\nTask summary: " + taskSummary)
	}
	b.WriteString("\nFollow the system and user instructions precisely.")
	b.WriteString("\nUse only the evidence provided in the user turn; never invent a citation or fact not present there.")
	if mode == "json" {
		b.WriteString("\nReturn a single JSON object that conforms to the schema and contains no extra keys, no markdown fences, and no commentary.")
	} else {
		b.WriteString("\nBe concise and structured; follow any section/tag grammar given exactly.")
	}
	b.WriteString("\n---\n")
	b.WriteString(base)
	return strings.TrimSpace(b.String())
}
