// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package assemble

import (
	"bytes"
	"strings"
	"text/template"

	"github.com/pdiddy/docflow/pkg/types"
)

// outlinerPersona is the fixed Outliner instruction appended to the
// coordinator prompt.
const outlinerPersona = `You are the Outliner, an expert document architect. You help the user design the structure of a long-form document.

Always respond with the COMPLETE outline, never a partial outline or a diff. Use Markdown list items: a hyphen followed by a space starts an item, and each level of nesting is indented by two more spaces. Do not number the items. Do not add commentary before or after the outline.`

// researchPersona is the fixed Researcher instruction appended to the
// coordinator prompt.
const researchPersona = `You are the Researcher. Use web search to find authoritative, current sources on the topic you are given.`

var researchTmpl = template.Must(template.New("research").Parse(`Research the following topic and report the three most relevant sources.

For each source write two lines:
Title: <the title of the source>
<a one or two sentence summary of what the source says about the topic>

Topic: {{.Topic}}
`))

var parseTmpl = template.Must(template.New("parse").Parse(`Convert the following Markdown outline into JSON.

Rules:
- Respond with a JSON array only. Do not wrap it in a code fence and do not add any prose.
- Each element is an object with a "title" string and an optional "children" array of the same shape.
- Hyphen indentation in the outline encodes nesting: an item indented under another item is its child.
- Prefix every title with its hierarchical number: "1. ", "2. ", nested "2.1. ", "2.1.1. " and so on. Replace any numbering already present.
- Keep titles otherwise unchanged.

Example:
[{"title": "1. Introduction", "children": [{"title": "1.1. Background"}]}, {"title": "2. Methods"}]

Outline:
{{.Draft}}
`))

var tailorTmpl = template.Must(template.New("tailor").Parse(`You write system prompts for a writing assistant.

The assistant will draft one section of the document "{{.DocTitle}}".
{{- if .Coordinator}}

The project's master directive is:
{{.Coordinator}}
{{- end}}

The document outline is:
{{.Outline}}
The section to write is "{{.SectionTitle}}".

Write a single system prompt, in the second person, that gives the assistant an expert persona suited to this section, states the section's purpose within the document, and names what it must cover and what belongs to other sections instead. Respond with the system prompt text only.
`))

var fallbackTmpl = template.Must(template.New("fallback").Parse(`You are an expert writer drafting the section "{{.SectionTitle}}". Write clear, well-structured prose that fits this section's place in the document.`))

func render(t *template.Template, data any) string {
	var buf bytes.Buffer
	// Static templates over string fields; Execute cannot fail.
	_ = t.Execute(&buf, data)
	return buf.String()
}

// Outliner builds the Outliner prompt: the current draft followed by the
// user's instruction.
func Outliner(coordinator, draft, instruction string) Prompt {
	var parts []string
	if d := strings.TrimSpace(draft); d != "" {
		parts = append(parts, "CURRENT OUTLINE:\n"+d)
	}
	parts = append(parts, "USER REQUEST:\n"+strings.TrimSpace(instruction))
	return Prompt{
		System: joinNonEmpty(coordinator, outlinerPersona),
		Turns:  []types.Turn{{Role: types.RoleUser, Text: strings.Join(parts, partSeparator)}},
	}
}

// Research builds the Researcher prompt for a topic.
func Research(coordinator, topic string) Prompt {
	return Prompt{
		System: joinNonEmpty(coordinator, researchPersona),
		Turns: []types.Turn{{
			Role: types.RoleUser,
			Text: render(researchTmpl, struct{ Topic string }{strings.TrimSpace(topic)}),
		}},
	}
}

// Parse builds the outline-to-JSON prompt.
func Parse(draft string) Prompt {
	return Prompt{
		Turns: []types.Turn{{
			Role: types.RoleUser,
			Text: render(parseTmpl, struct{ Draft string }{strings.TrimSpace(draft)}),
		}},
	}
}

// Tailor builds the prompt that asks for a section-specific Writer persona.
// flatOutline is the title-only outline produced by outline.Flatten.
func Tailor(docTitle, flatOutline, sectionTitle, coordinator string) Prompt {
	return Prompt{
		Turns: []types.Turn{{
			Role: types.RoleUser,
			Text: render(tailorTmpl, struct {
				DocTitle, Outline, SectionTitle, Coordinator string
			}{docTitle, flatOutline, sectionTitle, strings.TrimSpace(coordinator)}),
		}},
	}
}

// FallbackPersona is the Writer persona used when the tailored persona could
// not be produced. It depends only on the section title; WriterSystem adds
// the coordinator prompt.
func FallbackPersona(sectionTitle string) string {
	return render(fallbackTmpl, struct{ SectionTitle string }{sectionTitle})
}
