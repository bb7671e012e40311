// Package prompt builds the user prompt sent to the language model.
package prompt

// Purpose selects one of the fixed instruction templates.
type Purpose int

const (
	Summary Purpose = iota + 1
	Facts
)

const (
	summaryInstruction = "Rewrite the above document into plain text"
	factsInstruction   = "Summarize the above document into facts, one per line bullet point"
)

func (p Purpose) String() string {
	switch p {
	case Summary:
		return "summary"
	case Facts:
		return "facts"
	default:
		return "none"
	}
}

// Instruction returns the sentence appended to the document text.
func (p Purpose) Instruction() string {
	switch p {
	case Summary:
		return summaryInstruction
	case Facts:
		return factsInstruction
	default:
		return ""
	}
}

// Render appends the instruction for p to text, separated by a blank line.
func Render(text string, p Purpose) string {
	return text + "\n\n" + p.Instruction()
}

// Select maps the request flags to a purpose. Summary takes precedence when
// both flags are set; ok is false when neither is.
func Select(summary, facts bool) (p Purpose, ok bool) {
	switch {
	case summary:
		return Summary, true
	case facts:
		return Facts, true
	default:
		return 0, false
	}
}
