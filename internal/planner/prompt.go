package planner

import (
	"fmt"
	"strings"

	"github.com/mbw0x/autofill-agent/api/schemas"
	"github.com/mbw0x/autofill-agent/internal/formscan"
)

// skipToken is the literal answer the model gives when the CV holds no
// information for a field. Fields answered with it are dropped from the plan.
const skipToken = "SKIP"

// systemPrompt frames every per-field request.
const systemPrompt = `You are a helpful assistant filling out a job application form based on a user's CV.
You will be given information from the CV and details about a form field.
Your goal is to provide the exact value to fill into the field.

- For text fields, return the text.
- For radio/checkbox, return 'true' if it should be checked, 'false' otherwise.
- For select/dropdown, return the EXACT option text from the provided list that matches the CV info.
- If the information is not in the CV, return 'SKIP'.`

// retrievalQuery phrases the semantic-search query for a field. Boolean
// controls ask a should-I question; everything else asks for the value.
func retrievalQuery(field formscan.Field) string {
	subject := field.Label
	if subject == "" {
		subject = field.Name
	}
	if field.Type == "radio" || field.Type == "checkbox" {
		return fmt.Sprintf("Should I check the box for %s?", subject)
	}
	return fmt.Sprintf("What is the %s?", subject)
}

// fieldPrompt renders the per-field user message with the retrieved CV
// context inlined.
func fieldPrompt(field formscan.Field, chunks []schemas.Chunk) string {
	var context strings.Builder
	for i, c := range chunks {
		if i > 0 {
			context.WriteString("\n")
		}
		context.WriteString(c.Content)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Field Label: %s\n", field.Label)
	fmt.Fprintf(&b, "Field Name: %s\n", field.Name)
	fmt.Fprintf(&b, "Field Type: %s\n", field.Type)
	if len(field.Options) > 0 {
		fmt.Fprintf(&b, "Options (if dropdown): %s\n", strings.Join(field.Options, ", "))
	}
	fmt.Fprintf(&b, "\nCV Context:\n%s\n", context.String())
	b.WriteString("\nWhat value should I put in this field?")
	return b.String()
}
