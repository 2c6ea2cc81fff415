// Package formscan inventories the fillable controls in a serialized HTML
// snapshot. The planner feeds each discovered field, together with retrieved
// CV context, to the LLM; the selectors produced here are what the resulting
// FillActions carry back to the page executor.
package formscan

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// Field describes one fillable control found in the document.
type Field struct {
	// Selector addresses the control in the live document. Best effort:
	// an id wins, then a name attribute, then a structural path.
	Selector string `json:"selector"`
	// Type is the control type as the browser reports it: the input type
	// attribute, "textarea", or "select-one"/"select-multiple".
	Type string `json:"type"`
	// Name is the form control name, if any.
	Name string `json:"name,omitempty"`
	// Label is the human-readable label resolved for the control.
	Label string `json:"label,omitempty"`
	// Options holds the option texts of a select control.
	Options []string `json:"options,omitempty"`
}

// skippedInputTypes are control types that never take CV-derived values.
var skippedInputTypes = map[string]bool{
	"hidden": true,
	"submit": true,
	"button": true,
	"image":  true,
	"reset":  true,
	"file":   true,
}

// Analyze parses the snapshot and returns the fillable fields in document
// order. A snapshot without any form controls yields an empty slice, not an
// error.
func Analyze(markup string) ([]Field, error) {
	root, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("failed to parse page snapshot: %w", err)
	}

	labels := collectLabels(root)
	var fields []Field
	walk(root, func(n *html.Node) {
		field, ok := fieldFor(n, labels)
		if ok {
			fields = append(fields, field)
		}
	})
	return fields, nil
}

func walk(n *html.Node, visit func(*html.Node)) {
	if n.Type == html.ElementNode {
		visit(n)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, visit)
	}
}

func fieldFor(n *html.Node, labels map[string]string) (Field, bool) {
	var typ string
	switch n.Data {
	case "input":
		typ = strings.ToLower(attrOr(n, "type", "text"))
		if skippedInputTypes[typ] {
			return Field{}, false
		}
	case "textarea":
		typ = "textarea"
	case "select":
		if _, multiple := attr(n, "multiple"); multiple {
			typ = "select-multiple"
		} else {
			typ = "select-one"
		}
	default:
		return Field{}, false
	}

	if _, disabled := attr(n, "disabled"); disabled {
		return Field{}, false
	}

	field := Field{
		Selector: selectorFor(n),
		Type:     typ,
		Name:     attrOr(n, "name", ""),
		Label:    labelFor(n, labels),
	}
	if n.Data == "select" {
		field.Options = optionTexts(n)
	}
	return field, true
}

// plainIDPattern matches ids that are safe to address as #id without
// escaping.
var plainIDPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_-]*$`)

// selectorFor builds the best-effort selector for a control. Ids are
// preferred since they survive re-renders; names are next; the structural
// nth-child path is the last resort and goes stale the moment the DOM
// changes shape, which the executor tolerates by skipping the miss.
func selectorFor(n *html.Node) string {
	if id, ok := attr(n, "id"); ok && id != "" {
		if plainIDPattern.MatchString(id) {
			return "#" + id
		}
		return fmt.Sprintf(`[id=%q]`, id)
	}
	if name, ok := attr(n, "name"); ok && name != "" {
		return fmt.Sprintf(`%s[name=%q]`, n.Data, name)
	}
	return structuralPath(n)
}

// structuralPath walks up to the body building a tag:nth-child chain.
func structuralPath(n *html.Node) string {
	var segments []string
	for cur := n; cur != nil && cur.Type == html.ElementNode && cur.Data != "body" && cur.Data != "html"; cur = cur.Parent {
		pos := 1
		for sib := cur.PrevSibling; sib != nil; sib = sib.PrevSibling {
			if sib.Type == html.ElementNode {
				pos++
			}
		}
		segments = append([]string{fmt.Sprintf("%s:nth-child(%d)", cur.Data, pos)}, segments...)
	}
	return strings.Join(segments, " > ")
}

// collectLabels maps control ids to the text of <label for=...> elements.
func collectLabels(root *html.Node) map[string]string {
	labels := make(map[string]string)
	walk(root, func(n *html.Node) {
		if n.Data != "label" {
			return
		}
		forID, ok := attr(n, "for")
		if !ok || forID == "" {
			return
		}
		if text := innerText(n); text != "" {
			labels[forID] = text
		}
	})
	return labels
}

// labelFor resolves the control's label: explicit for/id association first,
// then a wrapping <label>, then aria-label, then placeholder, then the name
// attribute as a last resort.
func labelFor(n *html.Node, labels map[string]string) string {
	if id, ok := attr(n, "id"); ok {
		if text, ok := labels[id]; ok {
			return text
		}
	}
	for cur := n.Parent; cur != nil; cur = cur.Parent {
		if cur.Type == html.ElementNode && cur.Data == "label" {
			if text := innerText(cur); text != "" {
				return text
			}
		}
	}
	if aria, ok := attr(n, "aria-label"); ok && aria != "" {
		return aria
	}
	if placeholder, ok := attr(n, "placeholder"); ok && placeholder != "" {
		return placeholder
	}
	return attrOr(n, "name", "")
}

func optionTexts(sel *html.Node) []string {
	var options []string
	for c := sel.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.Data == "option" {
			if text := innerText(c); text != "" {
				options = append(options, text)
			}
		}
	}
	return options
}

func innerText(n *html.Node) string {
	var buf strings.Builder
	var gather func(*html.Node)
	gather = func(n *html.Node) {
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			// Nested controls contribute structure, not label text.
			if c.Type == html.ElementNode && (c.Data == "input" || c.Data == "select" || c.Data == "textarea") {
				continue
			}
			gather(c)
		}
	}
	gather(n)
	return strings.Join(strings.Fields(buf.String()), " ")
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func attrOr(n *html.Node, key, fallback string) string {
	if v, ok := attr(n, key); ok && v != "" {
		return v
	}
	return fallback
}
