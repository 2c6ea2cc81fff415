package executor

import (
	"fmt"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"github.com/mbw0x/autofill-agent/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// SnapshotScript serializes the current document body inside the page.
// Evaluates to a plain string.
const SnapshotScript = `document.body ? document.body.outerHTML : ""`

// applyTemplate is the in-page twin of Run: the whole batch executes in one
// synchronous pass on the page's event loop, so the framework layer never
// gets to re-render between an action and the next selector lookup. An
// invalid selector throws inside querySelector and is treated as a lookup
// miss via the try/catch, identical to a selector that matches nothing.
const applyTemplate = `(function(actions) {
	let count = 0;
	for (const a of actions) {
		let el = null;
		try { el = document.querySelector(a.selector); } catch (e) { el = null; }
		if (!el) { continue; }
		if (a.type === "checkbox") {
			el.checked = a.value === "true";
		} else if (a.type === "radio") {
			if (a.value === "true") { el.checked = true; }
		} else {
			el.value = a.value;
		}
		for (const t of ["input", "change", "blur"]) {
			el.dispatchEvent(new Event(t, { bubbles: true }));
		}
		count++;
	}
	return { status: "done", count: count };
})(%s)`

// BuildApplyScript renders the apply script with the batch embedded as a JS
// array literal.
func BuildApplyScript(batch []schemas.FillAction) (string, error) {
	if batch == nil {
		batch = []schemas.FillAction{}
	}
	payload, err := json.Marshal(batch)
	if err != nil {
		return "", fmt.Errorf("failed to encode action batch: %w", err)
	}
	return fmt.Sprintf(applyTemplate, escapeJS(string(payload))), nil
}

// escapeJS makes a JSON document safe to embed as a JavaScript literal.
// JSON is almost a JS subset; U+2028/U+2029 are the two code points legal in
// JSON strings but not in JS source.
func escapeJS(s string) string {
	s = strings.ReplaceAll(s, "\u2028", `\u2028`)
	return strings.ReplaceAll(s, "\u2029", `\u2029`)
}
