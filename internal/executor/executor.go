// Package executor implements the page-executor half of the action protocol:
// resolving each FillAction's selector against a document, dispatching on the
// control kind, and emitting the change-notification signals reactive
// frameworks listen for.
//
// The batch loop lives here once, behind the Document interface. The static
// backend (static.go) runs it against a parsed HTML snapshot for dry runs and
// tests; the browser path ships the same semantics into the page as a single
// injected script (script.go) so the whole batch executes on the page's event
// loop with no suspension between actions.
package executor

import (
	"github.com/mbw0x/autofill-agent/api/schemas"
)

// Signal names the change notifications emitted after a mutation, in the
// order they are dispatched.
type Signal string

const (
	SignalInput  Signal = "input"
	SignalChange Signal = "change"
	SignalBlur   Signal = "blur"
)

// signalOrder is fixed: input first, then change, then blur. Frameworks that
// bind on input see the keystroke-equivalent, change commits it, blur ends
// the edit.
var signalOrder = [...]Signal{SignalInput, SignalChange, SignalBlur}

// Element is one resolved form control.
type Element interface {
	// SetValue assigns the value verbatim (generic text path).
	SetValue(v string)
	// SetChecked sets the checked state of a checkbox or radio control.
	SetChecked(checked bool)
	// Emit dispatches a change-notification signal. Bubbles is always true
	// in this protocol; it is a parameter so fakes can assert it.
	Emit(sig Signal, bubbles bool)
}

// Document resolves CSS selectors against a live or parsed document.
type Document interface {
	// QueryFirst returns the first element matching the selector in
	// document order. A selector that matches nothing, or that does not
	// parse, reports ok=false; both are lookup misses, never errors.
	QueryFirst(selector string) (Element, bool)
}

// Run applies the batch in order against doc and returns the terminal
// result. Semantics are deliberately literal:
//
//   - a lookup miss is skipped silently and not counted;
//   - checkbox: checked iff value == "true", explicitly unchecked otherwise;
//   - radio: checked set true iff value == "true"; any other value leaves
//     the element untouched (group exclusivity stays with the browser);
//   - everything else: value assigned verbatim;
//   - every applied action emits input, change, blur, bubbling, in order;
//   - count increments whenever an element was found, whether or not a
//     framework on the page accepted the value.
//
// There is no retry and no rollback: earlier actions stay applied when a
// later selector misses.
func Run(doc Document, batch []schemas.FillAction) schemas.ExecutionResult {
	count := 0
	for _, action := range batch {
		el, ok := doc.QueryFirst(action.Selector)
		if !ok {
			continue
		}

		switch action.Type {
		case schemas.ControlCheckbox:
			el.SetChecked(action.Value == schemas.TruthyValue)
		case schemas.ControlRadio:
			if action.Value == schemas.TruthyValue {
				el.SetChecked(true)
			}
		default:
			el.SetValue(action.Value)
		}

		for _, sig := range signalOrder {
			el.Emit(sig, true)
		}
		count++
	}
	return schemas.Done(count)
}
