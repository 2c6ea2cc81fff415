// Package schemas defines the wire-level contracts shared between the page
// executor, the reasoning backend, and the driving orchestrator. Everything
// here must survive a process boundary as plain structured data; no live
// handles, no element references.
package schemas

// ControlKind identifies how a FillAction's value is applied to its target.
type ControlKind string

const (
	// ControlCheckbox toggles a checkbox: checked iff value == "true".
	ControlCheckbox ControlKind = "checkbox"
	// ControlRadio checks a radio button iff value == "true". Other values
	// leave the element untouched; group exclusivity is left to the browser.
	ControlRadio ControlKind = "radio"
	// ControlText is the default set-value path for text inputs, selects and
	// textareas. An absent or unrecognized kind falls through to it.
	ControlText ControlKind = "text"
)

// TruthyValue is the literal string a checkbox/radio action carries to mean
// "checked". Anything else means unchecked.
const TruthyValue = "true"

// StatusDone is the terminal status of a fully processed action batch.
const StatusDone = "done"

// FillAction is one instruction to locate and mutate a single form control.
// It is immutable once issued: the selector is resolved fresh at execution
// time because the reasoning side only ever saw a serialized snapshot of the
// document, never the live DOM.
type FillAction struct {
	// Selector is a CSS selector identifying the target element. It is
	// best-effort: uniqueness is not guaranteed and the first match wins.
	Selector string `json:"selector"`
	// Type selects the dispatch path. Empty or unknown values are treated
	// as ControlText.
	Type ControlKind `json:"type,omitempty"`
	// Value is always a string; boolean semantics are encoded as the
	// literals "true"/"false" by convention.
	Value string `json:"value"`
}

// ExecutionResult reports the outcome of applying one action batch.
// Count is the number of actions whose selector resolved to an element and
// was applied. Actions whose selector matched nothing are skipped silently
// and not counted; that is policy, not failure.
type ExecutionResult struct {
	Status string `json:"status"`
	Count  int    `json:"count"`
}

// Done builds the terminal result for a batch that applied n actions.
func Done(n int) ExecutionResult {
	return ExecutionResult{Status: StatusDone, Count: n}
}

// Request kinds exchanged between the orchestrator and the page executor.
const (
	RequestGetHTML        = "get_html"
	RequestExecuteActions = "execute_actions"
)

// ExecutorRequest is the envelope the orchestrator sends into the page
// context: either a snapshot request (no data) or an apply request carrying
// the ordered action batch.
type ExecutorRequest struct {
	Action string       `json:"action"`
	Data   []FillAction `json:"data,omitempty"`
}

// SnapshotResponse carries the serialized markup of the current document.
type SnapshotResponse struct {
	HTML string `json:"html"`
}

// GenerateActionsRequest is the reasoning call: the orchestrator forwards the
// page URL, the serialized document and the tenant identifier, and receives
// back the ordered batch to apply.
type GenerateActionsRequest struct {
	URL    string `json:"url"`
	HTML   string `json:"html"`
	UserID string `json:"user_id"`
}

// GenerateActionsResponse wraps the planned batch. An absent or empty Actions
// slice means "no fillable fields found" and is not an error.
type GenerateActionsResponse struct {
	Actions []FillAction `json:"actions"`
}

// UploadResponse acknowledges a CV upload and reports how many chunks were
// indexed for the tenant.
type UploadResponse struct {
	Message string `json:"message"`
	Chunks  int    `json:"chunks"`
}

// ErrorResponse is the generic failure envelope returned by the backend API.
type ErrorResponse struct {
	Error string `json:"error"`
}
