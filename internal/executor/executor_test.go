package executor

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbw0x/autofill-agent/api/schemas"
)

const fixturePage = `<!DOCTYPE html>
<html><head><title>Apply</title></head><body>
<form id="application">
  <input type="text" id="fname" name="first_name">
  <input type="text" id="lname" name="last_name" value="old">
  <textarea id="summary" name="summary"></textarea>
  <select id="country" name="country">
    <option value="de">Germany</option>
    <option value="fr" selected>France</option>
  </select>
  <input type="checkbox" id="consent" name="consent">
  <input type="checkbox" id="newsletter" name="newsletter" checked>
  <input type="radio" id="remote-yes" name="remote" value="yes">
  <input type="radio" id="remote-no" name="remote" value="no" checked>
  <input type="text" class="dup" name="dup1" value="a">
  <input type="text" class="dup" name="dup2" value="b">
</form>
</body></html>`

func newFixture(t *testing.T) *StaticDocument {
	t.Helper()
	doc, err := ParseStatic(fixturePage)
	require.NoError(t, err)
	return doc
}

func requireAttr(t *testing.T, doc *StaticDocument, selector, key string) (string, bool) {
	t.Helper()
	el, ok := doc.QueryFirst(selector)
	require.True(t, ok, "fixture element %q must exist", selector)
	return attr(el.(*staticElement).node, key)
}

func TestRunTextAssignsValueVerbatim(t *testing.T) {
	t.Parallel()
	doc := newFixture(t)

	res := Run(doc, []schemas.FillAction{
		{Selector: "#fname", Type: schemas.ControlText, Value: "Jane"},
		{Selector: "#lname", Value: "  O'Brien <QA> "},
	})

	assert.Equal(t, schemas.Done(2), res)

	v, ok := requireAttr(t, doc, "#fname", "value")
	require.True(t, ok)
	assert.Equal(t, "Jane", v)

	// No trimming, no coercion: the payload string lands exactly as issued.
	v, ok = requireAttr(t, doc, "#lname", "value")
	require.True(t, ok)
	assert.Equal(t, "  O'Brien <QA> ", v)
}

func TestRunUnknownTypeFallsBackToText(t *testing.T) {
	t.Parallel()
	doc := newFixture(t)

	res := Run(doc, []schemas.FillAction{
		{Selector: "#fname", Type: "slider", Value: "42"},
	})
	assert.Equal(t, 1, res.Count)

	v, ok := requireAttr(t, doc, "#fname", "value")
	require.True(t, ok)
	assert.Equal(t, "42", v)
}

func TestRunCheckboxSemantics(t *testing.T) {
	t.Parallel()

	t.Run("true checks", func(t *testing.T) {
		t.Parallel()
		doc := newFixture(t)
		Run(doc, []schemas.FillAction{{Selector: "#consent", Type: schemas.ControlCheckbox, Value: "true"}})
		_, checked := requireAttr(t, doc, "#consent", "checked")
		assert.True(t, checked)
	})

	t.Run("any other value unchecks", func(t *testing.T) {
		t.Parallel()
		for _, value := range []string{"false", "True", "yes", ""} {
			doc := newFixture(t)
			// #newsletter starts checked in the fixture.
			res := Run(doc, []schemas.FillAction{{Selector: "#newsletter", Type: schemas.ControlCheckbox, Value: value}})
			assert.Equal(t, 1, res.Count)
			_, checked := requireAttr(t, doc, "#newsletter", "checked")
			assert.False(t, checked, "value %q must uncheck", value)
		}
	})
}

func TestRunRadioSemantics(t *testing.T) {
	t.Parallel()

	t.Run("true checks the target", func(t *testing.T) {
		t.Parallel()
		doc := newFixture(t)
		res := Run(doc, []schemas.FillAction{{Selector: "#remote-yes", Type: schemas.ControlRadio, Value: "true"}})
		assert.Equal(t, 1, res.Count)
		_, checked := requireAttr(t, doc, "#remote-yes", "checked")
		assert.True(t, checked)
	})

	t.Run("non-true leaves the element untouched", func(t *testing.T) {
		t.Parallel()
		doc := newFixture(t)
		// #remote-no starts checked; a "false" radio action must NOT clear
		// it. The protocol only ever sets radios true.
		res := Run(doc, []schemas.FillAction{{Selector: "#remote-no", Type: schemas.ControlRadio, Value: "false"}})
		assert.Equal(t, 1, res.Count, "the element was found, so it counts")
		_, checked := requireAttr(t, doc, "#remote-no", "checked")
		assert.True(t, checked, "checked state must be left unchanged")
	})
}

func TestRunSelectMarksMatchingOption(t *testing.T) {
	t.Parallel()
	doc := newFixture(t)

	Run(doc, []schemas.FillAction{{Selector: "#country", Type: schemas.ControlText, Value: "de"}})

	el, ok := doc.QueryFirst("#country option[value=de]")
	require.True(t, ok)
	_, selected := attr(el.(*staticElement).node, "selected")
	assert.True(t, selected)

	el, ok = doc.QueryFirst("#country option[value=fr]")
	require.True(t, ok)
	_, selected = attr(el.(*staticElement).node, "selected")
	assert.False(t, selected)
}

func TestRunMissingSelectorSkippedSilently(t *testing.T) {
	t.Parallel()
	doc := newFixture(t)

	res := Run(doc, []schemas.FillAction{
		{Selector: "#fname", Type: schemas.ControlText, Value: "Jane"},
		{Selector: "#consent", Type: schemas.ControlCheckbox, Value: "true"},
		{Selector: "#missing", Type: schemas.ControlText, Value: "x"},
	})

	// The example scenario from the protocol contract: two of three
	// selectors resolve, the stale one is skipped without failing the batch.
	assert.Equal(t, schemas.ExecutionResult{Status: schemas.StatusDone, Count: 2}, res)

	v, ok := requireAttr(t, doc, "#fname", "value")
	require.True(t, ok)
	assert.Equal(t, "Jane", v)
	_, checked := requireAttr(t, doc, "#consent", "checked")
	assert.True(t, checked)
}

func TestRunInvalidSelectorIsLookupMiss(t *testing.T) {
	t.Parallel()
	doc := newFixture(t)

	res := Run(doc, []schemas.FillAction{
		{Selector: "#fname[", Type: schemas.ControlText, Value: "x"},
		{Selector: "#fname", Type: schemas.ControlText, Value: "Jane"},
	})

	assert.Equal(t, 1, res.Count)
	v, ok := requireAttr(t, doc, "#fname", "value")
	require.True(t, ok)
	assert.Equal(t, "Jane", v)
}

func TestRunFirstMatchWins(t *testing.T) {
	t.Parallel()
	doc := newFixture(t)

	Run(doc, []schemas.FillAction{{Selector: ".dup", Value: "filled"}})

	v, ok := requireAttr(t, doc, `input[name=dup1]`, "value")
	require.True(t, ok)
	assert.Equal(t, "filled", v)

	v, ok = requireAttr(t, doc, `input[name=dup2]`, "value")
	require.True(t, ok)
	assert.Equal(t, "b", v, "only the first match in document order is touched")
}

func TestRunEmptyBatch(t *testing.T) {
	t.Parallel()
	sess, err := NewStaticSession(fixturePage)
	require.NoError(t, err)
	ctx := context.Background()

	before, err := sess.Snapshot(ctx)
	require.NoError(t, err)

	res, err := sess.Apply(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, schemas.ExecutionResult{Status: schemas.StatusDone, Count: 0}, res)
	assert.Empty(t, sess.Signals())

	after, err := sess.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after, "an empty batch must not mutate the document")
}

func TestRunCountNeverExceedsBatchLength(t *testing.T) {
	t.Parallel()
	doc := newFixture(t)

	batch := []schemas.FillAction{
		{Selector: "#fname", Value: "a"},
		{Selector: "#fname", Value: "b"},
		{Selector: "#gone", Value: "c"},
	}
	res := Run(doc, batch)
	assert.LessOrEqual(t, res.Count, len(batch))
	assert.Equal(t, 2, res.Count)
}

func TestRunSignalOrderPerAppliedAction(t *testing.T) {
	t.Parallel()
	doc := newFixture(t)

	Run(doc, []schemas.FillAction{
		{Selector: "#fname", Value: "Jane"},
		{Selector: "#missing", Value: "x"},
		{Selector: "#consent", Type: schemas.ControlCheckbox, Value: "true"},
	})

	// Exactly one input, one change, one blur per applied action, in that
	// order, all bubbling. The skipped action emits nothing.
	want := []EmittedSignal{
		{Selector: "#fname", Signal: SignalInput, Bubbles: true},
		{Selector: "#fname", Signal: SignalChange, Bubbles: true},
		{Selector: "#fname", Signal: SignalBlur, Bubbles: true},
		{Selector: "#consent", Signal: SignalInput, Bubbles: true},
		{Selector: "#consent", Signal: SignalChange, Bubbles: true},
		{Selector: "#consent", Signal: SignalBlur, Bubbles: true},
	}
	assert.Equal(t, want, doc.Signals())
}

func TestSnapshotStableWithoutMutation(t *testing.T) {
	t.Parallel()
	sess, err := NewStaticSession(fixturePage)
	require.NoError(t, err)
	ctx := context.Background()

	first, err := sess.Snapshot(ctx)
	require.NoError(t, err)
	second, err := sess.Snapshot(ctx)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.True(t, strings.HasPrefix(first, "<body>"), "snapshot is the serialized body element")
}

func TestSnapshotReflectsAppliedActions(t *testing.T) {
	t.Parallel()
	sess, err := NewStaticSession(fixturePage)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = sess.Apply(ctx, []schemas.FillAction{{Selector: "#summary", Value: "Ten years of Go."}})
	require.NoError(t, err)

	snap, err := sess.Snapshot(ctx)
	require.NoError(t, err)
	assert.Contains(t, snap, "Ten years of Go.")
}

func TestStaticSessionHonorsContext(t *testing.T) {
	t.Parallel()
	sess, err := NewStaticSession(fixturePage)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = sess.Snapshot(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	_, err = sess.Apply(ctx, []schemas.FillAction{{Selector: "#fname", Value: "x"}})
	assert.ErrorIs(t, err, context.Canceled)
}
