package executor

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"

	"github.com/mbw0x/autofill-agent/api/schemas"
)

// EmittedSignal is one recorded change notification from the static backend.
type EmittedSignal struct {
	Selector string
	Signal   Signal
	Bubbles  bool
}

// StaticDocument applies the action protocol to a parsed HTML snapshot
// instead of a live page. Mutations land in the node tree (value/checked
// attributes, textarea text, select option state) and every emitted signal
// is recorded, which makes the protocol's dispatch rules observable without
// a browser. Not safe for concurrent use; StaticSession adds the
// single-flight guarantee.
type StaticDocument struct {
	root    *html.Node
	signals []EmittedSignal
}

// ParseStatic builds a StaticDocument from serialized markup.
func ParseStatic(markup string) (*StaticDocument, error) {
	root, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("failed to parse document markup: %w", err)
	}
	return &StaticDocument{root: root}, nil
}

// QueryFirst resolves the selector to the first matching element in document
// order. Unparseable selectors are lookup misses, same as selectors that
// match nothing.
func (d *StaticDocument) QueryFirst(selector string) (Element, bool) {
	sel, err := cascadia.Parse(selector)
	if err != nil {
		return nil, false
	}
	node := cascadia.Query(d.root, sel)
	if node == nil {
		return nil, false
	}
	return &staticElement{doc: d, node: node, selector: selector}, true
}

// Signals returns every signal emitted so far, in dispatch order.
func (d *StaticDocument) Signals() []EmittedSignal {
	return d.signals
}

// Body serializes the document's <body> element, mirroring the snapshot
// operation of a live page executor.
func (d *StaticDocument) Body() (string, error) {
	body := findElement(d.root, "body")
	if body == nil {
		return "", fmt.Errorf("document has no body element")
	}
	var buf bytes.Buffer
	if err := html.Render(&buf, body); err != nil {
		return "", fmt.Errorf("failed to serialize body: %w", err)
	}
	return buf.String(), nil
}

func findElement(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && n.Data == tag {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, tag); found != nil {
			return found
		}
	}
	return nil
}

// staticElement mutates a node in the parsed tree.
type staticElement struct {
	doc      *StaticDocument
	node     *html.Node
	selector string
}

func (e *staticElement) SetValue(v string) {
	switch e.node.Data {
	case "textarea":
		// A textarea's value is its text content.
		for e.node.FirstChild != nil {
			e.node.RemoveChild(e.node.FirstChild)
		}
		e.node.AppendChild(&html.Node{Type: html.TextNode, Data: v})
	case "select":
		setAttr(e.node, "value", v)
		markSelectedOption(e.node, v)
	default:
		setAttr(e.node, "value", v)
	}
}

func (e *staticElement) SetChecked(checked bool) {
	if checked {
		setAttr(e.node, "checked", "")
		return
	}
	removeAttr(e.node, "checked")
}

func (e *staticElement) Emit(sig Signal, bubbles bool) {
	e.doc.signals = append(e.doc.signals, EmittedSignal{
		Selector: e.selector,
		Signal:   sig,
		Bubbles:  bubbles,
	})
}

// markSelectedOption moves the selected attribute to the option whose value
// (or, failing that, text) equals v.
func markSelectedOption(sel *html.Node, v string) {
	var match *html.Node
	for c := sel.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode || c.Data != "option" {
			continue
		}
		if optionValue(c) == v {
			match = c
			break
		}
	}
	if match == nil {
		return
	}
	for c := sel.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.Data == "option" {
			removeAttr(c, "selected")
		}
	}
	setAttr(match, "selected", "")
}

func optionValue(opt *html.Node) string {
	if v, ok := attr(opt, "value"); ok {
		return v
	}
	var buf strings.Builder
	for c := opt.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			buf.WriteString(c.Data)
		}
	}
	return strings.TrimSpace(buf.String())
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func setAttr(n *html.Node, key, val string) {
	for i := range n.Attr {
		if n.Attr[i].Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func removeAttr(n *html.Node, key string) {
	for i := range n.Attr {
		if n.Attr[i].Key == key {
			n.Attr = append(n.Attr[:i], n.Attr[i+1:]...)
			return
		}
	}
}

// StaticSession wraps a StaticDocument as a schemas.PageSession for dry runs
// and tests. A mutex keeps at most one Snapshot or Apply in flight, matching
// the live session's single-exchange discipline.
type StaticSession struct {
	mu  sync.Mutex
	doc *StaticDocument
}

var _ schemas.PageSession = (*StaticSession)(nil)

// NewStaticSession parses the markup into an in-memory page session.
func NewStaticSession(markup string) (*StaticSession, error) {
	doc, err := ParseStatic(markup)
	if err != nil {
		return nil, err
	}
	return &StaticSession{doc: doc}, nil
}

// Snapshot returns the serialized body of the in-memory document.
func (s *StaticSession) Snapshot(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return s.doc.Body()
}

// Apply runs the batch against the in-memory document.
func (s *StaticSession) Apply(ctx context.Context, batch []schemas.FillAction) (schemas.ExecutionResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return schemas.ExecutionResult{}, err
	}
	return Run(s.doc, batch), nil
}

// Signals exposes the recorded change notifications.
func (s *StaticSession) Signals() []EmittedSignal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.Signals()
}
