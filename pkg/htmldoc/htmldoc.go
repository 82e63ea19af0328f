// Package htmldoc builds small HTML fragments through a chainable element
// tree. It covers the handful of tags the notes renderer needs; it is not a
// general templating engine.
package htmldoc

import (
	"fmt"
	"html"
	"strings"
	"unicode"
)

// Element is one HTML node. Attributes and children render in the order they
// were added, so output is deterministic.
type Element struct {
	tag      string
	attrs    []attribute
	children []node
}

type attribute struct {
	key   string
	value string
}

// node is either a child *Element or a text literal.
type node struct {
	elem *Element
	text string
}

// New creates an element with the given tag.
func New(tag string) *Element {
	return &Element{tag: tag}
}

// Attr adds an attribute and returns the element for chaining.
func (e *Element) Attr(key, value string) *Element {
	e.attrs = append(e.attrs, attribute{key: key, value: value})
	return e
}

// Text appends an escaped text child.
func (e *Element) Text(s string) *Element {
	e.children = append(e.children, node{text: s})
	return e
}

// Child appends a child element.
func (e *Element) Child(c *Element) *Element {
	e.children = append(e.children, node{elem: c})
	return e
}

// Children appends child elements in order.
func (e *Element) Children(cs ...*Element) *Element {
	for _, c := range cs {
		e.Child(c)
	}
	return e
}

// String renders the element and its subtree.
func (e *Element) String() string {
	var b strings.Builder
	e.render(&b)
	return b.String()
}

func (e *Element) render(b *strings.Builder) {
	b.WriteByte('<')
	b.WriteString(e.tag)
	for _, a := range e.attrs {
		fmt.Fprintf(b, " %s=%q", a.key, html.EscapeString(a.value))
	}
	b.WriteByte('>')
	for _, c := range e.children {
		if c.elem != nil {
			c.elem.render(b)
		} else {
			b.WriteString(html.EscapeString(c.text))
		}
	}
	b.WriteString("</")
	b.WriteString(e.tag)
	b.WriteByte('>')
}

// Table builds a table element from a header row and data rows.
func Table(headers []string, rows [][]string) *Element {
	table := New("table")

	headerRow := New("tr")
	for _, h := range headers {
		headerRow.Child(New("th").Text(h))
	}
	table.Child(headerRow)

	for _, row := range rows {
		dataRow := New("tr")
		for _, cell := range row {
			dataRow.Child(New("td").Text(cell))
		}
		table.Child(dataRow)
	}
	return table
}

// HeaderLabel turns a camelCase field name into a spaced upper-case column
// title: "spentTime" becomes "SPENT TIME".
func HeaderLabel(field string) string {
	var b strings.Builder
	runes := []rune(field)
	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) && unicode.IsLower(runes[i-1]) {
			b.WriteByte(' ')
		}
		b.WriteRune(unicode.ToUpper(r))
	}
	return b.String()
}

// SecondsToClock formats a duration in seconds as "Hh Mm", truncating
// sub-minute remainders.
func SecondsToClock(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}
	hours := seconds / 3600
	minutes := (seconds % 3600) / 60
	return fmt.Sprintf("%dh %dm", hours, minutes)
}
