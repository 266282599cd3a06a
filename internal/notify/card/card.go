// Package card is the chat-platform-neutral model of an interactive message.
// Messenger adapters translate it to the platform's own JSON.
package card

import "encoding/json"

// Element tags.
const (
	TagMarkdown = "markdown"
	TagTable    = "table"
	TagActions  = "actions"
	TagDivider  = "divider"
)

// Header colours.
const (
	ColorRed    = "red"
	ColorOrange = "orange"
	ColorBlue   = "blue"
	ColorGreen  = "green"
	ColorGrey   = "grey"
)

type Card struct {
	Header   Header    `json:"header"`
	Elements []Element `json:"elements"`
}

type Header struct {
	Title string `json:"title"`
	Color string `json:"color,omitempty"`
}

// Element is one block of the card body. Exactly one of Content, Table or
// Actions is populated, according to Tag.
type Element struct {
	Tag     string   `json:"tag"`
	Content string   `json:"content,omitempty"`
	Table   *Table   `json:"table,omitempty"`
	Actions []Button `json:"actions,omitempty"`
}

type Table struct {
	Title   string     `json:"title,omitempty"`
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// Button carries an encoded action descriptor in Value. A non-nil Confirm makes
// the client ask before delivering the callback.
type Button struct {
	Text    string          `json:"text"`
	Style   string          `json:"style,omitempty"`
	Value   json.RawMessage `json:"value"`
	Confirm *Confirm        `json:"confirm,omitempty"`
}

type Confirm struct {
	Title string `json:"title"`
	Text  string `json:"text"`
}

func Markdown(content string) Element {
	return Element{Tag: TagMarkdown, Content: content}
}

func TableOf(t Table) Element {
	return Element{Tag: TagTable, Table: &t}
}

func Actions(buttons ...Button) Element {
	return Element{Tag: TagActions, Actions: buttons}
}

func Divider() Element {
	return Element{Tag: TagDivider}
}

// Add appends elements and returns the card for chaining.
func (c *Card) Add(elements ...Element) *Card {
	c.Elements = append(c.Elements, elements...)
	return c
}

// Tables returns the card's tables in order.
func (c Card) Tables() []Table {
	var out []Table
	for _, e := range c.Elements {
		if e.Tag == TagTable && e.Table != nil {
			out = append(out, *e.Table)
		}
	}
	return out
}

// Buttons returns every button on the card in order.
func (c Card) Buttons() []Button {
	var out []Button
	for _, e := range c.Elements {
		if e.Tag == TagActions {
			out = append(out, e.Actions...)
		}
	}
	return out
}
