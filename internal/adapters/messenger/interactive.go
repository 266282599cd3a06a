package messenger

import (
	"encoding/json"
	"strconv"

	"onboard/internal/notify/card"
)

// Platform card JSON. Only the subset the renderer produces is modelled.

type interactive struct {
	Config   cardConfig `json:"config"`
	Header   header     `json:"header"`
	Elements []any      `json:"elements"`
}

type cardConfig struct {
	WideScreenMode bool `json:"wide_screen_mode"`
	UpdateMulti    bool `json:"update_multi"`
}

type header struct {
	Title    text   `json:"title"`
	Template string `json:"template,omitempty"`
}

type text struct {
	Tag     string `json:"tag"`
	Content string `json:"content"`
}

type markdown struct {
	Tag     string `json:"tag"`
	Content string `json:"content"`
}

type hr struct {
	Tag string `json:"tag"`
}

type table struct {
	Tag      string           `json:"tag"`
	PageSize int              `json:"page_size"`
	Columns  []column         `json:"columns"`
	Rows     []map[string]any `json:"rows"`
}

type column struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	DataType    string `json:"data_type"`
}

type actionBlock struct {
	Tag     string   `json:"tag"`
	Actions []button `json:"actions"`
}

type button struct {
	Tag     string          `json:"tag"`
	Text    text            `json:"text"`
	Type    string          `json:"type"`
	Value   json.RawMessage `json:"value"`
	Confirm *confirm        `json:"confirm,omitempty"`
}

type confirm struct {
	Title text `json:"title"`
	Text  text `json:"text"`
}

var templates = map[string]string{
	card.ColorRed:    "red",
	card.ColorOrange: "orange",
	card.ColorBlue:   "blue",
	card.ColorGreen:  "green",
	card.ColorGrey:   "grey",
}

func plain(s string) text { return text{Tag: "plain_text", Content: s} }

func toInteractive(c card.Card) interactive {
	out := interactive{
		Config: cardConfig{WideScreenMode: true, UpdateMulti: true},
		Header: header{Title: plain(c.Header.Title), Template: templates[c.Header.Color]},
	}
	for _, e := range c.Elements {
		switch e.Tag {
		case card.TagMarkdown:
			out.Elements = append(out.Elements, markdown{Tag: "markdown", Content: e.Content})
		case card.TagDivider:
			out.Elements = append(out.Elements, hr{Tag: "hr"})
		case card.TagTable:
			if e.Table == nil {
				continue
			}
			if e.Table.Title != "" {
				out.Elements = append(out.Elements, markdown{Tag: "markdown", Content: "**" + e.Table.Title + "**"})
			}
			out.Elements = append(out.Elements, toTable(*e.Table))
		case card.TagActions:
			out.Elements = append(out.Elements, toActions(e.Actions))
		}
	}
	return out
}

// toTable keys columns by position since column titles are free text.
func toTable(t card.Table) table {
	out := table{Tag: "table", PageSize: 10}
	for i, name := range t.Columns {
		out.Columns = append(out.Columns, column{Name: colKey(i), DisplayName: name, DataType: "text"})
	}
	for _, row := range t.Rows {
		r := make(map[string]any, len(row))
		for i, cell := range row {
			r[colKey(i)] = cell
		}
		out.Rows = append(out.Rows, r)
	}
	if out.Rows == nil {
		out.Rows = []map[string]any{}
	}
	return out
}

func toActions(buttons []card.Button) actionBlock {
	out := actionBlock{Tag: "action"}
	for _, b := range buttons {
		style := b.Style
		if style == "" {
			style = "default"
		}
		btn := button{Tag: "button", Text: plain(b.Text), Type: style, Value: b.Value}
		if b.Confirm != nil {
			btn.Confirm = &confirm{Title: plain(b.Confirm.Title), Text: plain(b.Confirm.Text)}
		}
		out.Actions = append(out.Actions, btn)
	}
	return out
}

func colKey(i int) string { return "c" + strconv.Itoa(i) }
