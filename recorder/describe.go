package recorder

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// maxTextLen truncates element text lifted from arbitrary pages.
const maxTextLen = 80

// ElementInfo is a compact description of the page element behind an
// interaction.
type ElementInfo struct {
	Tag     string   `json:"tagName"`
	ID      string   `json:"id,omitempty"`
	Classes []string `json:"classes,omitempty"`
	Type    string   `json:"type,omitempty"` // input type attribute
	Text    string   `json:"text,omitempty"`
}

// DescribeElement parses an element's outer-HTML snippet and extracts its
// tag, id, classes, input type, and visible text.
func DescribeElement(snippet string) (*ElementInfo, error) {
	nodes, err := html.ParseFragment(strings.NewReader(snippet), &html.Node{
		Type:     html.ElementNode,
		Data:     "body",
		DataAtom: atom.Body,
	})
	if err != nil {
		return nil, fmt.Errorf("recorder: parse snippet: %w", err)
	}

	var el *html.Node
	for _, n := range nodes {
		if n.Type == html.ElementNode {
			el = n
			break
		}
	}
	if el == nil {
		return nil, fmt.Errorf("recorder: no element in snippet")
	}

	info := &ElementInfo{Tag: strings.ToUpper(el.Data)}
	for _, attr := range el.Attr {
		switch attr.Key {
		case "id":
			info.ID = attr.Val
		case "class":
			info.Classes = strings.Fields(attr.Val)
		case "type":
			info.Type = attr.Val
		}
	}
	info.Text = truncate(collectText(el), maxTextLen)
	return info, nil
}

// IsPasswordField reports whether the element is a password input, which
// the observer never captures.
func (e *ElementInfo) IsPasswordField() bool {
	return e.Tag == "INPUT" && strings.EqualFold(e.Type, "password")
}

// StepTitle builds a human-readable step title from the event and element.
func StepTitle(eventType string, e *ElementInfo) string {
	verb := map[string]string{
		"click":  "Clicked",
		"input":  "Typed into",
		"change": "Changed",
		"scroll": "Scrolled",
		"keyup":  "Typed into",
		"select": "Selected text in",
	}[eventType]
	if verb == "" {
		verb = "Interacted with"
	}

	target := strings.ToLower(e.Tag)
	if e.ID != "" {
		target += "#" + e.ID
	}
	if e.Text != "" {
		return fmt.Sprintf("%s %s %q", verb, target, e.Text)
	}
	return fmt.Sprintf("%s %s", verb, target)
}

// Details returns the element as a step details map, the shape stored on
// each SOP step.
func (e *ElementInfo) Details() map[string]any {
	d := map[string]any{"tagName": e.Tag}
	if e.ID != "" {
		d["id"] = e.ID
	}
	if len(e.Classes) > 0 {
		d["classes"] = strings.Join(e.Classes, " ")
	}
	if e.Type != "" {
		d["type"] = e.Type
	}
	if e.Text != "" {
		d["text"] = e.Text
	}
	return d
}

func collectText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(sb.String()), " ")
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
