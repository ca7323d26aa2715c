// Package richtext models the JSON document tree produced by the editor and
// provides the pure functions the rest of the API builds on: mention
// extraction, plain-text flattening, previews, and match highlighting.
package richtext

import "encoding/json"

// Node is a single node in the document tree. Text lives on leaf nodes;
// everything else nests through Content.
type Node struct {
	Type    string         `json:"type"`
	Attrs   map[string]any `json:"attrs,omitempty"`
	Content []Node         `json:"content,omitempty"`
	Text    string         `json:"text,omitempty"`
	Marks   []Mark         `json:"marks,omitempty"`
}

// Mark is inline formatting attached to a text node.
type Mark struct {
	Type  string         `json:"type"`
	Attrs map[string]any `json:"attrs,omitempty"`
}

// Parse decodes a raw JSON document into a Node tree.
func Parse(raw json.RawMessage) (Node, error) {
	var root Node
	if err := json.Unmarshal(raw, &root); err != nil {
		return Node{}, err
	}
	return root, nil
}

// AttrString returns a string attribute, or "" when absent or not a string.
func (n Node) AttrString(key string) string {
	if n.Attrs == nil {
		return ""
	}
	value, _ := n.Attrs[key].(string)
	return value
}

// EmptyDocument returns the content stored for a freshly created document.
func EmptyDocument() json.RawMessage {
	return json.RawMessage(`{"type":"doc","content":[]}`)
}
