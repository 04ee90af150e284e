package jira

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// maxNodeDepth bounds recursion into rich-text documents.
const maxNodeDepth = 64

// childKeys are the fields a rich-text node may keep its children under,
// visited in this order.
var childKeys = []string{"content", "children", "items"}

// Node is one node of a rich-text (ADF) comment. It is a closed set of
// variants: TextNode, EmojiNode, MentionNode and GroupNode.
type Node interface {
	isNode()
}

// TextNode holds literal text.
type TextNode struct {
	Text string
}

// EmojiNode is an emoji reference such as ":smile:".
type EmojiNode struct {
	ShortName string
}

// MentionNode references a user.
type MentionNode struct {
	Text        string
	DisplayName string
	ID          string
}

// GroupNode is any other node type (doc, paragraph, list...) with children.
type GroupNode struct {
	Type     string
	Children []Node
}

func (TextNode) isNode()    {}
func (EmojiNode) isNode()   {}
func (MentionNode) isNode() {}
func (GroupNode) isNode()   {}

// ExtractComment converts a comment field into plain text. The field may be
// a JSON string or a rich-text document. Malformed input yields "" so that a
// bad comment never aborts a larger aggregation.
func ExtractComment(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}

	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return ""
	}

	switch doc := v.(type) {
	case string:
		return strings.TrimSpace(doc)
	case map[string]interface{}:
		root, err := decodeNode(doc, 0)
		if err != nil {
			return ""
		}
		return ExtractText(root)
	default:
		return ""
	}
}

// ExtractText flattens a decoded node tree depth-first, joining fragments
// with single spaces.
func ExtractText(n Node) string {
	var parts []string
	collect(n, &parts)
	return strings.TrimSpace(strings.Join(parts, " "))
}

func collect(n Node, parts *[]string) {
	switch node := n.(type) {
	case TextNode:
		emit(parts, node.Text)
	case EmojiNode:
		emit(parts, node.ShortName)
	case MentionNode:
		switch {
		case node.Text != "":
			emit(parts, node.Text)
		case node.DisplayName != "":
			emit(parts, node.DisplayName)
		default:
			emit(parts, node.ID)
		}
	case GroupNode:
		for _, child := range node.Children {
			collect(child, parts)
		}
	}
}

func emit(parts *[]string, s string) {
	if s != "" {
		*parts = append(*parts, s)
	}
}

// DecodeNode converts a generic JSON object into the Node variant.
func DecodeNode(m map[string]interface{}) (Node, error) {
	return decodeNode(m, 0)
}

func decodeNode(m map[string]interface{}, depth int) (Node, error) {
	if depth > maxNodeDepth {
		return nil, fmt.Errorf("document nested deeper than %d", maxNodeDepth)
	}

	typ, _ := m["type"].(string)
	attrs, _ := m["attrs"].(map[string]interface{})

	switch typ {
	case "text":
		text, ok := m["text"].(string)
		if !ok {
			return nil, fmt.Errorf("text node without string text")
		}
		return TextNode{Text: text}, nil
	case "emoji":
		return EmojiNode{ShortName: attrString(attrs, "shortName")}, nil
	case "mention":
		return MentionNode{
			Text:        attrString(attrs, "text"),
			DisplayName: attrString(attrs, "displayName"),
			ID:          attrString(attrs, "id"),
		}, nil
	}

	group := GroupNode{Type: typ}
	for _, key := range childKeys {
		rawChildren, ok := m[key]
		if !ok || rawChildren == nil {
			continue
		}
		list, ok := rawChildren.([]interface{})
		if !ok {
			return nil, fmt.Errorf("%s of %q node is %T, want list", key, typ, rawChildren)
		}
		for i, item := range list {
			obj, ok := item.(map[string]interface{})
			if !ok {
				return nil, fmt.Errorf("%s[%d] of %q node is %T, want object", key, i, typ, item)
			}
			child, err := decodeNode(obj, depth+1)
			if err != nil {
				return nil, err
			}
			group.Children = append(group.Children, child)
		}
	}
	return group, nil
}

func attrString(attrs map[string]interface{}, key string) string {
	if attrs == nil {
		return ""
	}
	s, _ := attrs[key].(string)
	return s
}

// PlainTextToADF converts plain text to an ADF document, one paragraph per line.
func PlainTextToADF(text string) *ADFDocument {
	doc := &ADFDocument{Version: 1, Type: "doc", Content: []ADFNode{}}
	if text == "" {
		return doc
	}
	for _, para := range strings.Split(text, "\n") {
		if para == "" {
			doc.Content = append(doc.Content, ADFNode{Type: "paragraph"})
			continue
		}
		doc.Content = append(doc.Content, ADFNode{
			Type:    "paragraph",
			Content: []ADFNode{{Type: "text", Text: para}},
		})
	}
	return doc
}
