package ldif

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// Kind tags the variant held by a Line.
type Kind int

const (
	KindPlain     Kind = iota // unparseable text, kept verbatim
	KindComment               // "# ..." line, never matched by rules
	KindAttribute             // "name: value"
	KindBase64                // "name:: payload", payload kept encoded
)

func (k Kind) String() string {
	switch k {
	case KindPlain:
		return "plain"
	case KindComment:
		return "comment"
	case KindAttribute:
		return "attribute"
	case KindBase64:
		return "base64"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Line is one logical line of a record. Name is only meaningful for
// attribute kinds; for plain and comment lines Value holds the raw text.
type Line struct {
	Kind  Kind
	Name  string
	Value string
}

func Plain(text string) Line   { return Line{Kind: KindPlain, Value: text} }
func Comment(text string) Line { return Line{Kind: KindComment, Value: text} }

func Attr(name, value string) Line {
	return Line{Kind: KindAttribute, Name: name, Value: value}
}

func Base64Attr(name, payload string) Line {
	return Line{Kind: KindBase64, Name: name, Value: payload}
}

// HasName reports whether rules may match the line by attribute name.
func (l Line) HasName() bool {
	return l.Kind == KindAttribute || l.Kind == KindBase64
}

// String renders the line the way it appears in audit messages.
func (l Line) String() string {
	switch l.Kind {
	case KindAttribute:
		return l.Name + ": " + l.Value
	case KindBase64:
		return l.Name + ":: " + l.Value
	default:
		return l.Value
	}
}

// Dump renders the line for output. A plain attribute value that cannot be
// written on a single line, as a rewrite may produce, is re-encoded with the
// double-colon form.
func (l Line) Dump() string {
	if l.Kind == KindAttribute && multiline(l.Value) {
		return l.Name + ":: " + base64.StdEncoding.EncodeToString([]byte(l.Value))
	}
	return l.String()
}

func multiline(value string) bool {
	return strings.ContainsAny(value, "\x00\r\n")
}
