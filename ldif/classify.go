package ldif

import (
	"regexp"
	"strings"
	"unicode"
)

// linePattern matches either a comment or "name:" / "name::" followed by the
// value. Group 1 is the comment, groups 2-4 are name, separator and value.
var linePattern = regexp.MustCompile(`^(\s*#.*)|^(\w+)(:{1,2})\s*(.*)$`)

// Classifier turns physical record lines into Line values.
type Classifier struct {
	codec     *Codec
	skipEmpty bool
	log       Log
}

// NewClassifier returns a Classifier that decodes "::" values with codec and,
// when skipEmpty is set, drops attributes whose value is empty. A nil codec
// decodes everything and ignores decode errors; a nil log discards messages.
func NewClassifier(codec *Codec, skipEmpty bool, log Log) *Classifier {
	if codec == nil {
		codec, _ = NewCodec(CodecOptions{IgnoreErrors: true})
	}
	if log == nil {
		log = NopLog{}
	}
	return &Classifier{codec: codec, skipEmpty: skipEmpty, log: log}
}

// Classify returns the Line for text. The boolean is false when the line was
// dropped because its value was empty. Errors come only from the codec.
func (c *Classifier) Classify(text string) (Line, bool, error) {
	m := linePattern.FindStringSubmatch(text)
	if m == nil {
		c.log.Printf("ERROR importing line: '%s'", text)
		c.log.Printf("  Leaving as is, continuing\n")
		return Plain(text), true, nil
	}

	if m[1] != "" {
		return Comment(text), true, nil
	}

	name, sep, value := m[2], m[3], m[4]

	if sep == "::" {
		line, err := c.codec.Decode(name, value, c.log)
		if err != nil {
			return Line{}, false, err
		}
		if line.Kind == KindBase64 {
			return line, true, nil
		}
		value = line.Value
	}

	trimmed := strings.TrimRightFunc(value, unicode.IsSpace)
	if trimmed != value {
		c.log.Printf(" Trailing whitespace removed from: '%s'", name)
		value = trimmed
	}

	if value == "" && c.skipEmpty {
		c.log.Printf(" Skipping blank atribute: '%s'", name)
		return Line{}, false, nil
	}

	return Attr(name, value), true, nil
}
