package ldif

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	lru "github.com/hashicorp/golang-lru/v2"
)

var (
	// ErrInvalidBase64 is returned when a "::" value cannot be decoded to
	// UTF-8 text and base64 errors are not being ignored.
	ErrInvalidBase64 = errors.New("invalid base64 value")

	errNotUTF8 = errors.New("decoded value is not valid UTF-8")
)

type verdict int

const (
	verdictText   verdict = iota // printable, safe as a plain value
	verdictBinary                // decoded fine but has to stay encoded
	verdictError                 // base64 or UTF-8 failure
)

type decoded struct {
	verdict verdict
	text    string
	err     error
}

// CodecOptions configures a Codec.
type CodecOptions struct {
	NoConvert       []string // attribute names never decoded
	CaseInsensitive bool     // compare NoConvert names case-insensitively
	IgnoreErrors    bool     // keep undecodable values encoded instead of failing
	CacheSize       int      // decoded payloads remembered, 0 disables the cache
}

// Codec decides whether a base64 attribute value is decoded to plain text or
// kept in its encoded form.
type Codec struct {
	noConvert       map[string]struct{}
	caseInsensitive bool
	ignoreErrors    bool
	cache           *lru.Cache[string, decoded]

	// OnError, when set, is called for every payload that fails to decode,
	// whether or not the error is ignored.
	OnError func(name string, err error)
}

// NewCodec builds a Codec from opts.
func NewCodec(opts CodecOptions) (*Codec, error) {
	c := &Codec{
		noConvert:       make(map[string]struct{}, len(opts.NoConvert)),
		caseInsensitive: opts.CaseInsensitive,
		ignoreErrors:    opts.IgnoreErrors,
	}

	for _, name := range opts.NoConvert {
		c.noConvert[c.fold(name)] = struct{}{}
	}

	if opts.CacheSize > 0 {
		cache, err := lru.New[string, decoded](opts.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("failed to create decode cache: %w", err)
		}
		c.cache = cache
	}

	return c, nil
}

func (c *Codec) fold(name string) string {
	if c.caseInsensitive {
		return strings.ToLower(name)
	}
	return name
}

// Exempt reports whether name is configured to never be decoded.
func (c *Codec) Exempt(name string) bool {
	_, ok := c.noConvert[c.fold(name)]
	return ok
}

// Decode returns KindAttribute with the decoded text when the payload holds
// printable UTF-8 text, and KindBase64 with the untouched payload otherwise.
// An error is only returned for undecodable payloads when errors are not
// ignored.
func (c *Codec) Decode(name, payload string, log Log) (Line, error) {
	if c.Exempt(name) {
		return Base64Attr(name, payload), nil
	}

	log.Printf(" Converting base 64 '%s:: %s'", name, payload)

	d := c.lookup(payload)
	switch d.verdict {
	case verdictError:
		if c.OnError != nil {
			c.OnError(name, d.err)
		}
		log.Printf(" Base64 error for atribute '%s'", name)
		log.Printf("  Error message: %s", d.err)
		if !c.ignoreErrors {
			return Line{}, fmt.Errorf("%w: atribute %s: %v", ErrInvalidBase64, name, d.err)
		}
		log.Printf("  Ignoring error, setting data to base64 and continuing")
		return Base64Attr(name, payload), nil

	case verdictBinary:
		log.Printf("   Not Converted")
		return Base64Attr(name, payload), nil
	}

	log.Printf("             result '%s: %s'", name, d.text)
	return Attr(name, d.text), nil
}

func (c *Codec) lookup(payload string) decoded {
	if c.cache != nil {
		if d, ok := c.cache.Get(payload); ok {
			return d
		}
	}

	d := decode(payload)
	if c.cache != nil {
		c.cache.Add(payload, d)
	}
	return d
}

func decode(payload string) decoded {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(payload))
	if err != nil {
		return decoded{verdict: verdictError, err: err}
	}

	if !utf8.Valid(raw) {
		return decoded{verdict: verdictError, err: errNotUTF8}
	}

	text := string(raw)
	if !printable(text) {
		return decoded{verdict: verdictBinary}
	}

	// Trailing whitespace is trimmed by the classifier, a leading space
	// would be lost when the plain value is read back.
	if strings.HasPrefix(strings.TrimRightFunc(text, unicode.IsSpace), " ") {
		return decoded{verdict: verdictBinary}
	}

	return decoded{verdict: verdictText, text: text}
}

// printable follows the usual definition: letters, marks, numbers,
// punctuation, symbols and the ASCII space. Tabs and line breaks are not.
func printable(s string) bool {
	for _, r := range s {
		if !unicode.IsPrint(r) {
			return false
		}
	}
	return true
}
