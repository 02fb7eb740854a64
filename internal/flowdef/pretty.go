package flowdef

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

// Pretty renders raw JSON in its canonical 2-space form. Object keys keep
// their document order and number literals are copied unchanged. Strings are
// re-encoded with QuoteString, so an escape spelling like \u003c or \u00e9
// in raw comes out as the literal character and the text a user copies from
// the rendering matches what edits search for.
func Pretty(raw []byte) (string, error) {
	raw = bytes.TrimSpace(raw)
	var compact bytes.Buffer
	if err := json.Compact(&compact, raw); err != nil {
		return "", &ParseError{Err: err}
	}

	dec := json.NewDecoder(bytes.NewReader(compact.Bytes()))
	dec.UseNumber()
	var b strings.Builder
	if err := writePrettyValue(&b, dec, 0); err != nil {
		return "", &ParseError{Err: err}
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return "", &ParseError{Msg: "unexpected data after top-level value"}
	}
	return b.String(), nil
}

func writePrettyValue(b *strings.Builder, dec *json.Decoder, depth int) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			return writePrettyObject(b, dec, depth)
		case '[':
			return writePrettyArray(b, dec, depth)
		}
		return fmt.Errorf("unexpected delimiter %q", t)
	case string:
		b.WriteString(QuoteString(t))
	case json.Number:
		b.WriteString(t.String())
	case bool:
		if t {
			b.WriteString("true")
		} else {
			b.WriteString("false")
		}
	case nil:
		b.WriteString("null")
	default:
		return fmt.Errorf("unexpected token %v", tok)
	}
	return nil
}

func writePrettyObject(b *strings.Builder, dec *json.Decoder, depth int) error {
	b.WriteByte('{')
	n := 0
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("object key must be a string, got %v", tok)
		}
		if n > 0 {
			b.WriteByte(',')
		}
		newline(b, depth+1)
		b.WriteString(QuoteString(key))
		b.WriteString(": ")
		if err := writePrettyValue(b, dec, depth+1); err != nil {
			return err
		}
		n++
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	if n > 0 {
		newline(b, depth)
	}
	b.WriteByte('}')
	return nil
}

func writePrettyArray(b *strings.Builder, dec *json.Decoder, depth int) error {
	b.WriteByte('[')
	n := 0
	for dec.More() {
		if n > 0 {
			b.WriteByte(',')
		}
		newline(b, depth+1)
		if err := writePrettyValue(b, dec, depth+1); err != nil {
			return err
		}
		n++
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	if n > 0 {
		newline(b, depth)
	}
	b.WriteByte(']')
	return nil
}

func newline(b *strings.Builder, depth int) {
	b.WriteByte('\n')
	for i := 0; i < depth; i++ {
		b.WriteString("  ")
	}
}

const hexDigits = "0123456789abcdef"

// QuoteString encodes s as a JSON string literal with minimal escaping:
// only the quote, the backslash and control characters are escaped, using
// \b \f \n \r \t where they exist and \u00XX otherwise. HTML characters,
// U+2028, U+2029 and all other non-ASCII text stay literal. Invalid UTF-8
// becomes U+FFFD.
func QuoteString(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('"')
	for i := 0; i < len(s); {
		c := s[i]
		if c < utf8.RuneSelf {
			switch c {
			case '"':
				b.WriteString(`\"`)
			case '\\':
				b.WriteString(`\\`)
			case '\b':
				b.WriteString(`\b`)
			case '\f':
				b.WriteString(`\f`)
			case '\n':
				b.WriteString(`\n`)
			case '\r':
				b.WriteString(`\r`)
			case '\t':
				b.WriteString(`\t`)
			default:
				if c < 0x20 {
					b.WriteString(`\u00`)
					b.WriteByte(hexDigits[c>>4])
					b.WriteByte(hexDigits[c&0xf])
				} else {
					b.WriteByte(c)
				}
			}
			i++
			continue
		}
		r, size := utf8.DecodeRuneInString(s[i:])
		if r == utf8.RuneError && size == 1 {
			b.WriteRune(utf8.RuneError)
		} else {
			b.WriteString(s[i : i+size])
		}
		i += size
	}
	b.WriteByte('"')
	return b.String()
}
