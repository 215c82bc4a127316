// Package s3xml encodes and decodes the S3 XML wire shapes used by the rest
// backend.
//
// Each shape has one pure function per direction. Decoding is schema-driven:
// elements are read as text, then validated and converted field by field so
// failures name the offending field and carry the raw node.
package s3xml

import (
	"encoding/xml"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// Namespace is the S3 document namespace.
const Namespace = "http://s3.amazonaws.com/doc/2006-03-01/"

// EncodingURL is the encoding-type value that makes S3 URL-encode keys,
// prefixes and key markers in list responses.
const EncodingURL = "url"

// TimeLayout is the timestamp format S3 emits.
const TimeLayout = "2006-01-02T15:04:05.000Z"

// maxNodeInError bounds the raw node text kept in an InvalidNodeError.
const maxNodeInError = 512

// InvalidNodeError reports an element that is missing or cannot be converted.
type InvalidNodeError struct {
	// Field is the dotted path of the element, e.g. "Contents.Size".
	Field string

	// Reason describes what was wrong.
	Reason string

	// Node is the raw XML of the enclosing element, if available.
	Node string
}

func (e *InvalidNodeError) Error() string {
	if e.Node == "" {
		return fmt.Sprintf("s3xml: invalid %s: %s", e.Field, e.Reason)
	}
	node := e.Node
	if len(node) > maxNodeInError {
		node = node[:maxNodeInError] + "..."
	}
	return fmt.Sprintf("s3xml: invalid %s: %s (node: %s)", e.Field, e.Reason, strings.TrimSpace(node))
}

// FormatTime renders t in UTC with millisecond precision.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// ParseTime parses an ISO-8601 timestamp with or without fractional seconds.
func ParseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// fieldReader converts raw element text, recording the first failure.
type fieldReader struct {
	parent string
	node   string
	err    error
}

func (r *fieldReader) fail(field, reason string) {
	if r.err != nil {
		return
	}
	r.err = &InvalidNodeError{Field: r.parent + "." + field, Reason: reason, Node: r.node}
}

func (r *fieldReader) required(field string, v *string) string {
	if v == nil {
		r.fail(field, "missing")
		return ""
	}
	return *v
}

func (r *fieldReader) integer(field string, v *string) int64 {
	if v == nil {
		r.fail(field, "missing")
		return 0
	}
	n, err := strconv.ParseInt(strings.TrimSpace(*v), 10, 64)
	if err != nil {
		r.fail(field, fmt.Sprintf("not an integer: %q", *v))
		return 0
	}
	return n
}

func (r *fieldReader) boolean(field string, v *string) bool {
	if v == nil {
		r.fail(field, "missing")
		return false
	}
	b, err := strconv.ParseBool(strings.TrimSpace(*v))
	if err != nil {
		r.fail(field, fmt.Sprintf("not a boolean: %q", *v))
		return false
	}
	return b
}

func (r *fieldReader) optionalBool(field string, v *string) *bool {
	if v == nil {
		return nil
	}
	b := r.boolean(field, v)
	return &b
}

func (r *fieldReader) timestamp(field string, v *string) time.Time {
	if v == nil {
		r.fail(field, "missing")
		return time.Time{}
	}
	t, err := ParseTime(*v)
	if err != nil {
		r.fail(field, fmt.Sprintf("not an ISO-8601 date: %q", *v))
		return time.Time{}
	}
	return t
}

func (r *fieldReader) optionalTimestamp(field string, v *string) *time.Time {
	if v == nil {
		return nil
	}
	t := r.timestamp(field, v)
	return &t
}

// unescape URL-decodes s when the response declared encoding-type=url.
func (r *fieldReader) unescape(field, s string, encoded bool) string {
	if !encoded || s == "" {
		return s
	}
	out, err := url.QueryUnescape(s)
	if err != nil {
		r.fail(field, fmt.Sprintf("invalid URL encoding: %q", s))
		return ""
	}
	return out
}

// ValidText reports whether s is valid UTF-8 made only of characters XML 1.0
// can carry. encoding/xml replaces anything else with U+FFFD.
func ValidText(s string) bool {
	for i := 0; i < len(s); {
		c, size := utf8.DecodeRuneInString(s[i:])
		if c == utf8.RuneError && size == 1 {
			return false
		}
		if !isXMLChar(c) {
			return false
		}
		i += size
	}
	return true
}

func isXMLChar(c rune) bool {
	return c == 0x09 || c == 0x0A || c == 0x0D ||
		(c >= 0x20 && c <= 0xD7FF) ||
		(c >= 0xE000 && c <= 0xFFFD) ||
		(c >= 0x10000 && c <= 0x10FFFF)
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func ptr(s string) *string {
	return &s
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// syntaxError wraps an encoding/xml failure as an InvalidNodeError on the root.
func syntaxError(root string, err error) error {
	return &InvalidNodeError{Field: root, Reason: err.Error()}
}

func marshal(v any) ([]byte, error) {
	body, err := xml.Marshal(v)
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), body...), nil
}

func cleanETag(etag string) string {
	return strings.Trim(etag, "\"")
}

func quoteETag(etag string) string {
	if etag == "" {
		return ""
	}
	return `"` + etag + `"`
}

func itoa(n int) string {
	return strconv.Itoa(n)
}

func i64toa(n int64) string {
	return strconv.FormatInt(n, 10)
}

func btoa(b bool) string {
	return strconv.FormatBool(b)
}
