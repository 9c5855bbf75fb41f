package redis

import (
	"bytes"
	"strings"

	json "github.com/goccy/go-json"
)

// DefaultSensitiveFields is used when CACHE_SENSITIVE_FIELDS is unset.
var DefaultSensitiveFields = []string{"email", "phone", "token", "secret", "apikey", "ssn", "creditcard"}

// strippedFields are removed from every cached value, whatever the configuration.
var strippedFields = map[string]struct{}{
	"password":     {},
	"passwordhash": {},
	"salt":         {},
}

// normalizeField lower-cases a field name and drops separators so that
// contact_email, contactEmail and Contact-Email compare equal.
func normalizeField(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range strings.ToLower(name) {
		if r == '_' || r == '-' {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

type sanitizer struct {
	sensitive []string
}

func newSanitizer(fields []string) *sanitizer {
	if len(fields) == 0 {
		fields = DefaultSensitiveFields
	}
	s := &sanitizer{}
	for _, f := range fields {
		if n := normalizeField(f); n != "" {
			s.sensitive = append(s.sensitive, n)
		}
	}
	return s
}

// isSensitive matches a field whose normalised name equals or ends with a
// configured name, so contactEmail is caught by "email".
func (s *sanitizer) isSensitive(field string) bool {
	n := normalizeField(field)
	for _, name := range s.sensitive {
		if n == name || strings.HasSuffix(n, name) {
			return true
		}
	}
	return false
}

// encode serialises value, strips always-forbidden fields and reports whether a
// sensitive field remains anywhere in the document.
func (s *sanitizer) encode(value any) ([]byte, bool, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, false, err
	}
	if len(raw) == 0 || (raw[0] != '{' && raw[0] != '[') {
		return raw, false, nil
	}
	// numbers stay json.Number so integers beyond 2^53 survive the round trip
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return nil, false, err
	}
	stripped, sensitive := s.walk(generic)
	if !stripped {
		return raw, sensitive, nil
	}
	out, err := json.Marshal(generic)
	if err != nil {
		return nil, false, err
	}
	return out, sensitive, nil
}

// walk mutates v in place. It returns whether anything was stripped and whether a
// sensitive field was seen.
func (s *sanitizer) walk(v any) (stripped, sensitive bool) {
	switch t := v.(type) {
	case map[string]any:
		for k, child := range t {
			if _, drop := strippedFields[normalizeField(k)]; drop {
				delete(t, k)
				stripped = true
				continue
			}
			if s.isSensitive(k) && child != nil {
				sensitive = true
			}
			st, se := s.walk(child)
			stripped = stripped || st
			sensitive = sensitive || se
		}
	case []any:
		for _, child := range t {
			st, se := s.walk(child)
			stripped = stripped || st
			sensitive = sensitive || se
		}
	}
	return stripped, sensitive
}
