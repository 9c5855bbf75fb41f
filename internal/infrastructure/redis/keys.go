package redis

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	json "github.com/goccy/go-json"
)

// DefaultPrefix is used when no key prefix is configured.
const DefaultPrefix = "app"

// BuildKey returns "{prefix}:{namespace}:{id}".
func BuildKey(namespace, id string, prefix ...string) string {
	return keyPrefix(prefix) + ":" + namespace + ":" + id
}

// BuildSearchKey returns "{prefix}:{namespace}:search:{hash}" where hash is the
// base36 xxhash64 of the stable stringification of params. Two parameter sets that
// differ only in map key order yield the same key. Distinct parameter sets can in
// theory collide; with 64 bits the risk is negligible for cache keys.
func BuildSearchKey(namespace string, params any, prefix ...string) (string, error) {
	canonical, err := StableStringify(params)
	if err != nil {
		return "", fmt.Errorf("failed to stringify search params: %w", err)
	}
	sum := strconv.FormatUint(xxhash.Sum64(canonical), 36)
	return keyPrefix(prefix) + ":" + namespace + ":search:" + sum, nil
}

// StableStringify serialises v to JSON with object keys sorted at every depth.
// Structs are first projected onto generic maps so field order does not matter.
func StableStringify(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := writeStable(&buf, generic); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeStable(buf *bytes.Buffer, v any) error {
	switch t := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, _ := json.Marshal(k)
			buf.Write(kb)
			buf.WriteByte(':')
			if err := writeStable(buf, t[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	case []any:
		buf.WriteByte('[')
		for i, e := range t {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeStable(buf, e); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return err
		}
		buf.Write(b)
	}
	return nil
}

func keyPrefix(prefix []string) string {
	if len(prefix) > 0 && prefix[0] != "" {
		return prefix[0]
	}
	return DefaultPrefix
}

// namespaceOf extracts the namespace segment of a key built by BuildKey.
func namespaceOf(key string) string {
	parts := strings.SplitN(key, ":", 3)
	if len(parts) >= 3 {
		return parts[1]
	}
	return parts[0]
}
