package config

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// ErrUnknownKey is returned for a dotted key that names no setting.
var ErrUnknownKey = errors.New("unknown config key")

// ValueKind is the JSON type a setting holds.
type ValueKind int

const (
	KindString ValueKind = iota
	KindBool
	KindInt
)

func (k ValueKind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	default:
		return "string"
	}
}

// Key describes one setting addressable as a dotted path, such as
// "cache.max_sessions".
type Key struct {
	Name   string
	Kind   ValueKind
	Secret bool
}

var secretKeys = map[string]bool{"api_key": true}

// The schema is derived from Default so a new Config field becomes settable
// without further registration.
var schema = sync.OnceValue(func() map[string]Key {
	m, err := ToMap(Default())
	if err != nil {
		panic(fmt.Sprintf("config schema: %v", err))
	}
	out := make(map[string]Key)
	for name, v := range Flatten(m) {
		k := Key{Name: name, Secret: secretKeys[name]}
		switch v.(type) {
		case bool:
			k.Kind = KindBool
		case float64:
			k.Kind = KindInt
		}
		out[name] = k
	}
	return out
})

// Keys returns every setting, sorted by name.
func Keys() []Key {
	s := schema()
	out := make([]Key, 0, len(s))
	for _, k := range s {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// LookupKey returns the setting named by a dotted key.
func LookupKey(name string) (Key, error) {
	k, ok := schema()[name]
	if !ok {
		return Key{}, fmt.Errorf("%w: %s", ErrUnknownKey, name)
	}
	return k, nil
}

// IsSecretKey reports whether a dotted key holds a credential.
func IsSecretKey(name string) bool {
	return schema()[name].Secret
}

// Parse converts a command-line value to the type the setting holds.
func (k Key) Parse(value string) (any, error) {
	switch k.Kind {
	case KindBool:
		b, err := strconv.ParseBool(strings.TrimSpace(value))
		if err != nil {
			return nil, fmt.Errorf("%s expects a bool, got %q", k.Name, value)
		}
		return b, nil
	case KindInt:
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return nil, fmt.Errorf("%s expects an integer, got %q", k.Name, value)
		}
		return n, nil
	default:
		return value, nil
	}
}

// Flatten turns a nested settings map into dotted keys. Empty sections
// produce no keys.
func Flatten(m map[string]any) map[string]any {
	out := make(map[string]any)
	var walk func(prefix string, m map[string]any)
	walk = func(prefix string, m map[string]any) {
		for k, v := range m {
			if prefix != "" {
				k = prefix + "." + k
			}
			if child, ok := v.(map[string]any); ok {
				walk(k, child)
				continue
			}
			out[k] = v
		}
	}
	walk("", m)
	return out
}

// Unflatten is the inverse of Flatten. A dotted key whose section collides
// with a scalar replaces the scalar.
func Unflatten(flat map[string]any) map[string]any {
	out := make(map[string]any)
	for key, v := range flat {
		section := out
		for {
			head, rest, nested := strings.Cut(key, ".")
			if !nested {
				section[head] = v
				break
			}
			child, ok := section[head].(map[string]any)
			if !ok {
				child = make(map[string]any)
				section[head] = child
			}
			section, key = child, rest
		}
	}
	return out
}

// maskSecret keeps only the last four characters of a credential.
func maskSecret(v any) any {
	s, ok := v.(string)
	if !ok || s == "" {
		return v
	}
	return "***" + s[max(0, len(s)-4):]
}

// MaskSecrets returns a copy of flat with credentials masked.
func MaskSecrets(flat map[string]any) map[string]any {
	out := make(map[string]any, len(flat))
	for k, v := range flat {
		if IsSecretKey(k) {
			v = maskSecret(v)
		}
		out[k] = v
	}
	return out
}
