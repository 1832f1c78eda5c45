package utils

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
)

// Hashable is implemented by records that skip writes when their content is unchanged
type Hashable interface {
	GetHashableFields() map[string]any
	SetContentHash(hash string)
	GetContentHash() string
}

// RefreshContentHash recomputes the entity's hash and reports whether it changed
func RefreshContentHash(entity Hashable) bool {
	hash := HashFields(entity.GetHashableFields())
	if hash == entity.GetContentHash() {
		return false
	}
	entity.SetContentHash(hash)
	return true
}

// HashFields creates a deterministic SHA-256 hash from a map of fields
func HashFields(fields map[string]any) string {
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	ordered := make([][2]any, 0, len(keys))
	for _, key := range keys {
		ordered = append(ordered, [2]any{key, normalizeValue(fields[key])})
	}

	jsonBytes, err := json.Marshal(ordered)
	if err != nil {
		jsonBytes = []byte("[]")
	}

	hash := sha256.Sum256(jsonBytes)
	return fmt.Sprintf("%x", hash)
}

func normalizeValue(value any) any {
	if value == nil {
		return nil
	}

	v := reflect.ValueOf(value)
	if v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return nil
		}
		return normalizeValue(v.Elem().Interface())
	}

	switch v.Kind() {
	case reflect.String:
		return v.String()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return v.Uint()
	case reflect.Float32, reflect.Float64:
		return v.Float()
	case reflect.Bool:
		return v.Bool()
	case reflect.Slice:
		if b, ok := value.([]byte); ok {
			return string(b)
		}
		return value
	default:
		return value
	}
}
