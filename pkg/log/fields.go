package log

import "sort"

const (
	FieldKeyPrefix = "prefix"
	FieldKeyUnit   = "unit"
	FieldKeyRunID  = "run_id"
	FieldKeyError  = "error"
)

// Fields type, used to pass to `WithFields`.
type Fields map[string]any

// Keys returns the sorted field names, excluding `removeKeys`.
func (fields Fields) Keys(removeKeys ...string) []string {
	keys := make([]string, 0, len(fields))

	for key := range fields {
		skip := false

		for _, removeKey := range removeKeys {
			if key == removeKey {
				skip = true
				break
			}
		}

		if !skip {
			keys = append(keys, key)
		}
	}

	sort.Strings(keys)

	return keys
}
