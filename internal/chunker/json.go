package chunker

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// jsonToText flattens a JSON document into "key: value" lines, one per leaf.
// Nested keys are chained ("a: b: 1") and array elements use "[i]: " prefixes.
// Object key order follows the document.
func jsonToText(content string) (string, error) {
	if !gjson.Valid(content) {
		return "", fmt.Errorf("%w: not valid JSON", ErrInvalidContent)
	}
	return flatten(gjson.Parse(content), ""), nil
}

func flatten(value gjson.Result, prefix string) string {
	switch {
	case value.IsArray():
		var lines []string
		i := 0
		value.ForEach(func(_, item gjson.Result) bool {
			lines = append(lines, flatten(item, fmt.Sprintf("%s[%d]: ", prefix, i)))
			i++
			return true
		})
		return strings.Join(lines, "\n")
	case value.IsObject():
		var lines []string
		value.ForEach(func(key, item gjson.Result) bool {
			lines = append(lines, flatten(item, prefix+key.String()+": "))
			return true
		})
		return strings.Join(lines, "\n")
	}

	switch value.Type {
	case gjson.Null:
		return prefix + "null"
	case gjson.Number:
		return prefix + value.Raw
	default:
		return prefix + value.String()
	}
}
