// Package check extracts values from JSON response payloads into session
// attributes, so later scenario steps can reference data produced by
// earlier ones.
package check

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"surge/internal/session"
)

// ExtractJSON evaluates JSONPath rules (attribute name -> path) against
// body. Paths use JSONPath syntax ($.foo.bar, $.items[0].id) converted
// internally to gjson format. All failed rules are reported joined.
func ExtractJSON(body []byte, rules map[string]string) (map[string]any, error) {
	if len(rules) == 0 {
		return nil, nil
	}

	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("invalid JSON in payload")
	}

	attrs := make(map[string]any, len(rules))
	var errs []error

	for name, jsonPath := range rules {
		value := gjson.GetBytes(body, convertJSONPath(jsonPath))
		if !value.Exists() {
			errs = append(errs, fmt.Errorf("path %q not found for attribute %q", jsonPath, name))
			continue
		}
		attrs[name] = value.Value()
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return attrs, nil
}

// Save applies the extraction rules and stores the results as session
// attributes. On any extraction failure the session is returned with the
// current nesting level marked failed; partial results are discarded.
func Save(s session.Session, body []byte, rules map[string]string) (session.Session, error) {
	attrs, err := ExtractJSON(body, rules)
	if err != nil {
		return s.MarkFailed(), err
	}
	return s.SetAttributes(attrs), nil
}

// convertJSONPath converts JSONPath syntax to gjson path format:
// $.foo.bar -> foo.bar, $.items[0].id -> items.0.id, $.data[*] -> data.#
func convertJSONPath(path string) string {
	if strings.HasPrefix(path, "$.") {
		path = path[2:]
	} else if strings.HasPrefix(path, "$") {
		path = path[1:]
	}

	var result strings.Builder
	i := 0
	for i < len(path) {
		if path[i] == '[' {
			j := i + 1
			for j < len(path) && path[j] != ']' {
				j++
			}
			if j < len(path) {
				content := path[i+1 : j]
				if content == "*" {
					result.WriteString(".#")
				} else {
					result.WriteByte('.')
					result.WriteString(content)
				}
				i = j + 1
				continue
			}
		}
		result.WriteByte(path[i])
		i++
	}

	return result.String()
}
