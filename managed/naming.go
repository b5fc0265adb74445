package managed

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Selector converts a Go method or field name to the selector used at the
// dispatch boundary. Go uses PascalCase; selectors are camelCase.
// e.g., "PostLabel" → "postLabel", "ID" → "id", "TotalElements" → "totalElements"
func Selector(goName string) string {
	if goName == "" {
		return goName
	}
	// Leading initialisms are lowered as a unit: "UIDString" → "uidString"
	runes := []rune(goName)
	n := 0
	for n < len(runes) && unicode.IsUpper(runes[n]) {
		n++
	}
	switch {
	case n == 0:
		return goName
	case n == 1 || n == len(runes):
		return strings.ToLower(string(runes[:n])) + string(runes[n:])
	default:
		// the last upper-case rune starts the next word
		return strings.ToLower(string(runes[:n-1])) + string(runes[n-1:])
	}
}

// matchSelector reports whether a Go name answers a selector. Matching is
// case-insensitive so that "id", "Id" and "ID" all reach a field named ID.
func matchSelector(goName, selector string) bool {
	return strings.EqualFold(goName, selector)
}

// exported reports whether a Go identifier is exported.
func exported(name string) bool {
	r, _ := utf8.DecodeRuneInString(name)
	return unicode.IsUpper(r)
}

// splitAccessor splits "get:field" and "set:field" selectors.
func splitAccessor(selector string) (kind, field string, ok bool) {
	kind, field, ok = strings.Cut(selector, ":")
	if !ok || field == "" || (kind != "get" && kind != "set") {
		return "", "", false
	}
	return kind, field, true
}
