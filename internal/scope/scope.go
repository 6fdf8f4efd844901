// Package scope provides helpers for OAuth2 scope strings (RFC 6749 §3.3).
//
// Scopes travel as a single space-delimited string on the wire and as a
// string slice in configuration. These helpers normalize between the two
// representations and compare requested against granted sets.
package scope

import "strings"

// Normalize trims whitespace, drops empty entries, and removes duplicates
// while preserving the order of first appearance.
func Normalize(values []string) []string {
	if len(values) == 0 {
		return nil
	}

	result := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, value := range values {
		for _, field := range strings.Fields(value) {
			if _, ok := seen[field]; ok {
				continue
			}
			seen[field] = struct{}{}
			result = append(result, field)
		}
	}

	if len(result) == 0 {
		return nil
	}

	return result
}

// Join returns the normalized values as a single space-delimited scope
// string, the format expected by authorize and token endpoints.
func Join(values []string) string {
	return strings.Join(Normalize(values), " ")
}

// Parse splits a space-delimited scope string into its components.
func Parse(s string) []string {
	return Normalize(strings.Fields(s))
}

// Missing returns the requested scopes that are absent from granted.
// A nil result means every requested scope was granted.
func Missing(requested, granted []string) []string {
	req := Normalize(requested)
	if len(req) == 0 {
		return nil
	}

	available := make(map[string]struct{}, len(granted))
	for _, value := range Normalize(granted) {
		available[value] = struct{}{}
	}

	var missing []string
	for _, value := range req {
		if _, ok := available[value]; !ok {
			missing = append(missing, value)
		}
	}

	return missing
}
