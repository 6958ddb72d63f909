// Package ident validates the free-text identifiers accepted from the host app
// (tracking ids, session ids, group ids, vehicle ids) and bluetooth addresses.
package ident

import (
	"regexp"
	"strings"
)

// MaxLength is the longest identifier accepted where a length limit applies.
const MaxLength = 64

const disallowed = `?& /\;#`

var macPattern = regexp.MustCompile(`^(([0-9A-Fa-f]{2}:){5}|([0-9A-Fa-f]{2}-){5})[0-9A-Fa-f]{2}$`)

// ValidInput reports whether s is free of disallowed characters. Empty input is
// valid and means "not set".
func ValidInput(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] > 0x7f {
			return false
		}
	}
	return !strings.ContainsAny(s, disallowed)
}

// ValidID checks charset and length. required rejects the empty string.
func ValidID(s string, required bool) bool {
	if s == "" {
		return !required
	}
	return len(s) <= MaxLength && ValidInput(s)
}

// ValidMAC accepts six colon- or hyphen-separated hex octets, e.g. 14:0F:C7:62:F8:9E.
func ValidMAC(s string) bool {
	return macPattern.MatchString(s)
}

// NormalizeMAC upper-cases and colon-separates a valid address so that
// equivalent spellings compare equal.
func NormalizeMAC(s string) string {
	return strings.ToUpper(strings.ReplaceAll(s, "-", ":"))
}
