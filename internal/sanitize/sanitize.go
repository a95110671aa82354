// Package sanitize rewrites entry names that violate Windows filename
// rules. The rules follow
// https://docs.microsoft.com/en-us/windows/win32/fileio/naming-a-file:
// a fixed set of characters is illegal anywhere in a name, and a fixed
// set of device names is reserved regardless of case.
package sanitize

import "strings"

// illegalChars are forbidden anywhere in a Windows file or directory name.
const illegalChars = `\/:*?"<>|`

// fallbackName replaces a segment that matches a reserved device name.
const fallbackName = "_reserved"

// DefaultReplacement substitutes illegal characters unless overridden.
const DefaultReplacement = '_'

// reservedNames are the Windows device names, matched case-insensitively
// against the whole segment. Superscript digits count as variants of the
// numbered devices.
var reservedNames = map[string]bool{
	"CON": true, "PRN": true, "AUX": true, "NUL": true,
	"COM1": true, "COM2": true, "COM3": true, "COM4": true, "COM5": true,
	"COM6": true, "COM7": true, "COM8": true, "COM9": true,
	"COM¹": true, "COM²": true, "COM³": true,
	"LPT1": true, "LPT2": true, "LPT3": true, "LPT4": true, "LPT5": true,
	"LPT6": true, "LPT7": true, "LPT8": true, "LPT9": true,
	"LPT¹": true, "LPT²": true, "LPT³": true,
}

// Legal reports whether c may appear in a Windows file name.
func Legal(c rune) bool {
	return !strings.ContainsRune(illegalChars, c)
}

// Rules is an immutable sanitization rule set. The illegal-character set,
// the reserved names, and the fallback literal are fixed; only the
// replacement character is configurable.
type Rules struct {
	replacement rune
}

// Default returns rules using DefaultReplacement.
func Default() *Rules {
	return New(DefaultReplacement)
}

// New returns rules that substitute replacement for illegal characters.
// The replacement must itself be a legal character, otherwise the rules
// lose idempotence; config validation enforces that before a run starts.
func New(replacement rune) *Rules {
	return &Rules{replacement: replacement}
}

// Name sanitizes a single name segment: every illegal character is replaced,
// and if the result matches a reserved device name the whole segment becomes
// the fixed fallback. Applying Name to its own output returns it unchanged.
func (r *Rules) Name(name string) string {
	name = strings.Map(func(c rune) rune {
		if strings.ContainsRune(illegalChars, c) {
			return r.replacement
		}
		return c
	}, name)
	if reservedNames[strings.ToUpper(name)] {
		return fallbackName
	}
	return name
}

// Path sanitizes the final segment of a slash-separated path, leaving every
// ancestor segment untouched. Ancestors were already sanitized when they
// were visited; rewriting them here would detach the path from the entry it
// addresses.
func (r *Rules) Path(p string) string {
	i := strings.LastIndexByte(p, '/')
	if i < 0 {
		return r.Name(p)
	}
	return p[:i+1] + r.Name(p[i+1:])
}
