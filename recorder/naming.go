package recorder

import (
	"strings"
	"unicode"
)

// invalidFileNameChars mirrors the characters Windows rejects in file names,
// which is the strictest set engine names have to survive.
const invalidFileNameChars = "\"<>|:*?\\/"

func isInvalidFileNameRune(r rune) bool {
	return r < 32 || strings.ContainsRune(invalidFileNameChars, r)
}

// SanitizeFileName replaces every character that is not allowed in a file
// name with an underscore.
func SanitizeFileName(name string) string {
	return strings.Map(func(r rune) rune {
		if isInvalidFileNameRune(r) {
			return '_'
		}
		return r
	}, name)
}

// Blendify turns an engine name into the identifier used for exported
// artifacts: sanitised, then reduced to letters, digits, whitespace and
// '-', with spaces replaced by underscores.
func Blendify(name string) string {
	var b strings.Builder
	for _, r := range SanitizeFileName(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) || r == '-' {
			b.WriteRune(r)
		}
	}
	return strings.ReplaceAll(b.String(), " ", "_")
}
