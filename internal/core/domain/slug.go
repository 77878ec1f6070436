package domain

import "strings"

// =============================================================================
// Project Slug
// =============================================================================

// Slugify converts a project name to a container-name-safe slug.
//
// The transformation rules are:
//   - Lowercase letters (a-z) and digits are kept as-is
//   - Uppercase letters (A-Z) are converted to lowercase
//   - Spaces, dots and underscores become hyphens
//   - Hyphen runs collapse and leading/trailing hyphens are trimmed
//   - All other characters are removed
//
// Example:
//
//	Slugify("My Shop")        // returns "my-shop"
//	Slugify("shop_2.4.3")     // returns "shop-2-4-3"
//	Slugify("--Store!!--")    // returns "store"
func Slugify(name string) string {
	var b strings.Builder
	lastHyphen := false
	for _, r := range name {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
			lastHyphen = false
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r + 32)
			lastHyphen = false
		case r == ' ' || r == '.' || r == '_' || r == '-':
			if !lastHyphen && b.Len() > 0 {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
