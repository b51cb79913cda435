package textutil

import "strings"

// SanitizeFileName rewrites a proposed file or directory name so it is safe
// to create on disk. Separator and wildcard characters become dashes, shell
// quoting and redirection characters are removed, and surrounding whitespace
// is trimmed.
func SanitizeFileName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch r {
		case '/', '\\', ':', '*':
			b.WriteRune('-')
		case '?', '"', '<', '>', '|':
			// dropped outright
		default:
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}
