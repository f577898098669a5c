package utils

import "regexp"

// MakeMap creates and returns a map[string]string containing a single key-value pair.
func MakeMap(key, value string) map[string]string {
	return map[string]string{key: value}
}

var hexKeyPattern = regexp.MustCompile(`^[0-9a-fA-F]{32}$`)

// MaskKey returns a loggable form of a credential: the first and last four
// characters joined by "...". Keys too short to mask are fully hidden.
func MaskKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}

// LooksLikeHexKey reports whether key is exactly 32 hex characters. DataMall
// keys are normally 36-character UUIDs, so this shape usually means a paste error.
func LooksLikeHexKey(key string) bool {
	return hexKeyPattern.MatchString(key)
}
