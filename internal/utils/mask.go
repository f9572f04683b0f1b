package utils

// MaskSecret keeps a short prefix of long secrets so they can be told apart
// in logs.
func MaskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) < 12 {
		return "*****"
	}
	return s[:4] + "*****"
}
