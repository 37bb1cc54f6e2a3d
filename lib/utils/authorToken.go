package utils

import (
	"regexp"
	"strings"
)

var tokenBody = regexp.MustCompile(`^[A-Za-z0-9+/_-]+={0,2}$`)

// IsValidAuthorToken reports whether token looks like the "t.<random>" value
// clients send with CLIENT_READY.
func IsValidAuthorToken(token string) bool {
	body, ok := strings.CutPrefix(token, "t.")
	return ok && tokenBody.MatchString(body)
}
