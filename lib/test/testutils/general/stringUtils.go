package general

import (
	"math/rand"
	"strings"

	"github.com/brianvoe/gofakeit/v6"
)

var inlineChars = []rune("abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789 !@#$%^&*()_+-=[]{}|;:,.<>?")

// RandomMultiline returns text of up to about approxMaxLines lines with up to
// about approxMaxCols characters each. Empty lines are common.
func RandomMultiline(approxMaxLines, approxMaxCols int) string {
	numParts := rand.Intn(approxMaxLines*2) + 1
	var txt strings.Builder

	if gofakeit.Bool() {
		txt.WriteString("\n")
	}

	for i := 0; i < numParts; i++ {
		if i%2 == 0 && rand.Intn(10) != 0 {
			txt.WriteString(RandomInlineString(rand.Intn(approxMaxCols) + 1))
		} else {
			txt.WriteString("\n")
		}
	}

	return txt.String()
}

// RandomInlineString returns length random characters without newline.
func RandomInlineString(length int) string {
	var result strings.Builder
	for i := 0; i < length; i++ {
		result.WriteRune(inlineChars[rand.Intn(len(inlineChars))])
	}
	return result.String()
}
