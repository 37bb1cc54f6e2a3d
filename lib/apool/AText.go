package apool

import "strings"

// AText is a full document snapshot: the text, which always ends in a
// newline, and the attribution stream describing it.
type AText struct {
	Text    string `json:"text"`
	Attribs string `json:"attribs"`
}

func (a AText) Equal(other AText) bool {
	return a.Text == other.Text && a.Attribs == other.Attribs
}

// Terminated reports whether the text ends in the newline every document
// carries.
func (a AText) Terminated() bool {
	return strings.HasSuffix(a.Text, "\n")
}
