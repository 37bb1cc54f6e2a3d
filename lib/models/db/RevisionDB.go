package db

import "github.com/ether/easysync/lib/apool"

// RevisionDB is a single stored revision. AText and Pool are only set on key
// revisions and hold the document state right after the revision.
type RevisionDB struct {
	PadId     string              `json:"padId"`
	RevNum    int                 `json:"revNum"`
	Changeset string              `json:"changeset"`
	AuthorId  *string             `json:"authorId,omitempty"`
	Timestamp int64               `json:"timestamp"`
	AText     *apool.AText        `json:"atext,omitempty"`
	Pool      *apool.JsonablePool `json:"pool,omitempty"`
}
