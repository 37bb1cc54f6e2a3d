package db

import (
	"time"

	"github.com/ether/easysync/lib/apool"
)

// PadDB is the stored head state of a document.
type PadDB struct {
	ID           string             `json:"id"`
	Head         int                `json:"head"`
	Pool         apool.JsonablePool `json:"pool"`
	ATextText    string             `json:"atextText"`
	ATextAttribs string             `json:"atextAttribs"`
	CreatedAt    time.Time          `json:"createdAt"`
	UpdatedAt    *time.Time         `json:"updatedAt,omitempty"`
}
