package pad

import (
	"fmt"

	"github.com/ether/easysync/lib/apool"
	"github.com/ether/easysync/lib/models/db"
)

func mapDBPadToModel(dbPad *db.PadDB, padToAssignTo *Pad) error {
	padToAssignTo.Head = dbPad.Head
	padToAssignTo.CreatedAt = dbPad.CreatedAt
	padToAssignTo.UpdatedAt = dbPad.UpdatedAt

	var newPool = apool.NewAPool()
	if err := newPool.FromJsonable(dbPad.Pool); err != nil {
		return fmt.Errorf("error reading pool of pad %s: %w", dbPad.ID, err)
	}

	padToAssignTo.Pool = newPool
	padToAssignTo.AText = apool.AText{
		Text:    dbPad.ATextText,
		Attribs: dbPad.ATextAttribs,
	}
	return nil
}
