package ws

import "github.com/ether/easysync/lib/apool"

type UserChange struct {
	Event string `json:"event" validate:"required,eq=message"`
	Data  struct {
		Component string `json:"component"`
		Data      struct {
			Type      string             `json:"type" validate:"required,eq=USER_CHANGES"`
			Apool     apool.JsonablePool `json:"apool"`
			BaseRev   *int               `json:"baseRev" validate:"required,gte=0"`
			Changeset string             `json:"changeset" validate:"required"`
		} `json:"data"`
		Type string `json:"type" validate:"required,eq=COLLABROOM"`
	} `json:"data"`
}
