package ws

import "github.com/ether/easysync/lib/apool"

type AcceptCommit struct {
	Type   string `json:"type"`
	NewRev int    `json:"newRev"`
}

type NewChanges struct {
	Type        string             `json:"type"`
	NewRev      int                `json:"newRev"`
	Changeset   string             `json:"changeset"`
	Apool       apool.JsonablePool `json:"apool"`
	Author      string             `json:"author"`
	CurrentTime int64              `json:"currentTime"`
	TimeDelta   int64              `json:"timeDelta"`
}

// CollabroomMessage is a server message as the client receives it. Only the
// fields of the message's type are set.
type CollabroomMessage struct {
	Type string `json:"type"`
	Data struct {
		NewChanges
		// CLIENT_VARS fields
		PadId                 string                `json:"padId"`
		UserId                string                `json:"userId"`
		Rev                   int                   `json:"rev"`
		InitialAttributedText InitialAttributedText `json:"initialAttributedText"`
		NumConnectedUsers     int                   `json:"numConnectedUsers"`
	} `json:"data"`
	Disconnect string `json:"disconnect"`
}
