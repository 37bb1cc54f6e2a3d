package ws

import "github.com/ether/easysync/lib/apool"

type InitialAttributedText struct {
	Text    string `json:"text"`
	Attribs string `json:"attribs"`
}

type ClientVars struct {
	PadId                 string                `json:"padId"`
	UserId                string                `json:"userId"`
	Rev                   int                   `json:"rev"`
	Time                  int64                 `json:"time"`
	InitialAttributedText InitialAttributedText `json:"initialAttributedText"`
	Apool                 apool.JsonablePool    `json:"apool"`
	NumConnectedUsers     int                   `json:"numConnectedUsers"`
}
