package ws

// ClientReady is the first message a client sends after connecting.
type ClientReady struct {
	Event string `json:"event" validate:"required,eq=message"`
	Data  struct {
		Component string `json:"component"`
		Type      string `json:"type" validate:"required,eq=CLIENT_READY"`
		PadID     string `json:"padId" validate:"required,max=100"`
		Token     string `json:"token" validate:"required"`
		UserInfo  struct {
			Name *string `json:"name" validate:"omitempty,max=100"`
		} `json:"userInfo"`
	} `json:"data"`
}
