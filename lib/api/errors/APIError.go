package errors

// Error is the body of every failed API request.
type Error struct {
	Message string `json:"message"`
	Error   int    `json:"error"`
}
