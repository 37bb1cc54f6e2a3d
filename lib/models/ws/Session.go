package ws

// Session is what the server knows about one connected socket. Revision is
// the last revision the client has been sent.
type Session struct {
	Author   string
	Name     *string
	PadId    string
	Revision int
	Time     int64
}
