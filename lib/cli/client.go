package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"sync"

	"github.com/ether/easysync/lib/apool"
	"github.com/ether/easysync/lib/changeset"
	"github.com/ether/easysync/lib/models/ws"
	"github.com/ether/easysync/lib/utils"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var (
	ErrNotReady   = errors.New("pad is not loaded yet")
	ErrClosed     = errors.New("client is closed")
	ErrOutOfRange = errors.New("splice is outside the editable text")
	ErrOutOfSync  = errors.New("client is out of sync with the server")
)

// DisconnectError is returned when the server ends the session.
type DisconnectError struct {
	Reason string
}

func (e *DisconnectError) Error() string {
	return "disconnected by server: " + e.Reason
}

type pendingChangeset struct {
	changeset string
	baseRev   int
}

// Client is one collaborator on a pad. Local edits are applied at once and
// sent one commit at a time, changes of other authors are transformed
// against the commits the server has not accepted yet.
type Client struct {
	wsURL  string
	padId  string
	token  string
	name   *string
	logger *zap.SugaredLogger

	conn    *websocket.Conn
	writeMu sync.Mutex

	mu       sync.Mutex
	ready    bool
	closed   bool
	err      error
	userId   string
	baseRev  int
	pool     *apool.APool
	atext    apool.AText
	inFlight *pendingChangeset
	outgoing *pendingChangeset
	// settled is closed while nothing waits for the server
	settled       chan struct{}
	settledClosed bool

	readyCh chan struct{}
	done    chan struct{}

	handlersMu          sync.Mutex
	onConnected         []func(*Client)
	onNewContents       []func(apool.AText)
	onAcceptCommit      []func(int)
	onNumConnectedUsers []func(int)
	onDisconnect        []func(error)
}

// ParsePadURL splits a pad URL like http://host/p/name into the websocket
// endpoint of the server and the pad id. A URL without pad gets a random one.
func ParsePadURL(rawURL string) (string, string, error) {
	parsedUrl, err := url.Parse(rawURL)
	if err != nil {
		return "", "", fmt.Errorf("invalid pad URL: %w", err)
	}
	switch parsedUrl.Scheme {
	case "http", "ws":
		parsedUrl.Scheme = "ws"
	case "https", "wss":
		parsedUrl.Scheme = "wss"
	default:
		return "", "", fmt.Errorf("invalid pad URL %q: unsupported scheme %q", rawURL, parsedUrl.Scheme)
	}
	if parsedUrl.Host == "" {
		return "", "", fmt.Errorf("invalid pad URL %q: missing host", rawURL)
	}

	const padIdParam = "/p/"
	prefix := strings.TrimSuffix(parsedUrl.Path, "/")
	padId := ""
	if idx := strings.Index(parsedUrl.Path, padIdParam); idx != -1 {
		prefix = parsedUrl.Path[:idx]
		padId = strings.TrimSuffix(parsedUrl.Path[idx+len(padIdParam):], "/")
	}
	if padId == "" {
		padId = utils.RandomString(5)
	}

	wsURL := url.URL{Scheme: parsedUrl.Scheme, Host: parsedUrl.Host, Path: prefix + "/socket.io/"}
	return wsURL.String(), padId, nil
}

func NewClient(rawURL string, logger *zap.SugaredLogger) (*Client, error) {
	wsURL, padId, err := ParsePadURL(rawURL)
	if err != nil {
		return nil, err
	}
	settled := make(chan struct{})
	close(settled)
	return &Client{
		wsURL:         wsURL,
		padId:         padId,
		token:         "t." + utils.RandomString(16),
		logger:        logger,
		settled:       settled,
		settledClosed: true,
		readyCh:       make(chan struct{}),
		done:          make(chan struct{}),
	}, nil
}

func (c *Client) PadId() string {
	return c.padId
}

// SetName sets the user name sent when joining. It has no effect after
// Connect.
func (c *Client) SetName(name string) {
	c.name = &name
}

func (c *Client) OnConnected(callback func(client *Client)) {
	c.handlersMu.Lock()
	defer c.handlersMu.Unlock()
	c.onConnected = append(c.onConnected, callback)
}

func (c *Client) OnNewContents(callback func(atext apool.AText)) {
	c.handlersMu.Lock()
	defer c.handlersMu.Unlock()
	c.onNewContents = append(c.onNewContents, callback)
}

func (c *Client) OnAcceptCommit(callback func(rev int)) {
	c.handlersMu.Lock()
	defer c.handlersMu.Unlock()
	c.onAcceptCommit = append(c.onAcceptCommit, callback)
}

func (c *Client) OnNumConnectedUsers(callback func(count int)) {
	c.handlersMu.Lock()
	defer c.handlersMu.Unlock()
	c.onNumConnectedUsers = append(c.onNumConnectedUsers, callback)
}

// OnDisconnect callbacks get nil when the client was closed locally.
func (c *Client) OnDisconnect(callback func(err error)) {
	c.handlersMu.Lock()
	defer c.handlersMu.Unlock()
	c.onDisconnect = append(c.onDisconnect, callback)
}

// emit runs the callbacks on the reading goroutine, so a slow callback
// holds back the messages after it.
func emit[T any](c *Client, handlers *[]func(T), value T) {
	c.handlersMu.Lock()
	callbacks := slices.Clone(*handlers)
	c.handlersMu.Unlock()
	for _, callback := range callbacks {
		callback(value)
	}
}

// Connect dials the server and joins the pad. Callbacks should be registered
// before, the pad may load before Connect returns.
func (c *Client) Connect(ctx context.Context) error {
	c.logger.Debugf("connecting to %s", c.wsURL)
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, c.wsURL, nil)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("websocket connection to %s failed with status %s: %w", c.wsURL, resp.Status, err)
		}
		return fmt.Errorf("websocket connection to %s failed: %w", c.wsURL, err)
	}
	c.conn = conn

	var ready ws.ClientReady
	ready.Event = "message"
	ready.Data.Component = "pad"
	ready.Data.Type = ws.TypeClientReady
	ready.Data.PadID = c.padId
	ready.Data.Token = c.token
	ready.Data.UserInfo.Name = c.name
	if err := c.writeJSON(ready); err != nil {
		_ = conn.Close()
		return fmt.Errorf("error sending CLIENT_READY: %w", err)
	}

	go c.readLoop()
	return nil
}

// Ready is closed once the pad contents arrived.
func (c *Client) Ready() <-chan struct{} {
	return c.readyCh
}

// Done is closed when the connection ended.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Err returns why the connection ended, nil for a local Close.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *Client) Close() error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return nil
	}
	if c.conn == nil {
		c.finish(nil)
		return nil
	}
	c.writeMu.Lock()
	err := c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.writeMu.Unlock()
	c.finish(nil)
	if errors.Is(err, websocket.ErrCloseSent) {
		return nil
	}
	return err
}

func (c *Client) finish(err error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.err = err
	c.mu.Unlock()

	if c.conn != nil {
		_ = c.conn.Close()
	}
	close(c.done)
	if err != nil {
		c.logger.Warnf("connection to pad %s ended: %v", c.padId, err)
	}
	emit(c, &c.onDisconnect, err)
}

// Text returns the local contents, including edits the server has not
// accepted yet.
func (c *Client) Text() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.atext.Text
}

func (c *Client) AText() apool.AText {
	c.mu.Lock()
	defer c.mu.Unlock()
	return changeset.CloneAText(c.atext)
}

// Rev is the last server revision the local contents are based on.
func (c *Client) Rev() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.baseRev
}

func (c *Client) UserId() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userId
}

// Pending reports whether local edits wait for the server.
func (c *Client) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inFlight != nil || c.outgoing != nil
}

// WaitSettled blocks until the server accepted every local edit.
func (c *Client) WaitSettled(ctx context.Context) error {
	c.mu.Lock()
	settled := c.settled
	c.mu.Unlock()

	select {
	case <-settled:
		return nil
	case <-c.done:
		if !c.Pending() {
			return nil
		}
		if err := c.Err(); err != nil {
			return err
		}
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Append inserts text at the end of the pad, before its final newline.
func (c *Client) Append(text string) error {
	return c.splice(func(length int) (int, int, bool) {
		return length - 1, 0, length > 0
	}, text)
}

// SpliceText removes ndel characters at start and inserts ins there. The
// final newline of the pad can't be removed.
func (c *Client) SpliceText(start, ndel int, ins string) error {
	return c.splice(func(length int) (int, int, bool) {
		return start, ndel, start >= 0 && ndel >= 0 && start+ndel <= length-1
	}, ins)
}

func (c *Client) splice(position func(length int) (int, int, bool), ins string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if !c.ready {
		return ErrNotReady
	}

	start, ndel, ok := position(utils.RuneCount(c.atext.Text))
	if !ok {
		return ErrOutOfRange
	}
	if ndel == 0 && ins == "" {
		return nil
	}

	authorship := changeset.AttribPairs(apool.Attribute{Key: "author", Value: c.userId})
	cs, err := changeset.MakeSplice(c.atext.Text, start, ndel, ins, authorship, c.pool)
	if err != nil {
		return fmt.Errorf("error creating changeset: %w", err)
	}
	atext, err := changeset.ApplyToAText(cs, c.atext, c.pool)
	if err != nil {
		return fmt.Errorf("error applying changeset: %w", err)
	}

	if c.outgoing != nil {
		composed, err := changeset.Compose(c.outgoing.changeset, cs, c.pool)
		if err != nil {
			return fmt.Errorf("error composing outgoing changesets: %w", err)
		}
		c.outgoing.changeset = composed
	} else {
		c.outgoing = &pendingChangeset{changeset: cs}
	}
	c.atext = atext
	return c.flush()
}

// flush sends the outgoing changeset if no other commit is in flight. The
// caller holds c.mu.
func (c *Client) flush() error {
	defer c.updateSettled()
	if c.inFlight != nil || c.outgoing == nil {
		return nil
	}
	c.inFlight, c.outgoing = c.outgoing, nil
	c.inFlight.baseRev = c.baseRev

	wire := changeset.PrepareForWire(c.inFlight.changeset, c.pool)
	baseRev := c.inFlight.baseRev
	var message ws.UserChange
	message.Event = "message"
	message.Data.Component = "pad"
	message.Data.Type = ws.TypeCollabroom
	message.Data.Data.Type = ws.TypeUserChanges
	message.Data.Data.BaseRev = &baseRev
	message.Data.Data.Changeset = wire.Translated
	message.Data.Data.Apool = wire.Pool.ToJsonable()

	c.logger.Debugf("sending changeset %s based on revision %d", wire.Translated, baseRev)
	if err := c.writeJSON(message); err != nil {
		return fmt.Errorf("error sending USER_CHANGES: %w", err)
	}
	return nil
}

func (c *Client) updateSettled() {
	pending := c.inFlight != nil || c.outgoing != nil
	if pending && c.settledClosed {
		c.settled = make(chan struct{})
		c.settledClosed = false
	} else if !pending && !c.settledClosed {
		close(c.settled)
		c.settledClosed = true
	}
}

func (c *Client) writeJSON(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(v)
}

func (c *Client) readLoop() {
	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				err = nil
			}
			c.finish(err)
			return
		}
		c.logger.Debugf("received: %s", payload)

		var message ws.CollabroomMessage
		if err := json.Unmarshal(payload, &message); err != nil {
			c.logger.Warnf("ignoring malformed message: %v", err)
			continue
		}
		if err := c.handleMessage(message); err != nil {
			c.finish(err)
			return
		}
	}
}

func (c *Client) handleMessage(message ws.CollabroomMessage) error {
	if message.Disconnect != "" {
		return &DisconnectError{Reason: message.Disconnect}
	}
	switch message.Type {
	case ws.TypeClientVars:
		return c.handleClientVars(message)
	case ws.TypeCollabroom:
		switch message.Data.Type {
		case ws.TypeNewChanges:
			return c.handleNewChanges(message.Data.NewChanges)
		case ws.TypeAcceptCommit:
			return c.handleAcceptCommit(message.Data.NewRev)
		}
	}
	c.logger.Debugf("ignoring message of type %s", message.Type)
	return nil
}

func (c *Client) handleClientVars(message ws.CollabroomMessage) error {
	pool := apool.NewAPool()
	if err := pool.FromJsonable(message.Data.Apool); err != nil {
		return fmt.Errorf("invalid pool in CLIENT_VARS: %w", err)
	}

	c.mu.Lock()
	if c.ready {
		c.mu.Unlock()
		return fmt.Errorf("%w: second CLIENT_VARS", ErrOutOfSync)
	}
	c.pool = pool
	c.atext = changeset.MakeAText(message.Data.InitialAttributedText.Text, message.Data.InitialAttributedText.Attribs)
	c.baseRev = message.Data.Rev
	c.userId = message.Data.UserId
	c.ready = true
	c.mu.Unlock()

	c.logger.Infof("joined pad %s at revision %d", message.Data.PadId, message.Data.Rev)
	close(c.readyCh)
	emit(c, &c.onNumConnectedUsers, message.Data.NumConnectedUsers)
	emit(c, &c.onConnected, c)
	return nil
}

func (c *Client) handleNewChanges(changes ws.NewChanges) error {
	atext, err := c.applyServerChanges(changes)
	if err != nil || atext == nil {
		return err
	}
	emit(c, &c.onNewContents, *atext)
	return nil
}

func (c *Client) applyServerChanges(changes ws.NewChanges) (*apool.AText, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.ready {
		return nil, fmt.Errorf("%w: NEW_CHANGES before CLIENT_VARS", ErrOutOfSync)
	}
	if changes.NewRev <= c.baseRev {
		return nil, nil
	}
	if changes.NewRev != c.baseRev+1 {
		return nil, fmt.Errorf("%w: got revision %d at revision %d", ErrOutOfSync, changes.NewRev, c.baseRev)
	}

	wirePool := apool.NewAPool()
	if err := wirePool.FromJsonable(changes.Apool); err != nil {
		return nil, fmt.Errorf("invalid pool in NEW_CHANGES: %w", err)
	}
	server := changeset.MoveOpsToNewPool(changes.Changeset, wirePool, c.pool)

	var err error
	for _, pending := range []*pendingChangeset{c.inFlight, c.outgoing} {
		if pending == nil {
			continue
		}
		pending.changeset, server, err = transformX(pending.changeset, server, c.pool)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrOutOfSync, err)
		}
	}

	atext, err := changeset.ApplyToAText(server, c.atext, c.pool)
	if err != nil {
		return nil, fmt.Errorf("%w: revision %d: %w", ErrOutOfSync, changes.NewRev, err)
	}
	c.atext = atext
	c.baseRev = changes.NewRev
	return &atext, nil
}

// transformX rebases a local and a server changeset made on the same text
// onto each other.
func transformX(client, server string, pool *apool.APool) (string, string, error) {
	clientFollowed, err := changeset.Follow(client, server, false, pool)
	if err != nil {
		return "", "", err
	}
	serverFollowed, err := changeset.Follow(server, client, true, pool)
	if err != nil {
		return "", "", err
	}
	return clientFollowed, serverFollowed, nil
}

func (c *Client) handleAcceptCommit(newRev int) error {
	c.mu.Lock()
	if c.inFlight == nil {
		c.mu.Unlock()
		return fmt.Errorf("%w: ACCEPT_COMMIT without a commit in flight", ErrOutOfSync)
	}
	switch newRev {
	case c.baseRev + 1:
		c.baseRev = newRev
	case c.baseRev:
		// the commit changed nothing
	default:
		c.mu.Unlock()
		return fmt.Errorf("%w: commit accepted as revision %d at revision %d", ErrOutOfSync, newRev, c.baseRev)
	}
	c.inFlight = nil
	err := c.flush()
	c.mu.Unlock()
	if err != nil {
		return err
	}

	emit(c, &c.onAcceptCommit, newRev)
	return nil
}
