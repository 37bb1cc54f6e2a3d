package ws

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/ether/easysync/lib/changeset"
	modelpad "github.com/ether/easysync/lib/models/pad"
	"github.com/ether/easysync/lib/models/ws"
	"github.com/ether/easysync/lib/pad"
	"github.com/ether/easysync/lib/settings"
	"github.com/ether/easysync/lib/utils"
	"github.com/ether/easysync/lib/ws/ratelimiter"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const commitTimeout = 10 * time.Second

var errClientGone = errors.New("client is gone")

var authorNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/ether/easysync/author"))

// AuthorIdFromToken maps an author token onto its stable author id.
func AuthorIdFromToken(token string) string {
	return "a." + uuid.NewSHA1(authorNamespace, []byte(token)).String()
}

type PadMessageHandler struct {
	padManager   *pad.Manager
	hub          *Hub
	SessionStore *SessionStore
	settings     *settings.Settings
	logger       *zap.SugaredLogger
	validator    *validator.Validate
	rateLimiter  *ratelimiter.RateLimiter
}

func NewPadMessageHandler(padManager *pad.Manager, hub *Hub, sessionStore *SessionStore, retrievedSettings *settings.Settings, logger *zap.SugaredLogger) *PadMessageHandler {
	handler := &PadMessageHandler{
		padManager:   padManager,
		hub:          hub,
		SessionStore: sessionStore,
		settings:     retrievedSettings,
		logger:       logger,
		validator:    validator.New(validator.WithRequiredStructEnabled()),
		rateLimiter:  ratelimiter.NewRateLimiter(retrievedSettings.CommitRateLimiting),
	}
	padManager.OnRevision(func(revision pad.Revision) {
		go handler.UpdatePadClients(revision.PadID)
	})
	return handler
}

// send queues message for client. A client that does not keep up is dropped.
func (h *PadMessageHandler) send(client *Client, message any) bool {
	payload, err := json.Marshal(message)
	if err != nil {
		h.logger.Errorf("error marshalling message for session %s: %v", client.SessionId, err)
		return false
	}
	if !client.enqueue(payload) {
		h.logger.Warnf("dropping session %s: client does not keep up", client.SessionId)
		h.hub.unregister(client)
		return false
	}
	return true
}

func (h *PadMessageHandler) decode(message []byte, target any) error {
	if err := json.Unmarshal(message, target); err != nil {
		return err
	}
	return h.validator.Struct(target)
}

// HandleMessage routes one message a client sent.
func (h *PadMessageHandler) HandleMessage(client *Client, message []byte) {
	if err := h.rateLimiter.CheckRateLimit(ratelimiter.IPAddress(client.IP)); err != nil {
		h.logger.Warnf("rate limit exceeded for %s (session %s)", client.IP, client.SessionId)
		h.send(client, ws.Disconnect{Disconnect: ws.DisconnectRateLimited})
		return
	}

	var envelope ws.Envelope
	if err := json.Unmarshal(message, &envelope); err != nil || envelope.Event != "message" {
		h.logger.Warnf("dropping malformed message from session %s", client.SessionId)
		return
	}
	var header ws.Header
	if err := json.Unmarshal(envelope.Data, &header); err != nil {
		h.logger.Warnf("dropping message without header from session %s: %v", client.SessionId, err)
		return
	}

	switch {
	case header.Type == ws.TypeClientReady:
		var clientReady ws.ClientReady
		if err := h.decode(message, &clientReady); err != nil {
			h.logger.Warnf("invalid CLIENT_READY from session %s: %v", client.SessionId, err)
			h.send(client, ws.Disconnect{Disconnect: ws.DisconnectBadMessage})
			return
		}
		h.handleClientReady(client, clientReady)
	case header.Type == ws.TypeCollabroom && header.Data.Type == ws.TypeUserChanges:
		var userChange ws.UserChange
		if err := h.decode(message, &userChange); err != nil {
			h.logger.Warnf("invalid USER_CHANGES from session %s: %v", client.SessionId, err)
			h.send(client, ws.Disconnect{Disconnect: ws.DisconnectBadChangeset})
			return
		}
		h.handleUserChanges(client, userChange)
	default:
		h.logger.Warnf("dropping message of unknown type %s/%s from session %s", header.Type, header.Data.Type, client.SessionId)
	}
}

func (h *PadMessageHandler) handleClientReady(client *Client, ready ws.ClientReady) {
	if !utils.IsValidAuthorToken(ready.Data.Token) {
		h.logger.Warnf("invalid author token from session %s", client.SessionId)
		h.send(client, ws.Disconnect{Disconnect: ws.DisconnectBadMessage})
		return
	}
	padId, err := h.padManager.SanitizePadId(ready.Data.PadID)
	if err != nil {
		h.logger.Warnf("session %s asked for pad %q: %v", client.SessionId, ready.Data.PadID, err)
		h.send(client, ws.Disconnect{Disconnect: ws.DisconnectBadMessage})
		return
	}
	authorId := AuthorIdFromToken(ready.Data.Token)

	// only the newest socket of an author stays on a pad
	for _, other := range h.hub.RoomClients(padId) {
		if other == client {
			continue
		}
		if session, ok := h.SessionStore.getSession(other.SessionId); ok && session.Author == authorId {
			h.send(other, ws.Disconnect{Disconnect: ws.DisconnectUserDup})
			h.SessionStore.resetSession(other.SessionId)
			other.setRoom("")
			h.hub.unregister(other)
		}
	}

	if _, err := h.padManager.GetPad(padId, nil, &authorId); err != nil {
		h.logger.Errorf("error loading pad %s for session %s: %v", padId, client.SessionId, err)
		h.send(client, ws.Disconnect{Disconnect: ws.DisconnectBadMessage})
		return
	}

	h.SessionStore.withSession(client.SessionId, func(session *ws.Session) {
		var clientVars ws.ClientVars
		err := h.padManager.WithPad(padId, func(p *modelpad.Pad) error {
			atext := changeset.CloneAText(p.AText)
			forWire := changeset.PrepareForWire(atext.Attribs, p.Pool)
			date, err := p.GetRevisionDate(p.Head)
			if err != nil {
				return err
			}
			clientVars = ws.ClientVars{
				PadId:  padId,
				UserId: authorId,
				Rev:    p.Head,
				Time:   date,
				InitialAttributedText: ws.InitialAttributedText{
					Text:    atext.Text,
					Attribs: forWire.Translated,
				},
				Apool: forWire.Pool.ToJsonable(),
			}
			return nil
		})
		if err != nil {
			h.logger.Errorf("error reading pad %s for session %s: %v", padId, client.SessionId, err)
			return
		}

		session.Author = authorId
		session.Name = ready.Data.UserInfo.Name
		session.PadId = padId
		session.Revision = clientVars.Rev
		session.Time = clientVars.Time
		client.setRoom(padId)
		clientVars.NumConnectedUsers = len(h.hub.RoomClients(padId))

		h.send(client, ws.Message{Type: ws.TypeClientVars, Data: clientVars})
		h.logger.Infof("author %s joined pad %s at revision %d", authorId, padId, clientVars.Rev)
	})
}

func (h *PadMessageHandler) handleUserChanges(client *Client, userChange ws.UserChange) {
	data := userChange.Data.Data
	h.SessionStore.withSession(client.SessionId, func(session *ws.Session) {
		if session.PadId == "" {
			h.logger.Warnf("dropping USER_CHANGES of session %s before CLIENT_READY", client.SessionId)
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), commitTimeout)
		defer cancel()
		commit, err := h.padManager.ApplyUserChanges(ctx, session.PadId, session.Author, *data.BaseRev, data.Changeset, data.Apool)
		if err != nil {
			h.logger.Warnf("failed to apply USER_CHANGES from author %s (session %s) on pad %s: %v",
				session.Author, client.SessionId, session.PadId, err)
			h.send(client, ws.Disconnect{Disconnect: ws.DisconnectBadChangeset})
			return
		}

		// ACCEPT_COMMIT must follow every NEW_CHANGES the commit was rebased on
		if err := h.catchUp(client, session, commit.BaseRev, make(map[int]ws.NewChanges)); err != nil {
			h.logger.Warnf("failed to catch up session %s: %v", client.SessionId, err)
			return
		}
		if !h.send(client, ws.Message{
			Type: ws.TypeCollabroom,
			Data: ws.AcceptCommit{Type: ws.TypeAcceptCommit, NewRev: commit.NewRev},
		}) {
			return
		}
		if commit.NewRev != commit.BaseRev {
			if accepted, err := h.revisionMessage(session.PadId, commit.NewRev); err == nil {
				session.Time = accepted.CurrentTime
			}
		}
		session.Revision = commit.NewRev
	})
}

// revisionMessage builds the NEW_CHANGES message of revision rev.
func (h *PadMessageHandler) revisionMessage(padId string, rev int) (ws.NewChanges, error) {
	var message ws.NewChanges
	err := h.padManager.ReadPad(padId, func(p *modelpad.Pad) error {
		revision, err := p.GetRevision(rev)
		if err != nil {
			return err
		}
		forWire := changeset.PrepareForWire(revision.Changeset, p.Pool)
		message = ws.NewChanges{
			Type:        ws.TypeNewChanges,
			NewRev:      rev,
			Changeset:   forWire.Translated,
			Apool:       forWire.Pool.ToJsonable(),
			CurrentTime: revision.Timestamp,
		}
		if revision.AuthorId != nil {
			message.Author = *revision.AuthorId
		}
		return nil
	})
	return message, err
}

// catchUp sends every revision after the session's revision up to target.
// The caller holds the session lock.
func (h *PadMessageHandler) catchUp(client *Client, session *ws.Session, target int, revCache map[int]ws.NewChanges) error {
	for session.Revision < target {
		r := session.Revision + 1
		message, ok := revCache[r]
		if !ok {
			var err error
			message, err = h.revisionMessage(session.PadId, r)
			if err != nil {
				return err
			}
			revCache[r] = message
		}
		message.TimeDelta = message.CurrentTime - session.Time
		if !h.send(client, ws.Message{Type: ws.TypeCollabroom, Data: message}) {
			return errClientGone
		}
		session.Time = message.CurrentTime
		session.Revision = r
	}
	return nil
}

// UpdatePadClients brings every client on the pad up to its head revision.
func (h *PadMessageHandler) UpdatePadClients(padId string) {
	roomClients := h.hub.RoomClients(padId)
	if len(roomClients) == 0 {
		return
	}

	var head int
	err := h.padManager.ReadPad(padId, func(p *modelpad.Pad) error {
		head = p.Head
		return nil
	})
	if err != nil {
		h.logger.Debugf("not updating clients of pad %s: %v", padId, err)
		return
	}

	revCache := make(map[int]ws.NewChanges)
	for _, client := range roomClients {
		h.SessionStore.withSession(client.SessionId, func(session *ws.Session) {
			if session.PadId != padId {
				return
			}
			if err := h.catchUp(client, session, head, revCache); err != nil {
				h.logger.Errorf("failed to notify session %s of new revisions: %v", client.SessionId, err)
			}
		})
	}
}

// KickSessionsFromPad disconnects every client of a pad, e.g. after the pad
// was removed.
func (h *PadMessageHandler) KickSessionsFromPad(padId string) {
	roomClients := h.hub.RoomClients(padId)
	if len(roomClients) == 0 {
		return
	}
	for _, client := range roomClients {
		h.SessionStore.resetSession(client.SessionId)
	}
	payload, err := json.Marshal(ws.Disconnect{Disconnect: ws.DisconnectDeleted})
	if err != nil {
		h.logger.Errorf("error marshalling disconnect: %v", err)
		return
	}
	h.hub.BroadcastToRoom(padId, payload)
	for _, client := range roomClients {
		h.hub.unregister(client)
		client.setRoom("")
	}
	h.logger.Infof("kicked %d sessions from pad %s", len(roomClients), padId)
}

// HandleDisconnect forgets the session of a closed connection.
func (h *PadMessageHandler) HandleDisconnect(client *Client) {
	if session, ok := h.SessionStore.getSession(client.SessionId); ok && session.PadId != "" {
		h.logger.Debugf("author %s left pad %s", session.Author, session.PadId)
	}
	client.setRoom("")
	h.SessionStore.removeSession(client.SessionId)
}

// ConnectedUsers returns the number of clients on a pad.
func (h *PadMessageHandler) ConnectedUsers(padId string) int {
	return len(h.hub.RoomClients(padId))
}
