package ws

import (
	"context"
	"sync"
)

// RoomMessage is a message for every client in Room.
type RoomMessage struct {
	Room    string
	Payload []byte
}

// Hub maintains the set of active Clients and broadcasts messages to the
// Clients of a room.
type Hub struct {
	// Registered Clients.
	Clients        map[*Client]bool
	ClientsRWMutex sync.RWMutex

	// Inbound messages for a room.
	Broadcast chan RoomMessage

	// Unregister requests from Clients.
	Unregister chan *Client

	done chan struct{}
}

func NewHub() *Hub {
	return &Hub{
		Broadcast:  make(chan RoomMessage),
		Unregister: make(chan *Client),
		Clients:    make(map[*Client]bool),
		done:       make(chan struct{}),
	}
}

// Run serves the hub until ctx is done. All clients are closed on return.
func (h *Hub) Run(ctx context.Context) error {
	defer func() {
		close(h.done)
		h.ClientsRWMutex.Lock()
		for client := range h.Clients {
			delete(h.Clients, client)
			client.closeSend()
		}
		h.ClientsRWMutex.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case client := <-h.Unregister:
			if client == nil {
				continue
			}
			h.ClientsRWMutex.Lock()
			if _, ok := h.Clients[client]; ok {
				delete(h.Clients, client)
				client.closeSend()
			}
			h.ClientsRWMutex.Unlock()
		case message := <-h.Broadcast:
			h.ClientsRWMutex.Lock()
			for client := range h.Clients {
				if client == nil || client.Room() != message.Room {
					continue
				}
				if !client.enqueue(message.Payload) {
					// the client does not keep up
					delete(h.Clients, client)
					client.closeSend()
				}
			}
			h.ClientsRWMutex.Unlock()
		}
	}
}

// register adds client right away so that it sees every revision appended
// after it joins a room.
func (h *Hub) register(client *Client) {
	h.ClientsRWMutex.Lock()
	defer h.ClientsRWMutex.Unlock()
	select {
	case <-h.done:
		client.closeSend()
	default:
		h.Clients[client] = true
	}
}

func (h *Hub) unregister(client *Client) {
	select {
	case h.Unregister <- client:
	case <-h.done:
	}
}

// BroadcastToRoom queues payload for every client in room.
func (h *Hub) BroadcastToRoom(room string, payload []byte) {
	select {
	case h.Broadcast <- RoomMessage{Room: room, Payload: payload}:
	case <-h.done:
	}
}

// RoomClients returns the registered clients that joined room.
func (h *Hub) RoomClients(room string) []*Client {
	h.ClientsRWMutex.RLock()
	defer h.ClientsRWMutex.RUnlock()

	clients := make([]*Client, 0)
	for client := range h.Clients {
		if client.Room() == room {
			clients = append(clients, client)
		}
	}
	return clients
}
