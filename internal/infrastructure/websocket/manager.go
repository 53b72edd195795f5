package websocket

import (
	"sync"

	"tidyhome/internal/infrastructure/metrics"
	"tidyhome/pkg/logger"
)

// Manager tracks every open chat socket, grouped by conversation.
type Manager struct {
	clients map[string]map[*Client]struct{}
	mutex   sync.RWMutex
	closed  bool
}

func NewManager() *Manager {
	return &Manager{
		clients: make(map[string]map[*Client]struct{}),
	}
}

// Register adds a client. It returns false once the manager is shutting down.
func (m *Manager) Register(client *Client) bool {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.closed {
		return false
	}

	room, ok := m.clients[client.ConversationID]
	if !ok {
		room = make(map[*Client]struct{})
		m.clients[client.ConversationID] = room
	}
	room[client] = struct{}{}
	metrics.ConnectionOpened()

	logger.Info("WebSocket: client %s registered on conversation %s", client.UserID, client.ConversationID)
	return true
}

func (m *Manager) Unregister(client *Client) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	room, ok := m.clients[client.ConversationID]
	if !ok {
		return
	}
	if _, ok := room[client]; !ok {
		return
	}

	delete(room, client)
	if len(room) == 0 {
		delete(m.clients, client.ConversationID)
	}
	metrics.ConnectionClosed()

	logger.Info("WebSocket: client %s unregistered from conversation %s", client.UserID, client.ConversationID)
}

// ConnectionCount returns the number of sockets open on a conversation.
func (m *Manager) ConnectionCount(conversationID string) int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.clients[conversationID])
}

func (m *Manager) TotalConnections() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	total := 0
	for _, room := range m.clients {
		total += len(room)
	}
	return total
}

// Shutdown closes every client and refuses new registrations.
func (m *Manager) Shutdown() {
	m.mutex.Lock()
	m.closed = true
	var all []*Client
	for _, room := range m.clients {
		for client := range room {
			all = append(all, client)
		}
	}
	m.mutex.Unlock()

	for _, client := range all {
		client.Close()
	}
	logger.Info("WebSocket: closed %d client(s) on shutdown", len(all))
}
