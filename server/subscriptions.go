package server

import (
	"sync"
)

// SubscribeRequest asks the server to push update notifications for a
// resource URI.
type SubscribeRequest struct {
	URI string `json:"uri"`
}

// UnsubscribeRequest stops update notifications for a resource URI.
type UnsubscribeRequest struct {
	URI string `json:"uri"`
}

// ResourceUpdatedNotification is the payload pushed when a subscribed
// resource changes.
type ResourceUpdatedNotification struct {
	URI string `json:"uri"`
}

// SubscriptionManager records which client watches which resource URI.
// All methods are safe for concurrent use.
type SubscriptionManager struct {
	mu      sync.RWMutex
	watched map[string]map[string]struct{} // client ID -> set of URIs
}

// NewSubscriptionManager creates an empty subscription manager.
func NewSubscriptionManager() *SubscriptionManager {
	return &SubscriptionManager{
		watched: make(map[string]map[string]struct{}),
	}
}

// Subscribe records that a client watches the given URI. Subscribing
// twice is a no-op.
func (m *SubscriptionManager) Subscribe(clientID, uri string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	uris := m.watched[clientID]
	if uris == nil {
		uris = make(map[string]struct{})
		m.watched[clientID] = uris
	}
	uris[uri] = struct{}{}
}

// Unsubscribe drops one client/URI pair. Unknown pairs are ignored.
func (m *SubscriptionManager) Unsubscribe(clientID, uri string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	uris := m.watched[clientID]
	delete(uris, uri)
	if len(uris) == 0 {
		delete(m.watched, clientID)
	}
}

// UnsubscribeAll drops every subscription held by a client, typically on
// disconnect.
func (m *SubscriptionManager) UnsubscribeAll(clientID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.watched, clientID)
}

// Subscribers returns the IDs of clients watching the given URI.
func (m *SubscriptionManager) Subscribers(uri string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var clients []string
	for clientID, uris := range m.watched {
		if _, ok := uris[uri]; ok {
			clients = append(clients, clientID)
		}
	}
	return clients
}

// HasSubscribers reports whether anyone watches the given URI.
func (m *SubscriptionManager) HasSubscribers(uri string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, uris := range m.watched {
		if _, ok := uris[uri]; ok {
			return true
		}
	}
	return false
}

// IsSubscribed reports whether the client watches the given URI.
func (m *SubscriptionManager) IsSubscribed(clientID, uri string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.watched[clientID][uri]
	return ok
}

// SubscriptionCount returns the number of client/URI pairs held.
func (m *SubscriptionManager) SubscriptionCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, uris := range m.watched {
		count += len(uris)
	}
	return count
}
