package socketio

import (
	"net"
	"strings"
	"sync"
)

// ConnectionLimiter caps the number of concurrent non-localhost clients.
// Local clients (the on-device UI) are always admitted. When an external
// client would exceed the cap, the oldest external client is evicted in
// its favor.
type ConnectionLimiter struct {
	mu          sync.Mutex
	maxExternal int
	external    []string          // oldest first
	addrs       map[string]string // clientID -> remote address
}

// NewConnectionLimiter creates a limiter admitting up to maxExternal
// concurrent non-localhost clients.
func NewConnectionLimiter(maxExternal int) *ConnectionLimiter {
	return &ConnectionLimiter{
		maxExternal: maxExternal,
		addrs:       make(map[string]string),
	}
}

// Add registers a connection and returns the ID of an evicted client, if
// any. The new connection itself is always admitted.
func (cl *ConnectionLimiter) Add(clientID, remoteAddr string) (evictedID string) {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	if _, exists := cl.addrs[clientID]; exists {
		return ""
	}
	cl.addrs[clientID] = remoteAddr

	if isLocalAddr(remoteAddr) {
		return ""
	}

	cl.external = append(cl.external, clientID)
	if len(cl.external) > cl.maxExternal {
		evictedID = cl.external[0]
		cl.external = cl.external[1:]
		delete(cl.addrs, evictedID)
	}
	return evictedID
}

// Remove unregisters a connection when a client disconnects.
func (cl *ConnectionLimiter) Remove(clientID string) {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	addr, exists := cl.addrs[clientID]
	if !exists {
		return
	}
	delete(cl.addrs, clientID)

	if isLocalAddr(addr) {
		return
	}
	for i, id := range cl.external {
		if id == clientID {
			cl.external = append(cl.external[:i], cl.external[i+1:]...)
			break
		}
	}
}

// isLocalAddr reports whether the address is localhost, with or without
// a port.
func isLocalAddr(addr string) bool {
	host := addr
	if h, _, err := net.SplitHostPort(addr); err == nil {
		host = h
	}
	host = strings.Trim(host, "[]")
	return host == "127.0.0.1" || host == "::1" || host == "localhost"
}
