package client

import (
	"sync"

	"github.com/rubyonai/mcpwire/protocol"
)

// pendingResult is what a waiting Send call receives: the response frame,
// or the transport error that ended the wait.
type pendingResult struct {
	msg *protocol.Message
	err error
}

// pendingTable correlates response frames to in-flight requests by id.
// Every entry is resolved at most once: resolve and failAll delete the
// entry before delivering, and remove discards the entry on the timeout
// path, so a late response finds nothing to hit.
type pendingTable struct {
	mu      sync.Mutex
	waiting map[string]chan pendingResult
}

func newPendingTable() *pendingTable {
	return &pendingTable{waiting: make(map[string]chan pendingResult)}
}

// add registers a request id and returns the channel its response will be
// delivered on. The channel is buffered so the resolver never blocks.
func (p *pendingTable) add(id string) <-chan pendingResult {
	ch := make(chan pendingResult, 1)
	p.mu.Lock()
	p.waiting[id] = ch
	p.mu.Unlock()
	return ch
}

// resolve delivers a response to the request waiting on id. It reports
// false when no request is waiting, which makes duplicate and late
// responses no-ops.
func (p *pendingTable) resolve(id string, msg *protocol.Message) bool {
	p.mu.Lock()
	ch, ok := p.waiting[id]
	if ok {
		delete(p.waiting, id)
	}
	p.mu.Unlock()
	if !ok {
		return false
	}
	ch <- pendingResult{msg: msg}
	return true
}

// remove discards the entry for id without delivering anything. Callers
// that give up on a request remove it before returning, so a response
// arriving afterwards resolves nothing.
func (p *pendingTable) remove(id string) {
	p.mu.Lock()
	delete(p.waiting, id)
	p.mu.Unlock()
}

// failAll ends every in-flight wait with err. Used when the connection
// drops and no response can arrive anymore.
func (p *pendingTable) failAll(err error) {
	p.mu.Lock()
	waiting := p.waiting
	p.waiting = make(map[string]chan pendingResult)
	p.mu.Unlock()
	for _, ch := range waiting {
		ch <- pendingResult{err: err}
	}
}
