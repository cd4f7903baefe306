// Package fakepty provides a fake PTY implementation for testing.
package fakepty

import (
	"bytes"
	"io"
	"sync"
	"time"
)

// PTY is a fake PTY for testing session logic without real terminals.
// Reads return queued responses in order; an exhausted queue reads as "no
// data available" so poll loops keep spinning the way a quiet terminal
// would.
type PTY struct {
	mu           sync.Mutex
	responses    [][]byte
	responseIdx  int
	written      bytes.Buffer
	closed       bool
	exited       bool
	readDeadline time.Time
	blockReads   bool          // if true, Read blocks until the deadline
	readDelay    time.Duration // artificial delay before returning data
	writeErr     error         // forced error on Write
	script       func(input string) string
}

// New creates a new fake PTY.
func New() *PTY {
	return &PTY{
		responses: make([][]byte, 0),
	}
}

// AddResponse queues a response to be returned on subsequent Read calls.
// Responses are returned in order, one per Read call.
func (p *PTY) AddResponse(data string) *PTY {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.responses = append(p.responses, []byte(data))
	return p
}

// AddResponses queues multiple responses.
func (p *PTY) AddResponses(responses ...string) *PTY {
	for _, r := range responses {
		p.AddResponse(r)
	}
	return p
}

// SetBlockReads makes Read block until the deadline is reached.
// Useful for testing timeout behavior.
func (p *PTY) SetBlockReads(block bool) *PTY {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.blockReads = block
	return p
}

// SetReadDelay adds an artificial delay before Read returns data.
func (p *PTY) SetReadDelay(d time.Duration) *PTY {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.readDelay = d
	return p
}

// SetExited marks the fake shell process as exited.
func (p *PTY) SetExited(exited bool) *PTY {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.exited = exited
	return p
}

// SetWriteError forces subsequent writes to fail with err.
func (p *PTY) SetWriteError(err error) *PTY {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.writeErr = err
	return p
}

// SetScript installs a responder invoked on every Write. The returned string,
// if non-empty, is queued as a read response. This lets tests answer framed
// commands whose markers are only known at write time.
func (p *PTY) SetScript(fn func(input string) string) *PTY {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.script = fn
	return p
}

// Read implements io.Reader. Returns queued responses in order.
// If blockReads is true, blocks until the deadline and returns no data.
func (p *PTY) Read(b []byte) (int, error) {
	p.mu.Lock()
	blockReads := p.blockReads
	deadline := p.readDeadline
	delay := p.readDelay
	p.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}

	if blockReads && !deadline.IsZero() {
		if wait := time.Until(deadline); wait > 0 {
			time.Sleep(wait)
		}
		return 0, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return 0, io.EOF
	}

	if p.responseIdx >= len(p.responses) {
		// No more responses - simulates no data available.
		return 0, nil
	}

	response := p.responses[p.responseIdx]
	p.responseIdx++

	n := copy(b, response)
	return n, nil
}

// Write implements io.Writer. Captures written data for later inspection.
func (p *PTY) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.writeErr != nil {
		return 0, p.writeErr
	}
	if p.closed {
		return 0, io.ErrClosedPipe
	}

	n, err := p.written.Write(b)
	if p.script != nil {
		if resp := p.script(string(b)); resp != "" {
			p.responses = append(p.responses, []byte(resp))
		}
	}
	return n, err
}

// WriteString writes a string to the PTY.
func (p *PTY) WriteString(s string) (int, error) {
	return p.Write([]byte(s))
}

// Exited reports whether the fake shell process has exited.
func (p *PTY) Exited() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exited
}

// Close closes the fake PTY.
func (p *PTY) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

// SetReadDeadline sets the read deadline.
func (p *PTY) SetReadDeadline(t time.Time) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.readDeadline = t
	return nil
}

// --- Test inspection methods ---

// Written returns all data that was written to the PTY.
func (p *PTY) Written() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.written.String()
}

// IsClosed returns true if Close() was called.
func (p *PTY) IsClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Reset clears all state for reuse.
func (p *PTY) Reset() *PTY {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.responses = make([][]byte, 0)
	p.responseIdx = 0
	p.written.Reset()
	p.closed = false
	p.exited = false
	p.readDeadline = time.Time{}
	p.blockReads = false
	p.readDelay = 0
	p.writeErr = nil
	p.script = nil
	return p
}
