package command

import "sync"

// Mailbox is an unbounded FIFO of commands with any number of producers and a
// single polling consumer. Put never blocks and never drops.
type Mailbox struct {
	mu    sync.Mutex
	queue []Command
}

func NewMailbox() *Mailbox {
	return &Mailbox{}
}

func (m *Mailbox) Put(c Command) {
	m.mu.Lock()
	m.queue = append(m.queue, c)
	m.mu.Unlock()
}

// TryGet removes the oldest command without blocking.
func (m *Mailbox) TryGet() (Command, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.queue) == 0 {
		return Command{}, false
	}
	c := m.queue[0]
	m.queue[0] = Command{}
	m.queue = m.queue[1:]
	if len(m.queue) == 0 {
		m.queue = nil
	}
	return c, true
}

// Clear discards all pending commands and returns how many were dropped.
func (m *Mailbox) Clear() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.queue)
	m.queue = nil
	return n
}

// Pending returns a copy of the queued commands, oldest first.
func (m *Mailbox) Pending() []Command {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Command, len(m.queue))
	copy(out, m.queue)
	return out
}
