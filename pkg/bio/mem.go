package bio

import "sync"

// Memory is an in-process [Device] backed by a plain byte slice.
//
// It exists for fast, deterministic unit tests of the allocator and B-tree
// engine that don't need real file durability semantics — Flush is a no-op
// that always succeeds. Tests that need to exercise actual crash/flush
// ordering should wrap a [Real] device (or this one) with [Fault] instead.
type Memory struct {
	mu   sync.Mutex
	data []byte
}

// NewMemory returns an empty in-memory [Device].
func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) ReadAt(buf []byte, offset uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	end := offset + uint64(len(buf))
	if end > uint64(len(m.data)) {
		return ErrShortTransfer
	}

	copy(buf, m.data[offset:end])

	return nil
}

func (m *Memory) WriteAt(buf []byte, offset uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	end := offset + uint64(len(buf))
	if end > uint64(len(m.data)) {
		return ErrShortTransfer
	}

	copy(m.data[offset:end], buf)

	return nil
}

func (m *Memory) Resize(length uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case length == uint64(len(m.data)):
		// no-op
	case length < uint64(len(m.data)):
		m.data = m.data[:length]
	default:
		grown := make([]byte, length)
		copy(grown, m.data)
		m.data = grown
	}

	return nil
}

func (m *Memory) Size() (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return uint64(len(m.data)), nil
}

func (m *Memory) Flush() error {
	return nil
}

// Close is a no-op: the Memory keeps its contents and stays usable.
func (m *Memory) Close() error {
	return nil
}

var _ Device = (*Memory)(nil)
