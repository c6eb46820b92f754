package tcp

import "bytes"

// Table is a reference 4-tuple connection lookup, standing in for the
// kernel's real connection table (spec.md §1 treats allocation/lookup
// policy as external). Lookup is O(n), appropriate for the small-footprint
// kernel scale this core targets; a production embedder can swap in a
// hashed table behind the same interface.
type Table struct {
	conns []*Conn
}

// Lookup finds the active connection matching the 4-tuple, or nil.
func (t *Table) Lookup(localPort, remotePort uint16, remoteAddr []byte) *Conn {
	for _, c := range t.conns {
		if c == nil {
			continue
		}
		if c.localPort == localPort && c.remotePort == remotePort && bytes.Equal(c.remoteAddr[:], remoteAddr) {
			return c
		}
	}
	return nil
}

// Add registers a connection in the table.
func (t *Table) Add(c *Conn) { t.conns = append(t.conns, c) }

// Remove drops a connection from the table, if present.
func (t *Table) Remove(c *Conn) {
	for i, cc := range t.conns {
		if cc == c {
			t.conns[i] = t.conns[len(t.conns)-1]
			t.conns = t.conns[:len(t.conns)-1]
			return
		}
	}
}

// Each invokes fn for every live connection in the table.
func (t *Table) Each(fn func(*Conn)) {
	for _, c := range t.conns {
		if c != nil {
			fn(c)
		}
	}
}
