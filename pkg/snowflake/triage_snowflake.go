// Package snowflake generates time-ordered 64-bit ids used as idempotency
// keys for submissions that arrive without one.
//
// Layout: 41 bits ms since 2024-01-01 UTC | 10 bits node | 12 bits sequence.
package snowflake

import (
	"errors"
	"strconv"
	"sync"
	"time"
)

const (
	epochMillis int64 = 1704067200000

	nodeBits = 10
	seqBits  = 12

	maxNode = 1<<nodeBits - 1
	maxSeq  = 1<<seqBits - 1
)

var (
	ErrInvalidNode    = errors.New("snowflake: node id must be in [0, 1023]")
	ErrClockMovedBack = errors.New("snowflake: clock moved backwards")
)

// Node issues ids for one process.
type Node struct {
	mu   sync.Mutex
	node int64
	last int64
	seq  int64
	now  func() time.Time
}

// NewNode creates a generator for node id n.
func NewNode(n int64) (*Node, error) {
	if n < 0 || n > maxNode {
		return nil, ErrInvalidNode
	}
	return &Node{node: n, now: time.Now}, nil
}

func (g *Node) millis() int64 {
	return g.now().UnixMilli() - epochMillis
}

// Next returns the next id. It spins into the next millisecond when the
// sequence is exhausted.
func (g *Node) Next() (int64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	ms := g.millis()
	if ms < g.last {
		return 0, ErrClockMovedBack
	}
	if ms == g.last {
		g.seq = (g.seq + 1) & maxSeq
		if g.seq == 0 {
			for ms <= g.last {
				time.Sleep(100 * time.Microsecond)
				ms = g.millis()
			}
		}
	} else {
		g.seq = 0
	}
	g.last = ms

	return ms<<(nodeBits+seqBits) | g.node<<seqBits | g.seq, nil
}

// Key returns prefix followed by the next id, e.g. "web-form-1234".
func (g *Node) Key(prefix string) (string, error) {
	id, err := g.Next()
	if err != nil {
		return "", err
	}
	return prefix + strconv.FormatInt(id, 10), nil
}

// Time recovers the creation time encoded in id.
func Time(id int64) time.Time {
	return time.UnixMilli(id>>(nodeBits+seqBits) + epochMillis).UTC()
}

// NodeOf recovers the node id encoded in id.
func NodeOf(id int64) int64 {
	return (id >> seqBits) & maxNode
}
