package flow

import (
	"fmt"

	"botflow/entity"
)

// Snapshot is an in-memory Graph built from a bot's persisted blocks and
// connections. It is loaded once per pass and read-only afterwards, so the
// graph walk itself performs no store I/O. Connection order is preserved
// from storage; it is the tie-break for multiple matching edges.
type Snapshot struct {
	entryID  int64
	blocks   map[int64]*entity.Block
	outgoing map[int64][]*entity.Connection
}

// NewSnapshot assembles and validates a graph snapshot. Every block's
// content is checked against the schema of its type here, so missing
// required keys surface as a single load-time error instead of a mid-pass
// crash.
func NewSnapshot(entryID int64, blocks []*entity.Block, conns []*entity.Connection) (*Snapshot, error) {
	s := &Snapshot{
		entryID:  entryID,
		blocks:   make(map[int64]*entity.Block, len(blocks)),
		outgoing: make(map[int64][]*entity.Connection),
	}

	for _, b := range blocks {
		if err := entity.ValidateBlock(b); err != nil {
			return nil, err
		}
		s.blocks[b.ID] = b
	}

	for _, c := range conns {
		s.outgoing[c.SourceID] = append(s.outgoing[c.SourceID], c)
	}

	return s, nil
}

// EntryBlock returns the pass's starting block.
func (s *Snapshot) EntryBlock() (*entity.Block, error) {
	return s.Block(s.entryID)
}

// Block returns a block by id.
func (s *Snapshot) Block(id int64) (*entity.Block, error) {
	b, ok := s.blocks[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrBlockNotFound, id)
	}
	return b, nil
}

// Outgoing returns the targets of the block's connections carrying label,
// in storage order. Connections to blocks missing from the snapshot are
// skipped.
func (s *Snapshot) Outgoing(id int64, label string) []*entity.Block {
	var out []*entity.Block
	for _, c := range s.outgoing[id] {
		if c.Label != label {
			continue
		}
		if b, ok := s.blocks[c.TargetID]; ok {
			out = append(out, b)
		}
	}
	return out
}
