package planner

import (
	"cmp"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"reactor-planner/internal/storage"
)

// Store is an in-memory snapshot of production blocks. It hands out copies
// only, so nothing outside Put/Replace can change what it holds.
type Store struct {
	blocks map[string]storage.ProductionBlock
	order  []string
}

func NewStore(blocks []storage.ProductionBlock) (*Store, error) {
	s := &Store{blocks: make(map[string]storage.ProductionBlock, len(blocks))}
	for _, b := range blocks {
		if err := b.CheckInvariants(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
		}
		if _, dup := s.blocks[b.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate block id %s", ErrInvalidArgument, b.ID)
		}
		s.blocks[b.ID] = b.Clone()
		s.order = append(s.order, b.ID)
	}
	return s, nil
}

func (s *Store) Len() int { return len(s.order) }

func (s *Store) Get(id string) (storage.ProductionBlock, error) {
	b, ok := s.blocks[id]
	if !ok {
		return storage.ProductionBlock{}, fmt.Errorf("%w: block %s", ErrNotFound, id)
	}
	return b.Clone(), nil
}

// All returns every block in insertion order.
func (s *Store) All() []storage.ProductionBlock {
	out := make([]storage.ProductionBlock, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.blocks[id].Clone())
	}
	return out
}

// Put replaces (or adds) one block after checking its invariants.
func (s *Store) Put(b storage.ProductionBlock) error {
	if err := b.CheckInvariants(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	if _, ok := s.blocks[b.ID]; !ok {
		s.order = append(s.order, b.ID)
	}
	s.blocks[b.ID] = b.Clone()
	return nil
}

// Replace removes originalID and inserts siblings in its place. Either all
// of it happens or none of it does.
func (s *Store) Replace(originalID string, siblings []storage.ProductionBlock) error {
	if _, ok := s.blocks[originalID]; !ok {
		return fmt.Errorf("%w: block %s", ErrNotFound, originalID)
	}
	seen := make(map[string]bool, len(siblings))
	for _, b := range siblings {
		if err := b.CheckInvariants(); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
		}
		if _, exists := s.blocks[b.ID]; (exists && b.ID != originalID) || seen[b.ID] {
			return fmt.Errorf("%w: duplicate block id %s", ErrInvalidArgument, b.ID)
		}
		seen[b.ID] = true
	}

	idx := slices.Index(s.order, originalID)
	ids := make([]string, 0, len(siblings))
	for _, b := range siblings {
		ids = append(ids, b.ID)
	}
	s.order = slices.Replace(s.order, idx, idx+1, ids...)

	delete(s.blocks, originalID)
	for _, b := range siblings {
		s.blocks[b.ID] = b.Clone()
	}
	return nil
}

// List returns the blocks matching f, ordered by planned date (unplanned
// last), order number, article and batch label.
func (s *Store) List(f storage.BlockFilter) []storage.ProductionBlock {
	var ids map[string]bool
	if len(f.IDs) > 0 {
		ids = make(map[string]bool, len(f.IDs))
		for _, id := range f.IDs {
			ids[id] = true
		}
	}

	var out []storage.ProductionBlock
	for _, id := range s.order {
		b := s.blocks[id]
		if ids != nil && !ids[b.ID] {
			continue
		}
		if !matches(b, f) {
			continue
		}
		out = append(out, b.Clone())
	}

	slices.SortStableFunc(out, func(a, b storage.ProductionBlock) int {
		switch {
		case a.PlannedDate == nil && b.PlannedDate != nil:
			return 1
		case a.PlannedDate != nil && b.PlannedDate == nil:
			return -1
		case a.PlannedDate != nil && b.PlannedDate != nil:
			if c := a.PlannedDate.Compare(*b.PlannedDate); c != 0 {
				return c
			}
		}
		return compareIdentity(a, b)
	})
	return out
}

func matches(b storage.ProductionBlock, f storage.BlockFilter) bool {
	if f.Status != "" && b.Status != f.Status {
		return false
	}
	if f.Reactor != "" && (b.PlannedReactor == nil || *b.PlannedReactor != f.Reactor) {
		return false
	}
	if f.OrderNumber != "" && b.OrderNumber != f.OrderNumber {
		return false
	}
	if f.ArticleCode != "" && b.ArticleCode != f.ArticleCode {
		return false
	}
	if f.ClientName != "" && !strings.EqualFold(b.ClientName, f.ClientName) {
		return false
	}
	if f.From != nil || f.To != nil {
		if b.PlannedDate == nil {
			return false
		}
		day := DateOnly(*b.PlannedDate)
		if f.From != nil && day.Before(DateOnly(*f.From)) {
			return false
		}
		if f.To != nil && day.After(DateOnly(*f.To)) {
			return false
		}
	}
	return true
}

// Siblings returns every block of one production order and article, i.e.
// the sub-batches created by splitting, ordered by batch label.
func (s *Store) Siblings(orderNumber, articleCode string) []storage.ProductionBlock {
	var out []storage.ProductionBlock
	for _, id := range s.order {
		b := s.blocks[id]
		if b.OrderNumber == orderNumber && b.ArticleCode == articleCode {
			out = append(out, b.Clone())
		}
	}
	slices.SortStableFunc(out, func(a, b storage.ProductionBlock) int {
		return cmp.Compare(batchIndex(a.BatchLabel), batchIndex(b.BatchLabel))
	})
	return out
}

// nextBatchIndex is the first label number a split of b may use: one past
// the highest label held by another block of the group, or b's own label
// when that is the highest.
func (s *Store) nextBatchIndex(b storage.ProductionBlock) int {
	next := 1
	for _, sib := range s.Siblings(b.OrderNumber, b.ArticleCode) {
		if sib.ID == b.ID {
			continue
		}
		if n := batchIndex(sib.BatchLabel); n >= next {
			next = n + 1
		}
	}
	if n := batchIndex(b.BatchLabel); n >= next {
		next = n
	}
	return next
}

func compareIdentity(a, b storage.ProductionBlock) int {
	return cmp.Or(
		cmp.Compare(a.OrderNumber, b.OrderNumber),
		cmp.Compare(a.ArticleCode, b.ArticleCode),
		cmp.Compare(batchIndex(a.BatchLabel), batchIndex(b.BatchLabel)),
		cmp.Compare(a.ID, b.ID),
	)
}

const batchPrefix = "T"

func batchLabel(n int) string {
	return batchPrefix + strconv.Itoa(n)
}

// batchIndex parses "T<n>"; an empty or foreign label sorts first as 0.
func batchIndex(label string) int {
	n, err := strconv.Atoi(strings.TrimPrefix(label, batchPrefix))
	if err != nil || !strings.HasPrefix(label, batchPrefix) {
		return 0
	}
	return n
}
