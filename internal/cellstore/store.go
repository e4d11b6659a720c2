// Package cellstore holds the client-side cache of cells shared by the grid,
// the by-role view and the role-change workflow.
package cellstore

import (
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/ryanbastic/go-cellgrid/internal/cell"
)

var ErrCellNotFound = errors.New("cell not in store")

// Op names an operation whose loading state is tracked separately.
type Op string

const (
	OpFetchCells   Op = "fetch_cells"
	OpFetchGrouped Op = "fetch_grouped"
	OpChangeRole   Op = "change_role"
	OpFetchHistory Op = "fetch_history"
)

// CellPatch carries the fields a single-record update may change. Nil
// fields are left as they are.
type CellPatch struct {
	Role         *cell.Role
	Status       *cell.Status
	CurrentUsage *int
}

// PatchFromCell builds a patch with the mutable fields of an acknowledged cell.
func PatchFromCell(c cell.Cell) CellPatch {
	role := c.EffectiveRole()
	status := c.Status
	usage := c.CurrentUsage
	return CellPatch{Role: &role, Status: &status, CurrentUsage: &usage}
}

// Store is the cache contract. Implementations must be safe for
// concurrent use.
type Store interface {
	GetCells() []cell.Cell
	GetCell(id uuid.UUID) (cell.Cell, error)
	ReplaceAll(cells []cell.Cell)
	PatchCell(id uuid.UUID, patch CellPatch) (cell.Cell, error)
	SetLoading(op Op, loading bool)
	Loading(op Op) bool
}

// MemoryStore is an in-process Store. Writes are last-writer-wins.
type MemoryStore struct {
	mu      sync.RWMutex
	cells   []cell.Cell
	byID    map[uuid.UUID]int
	loading map[Op]bool
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:    make(map[uuid.UUID]int),
		loading: make(map[Op]bool),
	}
}

// GetCells returns a copy of the cached list in load order.
func (s *MemoryStore) GetCells() []cell.Cell {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]cell.Cell, len(s.cells))
	copy(out, s.cells)
	return out
}

func (s *MemoryStore) GetCell(id uuid.UUID) (cell.Cell, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.byID[id]
	if !ok {
		return cell.Cell{}, ErrCellNotFound
	}
	return s.cells[i], nil
}

// ReplaceAll swaps the whole cached list.
func (s *MemoryStore) ReplaceAll(cells []cell.Cell) {
	next := make([]cell.Cell, len(cells))
	copy(next, cells)
	index := make(map[uuid.UUID]int, len(next))
	for i, c := range next {
		index[c.ID] = i
	}

	s.mu.Lock()
	s.cells = next
	s.byID = index
	s.mu.Unlock()
}

// PatchCell updates one record in place and returns its new value.
func (s *MemoryStore) PatchCell(id uuid.UUID, patch CellPatch) (cell.Cell, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.byID[id]
	if !ok {
		return cell.Cell{}, ErrCellNotFound
	}
	c := s.cells[i]
	if patch.Role != nil {
		c.Role = *patch.Role
	}
	if patch.Status != nil {
		c.Status = *patch.Status
	}
	if patch.CurrentUsage != nil {
		c.CurrentUsage = *patch.CurrentUsage
	}
	s.cells[i] = c
	return c, nil
}

func (s *MemoryStore) SetLoading(op Op, loading bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if loading {
		s.loading[op] = true
		return
	}
	delete(s.loading, op)
}

func (s *MemoryStore) Loading(op Op) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading[op]
}
