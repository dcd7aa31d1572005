// Package cart holds the in-memory cart of one user. Every mutation is applied
// immediately and returned as a Mutation that knows how to undo itself.
package cart

import (
	"errors"
	"strings"
	"sync"
	"unicode/utf8"

	"go-restaurant-ordering/models"

	"github.com/google/uuid"
)

const LocalPrefix = "local-"

var (
	ErrLineNotFound  = errors.New("cart line not found")
	ErrLineNotSynced = errors.New("cart line is still being saved")
	ErrZeroDelta     = errors.New("quantity delta must not be zero")
)

// Snapshot is the state of one line before a mutation. Exists is false when the
// line did not exist at that point.
type Snapshot struct {
	LineID string
	Line   models.CartLine
	Exists bool
	Index  int
}

// Mutation is an applied change plus the state needed to revert it.
type Mutation struct {
	LineID  string
	Before  Snapshot
	After   models.CartLine
	Removed bool
}

// Undo restores the line to its state before the mutation.
func (m Mutation) Undo(s *Store) {
	s.Rollback(m.Before)
}

type Store struct {
	mu        sync.RWMutex
	userID    string
	ids       []string
	lines     map[string]models.CartLine
	listeners map[int]func([]models.CartLine)
	nextSub   int
}

func NewStore(userID string) *Store {
	return &Store{
		userID:    userID,
		lines:     make(map[string]models.CartLine),
		listeners: make(map[int]func([]models.CartLine)),
	}
}

func (s *Store) UserID() string { return s.userID }

func IsLocalID(id string) bool { return strings.HasPrefix(id, LocalPrefix) }

// Replace swaps the whole cart, used when hydrating from the backend.
func (s *Store) Replace(lines []models.CartLine) {
	s.mu.Lock()
	s.ids = s.ids[:0]
	s.lines = make(map[string]models.CartLine, len(lines))
	for _, l := range lines {
		if l.Quantity <= 0 {
			continue
		}
		l.Recompute()
		s.ids = append(s.ids, l.ID)
		s.lines[l.ID] = l
	}
	s.mu.Unlock()
	s.publish()
}

func (s *Store) Lines() []models.CartLine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.linesLocked()
}

func (s *Store) linesLocked() []models.CartLine {
	out := make([]models.CartLine, 0, len(s.ids))
	for _, id := range s.ids {
		out = append(out, s.lines[id])
	}
	return out
}

func (s *Store) Line(id string) (models.CartLine, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.lines[id]
	return l, ok
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ids)
}

func (s *Store) Subtotal() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var total int64
	for _, id := range s.ids {
		l := s.lines[id]
		total += l.UnitPrice * int64(l.Quantity)
	}
	return total
}

// AddLine appends a speculative line under a local id. The caller persists it and
// then calls Promote or Discard.
func (s *Store) AddLine(line models.CartLine) models.CartLine {
	line.ID = LocalPrefix + uuid.NewString()
	line.UserID = s.userID
	line.Status = models.LinePending
	line.Instructions = truncate(line.Instructions, models.MaxInstructionsLength)
	if line.Quantity < 1 {
		line.Quantity = 1
	}
	line.Recompute()

	s.mu.Lock()
	s.ids = append(s.ids, line.ID)
	s.lines[line.ID] = line
	s.mu.Unlock()
	s.publish()
	return line
}

// Promote re-keys a speculative line under the id the backend assigned.
func (s *Store) Promote(localID, serverID string) (models.CartLine, error) {
	s.mu.Lock()
	line, ok := s.lines[localID]
	if !ok {
		s.mu.Unlock()
		return models.CartLine{}, ErrLineNotFound
	}
	delete(s.lines, localID)
	line.ID = serverID
	s.lines[serverID] = line
	s.ids[s.indexLocked(localID)] = serverID
	s.mu.Unlock()
	s.publish()
	return line, nil
}

// Discard drops a speculative line whose create failed.
func (s *Store) Discard(localID string) {
	s.mu.Lock()
	_, ok := s.lines[localID]
	if ok {
		s.removeLocked(localID)
	}
	s.mu.Unlock()
	if ok {
		s.publish()
	}
}

// ChangeQuantity applies delta immediately. A result of zero or less removes the line.
func (s *Store) ChangeQuantity(lineID string, delta int) (Mutation, error) {
	if delta == 0 {
		return Mutation{}, ErrZeroDelta
	}
	if IsLocalID(lineID) {
		return Mutation{}, ErrLineNotSynced
	}
	s.mu.Lock()
	line, ok := s.lines[lineID]
	if !ok {
		s.mu.Unlock()
		return Mutation{}, ErrLineNotFound
	}
	m := Mutation{LineID: lineID, Before: s.captureLocked(lineID)}
	if q := line.Quantity + delta; q > 0 {
		m.After = line.WithQuantity(q)
		s.lines[lineID] = m.After
	} else {
		m.After = line.WithQuantity(0)
		m.Removed = true
		s.removeLocked(lineID)
	}
	s.mu.Unlock()
	s.publish()
	return m, nil
}

func (s *Store) RemoveLine(lineID string) (Mutation, error) {
	if IsLocalID(lineID) {
		return Mutation{}, ErrLineNotSynced
	}
	s.mu.Lock()
	line, ok := s.lines[lineID]
	if !ok {
		s.mu.Unlock()
		return Mutation{}, ErrLineNotFound
	}
	m := Mutation{LineID: lineID, Before: s.captureLocked(lineID), After: line.WithQuantity(0), Removed: true}
	s.removeLocked(lineID)
	s.mu.Unlock()
	s.publish()
	return m, nil
}

// Capture returns the current state of a line for a later Rollback.
func (s *Store) Capture(lineID string) Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.captureLocked(lineID)
}

func (s *Store) captureLocked(lineID string) Snapshot {
	l, ok := s.lines[lineID]
	return Snapshot{LineID: lineID, Line: l, Exists: ok, Index: s.indexLocked(lineID)}
}

// Rollback restores a line to prev, re-inserting it at its old position if it
// has since been removed, or removing it if it did not exist.
func (s *Store) Rollback(prev Snapshot) {
	s.mu.Lock()
	_, present := s.lines[prev.LineID]
	switch {
	case prev.Exists && present:
		s.lines[prev.LineID] = prev.Line
	case prev.Exists:
		idx := prev.Index
		if idx < 0 || idx > len(s.ids) {
			idx = len(s.ids)
		}
		s.ids = append(s.ids, "")
		copy(s.ids[idx+1:], s.ids[idx:])
		s.ids[idx] = prev.LineID
		s.lines[prev.LineID] = prev.Line
	case present:
		s.removeLocked(prev.LineID)
	}
	s.mu.Unlock()
	s.publish()
}

// Clear removes the listed lines and returns the ids that were actually present.
func (s *Store) Clear(ids []string) []string {
	s.mu.Lock()
	removed := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := s.lines[id]; ok {
			s.removeLocked(id)
			removed = append(removed, id)
		}
	}
	s.mu.Unlock()
	if len(removed) > 0 {
		s.publish()
	}
	return removed
}

// Subscribe registers fn to receive the cart after every change. The returned
// func unregisters it.
func (s *Store) Subscribe(fn func([]models.CartLine)) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.listeners[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

func (s *Store) publish() {
	s.mu.RLock()
	lines := s.linesLocked()
	fns := make([]func([]models.CartLine), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.RUnlock()
	for _, fn := range fns {
		fn(lines)
	}
}

func (s *Store) indexLocked(id string) int {
	for i, v := range s.ids {
		if v == id {
			return i
		}
	}
	return -1
}

func (s *Store) removeLocked(id string) {
	if i := s.indexLocked(id); i >= 0 {
		s.ids = append(s.ids[:i], s.ids[i+1:]...)
	}
	delete(s.lines, id)
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max])
}
