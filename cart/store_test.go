package cart

import (
	"strings"
	"testing"

	"go-restaurant-ordering/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seeded(t *testing.T) *Store {
	t.Helper()
	s := NewStore("u1")
	s.Replace([]models.CartLine{
		{ID: "a", ItemID: "pizza", UserID: "u1", UnitPrice: 2500, Quantity: 2},
		{ID: "b", ItemID: "cola", UserID: "u1", UnitPrice: 300, Quantity: 1},
		{ID: "c", ItemID: "cake", UserID: "u1", UnitPrice: 900, Quantity: 1},
	})
	return s
}

func TestReplaceRecomputesTotalsAndSkipsZeroRows(t *testing.T) {
	s := NewStore("u1")
	s.Replace([]models.CartLine{
		{ID: "a", UnitPrice: 2500, Quantity: 2, Total: 1},
		{ID: "z", UnitPrice: 100, Quantity: 0},
	})
	lines := s.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, int64(5000), lines[0].Total)
}

func TestChangeQuantityIsImmediate(t *testing.T) {
	s := seeded(t)
	m, err := s.ChangeQuantity("a", 3)
	require.NoError(t, err)
	assert.Equal(t, 5, m.After.Quantity)
	assert.Equal(t, int64(12500), m.After.Total)
	assert.Equal(t, 2, m.Before.Line.Quantity)

	l, ok := s.Line("a")
	require.True(t, ok)
	assert.Equal(t, 5, l.Quantity)
	assert.Equal(t, int64(12500+300+900), s.Subtotal())
}

func TestChangeQuantityToZeroRemovesLine(t *testing.T) {
	s := seeded(t)
	m, err := s.ChangeQuantity("b", -1)
	require.NoError(t, err)
	assert.True(t, m.Removed)
	_, ok := s.Line("b")
	assert.False(t, ok)
	assert.Equal(t, 2, s.Len())

	m, err = s.ChangeQuantity("a", -7)
	require.NoError(t, err)
	assert.True(t, m.Removed, "overshooting below zero is a removal")
}

func TestChangeQuantityErrors(t *testing.T) {
	s := seeded(t)
	_, err := s.ChangeQuantity("missing", 1)
	assert.ErrorIs(t, err, ErrLineNotFound)
	_, err = s.ChangeQuantity("a", 0)
	assert.ErrorIs(t, err, ErrZeroDelta)

	local := s.AddLine(models.CartLine{ItemID: "soup", UnitPrice: 700})
	_, err = s.ChangeQuantity(local.ID, 1)
	assert.ErrorIs(t, err, ErrLineNotSynced)
	_, err = s.RemoveLine(local.ID)
	assert.ErrorIs(t, err, ErrLineNotSynced)
}

func TestUndoRestoresRemovedLineAtPosition(t *testing.T) {
	s := seeded(t)
	m, err := s.RemoveLine("b")
	require.NoError(t, err)
	m.Undo(s)

	lines := s.Lines()
	require.Len(t, lines, 3)
	assert.Equal(t, "b", lines[1].ID)
	assert.Equal(t, 1, lines[1].Quantity)
}

func TestRollbackOfQuantityChange(t *testing.T) {
	s := seeded(t)
	before := s.Capture("a")
	_, err := s.ChangeQuantity("a", 1)
	require.NoError(t, err)
	_, err = s.ChangeQuantity("a", 1)
	require.NoError(t, err)

	s.Rollback(before)
	l, _ := s.Line("a")
	assert.Equal(t, 2, l.Quantity)
	assert.Equal(t, int64(5000), l.Total)
}

func TestRollbackOfNonExistentRemovesLine(t *testing.T) {
	s := seeded(t)
	s.Rollback(Snapshot{LineID: "a", Exists: false})
	_, ok := s.Line("a")
	assert.False(t, ok)
}

func TestAddPromoteDiscard(t *testing.T) {
	s := NewStore("u1")
	l := s.AddLine(models.CartLine{ItemID: "pizza", UnitPrice: 2500, Quantity: 2, Instructions: strings.Repeat("x", 300)})
	assert.True(t, IsLocalID(l.ID))
	assert.Equal(t, "u1", l.UserID)
	assert.Equal(t, int64(5000), l.Total)
	assert.Len(t, []rune(l.Instructions), models.MaxInstructionsLength)

	promoted, err := s.Promote(l.ID, "srv-1")
	require.NoError(t, err)
	assert.Equal(t, "srv-1", promoted.ID)
	_, ok := s.Line(l.ID)
	assert.False(t, ok)

	other := s.AddLine(models.CartLine{ItemID: "cola", UnitPrice: 300})
	assert.Equal(t, 1, other.Quantity)
	s.Discard(other.ID)
	assert.Equal(t, 1, s.Len())
}

func TestClearReturnsOnlyPresentIDs(t *testing.T) {
	s := seeded(t)
	removed := s.Clear([]string{"a", "c", "zz"})
	assert.ElementsMatch(t, []string{"a", "c"}, removed)
	assert.Empty(t, s.Clear([]string{"a", "c"}), "clearing twice removes nothing")
	assert.Equal(t, 1, s.Len())
}

func TestSubscribe(t *testing.T) {
	s := seeded(t)
	var seen [][]models.CartLine
	unsubscribe := s.Subscribe(func(lines []models.CartLine) { seen = append(seen, lines) })

	_, err := s.ChangeQuantity("a", 1)
	require.NoError(t, err)
	require.Len(t, seen, 1)
	assert.Equal(t, 3, seen[0][0].Quantity)

	unsubscribe()
	_, err = s.ChangeQuantity("a", 1)
	require.NoError(t, err)
	assert.Len(t, seen, 1)
}
