package grid

import (
	"fmt"
	"testing"

	"cascade/internal/reference"

	"github.com/stretchr/testify/require"
)

// catalog3 — трёхуровневый справочник из сценария: P1 → P1-C1 → P1-C1-D1 ...
func catalog3(t testing.TB) *reference.Catalog {
	t.Helper()
	c, err := reference.Generate("t", []reference.GenLevel{{Code: "P", Label: "P"}, {Code: "C", Label: "C"}, {Code: "D", Label: "D"}}, 3, 2)
	require.NoError(t, err)
	return c
}

func rules3(uniqueTop bool) []Rule {
	return []Rule{
		{Name: "province", Unique: uniqueTop, Required: true, Message: "pick a province"},
		{Name: "city", Required: true},
		{Name: "district"},
	}
}

// seqIDs — детерминированные id r1, r2, ...
func seqIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("r%d", n)
	}
}

func newController(t testing.TB, rows int, opts ...Option) *Controller {
	t.Helper()
	opts = append([]Option{WithIDSource(seqIDs())}, opts...)
	c, err := New(catalog3(t), rules3(true), opts...)
	require.NoError(t, err)
	_, err = c.SetRowCount(rows)
	require.NoError(t, err)
	return c
}
