package grid

import (
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewValidatesRules(t *testing.T) {
	_, err := New(catalog3(t), rules3(true)[:2])
	assert.Error(t, err)
	_, err = New(nil, rules3(true))
	assert.Error(t, err)
}

func TestSetRowCountReplacesGrid(t *testing.T) {
	c := newController(t, 10)
	require.Equal(t, 10, c.RowCount())

	first := c.Rows()[0]
	assert.Equal(t, "1001", first.Label)
	_, err := c.EditField(first.ID, 0, "P1")
	require.NoError(t, err)

	ch, err := c.SetRowCount(20)
	require.NoError(t, err)
	assert.Equal(t, ChangeReset, ch.Kind)
	assert.Equal(t, 20, ch.Rows)

	rows := c.Rows()
	require.Len(t, rows, 20)
	for _, r := range rows {
		assert.Equal(t, []string{"", "", ""}, r.Values, "row %s must be fresh", r.ID)
	}
	_, ok := c.Row(first.ID)
	assert.False(t, ok, "old rows are discarded, not merged")
	assert.Equal(t, "1020", rows[19].Label)

	_, err = c.SetRowCount(-1)
	assert.True(t, errors.Is(err, ErrInvalidReference))
}

func TestScenarioThreeLevels(t *testing.T) {
	c := newController(t, 2)
	r1, r2 := c.Rows()[0].ID, c.Rows()[1].ID

	ch, err := c.EditField(r1, 0, "P1")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, ch.Cleared)
	row, _ := c.Row(r1)
	assert.Equal(t, []string{"P1", "", ""}, row.Values)

	ch, err = c.EditField(r1, 1, "P1-C1")
	require.NoError(t, err)
	assert.Equal(t, []int{2}, ch.Cleared)

	ch, err = c.EditField(r1, 2, "P1-C1-D1")
	require.NoError(t, err)
	assert.Empty(t, ch.Cleared)
	row, _ = c.Row(r1)
	assert.Equal(t, []string{"P1", "P1-C1", "P1-C1-D1"}, row.Values)

	// P1 занят первой строкой — для второй он disabled и выбрать его нельзя
	view, err := c.Cell(r2, 0)
	require.NoError(t, err)
	require.Len(t, view.Options, 3)
	assert.Equal(t, OptionState{Code: "P1", Label: "P1", Disabled: true}, view.Options[0])
	assert.False(t, view.Options[1].Disabled)

	_, err = c.EditField(r2, 0, "P1")
	assert.True(t, errors.Is(err, ErrOptionTaken))
	row, _ = c.Row(r2)
	assert.Equal(t, []string{"", "", ""}, row.Values, "rejected edit leaves state untouched")

	// для самой строки r1 собственный выбор не блокируется
	view, err = c.Cell(r1, 0)
	require.NoError(t, err)
	assert.False(t, view.Options[0].Disabled)
	assert.Equal(t, "P1", view.Value)
}

func TestEditFieldInvalidReference(t *testing.T) {
	c := newController(t, 2)
	id := c.Rows()[0].ID

	_, err := c.EditField("nope", 0, "P1")
	assert.True(t, errors.Is(err, ErrInvalidReference))
	_, err = c.EditField(id, 3, "")
	assert.True(t, errors.Is(err, ErrInvalidReference))
	_, err = c.EditField(id, -1, "")
	assert.True(t, errors.Is(err, ErrInvalidReference))
	_, err = c.Cell(id, 7)
	assert.True(t, errors.Is(err, ErrInvalidReference))
}

func TestEditFieldRejectsInconsistentOptions(t *testing.T) {
	c := newController(t, 1)
	id := c.Rows()[0].ID

	_, err := c.EditField(id, 1, "P1-C1")
	assert.True(t, errors.Is(err, ErrOptionUnavailable), "no parent selected")

	_, err = c.EditField(id, 0, "P2")
	require.NoError(t, err)
	_, err = c.EditField(id, 1, "P1-C1")
	assert.True(t, errors.Is(err, ErrOptionUnavailable), "child of another parent")
}

func TestReSettingSameValueStillClears(t *testing.T) {
	c := newController(t, 1)
	id := c.Rows()[0].ID
	for l, v := range []string{"P1", "P1-C2", "P1-C2-D1"} {
		_, err := c.EditField(id, l, v)
		require.NoError(t, err)
	}

	ch, err := c.EditField(id, 0, "P1")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, ch.Cleared)
	row, _ := c.Row(id)
	assert.Equal(t, []string{"P1", "", ""}, row.Values)
}

func TestClearingFreesUniqueOption(t *testing.T) {
	c := newController(t, 2)
	r1, r2 := c.Rows()[0].ID, c.Rows()[1].ID

	_, err := c.EditField(r1, 0, "P1")
	require.NoError(t, err)
	_, err = c.EditField(r1, 0, "")
	require.NoError(t, err)

	_, err = c.EditField(r2, 0, "P1")
	assert.NoError(t, err)
}

func TestChangeCellsAreMinimal(t *testing.T) {
	c := newController(t, 3)
	rows := c.Rows()
	r1 := rows[0].ID

	ch, err := c.EditField(r1, 0, "P1")
	require.NoError(t, err)
	want := []Cell{
		{r1, 0}, {r1, 1}, {r1, 2},
		{rows[1].ID, 0},
		{rows[2].ID, 0},
	}
	if diff := cmp.Diff(want, ch.Cells); diff != "" {
		t.Fatalf("cells (-want +got):\n%s", diff)
	}
	assert.Equal(t, &Cell{r1, 0}, ch.Edited)

	// правка неуникального уровня не трогает другие строки
	ch, err = c.EditField(r1, 1, "P1-C1")
	require.NoError(t, err)
	assert.Equal(t, []Cell{{r1, 1}, {r1, 2}}, ch.Cells)
}

func TestChangeCellsWithoutUniqueness(t *testing.T) {
	cat := catalog3(t)
	c, err := New(cat, rules3(false), WithIDSource(seqIDs()))
	require.NoError(t, err)
	_, err = c.SetRowCount(3)
	require.NoError(t, err)

	ch, err := c.EditField("r2", 0, "P1")
	require.NoError(t, err)
	assert.Equal(t, []Cell{{"r2", 0}, {"r2", 1}, {"r2", 2}}, ch.Cells)

	// без уникальности одинаковый выбор в разных строках разрешён
	_, err = c.EditField("r3", 0, "P1")
	assert.NoError(t, err)
}

func TestSubscribeReceivesChanges(t *testing.T) {
	c := newController(t, 2)
	var got []Change
	cancel := c.Subscribe(func(ch Change) { got = append(got, ch) })

	_, err := c.EditField("r1", 0, "P2")
	require.NoError(t, err)
	_, err = c.EditField("r1", 0, "P9")
	require.Error(t, err)
	_, err = c.SetRowCount(4)
	require.NoError(t, err)

	require.Len(t, got, 2, "failed edits are not published")
	assert.Equal(t, ChangeEdit, got[0].Kind)
	assert.Equal(t, ChangeReset, got[1].Kind)
	assert.Less(t, got[0].Seq, got[1].Seq)

	cancel()
	_, err = c.SetRowCount(1)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestSeedToleratesDuplicatesValidateReportsThem(t *testing.T) {
	c := newController(t, 3)

	_, err := c.Seed("r1", []string{"P1", "P1-C1", ""})
	require.NoError(t, err)
	ch, err := c.Seed("r2", []string{"P1", "", ""})
	require.NoError(t, err, "seeding bypasses the uniqueness check")
	assert.Equal(t, ChangeSeed, ch.Kind)

	// но обычная правка новых дубликатов не создаёт
	_, err = c.EditField("r3", 0, "P1")
	assert.True(t, errors.Is(err, ErrOptionTaken))

	var dups, required []Violation
	for _, v := range c.Validate() {
		switch v.Kind {
		case ViolationDuplicate:
			dups = append(dups, v)
		case ViolationRequired:
			required = append(required, v)
		}
	}
	require.Len(t, dups, 2)
	assert.Equal(t, "r1", dups[0].RowID)
	assert.Equal(t, "r2", dups[1].RowID)
	assert.Equal(t, "P1", dups[0].Code)

	// r2: city; r3: province и city
	require.Len(t, required, 3)
	assert.Equal(t, Violation{Kind: ViolationRequired, RowID: "r3", Level: 0, Message: "pick a province"}, required[1])
	assert.Equal(t, "Field 'city' is required", required[2].Message)
}

func TestSeedRejectsInconsistentValues(t *testing.T) {
	c := newController(t, 1)

	_, err := c.Seed("r1", []string{"P1", ""})
	assert.True(t, errors.Is(err, ErrInvalidReference))
	_, err = c.Seed("zz", []string{"P1", "", ""})
	assert.True(t, errors.Is(err, ErrInvalidReference))
	_, err = c.Seed("r1", []string{"", "P1-C1", ""})
	assert.True(t, errors.Is(err, ErrOptionUnavailable))
	_, err = c.Seed("r1", []string{"P1", "P2-C1", ""})
	assert.True(t, errors.Is(err, ErrOptionUnavailable))

	row, _ := c.Row("r1")
	assert.Equal(t, []string{"", "", ""}, row.Values)
}

func TestTakenOutOfRangeLevelIsEmpty(t *testing.T) {
	c := newController(t, 1)
	assert.Empty(t, c.Taken(5, "r1"))
}

// случайные последовательности правок: свойства каскада, согласованность со
// справочником и совпадение индекса с полным проходом
func TestRandomEditsKeepInvariants(t *testing.T) {
	rnd := rand.New(rand.NewSource(42))
	scan := newController(t, 6)
	indexed := newController(t, 6, WithReverseIndex(true))
	cat := scan.Catalog()
	ids := []string{"r1", "r2", "r3", "r4", "r5", "r6"}

	for step := 0; step < 2000; step++ {
		id := ids[rnd.Intn(len(ids))]
		level := rnd.Intn(3)
		before, _ := scan.Row(id)

		code := ""
		if opts := NewResolver(cat).Options(before.Values, level); len(opts) > 0 && rnd.Intn(5) > 0 {
			code = opts[rnd.Intn(len(opts))].Code
		}

		_, errScan := scan.EditField(id, level, code)
		_, errIdx := indexed.EditField(id, level, code)
		require.Equal(t, errScan == nil, errIdx == nil, "step %d: scan=%v index=%v", step, errScan, errIdx)

		after, _ := scan.Row(id)
		if errScan != nil {
			require.True(t, errors.Is(errScan, ErrOptionTaken), "step %d: %v", step, errScan)
			require.Equal(t, before.Values, after.Values)
			continue
		}

		// каскад: выше не тронуто, ниже очищено
		for l := 0; l < level; l++ {
			require.Equal(t, before.Values[l], after.Values[l])
		}
		require.Equal(t, code, after.Values[level])
		for l := level + 1; l < 3; l++ {
			require.Empty(t, after.Values[l])
		}

		for _, r := range scan.Rows() {
			for l, v := range r.Values {
				if v == "" {
					continue
				}
				parent := ""
				if l > 0 {
					parent = r.Values[l-1]
				}
				require.True(t, cat.Contains(l, parent, v), "row %s level %d value %s", r.ID, l, v)
			}
		}
		require.Equal(t, scan.Rows(), indexed.Rows())
		for _, rid := range ids {
			require.Equal(t, scan.Taken(0, rid), indexed.Taken(0, rid))
		}
	}

	// новых дубликатов обычный путь не создаёт
	for _, v := range scan.Validate() {
		require.NotEqual(t, ViolationDuplicate, v.Kind)
	}
}

func TestReSelectingOwnValueWithSeededDuplicate(t *testing.T) {
	for _, indexed := range []bool{false, true} {
		t.Run(fmt.Sprintf("reverse_index=%v", indexed), func(t *testing.T) {
			c := newController(t, 2, WithReverseIndex(indexed))
			_, err := c.Seed("r1", []string{"P1", "P1-C1", ""})
			require.NoError(t, err)
			_, err = c.Seed("r2", []string{"P1", "", ""})
			require.NoError(t, err)

			ch, err := c.EditField("r1", 0, "P1")
			require.NoError(t, err, "existing duplicate is tolerated")
			assert.Equal(t, []int{1, 2}, ch.Cleared)
			row, _ := c.Row("r1")
			assert.Equal(t, []string{"P1", "", ""}, row.Values)

			// другое занятое значение по-прежнему отклоняется
			_, err = c.Seed("r2", []string{"P2", "", ""})
			require.NoError(t, err)
			_, err = c.EditField("r1", 0, "P2")
			assert.True(t, errors.Is(err, ErrOptionTaken))
		})
	}
}

func TestSetRowCountRejectsDuplicateIDs(t *testing.T) {
	c, err := New(catalog3(t), rules3(true), WithIDSource(func() string { return "same" }))
	require.NoError(t, err)

	_, err = c.SetRowCount(1)
	require.NoError(t, err)
	_, err = c.SetRowCount(2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `duplicate row id "same"`)
	assert.Equal(t, 1, c.RowCount(), "failed rebuild keeps the old grid")
}
