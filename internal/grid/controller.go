package grid

import (
	"fmt"
	"math/rand"
	"sort"
	"strconv"
	"time"

	"cascade/internal/reference"

	"github.com/oklog/ulid/v2"
	log "github.com/sirupsen/logrus"
)

// Controller владеет строками таблицы и единственный их меняет.
// Не синхронизирован: вызывающий сериализует доступ (один логический ход на правку).
type Controller struct {
	catalog  *reference.Catalog
	resolver Resolver
	rules    []Rule

	rows []*Row
	pos  map[string]int // id → индекс в rows

	index     *Index // nil — уникальность проверяется полным проходом
	newID     func() string
	labelBase int
	seq       uint64

	listeners []listener
	nextSub   int
	log       *log.Entry
}

type listener struct {
	id int
	fn func(Change)
}

type Option func(*Controller)

// WithIDSource подменяет генератор id строк (по умолчанию ULID)
func WithIDSource(fn func() string) Option { return func(c *Controller) { c.newID = fn } }

// WithReverseIndex включает обратный индекс для уникальных уровней
func WithReverseIndex(on bool) Option {
	return func(c *Controller) {
		if on {
			c.index = NewIndex(len(c.rules))
		} else {
			c.index = nil
		}
	}
}

func WithLogger(l *log.Entry) Option { return func(c *Controller) { c.log = l } }

// WithLabelBase — номер первой строки в колонке подписи (1001 в демо)
func WithLabelBase(n int) Option { return func(c *Controller) { c.labelBase = n } }

func New(catalog *reference.Catalog, rules []Rule, opts ...Option) (*Controller, error) {
	if catalog == nil {
		return nil, fmt.Errorf("grid: nil catalog")
	}
	if len(rules) != catalog.Depth() {
		return nil, fmt.Errorf("grid: %d rules for catalog %q of depth %d", len(rules), catalog.Name(), catalog.Depth())
	}
	entropy := ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0)
	c := &Controller{
		catalog:   catalog,
		resolver:  NewResolver(catalog),
		rules:     append([]Rule(nil), rules...),
		pos:       map[string]int{},
		labelBase: 1001,
		newID: func() string {
			return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
		},
		log: log.NewEntry(log.StandardLogger()),
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

func (c *Controller) Depth() int { return len(c.rules) }

func (c *Controller) Rules() []Rule { return append([]Rule(nil), c.rules...) }

func (c *Controller) Catalog() *reference.Catalog { return c.catalog }

func (c *Controller) RowCount() int { return len(c.rows) }

// Rows — копии строк в порядке вставки
func (c *Controller) Rows() []Row {
	out := make([]Row, 0, len(c.rows))
	for _, r := range c.rows {
		out = append(out, r.clone())
	}
	return out
}

func (c *Controller) Row(id string) (Row, bool) {
	i, ok := c.pos[id]
	if !ok {
		return Row{}, false
	}
	return c.rows[i].clone(), true
}

// Subscribe регистрирует обработчик изменений; вызывается синхронно после перехода.
func (c *Controller) Subscribe(fn func(Change)) (cancel func()) {
	c.nextSub++
	id := c.nextSub
	c.listeners = append(c.listeners, listener{id: id, fn: fn})
	return func() {
		for i, l := range c.listeners {
			if l.id == id {
				c.listeners = append(c.listeners[:i], c.listeners[i+1:]...)
				return
			}
		}
	}
}

func (c *Controller) notify(ch Change) {
	for _, l := range c.listeners {
		l.fn(ch)
	}
}

// SetRowCount заменяет таблицу n новыми пустыми строками. Все прежние правки теряются.
func (c *Controller) SetRowCount(n int) (Change, error) {
	if n < 0 {
		return Change{}, fmt.Errorf("%w: row count %d", ErrInvalidReference, n)
	}
	rows := make([]*Row, 0, n)
	pos := make(map[string]int, n)
	for i := 0; i < n; i++ {
		r := newRow(c.newID(), strconv.Itoa(c.labelBase+i), len(c.rules))
		if _, dup := pos[r.ID]; dup {
			return Change{}, fmt.Errorf("grid: id source returned duplicate row id %q", r.ID)
		}
		pos[r.ID] = i
		rows = append(rows, r)
	}
	c.rows, c.pos = rows, pos
	if c.index != nil {
		c.index.Reset()
	}
	c.seq++
	ch := Change{Seq: c.seq, Kind: ChangeReset, Cells: []Cell{}, Rows: n}
	c.log.WithField("rows", n).Debug("grid rebuilt")
	c.notify(ch)
	return ch, nil
}

func (c *Controller) lookup(rowID string, level int) (*Row, error) {
	i, ok := c.pos[rowID]
	if !ok {
		return nil, fmt.Errorf("%w: unknown row %q", ErrInvalidReference, rowID)
	}
	if level < 0 || level >= len(c.rules) {
		return nil, fmt.Errorf("%w: level %d out of range [0, %d)", ErrInvalidReference, level, len(c.rules))
	}
	return c.rows[i], nil
}

// EditField применяет правку ячейки целиком или не применяет вовсе.
func (c *Controller) EditField(rowID string, level int, code string) (Change, error) {
	row, err := c.lookup(rowID, level)
	if err != nil {
		return Change{}, err
	}
	if err := c.resolver.Admissible(row.Values, level, code); err != nil {
		return Change{}, err
	}
	// повторный выбор своего же значения не новый конфликт, даже если дубликат остался от Seed
	if code != "" && code != row.Values[level] && c.rules[level].Unique && c.heldByOther(level, code, row.ID) {
		return Change{}, fmt.Errorf("%w: %q at level %d", ErrOptionTaken, code, level)
	}

	next, cleared := c.resolver.OnFieldChanged(row.Values, level, code)
	c.apply(row, next)

	edited := Cell{RowID: row.ID, Level: level}
	touched := append([]int{level}, cleared...)
	c.seq++
	ch := Change{
		Seq:     c.seq,
		Kind:    ChangeEdit,
		Edited:  &edited,
		Code:    code,
		Cleared: cleared,
		Cells:   c.affected(row.ID, touched),
		Rows:    len(c.rows),
	}
	c.log.WithFields(log.Fields{
		"row": row.ID, "level": level, "code": code, "cells": len(ch.Cells),
	}).Debug("field edited")
	c.notify(ch)
	return ch, nil
}

// Seed записывает значения строки программно. Согласованность со справочником
// проверяется, уникальность — нет: дубликаты терпятся и видны только в Validate.
func (c *Controller) Seed(rowID string, values []string) (Change, error) {
	i, ok := c.pos[rowID]
	if !ok {
		return Change{}, fmt.Errorf("%w: unknown row %q", ErrInvalidReference, rowID)
	}
	if len(values) != len(c.rules) {
		return Change{}, fmt.Errorf("%w: %d values for depth %d", ErrInvalidReference, len(values), len(c.rules))
	}
	for l, v := range values {
		if v == "" {
			for d := l + 1; d < len(values); d++ {
				if values[d] != "" {
					return Change{}, fmt.Errorf("%w: level %d set while level %d is empty", ErrOptionUnavailable, d, l)
				}
			}
			break
		}
		if err := c.resolver.Admissible(values, l, v); err != nil {
			return Change{}, err
		}
	}

	row := c.rows[i]
	c.apply(row, append([]string(nil), values...))

	touched := make([]int, len(c.rules))
	for l := range touched {
		touched[l] = l
	}
	c.seq++
	ch := Change{Seq: c.seq, Kind: ChangeSeed, Cells: c.affected(row.ID, touched), Rows: len(c.rows)}
	c.notify(ch)
	return ch, nil
}

func (c *Controller) apply(row *Row, next []string) {
	if c.index != nil {
		for l, rule := range c.rules {
			if rule.Unique {
				c.index.Move(l, row.ID, row.Values[l], next[l])
			}
		}
	}
	row.Values = next
}

// affected — минимальный набор ячеек на перерисовку: затронутые уровни строки и,
// для уникальных уровней, тот же уровень во всех остальных строках.
func (c *Controller) affected(rowID string, levels []int) []Cell {
	seen := make(map[Cell]struct{})
	var cells []Cell
	add := func(cell Cell) {
		if _, ok := seen[cell]; ok {
			return
		}
		seen[cell] = struct{}{}
		cells = append(cells, cell)
	}
	for _, l := range levels {
		add(Cell{RowID: rowID, Level: l})
		if !c.rules[l].Unique {
			continue
		}
		for _, r := range c.rows {
			add(Cell{RowID: r.ID, Level: l})
		}
	}
	sort.SliceStable(cells, func(i, j int) bool {
		pi, pj := c.pos[cells[i].RowID], c.pos[cells[j].RowID]
		if pi != pj {
			return pi < pj
		}
		return cells[i].Level < cells[j].Level
	})
	return cells
}

func (c *Controller) heldByOther(level int, code, rowID string) bool {
	if c.index != nil {
		return c.index.HeldByOther(level, code, rowID)
	}
	_, taken := Taken(c.rows, level, rowID)[code]
	return taken
}

// Taken — коды уровня, занятые строками кроме excluding
func (c *Controller) Taken(level int, excluding string) map[string]struct{} {
	if level < 0 || level >= len(c.rules) {
		return map[string]struct{}{}
	}
	if c.index != nil {
		return c.index.Taken(level, excluding)
	}
	return Taken(c.rows, level, excluding)
}

// Cell — текущее значение ячейки и варианты с признаком disabled
func (c *Controller) Cell(rowID string, level int) (CellView, error) {
	row, err := c.lookup(rowID, level)
	if err != nil {
		return CellView{}, err
	}
	opts := c.resolver.Options(row.Values, level)
	var taken map[string]struct{}
	if c.rules[level].Unique {
		taken = c.Taken(level, row.ID)
	}
	view := CellView{RowID: row.ID, Level: level, Value: row.Values[level], Options: make([]OptionState, 0, len(opts))}
	for _, o := range opts {
		_, disabled := taken[o.Code]
		view.Options = append(view.Options, OptionState{Code: o.Code, Label: o.Label, Disabled: disabled})
	}
	return view, nil
}

// Validate сообщает о незаполненных required-ячейках и о дубликатах на уникальных
// уровнях, попавших в таблицу через Seed.
func (c *Controller) Validate() []Violation {
	var out []Violation
	holders := make([]map[string][]string, len(c.rules))
	for l := range holders {
		holders[l] = map[string][]string{}
	}
	for _, r := range c.rows {
		for l, rule := range c.rules {
			v := r.Values[l]
			if v == "" {
				if rule.Required {
					msg := rule.Message
					if msg == "" {
						msg = "Field '" + rule.Name + "' is required"
					}
					out = append(out, Violation{Kind: ViolationRequired, RowID: r.ID, Level: l, Message: msg})
				}
				continue
			}
			if rule.Unique {
				holders[l][v] = append(holders[l][v], r.ID)
			}
		}
	}
	for l, byCode := range holders {
		codes := make([]string, 0, len(byCode))
		for code, ids := range byCode {
			if len(ids) > 1 {
				codes = append(codes, code)
			}
		}
		sort.Strings(codes)
		for _, code := range codes {
			for _, id := range byCode[code] {
				out = append(out, Violation{
					Kind: ViolationDuplicate, RowID: id, Level: l, Code: code,
					Message: fmt.Sprintf("%q is selected in %d rows at level %q", code, len(byCode[code]), c.rules[l].Name),
				})
			}
		}
	}
	return out
}
