package grid

import (
	"fmt"

	"cascade/internal/reference"
)

// Resolver вычисляет допустимые варианты уровня и каскад очистки.
// Состояния нет: все методы — чистые функции от входа и справочника.
type Resolver struct {
	catalog *reference.Catalog
}

func NewResolver(c *reference.Catalog) Resolver { return Resolver{catalog: c} }

// OnFieldChanged ставит values[level] = code и очищает все уровни ниже.
// Потомки очищаются всегда, даже если старое значение осталось бы допустимым.
// Вход не меняется; cleared — все уровни > level.
func (r Resolver) OnFieldChanged(values []string, level int, code string) (next []string, cleared []int) {
	next = append([]string(nil), values...)
	next[level] = code
	for l := level + 1; l < len(next); l++ {
		next[l] = ""
		cleared = append(cleared, l)
	}
	return next, cleared
}

// Parent — код родителя для уровня (Root для нулевого)
func (r Resolver) Parent(values []string, level int) string {
	if level == 0 {
		return reference.Root
	}
	return values[level-1]
}

// Options — варианты уровня при текущем значении родительского уровня строки
func (r Resolver) Options(values []string, level int) []reference.Option {
	return r.catalog.OptionsFor(level, r.Parent(values, level))
}

// Admissible проверяет, что непустой code предлагается под родителем строки.
// Пустой code (очистка) допустим всегда.
func (r Resolver) Admissible(values []string, level int, code string) error {
	if code == "" {
		return nil
	}
	parent := r.Parent(values, level)
	if level > 0 && parent == "" {
		return fmt.Errorf("%w: level %d has no parent selected", ErrOptionUnavailable, level)
	}
	if !r.catalog.Contains(level, parent, code) {
		return fmt.Errorf("%w: %q is not offered at level %d under %q", ErrOptionUnavailable, code, level, parent)
	}
	return nil
}
