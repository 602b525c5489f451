package api

import (
	"cascade/internal/grid"
)

// flatten — строка в плоском виде: id, label и значения по именам уровней.
// Незаполненный уровень отдаётся как null.
func (s *Session) flatten(r grid.Row) map[string]any {
	out := map[string]any{
		"id":    r.ID,
		"label": r.Label,
	}
	for level, v := range r.Values {
		name := s.levelName(level)
		// имя уровня не перетирает служебные поля
		if _, clash := out[name]; clash {
			name = "level." + name
		}
		if v == "" {
			out[name] = nil
			continue
		}
		out[name] = v
	}
	return out
}
