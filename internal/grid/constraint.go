package grid

// Taken — коды уровня, занятые всеми строками кроме excluding. Полный проход, O(rows).
func Taken(rows []*Row, level int, excluding string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, r := range rows {
		if r.ID == excluding {
			continue
		}
		if v, ok := r.Value(level); ok {
			out[v] = struct{}{}
		}
	}
	return out
}

// Index — обратный индекс code → строки-владельцы для уникальных уровней.
// Поддерживается инкрементально, чтобы не сканировать большие таблицы на каждую правку.
type Index struct {
	owners []map[string]map[string]struct{} // level → code → row ids
}

func NewIndex(depth int) *Index {
	ix := &Index{owners: make([]map[string]map[string]struct{}, depth)}
	ix.Reset()
	return ix
}

func (ix *Index) Reset() {
	for i := range ix.owners {
		ix.owners[i] = make(map[string]map[string]struct{})
	}
}

// Move переносит владение строки rowID на уровне level с from на to
func (ix *Index) Move(level int, rowID, from, to string) {
	if from == to {
		return
	}
	m := ix.owners[level]
	if from != "" {
		if set := m[from]; set != nil {
			delete(set, rowID)
			if len(set) == 0 {
				delete(m, from)
			}
		}
	}
	if to != "" {
		set := m[to]
		if set == nil {
			set = make(map[string]struct{})
			m[to] = set
		}
		set[rowID] = struct{}{}
	}
}

// Taken — то же, что и функция Taken, но по индексу
func (ix *Index) Taken(level int, excluding string) map[string]struct{} {
	out := make(map[string]struct{})
	for code, set := range ix.owners[level] {
		if _, self := set[excluding]; self && len(set) == 1 {
			continue
		}
		out[code] = struct{}{}
	}
	return out
}

// HeldByOther — занят ли code на уровне кем-то кроме rowID
func (ix *Index) HeldByOther(level int, code, rowID string) bool {
	set := ix.owners[level][code]
	if _, self := set[rowID]; self {
		return len(set) > 1
	}
	return len(set) > 0
}
