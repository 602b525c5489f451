package reference

import "fmt"

// GenLevel — код-префикс и подпись уровня синтетического справочника
type GenLevel struct {
	Code  string // province → province1, province1-city2, ...
	Label string // 省 → 省1, 省1市2, ...
}

// Generate строит синтетический справочник как в демо: roots вариантов на
// верхнем уровне и по fanout детей у каждого узла.
func Generate(name string, levels []GenLevel, roots, fanout int) (*Catalog, error) {
	if len(levels) == 0 {
		return nil, fmt.Errorf("generate %q: no levels", name)
	}
	if roots <= 0 || fanout <= 0 {
		return nil, fmt.Errorf("generate %q: roots and fanout must be positive", name)
	}
	b := NewBuilder(name, len(levels))

	parents := make([]Option, 0, roots)
	for i := 1; i <= roots; i++ {
		opt := Option{
			Code:  fmt.Sprintf("%s%d", levels[0].Code, i),
			Label: fmt.Sprintf("%s%d", levels[0].Label, i),
		}
		if err := b.Add(0, Root, opt); err != nil {
			return nil, err
		}
		parents = append(parents, opt)
	}

	for level := 1; level < len(levels); level++ {
		next := make([]Option, 0, len(parents)*fanout)
		for _, p := range parents {
			for n := 1; n <= fanout; n++ {
				opt := Option{
					Code:  fmt.Sprintf("%s-%s%d", p.Code, levels[level].Code, n),
					Label: fmt.Sprintf("%s%s%d", p.Label, levels[level].Label, n),
				}
				if err := b.Add(level, p.Code, opt); err != nil {
					return nil, err
				}
				next = append(next, opt)
			}
		}
		parents = next
	}
	return b.Build()
}
