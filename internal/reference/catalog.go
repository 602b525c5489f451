package reference

import (
	"fmt"
	"sort"
	"strings"
)

// Root — родитель для вариантов нулевого уровня
const Root = ""

type scopedKey struct{ parent, code string }

// Catalog — неизменяемое дерево вариантов: (level, parent) → упорядоченный список.
// После Build только читается, конкурентное чтение без блокировок безопасно.
type Catalog struct {
	name     string
	children []map[string][]Option
	members  []map[scopedKey]int
	codes    []map[string]string // первый родитель кода на уровне
}

func (c *Catalog) Name() string { return c.name }

func (c *Catalog) Depth() int { return len(c.children) }

// OptionsFor возвращает варианты уровня для родителя. Для нулевого уровня
// родитель всегда Root. Неизвестный или пустой родитель — пустой список, не ошибка.
func (c *Catalog) OptionsFor(level int, parent string) []Option {
	if level < 0 || level >= len(c.children) {
		return nil
	}
	if level == 0 {
		parent = Root
	} else if parent == Root {
		return nil
	}
	opts := c.children[level][parent]
	return opts[:len(opts):len(opts)]
}

// Contains — предлагается ли code на уровне level под parent
func (c *Catalog) Contains(level int, parent, code string) bool {
	if level < 0 || level >= len(c.members) {
		return false
	}
	if level == 0 {
		parent = Root
	}
	_, ok := c.members[level][scopedKey{parent, code}]
	return ok
}

// Lookup находит вариант по коду на уровне (первое вхождение)
func (c *Catalog) Lookup(level int, code string) (Option, string, bool) {
	if level < 0 || level >= len(c.codes) {
		return Option{}, "", false
	}
	parent, ok := c.codes[level][code]
	if !ok {
		return Option{}, "", false
	}
	i := c.members[level][scopedKey{parent, code}]
	return c.children[level][parent][i], parent, true
}

// Entries — все узлы в стабильном порядке: уровень, родитель, позиция.
func (c *Catalog) Entries() []Entry {
	var out []Entry
	for level, byParent := range c.children {
		parents := make([]string, 0, len(byParent))
		for p := range byParent {
			parents = append(parents, p)
		}
		sort.Strings(parents)
		for _, p := range parents {
			for i, opt := range byParent[p] {
				out = append(out, Entry{Level: level, Parent: p, Ord: i, Option: opt})
			}
		}
	}
	return out
}

// Size — общее число вариантов
func (c *Catalog) Size() int {
	n := 0
	for _, m := range c.members {
		n += len(m)
	}
	return n
}

// ===== Builder =====

type Builder struct {
	name     string
	children []map[string][]Option
	members  []map[scopedKey]int
}

func NewBuilder(name string, depth int) *Builder {
	b := &Builder{
		name:     name,
		children: make([]map[string][]Option, depth),
		members:  make([]map[scopedKey]int, depth),
	}
	for i := 0; i < depth; i++ {
		b.children[i] = make(map[string][]Option)
		b.members[i] = make(map[scopedKey]int)
	}
	return b
}

// Add дописывает вариант в конец списка (level, parent).
func (b *Builder) Add(level int, parent string, opt Option) error {
	if level < 0 || level >= len(b.children) {
		return fmt.Errorf("level %d out of range [0, %d)", level, len(b.children))
	}
	k := scopedKey{parent, opt.Code}
	if _, dup := b.members[level][k]; dup {
		return fmt.Errorf("duplicate code %q under parent %q at level %d", opt.Code, parent, level)
	}
	b.members[level][k] = len(b.children[level][parent])
	b.children[level][parent] = append(b.children[level][parent], opt)
	return nil
}

// Build проверяет дерево и замораживает его. Builder после этого не используется.
func (b *Builder) Build() (*Catalog, error) {
	c := &Catalog{
		name:     b.name,
		children: b.children,
		members:  b.members,
		codes:    make([]map[string]string, len(b.children)),
	}
	for level := range c.children {
		c.codes[level] = make(map[string]string, len(c.members[level]))
	}
	for _, e := range c.Entries() {
		if _, ok := c.codes[e.Level][e.Option.Code]; !ok {
			c.codes[e.Level][e.Option.Code] = e.Parent
		}
	}
	if issues := Lint(c); len(issues) > 0 {
		return nil, &LintError{Catalog: b.name, Issues: issues}
	}
	b.children, b.members = nil, nil
	return c, nil
}

// ===== Lint =====

type Issue struct {
	Level   int    `json:"level"`
	Parent  string `json:"parent,omitempty"`
	Code    string `json:"code,omitempty"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

const (
	IssueOrphan     = "orphan"
	IssueRootParent = "root_parent"
	IssueEmptyCode  = "empty_code"
)

type LintError struct {
	Catalog string
	Issues  []Issue
}

func (e *LintError) Error() string {
	msgs := make([]string, 0, len(e.Issues))
	for _, it := range e.Issues {
		msgs = append(msgs, it.Message)
	}
	return fmt.Sprintf("catalog %q: %d issue(s): %s", e.Catalog, len(e.Issues), strings.Join(msgs, "; "))
}

// Lint: у каждого варианта ненулевого уровня родитель есть на предыдущем уровне.
func Lint(c *Catalog) []Issue {
	var issues []Issue
	for _, e := range c.Entries() {
		switch {
		case strings.TrimSpace(e.Option.Code) == "":
			issues = append(issues, Issue{
				Level: e.Level, Parent: e.Parent, Kind: IssueEmptyCode,
				Message: fmt.Sprintf("empty code under %q at level %d", e.Parent, e.Level),
			})
		case e.Level == 0 && e.Parent != Root:
			issues = append(issues, Issue{
				Level: e.Level, Parent: e.Parent, Code: e.Option.Code, Kind: IssueRootParent,
				Message: fmt.Sprintf("top-level option %q has parent %q", e.Option.Code, e.Parent),
			})
		case e.Level > 0:
			if _, ok := c.codes[e.Level-1][e.Parent]; !ok {
				issues = append(issues, Issue{
					Level: e.Level, Parent: e.Parent, Code: e.Option.Code, Kind: IssueOrphan,
					Message: fmt.Sprintf("option %q at level %d: parent %q not found at level %d", e.Option.Code, e.Level, e.Parent, e.Level-1),
				})
			}
		}
	}
	return issues
}
