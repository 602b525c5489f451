package dsl

import (
	"bufio"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	hierarchyRe        = regexp.MustCompile(`^hierarchy\s+(\w+):`)
	levelRe            = regexp.MustCompile(`^\s*([\w_]+):\s*([^\s#]+)(.*)$`)
	moduleRe           = regexp.MustCompile(`^\s*module\s+([A-Za-z0-9_.-]+)\s*$`)
	reConstraintsStart = regexp.MustCompile(`^\s*constraints\s*:\s*$`)
	reUniqueLine       = regexp.MustCompile(`^\s*unique\s*\(\s*([^)]+)\s*\)\s*$`)
)

// DefaultSource — иерархия из демо-таблицы: пять уровней, провинция уникальна по строкам.
const DefaultSource = `module geo

hierarchy region:
  province: select label="省" placeholder="请选择省份" required
  city:     select label="市" placeholder="请选择市" required
  district: select label="区" placeholder="请选择区" required
  street:   select label="街道"
  village:  select label="村"
  constraints:
    unique(province)
`

// Default разбирает DefaultSource. Ошибка здесь — баг в константе.
func Default() *Hierarchy {
	hs, err := Parse(strings.NewReader(DefaultSource))
	if err != nil || len(hs) != 1 {
		panic(fmt.Sprintf("dsl: default hierarchy: %v", err))
	}
	return hs[0]
}

// splitOptionTokens делит `label="省 1" placeholder='x y' required` на токены,
// не рвёт по пробелам внутри кавычек
func splitOptionTokens(s string) []string {
	var out []string
	var buf []rune
	inSingle, inDouble := false, false

	flush := func() {
		if len(buf) > 0 {
			out = append(out, string(buf))
			buf = buf[:0]
		}
	}

	for _, r := range s {
		switch r {
		case '\'':
			if !inDouble {
				inSingle = !inSingle
			}
			buf = append(buf, r)
		case '"':
			if !inSingle {
				inDouble = !inDouble
			}
			buf = append(buf, r)
		default:
			if (r == ' ' || r == '\t') && !inSingle && !inDouble {
				flush()
				continue
			}
			buf = append(buf, r)
		}
	}
	flush()
	return out
}

// LoadHierarchies читает один .dsl файл
func LoadHierarchies(path string) ([]*Hierarchy, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return Parse(file)
}

// Parse разбирает DSL построчно: module, hierarchy, уровни, блок constraints.
func Parse(r io.Reader) ([]*Hierarchy, error) {
	var out []*Hierarchy
	var current *Hierarchy
	currentModule := ""
	inConstraints := false
	lineNo := 0

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if m := moduleRe.FindStringSubmatch(line); m != nil {
			currentModule = m[1]
			continue
		}

		if m := hierarchyRe.FindStringSubmatch(line); m != nil {
			if current != nil {
				out = append(out, current)
			}
			current = &Hierarchy{Name: m[1], Module: currentModule}
			inConstraints = false
			continue
		}
		if current == nil {
			continue
		}

		if reConstraintsStart.MatchString(line) {
			inConstraints = true
			continue
		}

		if inConstraints {
			if m := reUniqueLine.FindStringSubmatch(line); m != nil {
				parts := strings.Split(m[1], ",")
				set := make([]string, 0, len(parts))
				for _, p := range parts {
					p = strings.TrimSpace(p)
					if p != "" {
						set = append(set, p)
					}
				}
				if len(set) > 0 {
					current.Constraints.Unique = append(current.Constraints.Unique, set)
				}
				continue
			}
			// любая другая строка закрывает блок
			inConstraints = false
		}

		m := levelRe.FindStringSubmatch(line)
		if m == nil {
			return nil, fmt.Errorf("line %d: cannot parse %q", lineNo, line)
		}
		name, typ, tail := m[1], strings.ToLower(strings.TrimRight(m[2], ",")), m[3]

		optsRaw := strings.TrimSpace(tail)
		if i := strings.IndexByte(optsRaw, '#'); i >= 0 {
			optsRaw = strings.TrimSpace(optsRaw[:i])
		}
		if strings.HasPrefix(strings.ToLower(optsRaw), "options:") {
			optsRaw = strings.TrimSpace(optsRaw[len("options:"):])
		}
		optsRaw = strings.ReplaceAll(optsRaw, ",", " ")

		lvl := Level{Name: name, Type: typ, Options: map[string]string{}}
		for _, tok := range splitOptionTokens(optsRaw) {
			tok = strings.TrimSpace(tok)
			if tok == "" {
				continue
			}
			// флаг без значения → "true"
			if !strings.Contains(tok, "=") {
				lvl.Options[strings.ToLower(tok)] = "true"
				continue
			}
			kv := strings.SplitN(tok, "=", 2)
			k := strings.ToLower(strings.TrimSpace(kv[0]))
			v := strings.TrimSpace(kv[1])
			if len(v) >= 2 {
				if (v[0] == '"' && v[len(v)-1] == '"') || (v[0] == '\'' && v[len(v)-1] == '\'') {
					v = v[1 : len(v)-1]
				}
			}
			if k != "" {
				lvl.Options[k] = v
			}
		}
		if _, dup := current.LevelIndex(name); dup {
			return nil, fmt.Errorf("line %d: duplicate level %q in hierarchy %q", lineNo, name, current.Name)
		}
		current.Levels = append(current.Levels, lvl)
	}

	if current != nil {
		out = append(out, current)
	}
	return out, scanner.Err()
}

// LoadAll обходит root и собирает все иерархии по FQN ("module.name").
func LoadAll(root string) (map[string]*Hierarchy, error) {
	result := make(map[string]*Hierarchy)

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(d.Name()), ".dsl") {
			return nil
		}

		hs, err := LoadHierarchies(path)
		if err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
		for _, h := range hs {
			if h.Module == "" {
				return fmt.Errorf("hierarchy %q in %s has no module, add `module <name>` at the top", h.Name, path)
			}
			if len(h.Levels) == 0 {
				return fmt.Errorf("hierarchy %q in %s has no levels", h.Name, path)
			}
			if _, exists := result[h.FQN()]; exists {
				return fmt.Errorf("duplicate hierarchy %q in module %q (file: %s)", h.Name, h.Module, path)
			}
			result[h.FQN()] = h
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Find возвращает иерархию по имени или FQN; пустое имя допустимо, если она одна.
func Find(all map[string]*Hierarchy, name string) (*Hierarchy, bool) {
	if h, ok := all[name]; ok {
		return h, true
	}
	var found *Hierarchy
	for _, h := range all {
		if name == "" || strings.EqualFold(h.Name, name) || strings.EqualFold(h.FQN(), name) {
			if found != nil {
				return nil, false // неоднозначно
			}
			found = h
		}
	}
	return found, found != nil
}
