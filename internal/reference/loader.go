package reference

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadFile читает YAML-справочник с вложенным деревом вариантов
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c, err := Parse(data, strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// LoadDir читает все *.yaml / *.yml из папки. Имя справочника — из поля name или из имени файла.
func LoadDir(dir string) (map[string]*Catalog, error) {
	result := make(map[string]*Catalog)
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	for _, file := range files {
		ext := strings.ToLower(filepath.Ext(file.Name()))
		if file.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		c, err := LoadFile(filepath.Join(dir, file.Name()))
		if err != nil {
			return nil, err
		}
		if _, dup := result[c.Name()]; dup {
			return nil, fmt.Errorf("duplicate catalog %q in %s", c.Name(), dir)
		}
		result[c.Name()] = c
	}
	return result, nil
}

// Parse разбирает YAML; fallbackName используется, если в файле нет name.
func Parse(data []byte, fallbackName string) (*Catalog, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	if f.Name == "" {
		f.Name = fallbackName
	}
	return f.Build()
}

// Build превращает дерево в Catalog
func (f *File) Build() (*Catalog, error) {
	depth := treeDepth(f.Items)
	if f.Depth != 0 {
		if f.Depth < depth {
			return nil, fmt.Errorf("catalog %q: declared depth %d, tree is %d levels deep", f.Name, f.Depth, depth)
		}
		depth = f.Depth
	}
	b := NewBuilder(f.Name, depth)
	if err := addItems(b, 0, Root, f.Items); err != nil {
		return nil, fmt.Errorf("catalog %q: %w", f.Name, err)
	}
	return b.Build()
}

func addItems(b *Builder, level int, parent string, items []Item) error {
	sorted := append([]Item(nil), items...)
	// order задаёт позицию, при равенстве — порядок в файле
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Order < sorted[j].Order })
	for _, it := range sorted {
		label := it.Label
		if label == "" {
			label = it.Code
		}
		if err := b.Add(level, parent, Option{Code: it.Code, Label: label}); err != nil {
			return err
		}
		if len(it.Children) > 0 {
			if err := addItems(b, level+1, it.Code, it.Children); err != nil {
				return err
			}
		}
	}
	return nil
}

func treeDepth(items []Item) int {
	deepest := 0
	for _, it := range items {
		if d := 1 + treeDepth(it.Children); d > deepest {
			deepest = d
		}
	}
	return deepest
}

// ToFile — обратное преобразование, нужно для выгрузки справочника в YAML
func ToFile(c *Catalog) *File {
	f := &File{Name: c.Name(), Depth: c.Depth()}
	f.Items = toItems(c, 0, Root)
	return f
}

func toItems(c *Catalog, level int, parent string) []Item {
	opts := c.OptionsFor(level, parent)
	if len(opts) == 0 {
		return nil
	}
	out := make([]Item, 0, len(opts))
	for _, o := range opts {
		out = append(out, Item{Code: o.Code, Label: o.Label, Children: toItems(c, level+1, o.Code)})
	}
	return out
}

// Marshal сериализует справочник в YAML
func Marshal(c *Catalog) ([]byte, error) {
	return yaml.Marshal(ToFile(c))
}
