package reference

// Option — один выбираемый вариант уровня
type Option struct {
	Code  string `json:"code" yaml:"code"`
	Label string `json:"label" yaml:"label"`
}

// Entry — плоское представление узла справочника (так он лежит в Postgres)
type Entry struct {
	Level  int    `json:"level"`
	Parent string `json:"parent"`
	Ord    int    `json:"ord"`
	Option Option `json:"option"`
}

// File описывает YAML-справочник: вложенное дерево вариантов
type File struct {
	Name  string `yaml:"name"`
	Depth int    `yaml:"depth,omitempty"` // 0 — по глубине дерева
	Items []Item `yaml:"items"`
}

type Item struct {
	Code     string `yaml:"code"`
	Label    string `yaml:"label"`
	Order    int    `yaml:"order,omitempty"`
	Children []Item `yaml:"children,omitempty"`
}
