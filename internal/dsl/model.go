package dsl

import "strings"

// Hierarchy описывает цепочку зависимых полей строки (province → city → ...)
type Hierarchy struct {
	Module      string
	Name        string
	Levels      []Level
	Constraints Constraints
}

// Level описывает один уровень иерархии
type Level struct {
	Name    string
	Type    string            // пока только select
	Options map[string]string // required, unique, label, placeholder, message
}

type Constraints struct {
	Unique [][]string // unique(province) — по одному уровню в наборе
}

func (h *Hierarchy) FQN() string { return h.Module + "." + h.Name }

func (h *Hierarchy) Depth() int { return len(h.Levels) }

// LevelIndex ищет уровень по имени без учёта регистра
func (h *Hierarchy) LevelIndex(name string) (int, bool) {
	nl := strings.ToLower(strings.TrimSpace(name))
	for i, l := range h.Levels {
		if strings.ToLower(l.Name) == nl {
			return i, true
		}
	}
	return -1, false
}

// Unique: либо флаг на самом уровне, либо unique(<level>) в constraints
func (h *Hierarchy) Unique(i int) bool {
	if i < 0 || i >= len(h.Levels) {
		return false
	}
	l := h.Levels[i]
	if strings.EqualFold(l.Options["unique"], "true") {
		return true
	}
	for _, set := range h.Constraints.Unique {
		if len(set) == 1 && strings.EqualFold(set[0], l.Name) {
			return true
		}
	}
	return false
}

func (l Level) Required() bool { return strings.EqualFold(l.Options["required"], "true") }

func (l Level) Label() string {
	if v := l.Options["label"]; v != "" {
		return v
	}
	return l.Name
}

func (l Level) Placeholder() string { return l.Options["placeholder"] }

// Message — текст для незаполненного required-поля
func (l Level) Message() string {
	if v := l.Options["message"]; v != "" {
		return v
	}
	if p := l.Placeholder(); p != "" {
		return p
	}
	return "Field '" + l.Name + "' is required"
}
