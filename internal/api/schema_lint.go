// api/schema_lint.go
package api

import (
	"fmt"
	"strings"

	"cascade/internal/dsl"
	"cascade/internal/reference"
)

type SchemaIssue struct {
	Hierarchy string `json:"hierarchy"` // FQN: module.name
	Level     string `json:"level,omitempty"`
	Code      string `json:"code"`
	Message   string `json:"message"`
}

type LintError struct {
	Issues []SchemaIssue
}

func (e *LintError) Error() string {
	msgs := make([]string, 0, len(e.Issues))
	for _, it := range e.Issues {
		msgs = append(msgs, it.Message)
	}
	return fmt.Sprintf("schema has %d blocking issue(s): %s", len(e.Issues), strings.Join(msgs, "; "))
}

// LintHierarchy проверяет иерархию против справочника: глубина, типы уровней,
// ограничения unique.
func LintHierarchy(h *dsl.Hierarchy, cat *reference.Catalog) []SchemaIssue {
	var issues []SchemaIssue
	fqn := h.FQN()

	if cat.Depth() != h.Depth() {
		issues = append(issues, SchemaIssue{
			Hierarchy: fqn,
			Code:      "depth_mismatch",
			Message:   fmt.Sprintf("hierarchy has %d levels, catalog %q has %d", h.Depth(), cat.Name(), cat.Depth()),
		})
	}

	for _, l := range h.Levels {
		if !strings.EqualFold(l.Type, "select") {
			issues = append(issues, SchemaIssue{
				Hierarchy: fqn,
				Level:     l.Name,
				Code:      "type_unknown",
				Message:   fmt.Sprintf("level %q has type %q (allowed: select)", l.Name, l.Type),
			})
		}
	}

	for _, set := range h.Constraints.Unique {
		if len(set) != 1 {
			issues = append(issues, SchemaIssue{
				Hierarchy: fqn,
				Level:     strings.Join(set, ","),
				Code:      "unique_composite",
				Message:   fmt.Sprintf("unique(%s): only single-level uniqueness is supported", strings.Join(set, ", ")),
			})
			continue
		}
		if _, ok := h.LevelIndex(set[0]); !ok {
			issues = append(issues, SchemaIssue{
				Hierarchy: fqn,
				Level:     set[0],
				Code:      "unique_unknown_level",
				Message:   fmt.Sprintf("unique(%s): no such level", set[0]),
			})
		}
	}
	return issues
}
