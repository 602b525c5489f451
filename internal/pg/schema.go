package pg

import (
	"fmt"
	"strings"

	"cascade/internal/dsl"
)

var reserved = map[string]struct{}{
	"user": {}, "select": {}, "table": {}, "insert": {}, "update": {}, "delete": {},
	"where": {}, "join": {}, "group": {}, "order": {}, "limit": {}, "offset": {},
	"primary": {}, "foreign": {}, "key": {}, "constraint": {}, "default": {},
	"from": {}, "into": {}, "values": {}, "unique": {}, "index": {}, "create": {},
	"drop": {}, "alter": {}, "schema": {}, "grant": {}, "revoke": {},
}

func isReserved(s string) bool { _, ok := reserved[strings.ToLower(s)]; return ok }

// schema = module (lower); по умолчанию public
func safeSchema(module string) string {
	m := strings.ToLower(strings.TrimSpace(module))
	if m == "" {
		return "public"
	}
	return m
}

// таблица вариантов: <hierarchy>_options
func safeTable(hierarchy string) string {
	t := strings.ToLower(hierarchy) + "_options"
	if isReserved(t) {
		t = "h_" + t
	}
	return t
}

func sqlIdent(s string) string { return `"` + strings.ToLower(s) + `"` }

// Table — полное имя таблицы вариантов иерархии, уже в кавычках
func Table(h *dsl.Hierarchy) string {
	return sqlIdent(safeSchema(h.Module)) + "." + sqlIdent(safeTable(h.Name))
}

// GenerateDDL возвращает карту шаг → SQL: схема и таблица, затем индексы.
// Таблица хранит дерево вариантов построчно: (level, parent_code, code).
func GenerateDDL(h *dsl.Hierarchy) (map[string]string, error) {
	if h == nil || h.Depth() == 0 {
		return nil, fmt.Errorf("hierarchy has no levels")
	}
	mod := safeSchema(h.Module)
	tbl := safeTable(h.Name)
	out := make(map[string]string, 2)

	var a strings.Builder
	fmt.Fprintf(&a, "create schema if not exists %s;\n", sqlIdent(mod))
	cols := []string{
		fmt.Sprintf(`"level" integer not null check ("level" >= 0 and "level" < %d)`, h.Depth()),
		`"parent_code" text not null default ''`,
		`"code" text not null check ("code" <> '')`,
		`"label" text not null`,
		`"ord" integer not null default 0`,
		`primary key ("level", "parent_code", "code")`,
	}
	fmt.Fprintf(&a, "create table if not exists %s.%s (\n  %s\n);\n",
		sqlIdent(mod), sqlIdent(tbl), strings.Join(cols, ",\n  "))
	out["000_"+mod+"."+tbl] = a.String()

	// порядок выдачи вариантов внутри родителя
	out["100_"+mod+"."+tbl+"_ord"] = fmt.Sprintf(
		"create index if not exists %s on %s.%s(\"level\", \"parent_code\", \"ord\");\n",
		sqlIdent(tbl+"_ord_idx"), sqlIdent(mod), sqlIdent(tbl))

	return out, nil
}
