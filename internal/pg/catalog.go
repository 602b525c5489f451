package pg

import (
	"context"
	"database/sql"
	"fmt"

	"cascade/internal/dsl"
	"cascade/internal/reference"

	log "github.com/sirupsen/logrus"
)

// LoadCatalog читает дерево вариантов иерархии и собирает справочник.
// Строки глубже иерархии игнорируются схемой (check на level).
func LoadCatalog(ctx context.Context, db *sql.DB, h *dsl.Hierarchy) (*reference.Catalog, error) {
	q := fmt.Sprintf(`select "level", "parent_code", "code", "label" from %s order by "level", "parent_code", "ord", "code"`, Table(h))
	rows, err := db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("load catalog %s: %w", h.FQN(), err)
	}
	defer rows.Close()

	b := reference.NewBuilder(h.FQN(), h.Depth())
	n := 0
	for rows.Next() {
		var level int
		var parent, code, label string
		if err := rows.Scan(&level, &parent, &code, &label); err != nil {
			return nil, err
		}
		if label == "" {
			label = code
		}
		if err := b.Add(level, parent, reference.Option{Code: code, Label: label}); err != nil {
			return nil, err
		}
		n++
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	cat, err := b.Build()
	if err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{"hierarchy": h.FQN(), "options": n}).Info("catalog loaded from postgres")
	return cat, nil
}

// SeedCatalog заменяет содержимое таблицы справочником cat в одной транзакции.
func SeedCatalog(ctx context.Context, db *sql.DB, h *dsl.Hierarchy, cat *reference.Catalog) error {
	if cat.Depth() != h.Depth() {
		return fmt.Errorf("seed %s: catalog depth %d, hierarchy depth %d", h.FQN(), cat.Depth(), h.Depth())
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	tbl := Table(h)
	if _, err := tx.ExecContext(ctx, "delete from "+tbl); err != nil {
		return fmt.Errorf("seed %s: %w", h.FQN(), err)
	}
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
		`insert into %s ("level", "parent_code", "code", "label", "ord") values ($1, $2, $3, $4, $5)`, tbl))
	if err != nil {
		return err
	}
	defer stmt.Close()

	entries := cat.Entries()
	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx, e.Level, e.Parent, e.Option.Code, e.Option.Label, e.Ord); err != nil {
			return fmt.Errorf("seed %s: insert %q: %w", h.FQN(), e.Option.Code, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	log.WithFields(log.Fields{"hierarchy": h.FQN(), "options": len(entries)}).Info("catalog seeded")
	return nil
}

// CatalogEmpty — нет ни одной строки в таблице вариантов
func CatalogEmpty(ctx context.Context, db *sql.DB, h *dsl.Hierarchy) (bool, error) {
	var exists bool
	err := db.QueryRowContext(ctx, "select exists (select 1 from "+Table(h)+")").Scan(&exists)
	return !exists, err
}
