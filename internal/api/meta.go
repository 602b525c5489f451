package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// ===== META =====

type metaLevel struct {
	Index       int               `json:"index"`
	Name        string            `json:"name"`
	Type        string            `json:"type"`
	Label       string            `json:"label"`
	Placeholder string            `json:"placeholder,omitempty"`
	Required    bool              `json:"required"`
	Unique      bool              `json:"unique"`
	Options     map[string]string `json:"options,omitempty"`
}

type MetaView struct {
	Module      string         `json:"module"`
	Hierarchy   string         `json:"hierarchy"`
	Depth       int            `json:"depth"`
	Levels      []metaLevel    `json:"levels"`
	Constraints map[string]any `json:"constraints,omitempty"` // {"unique":[["province"]]}
	Catalog     string         `json:"catalog"`
	Options     int            `json:"options"`
	Sizes       []int          `json:"sizes"`
	Rows        int            `json:"rows"`
}

func (s *Session) Meta() MetaView {
	s.mu.Lock()
	defer s.mu.Unlock()
	h := s.hierarchy

	levels := make([]metaLevel, 0, h.Depth())
	for i, l := range h.Levels {
		opts := make(map[string]string, len(l.Options))
		for k, v := range l.Options {
			opts[k] = v
		}
		levels = append(levels, metaLevel{
			Index:       i,
			Name:        l.Name,
			Type:        strings.ToLower(l.Type),
			Label:       l.Label(),
			Placeholder: l.Placeholder(),
			Required:    l.Required(),
			Unique:      h.Unique(i),
			Options:     opts,
		})
	}

	var constraints map[string]any
	if len(h.Constraints.Unique) > 0 {
		uniq := make([][]string, 0, len(h.Constraints.Unique))
		for _, set := range h.Constraints.Unique {
			uniq = append(uniq, append([]string(nil), set...))
		}
		constraints = map[string]any{"unique": uniq}
	}

	cat := s.ctrl.Catalog()
	return MetaView{
		Module:      h.Module,
		Hierarchy:   h.Name,
		Depth:       h.Depth(),
		Levels:      levels,
		Constraints: constraints,
		Catalog:     cat.Name(),
		Options:     cat.Size(),
		Sizes:       append([]int(nil), s.sizes...),
		Rows:        s.ctrl.RowCount(),
	}
}

// GET /api/meta
func MetaHandler(s *Session) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, s.Meta())
	}
}

// GET /api/catalog/:level?parent=
func CatalogHandler(s *Session) gin.HandlerFunc {
	return func(c *gin.Context) {
		parent := c.Query("parent")
		level, opts, err := s.Options(c.Param("level"), parent)
		if err != nil {
			abortWithError(c, err, "level")
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"level":   level,
			"parent":  parent,
			"options": opts,
		})
	}
}
