package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

type seedReq struct {
	ID     string   `json:"id" binding:"required"`
	Values []string `json:"values" binding:"required"`
}

// POST /api/admin/seed {"id": ..., "values": [...]}
// Программная запись строки: уникальность не проверяется, дубликаты видны в _validate.
func SeedHandler(s *Session) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req seedReq
		if err := c.ShouldBindJSON(&req); err != nil {
			invalidJSON(c, err)
			return
		}
		ch, err := s.Seed(req.ID, req.Values)
		if err != nil {
			field := "values"
			if codeFor(err) == ErrNotFound {
				field = "id"
			}
			abortWithError(c, err, field)
			return
		}
		c.JSON(http.StatusOK, ch)
	}
}

// POST /api/admin/reload
// Перечитывает DSL и справочник, прогоняет линтер и подменяет таблицу целиком.
func ReloadHandler(s *Session) gin.HandlerFunc {
	return func(c *gin.Context) {
		h, cat, err := s.Reload(c.Request.Context())
		if err != nil {
			var lint *LintError
			switch {
			case errors.As(err, &lint):
				c.JSON(http.StatusBadRequest, gin.H{
					"error":  "schema has blocking issues",
					"issues": lint.Issues,
					"hint":   "fix DSL or catalog and retry",
				})
			case errors.Is(err, ErrReloadDisabled):
				c.JSON(http.StatusNotImplemented, gin.H{"error": err.Error()})
			default:
				c.JSON(http.StatusBadRequest, gin.H{"error": "reload failed", "details": err.Error()})
			}
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"ok":        true,
			"hierarchy": h.FQN(),
			"levels":    h.Depth(),
			"catalog":   cat.Name(),
			"options":   cat.Size(),
		})
	}
}
