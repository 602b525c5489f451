package api

import (
	"net/http"
	"strconv"

	"cascade/internal/grid"

	"github.com/gin-gonic/gin"
)

// GET /api/grid/rows?_limit&_offset
func ListRowsHandler(s *Session) gin.HandlerFunc {
	return func(c *gin.Context) {
		w := parseWindow(c.Request.URL.Query())
		rows, total := s.Rows(w.Offset, w.Limit)
		c.Header("X-Total-Count", strconv.Itoa(total))
		c.JSON(http.StatusOK, rows)
	}
}

// GET /api/grid/rows/:id
func GetRowHandler(s *Session) gin.HandlerFunc {
	return func(c *gin.Context) {
		row, err := s.Row(c.Param("id"))
		if err != nil {
			abortWithError(c, err, "id")
			return
		}
		c.JSON(http.StatusOK, row)
	}
}

type resizeReq struct {
	Rows *int `json:"rows" binding:"required,min=0"`
}

// PUT /api/grid/size {"rows": n}
func ResizeHandler(s *Session) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req resizeReq
		if err := c.ShouldBindJSON(&req); err != nil {
			invalidJSON(c, err)
			return
		}
		ch, err := s.Resize(*req.Rows)
		if err != nil {
			abortWithError(c, err, "rows")
			return
		}
		c.JSON(http.StatusOK, ch)
	}
}

type editReq struct {
	Code *string `json:"code"` // null или "" — очистить
}

// PATCH /api/grid/rows/:id/levels/:level {"code": "..."}
func EditHandler(s *Session) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req editReq
		if err := c.ShouldBindJSON(&req); err != nil {
			invalidJSON(c, err)
			return
		}
		code := ""
		if req.Code != nil {
			code = *req.Code
		}
		ch, err := s.Edit(c.Param("id"), c.Param("level"), code)
		if err != nil {
			field := "code"
			switch codeFor(err) {
			case ErrNotFound:
				field = "id"
			case ErrInvalidReference:
				field = "level"
			}
			abortWithError(c, err, field)
			return
		}
		c.JSON(http.StatusOK, ch)
	}
}

// GET /api/grid/rows/:id/levels/:level/options
func CellHandler(s *Session) gin.HandlerFunc {
	return func(c *gin.Context) {
		view, err := s.Cell(c.Param("id"), c.Param("level"))
		if err != nil {
			field := "level"
			if codeFor(err) == ErrNotFound {
				field = "id"
			}
			abortWithError(c, err, field)
			return
		}
		c.JSON(http.StatusOK, view)
	}
}

// GET /api/grid/_validate
func ValidateHandler(s *Session) gin.HandlerFunc {
	return func(c *gin.Context) {
		violations := s.Validate()
		if violations == nil {
			violations = []grid.Violation{}
		}
		c.JSON(http.StatusOK, gin.H{
			"ok":         len(violations) == 0,
			"violations": violations,
		})
	}
}

// GET /api/grid/events — websocket
func EventsHandler(s *Session) gin.HandlerFunc {
	return func(c *gin.Context) {
		s.Hub().Serve(c.Writer, c.Request, s.subscribe)
	}
}

// GET /api/perf
func PerfHandler(s *Session) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, s.Perf())
	}
}
