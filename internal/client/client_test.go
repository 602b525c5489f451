package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"cascade/internal/api"
	"cascade/internal/dsl"
	"cascade/internal/grid"
	"cascade/internal/reference"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T) (*Client, *api.Session) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	h := dsl.Default()
	cat, err := reference.Generate(h.FQN(), []reference.GenLevel{
		{Code: "province", Label: "省"}, {Code: "city", Label: "市"}, {Code: "district", Label: "区"},
		{Code: "street", Label: "街道"}, {Code: "village", Label: "村"},
	}, 3, 2)
	require.NoError(t, err)

	logger := log.New()
	logger.SetOutput(io.Discard)
	n := 0
	s, err := api.NewSession(h, cat, api.SessionConfig{
		Sizes:       []int{10, 20},
		InitialRows: 10,
		Logger:      log.NewEntry(logger),
		GridOptions: []grid.Option{grid.WithIDSource(func() string { n++; return fmt.Sprintf("row%d", n) })},
	})
	require.NoError(t, err)

	srv := httptest.NewServer(api.NewRouter(s, nil))
	c := New(srv.URL + "/")
	t.Cleanup(func() {
		_ = c.Close()
		s.Close()
		srv.Close()
	})
	return c, s
}

func TestClientRoundTrip(t *testing.T) {
	c, _ := newServer(t)
	ctx := context.Background()

	meta, err := c.Meta(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, meta.Depth)
	assert.Equal(t, 10, meta.Rows)

	opts, err := c.Options(ctx, "province", "")
	require.NoError(t, err)
	require.Len(t, opts, 3)
	assert.Equal(t, reference.Option{Code: "province1", Label: "省1"}, opts[0])

	rows, total, err := c.Rows(ctx, 0, 3)
	require.NoError(t, err)
	assert.Equal(t, 10, total)
	require.Len(t, rows, 3)
	assert.Equal(t, "row1", rows[0]["id"])

	ch, err := c.EditField(ctx, "row1", "province", "province2")
	require.NoError(t, err)
	assert.Equal(t, grid.ChangeEdit, ch.Kind)
	assert.Len(t, ch.Cells, 5+9, "own row plus province in the other rows")

	ch, err = c.EditField(ctx, "row1", "city", "province2-city1")
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3, 4}, ch.Cleared)

	cell, err := c.Cell(ctx, "row2", "0")
	require.NoError(t, err)
	require.Len(t, cell.Options, 3)
	assert.True(t, cell.Options[1].Disabled)

	p, err := c.Perf(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), p.Count)

	ch, err = c.SetRowCount(ctx, 20)
	require.NoError(t, err)
	assert.Equal(t, 20, ch.Rows)
}

func TestClientErrors(t *testing.T) {
	c, _ := newServer(t)
	ctx := context.Background()

	_, err := c.EditField(ctx, "row1", "province", "province1")
	require.NoError(t, err)

	_, err = c.EditField(ctx, "row2", "province", "province1")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr), "%v", err)
	assert.Equal(t, http.StatusConflict, apiErr.Status)
	assert.Equal(t, api.ErrUniqueViolation, apiErr.Code())
	assert.True(t, strings.Contains(apiErr.Error(), "unique_violation"))

	_, err = c.SetRowCount(ctx, 13)
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, api.ErrSizeNotAllowed, apiErr.Code())

	_, err = c.Cell(ctx, "ghost", "city")
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
}
