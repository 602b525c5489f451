package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"cascade/internal/dsl"
	"cascade/internal/grid"
	"cascade/internal/reference"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

const testDSL = `module geo

hierarchy region:
  province: select label="Province" required
  city:     select required message="pick a city"
  district: select
  constraints:
    unique(province)
`

func init() { gin.SetMode(gin.TestMode) }

func testHierarchy(t testing.TB, src string) *dsl.Hierarchy {
	t.Helper()
	hs, err := dsl.Parse(strings.NewReader(src))
	require.NoError(t, err)
	require.Len(t, hs, 1)
	return hs[0]
}

func testCatalog(t testing.TB, h *dsl.Hierarchy) *reference.Catalog {
	t.Helper()
	levels := make([]reference.GenLevel, 0, h.Depth())
	for _, l := range h.Levels {
		code := strings.ToUpper(l.Name[:1])
		levels = append(levels, reference.GenLevel{Code: code, Label: code})
	}
	cat, err := reference.Generate(h.FQN(), levels, 3, 2)
	require.NoError(t, err)
	return cat
}

func seqIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("r%d", n)
	}
}

func quietLogger() *log.Entry {
	l := log.New()
	l.SetOutput(io.Discard)
	return log.NewEntry(l)
}

type fixture struct {
	session *Session
	router  *gin.Engine
	reg     *prometheus.Registry
}

func newFixture(t testing.TB, mutate ...func(*SessionConfig)) *fixture {
	t.Helper()
	h := testHierarchy(t, testDSL)
	reg := prometheus.NewRegistry()
	cfg := SessionConfig{
		Sizes:       []int{2, 3, 5},
		InitialRows: 3,
		Registerer:  reg,
		Logger:      quietLogger(),
		GridOptions: []grid.Option{grid.WithIDSource(seqIDs())},
	}
	for _, m := range mutate {
		m(&cfg)
	}
	s, err := NewSession(h, testCatalog(t, h), cfg)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return &fixture{session: s, router: NewRouter(s, reg), reg: reg}
}

func (f *fixture) do(t testing.TB, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rd = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		rd = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, rd)
	if rd != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t testing.TB, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

type errorsBody struct {
	Errors []FieldError `json:"errors"`
}

func firstErrorCode(t testing.TB, w *httptest.ResponseRecorder) string {
	t.Helper()
	body := decode[errorsBody](t, w)
	require.NotEmpty(t, body.Errors, w.Body.String())
	return body.Errors[0].Code
}

func edit(code string) map[string]any { return map[string]any{"code": code} }

