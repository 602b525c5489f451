// Package client — HTTP-клиент API таблицы (удалённый bench, скрипты).
package client

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"cascade/internal/api"
	"cascade/internal/grid"
	"cascade/internal/reference"

	"resty.dev/v3"
)

// APIError — ответ сервера с конвертом {"errors":[...]}
type APIError struct {
	Status int              `json:"-"`
	Errors []api.FieldError `json:"errors"`
}

func (e *APIError) Error() string {
	if len(e.Errors) == 0 {
		return fmt.Sprintf("api: status %d", e.Status)
	}
	msgs := make([]string, 0, len(e.Errors))
	for _, fe := range e.Errors {
		msgs = append(msgs, fe.Code+": "+fe.Message)
	}
	return fmt.Sprintf("api: status %d: %s", e.Status, strings.Join(msgs, "; "))
}

// Code — код первой ошибки
func (e *APIError) Code() string {
	if len(e.Errors) == 0 {
		return ""
	}
	return e.Errors[0].Code
}

type Client struct {
	http *resty.Client
}

func New(baseURL string) *Client {
	c := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(10*time.Second).
		SetRetryCount(0).
		SetHeader("Accept", "application/json")
	return &Client{http: c}
}

func (c *Client) Close() error { return c.http.Close() }

func (c *Client) do(req *resty.Request, method, url string) (*resty.Response, error) {
	apiErr := &APIError{}
	resp, err := req.SetError(apiErr).Execute(method, url)
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		apiErr.Status = resp.StatusCode()
		return resp, apiErr
	}
	return resp, nil
}

func (c *Client) Meta(ctx context.Context) (*api.MetaView, error) {
	var out api.MetaView
	if _, err := c.do(c.http.R().SetContext(ctx).SetResult(&out), resty.MethodGet, "/api/meta"); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Options(ctx context.Context, level, parent string) ([]reference.Option, error) {
	var out struct {
		Options []reference.Option `json:"options"`
	}
	req := c.http.R().SetContext(ctx).SetResult(&out).
		SetPathParam("level", level).
		SetQueryParam("parent", parent)
	if _, err := c.do(req, resty.MethodGet, "/api/catalog/{level}"); err != nil {
		return nil, err
	}
	return out.Options, nil
}

// Rows — окно строк и X-Total-Count
func (c *Client) Rows(ctx context.Context, offset, limit int) ([]map[string]any, int, error) {
	var out []map[string]any
	req := c.http.R().SetContext(ctx).SetResult(&out).
		SetQueryParam("_offset", strconv.Itoa(offset)).
		SetQueryParam("_limit", strconv.Itoa(limit))
	resp, err := c.do(req, resty.MethodGet, "/api/grid/rows")
	if err != nil {
		return nil, 0, err
	}
	total, _ := strconv.Atoi(resp.Header().Get("X-Total-Count"))
	return out, total, nil
}

func (c *Client) SetRowCount(ctx context.Context, n int) (*grid.Change, error) {
	var out grid.Change
	req := c.http.R().SetContext(ctx).SetResult(&out).SetBody(map[string]int{"rows": n})
	if _, err := c.do(req, resty.MethodPut, "/api/grid/size"); err != nil {
		return nil, err
	}
	return &out, nil
}

// EditField: пустой code очищает ячейку
func (c *Client) EditField(ctx context.Context, rowID, level, code string) (*grid.Change, error) {
	var out grid.Change
	req := c.http.R().SetContext(ctx).SetResult(&out).
		SetPathParam("id", rowID).
		SetPathParam("level", level).
		SetBody(map[string]string{"code": code})
	if _, err := c.do(req, resty.MethodPatch, "/api/grid/rows/{id}/levels/{level}"); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Cell(ctx context.Context, rowID, level string) (*grid.CellView, error) {
	var out grid.CellView
	req := c.http.R().SetContext(ctx).SetResult(&out).
		SetPathParam("id", rowID).
		SetPathParam("level", level)
	if _, err := c.do(req, resty.MethodGet, "/api/grid/rows/{id}/levels/{level}/options"); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Perf(ctx context.Context) (*api.PerfView, error) {
	var out api.PerfView
	if _, err := c.do(c.http.R().SetContext(ctx).SetResult(&out), resty.MethodGet, "/api/perf"); err != nil {
		return nil, err
	}
	return &out, nil
}
