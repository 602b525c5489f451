package bench

import (
	"context"
	"time"

	"cascade/internal/api"
	"cascade/internal/client"
	"cascade/internal/grid"
)

// Local — прогон по сессии в том же процессе
type Local struct {
	Session *api.Session
}

func (l Local) Depth(context.Context) (int, error) { return l.Session.Meta().Depth, nil }

func (l Local) SetRowCount(_ context.Context, n int) error {
	_, err := l.Session.Resize(n)
	return err
}

func (l Local) RowIDs(context.Context, int) ([]string, error) { return l.Session.RowIDs(), nil }

func (l Local) Cell(_ context.Context, rowID string, level int) (*grid.CellView, error) {
	v, err := l.Session.Cell(rowID, levelRef(level))
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (l Local) Edit(_ context.Context, rowID string, level int, code string) error {
	_, err := l.Session.Edit(rowID, levelRef(level), code)
	return err
}

func (l Local) LastLatency(context.Context) (time.Duration, uint64, error) {
	p := l.Session.Probe()
	d, _ := p.Last()
	return d, p.Count(), nil
}

// Remote — прогон по серверу через HTTP API
type Remote struct {
	Client *client.Client
}

func (r Remote) Depth(ctx context.Context) (int, error) {
	m, err := r.Client.Meta(ctx)
	if err != nil {
		return 0, err
	}
	return m.Depth, nil
}

func (r Remote) SetRowCount(ctx context.Context, n int) error {
	_, err := r.Client.SetRowCount(ctx, n)
	return err
}

func (r Remote) RowIDs(ctx context.Context, n int) ([]string, error) {
	rows, _, err := r.Client.Rows(ctx, 0, n)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		if id, ok := row["id"].(string); ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (r Remote) Cell(ctx context.Context, rowID string, level int) (*grid.CellView, error) {
	return r.Client.Cell(ctx, rowID, levelRef(level))
}

func (r Remote) Edit(ctx context.Context, rowID string, level int, code string) error {
	_, err := r.Client.EditField(ctx, rowID, levelRef(level), code)
	return err
}

func (r Remote) LastLatency(ctx context.Context) (time.Duration, uint64, error) {
	p, err := r.Client.Perf(ctx)
	if err != nil {
		return 0, 0, err
	}
	var d time.Duration
	if p.LastMs != nil {
		d = time.Duration(*p.LastMs * float64(time.Millisecond))
	}
	return d, p.Count, nil
}
