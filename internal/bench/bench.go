// Package bench прогоняет случайные правки по таблицам разных размеров и
// собирает задержку правка → кадр, как её видит Probe.
package bench

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"strconv"
	"time"

	"cascade/internal/grid"

	log "github.com/sirupsen/logrus"
)

// Target — таблица, по которой идёт прогон: локальная сессия или сервер по HTTP
type Target interface {
	Depth(ctx context.Context) (int, error)
	SetRowCount(ctx context.Context, n int) error
	RowIDs(ctx context.Context, n int) ([]string, error)
	Cell(ctx context.Context, rowID string, level int) (*grid.CellView, error)
	Edit(ctx context.Context, rowID string, level int, code string) error
	// LastLatency — последнее измерение Probe и общее их число
	LastLatency(ctx context.Context) (time.Duration, uint64, error)
}

type Stats struct {
	Mean time.Duration `json:"mean"`
	P50  time.Duration `json:"p50"`
	P95  time.Duration `json:"p95"`
	Max  time.Duration `json:"max"`
}

type Result struct {
	Rows      int   `json:"rows"`
	Edits     int   `json:"edits"`
	Rejected  int   `json:"rejected"`
	Measured  int   `json:"measured"`
	Latency   Stats `json:"latency"`    // по Probe
	RoundTrip Stats `json:"round_trip"` // вызов Edit целиком
}

type Options struct {
	Sizes []int
	Edits int
	Seed  int64
}

// Run — для каждого размера: пересобрать таблицу и сделать Edits случайных допустимых правок.
func Run(ctx context.Context, t Target, o Options) ([]Result, error) {
	if o.Edits <= 0 {
		return nil, fmt.Errorf("bench: edits must be positive")
	}
	depth, err := t.Depth(ctx)
	if err != nil {
		return nil, err
	}
	rnd := rand.New(rand.NewSource(o.Seed))

	out := make([]Result, 0, len(o.Sizes))
	for _, n := range o.Sizes {
		res, err := runSize(ctx, t, rnd, depth, n, o.Edits)
		if err != nil {
			return out, fmt.Errorf("bench %d rows: %w", n, err)
		}
		log.WithFields(log.Fields{
			"rows": n, "edits": res.Edits, "p50": res.Latency.P50, "p95": res.Latency.P95,
		}).Info("bench size done")
		out = append(out, res)
	}
	return out, nil
}

func runSize(ctx context.Context, t Target, rnd *rand.Rand, depth, n, edits int) (Result, error) {
	if err := t.SetRowCount(ctx, n); err != nil {
		return Result{}, err
	}
	ids, err := t.RowIDs(ctx, n)
	if err != nil {
		return Result{}, err
	}
	if len(ids) == 0 {
		return Result{Rows: n}, nil
	}
	_, seen, err := t.LastLatency(ctx)
	if err != nil {
		return Result{}, err
	}

	res := Result{Rows: n}
	var latency, trip []time.Duration
	for i := 0; i < edits; i++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		row := ids[rnd.Intn(len(ids))]
		level := rnd.Intn(depth)
		code, err := pick(ctx, t, rnd, row, level)
		if err != nil {
			return res, err
		}

		start := time.Now()
		err = t.Edit(ctx, row, level, code)
		trip = append(trip, time.Since(start))
		res.Edits++
		if err != nil {
			// гонка с другим клиентом за уникальный вариант — не фатально
			res.Rejected++
		}

		d, count, err := t.LastLatency(ctx)
		if err != nil {
			return res, err
		}
		if count > seen {
			latency = append(latency, d)
			seen = count
		}
	}
	res.Measured = len(latency)
	res.Latency = summarize(latency)
	res.RoundTrip = summarize(trip)
	return res, nil
}

// pick выбирает доступный вариант; если выбрать нечего — очистка ячейки
func pick(ctx context.Context, t Target, rnd *rand.Rand, row string, level int) (string, error) {
	view, err := t.Cell(ctx, row, level)
	if err != nil {
		return "", err
	}
	free := make([]string, 0, len(view.Options))
	for _, o := range view.Options {
		if !o.Disabled {
			free = append(free, o.Code)
		}
	}
	if len(free) == 0 {
		return "", nil
	}
	return free[rnd.Intn(len(free))], nil
}

func summarize(ds []time.Duration) Stats {
	if len(ds) == 0 {
		return Stats{}
	}
	sorted := append([]time.Duration(nil), ds...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	var sum time.Duration
	for _, d := range sorted {
		sum += d
	}
	return Stats{
		Mean: sum / time.Duration(len(sorted)),
		P50:  percentile(sorted, 50),
		P95:  percentile(sorted, 95),
		Max:  sorted[len(sorted)-1],
	}
}

// percentile по отсортированному срезу, nearest-rank
func percentile(sorted []time.Duration, p int) time.Duration {
	rank := (p*len(sorted) + 99) / 100
	if rank < 1 {
		rank = 1
	}
	return sorted[rank-1]
}

func levelRef(level int) string { return strconv.Itoa(level) }
