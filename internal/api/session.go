package api

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"cascade/internal/dsl"
	"cascade/internal/grid"
	"cascade/internal/perf"
	"cascade/internal/reference"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
)

var (
	ErrRowNotFound        = errors.New("row not found")
	ErrRowCountNotAllowed = errors.New("row count not allowed")
	ErrReloadDisabled     = errors.New("reload is not configured")
	errUnknownLevelRef    = fmt.Errorf("%w: unknown level", grid.ErrInvalidReference)
)

// Reloader заново читает иерархию и справочник (admin reload)
type Reloader func(ctx context.Context) (*dsl.Hierarchy, *reference.Catalog, error)

type SessionConfig struct {
	Sizes        []int
	InitialRows  int
	ReverseIndex bool
	// FrameDriven: кадры тикает FrameLoop.Run; иначе кадр — сразу после рассылки перерисовки
	FrameDriven bool
	Registerer  prometheus.Registerer
	Reload      Reloader
	Logger      *log.Entry
	Clock       func() time.Time
	Render      *perf.RenderTimer
	GridOptions []grid.Option
}

// Session — хост таблицы: владеет контроллером и сериализует к нему доступ.
// Один захват mu — один логический ход: правка, рассылка перерисовки, кадр.
type Session struct {
	mu          sync.Mutex
	hierarchy   *dsl.Hierarchy
	ctrl        *grid.Controller
	unsubscribe func()

	sizes        []int
	initialRows  int
	reverseIndex bool
	gridOpts     []grid.Option
	reload       Reloader

	frames      *perf.FrameLoop
	frameDriven bool
	probe       *perf.Probe
	render      *perf.RenderTimer
	metrics     *perf.Metrics
	hub         *Hub
	log         *log.Entry
}

func NewSession(h *dsl.Hierarchy, cat *reference.Catalog, cfg SessionConfig) (*Session, error) {
	if len(cfg.Sizes) == 0 {
		return nil, fmt.Errorf("session: no allowed sizes")
	}
	if !slices.Contains(cfg.Sizes, cfg.InitialRows) {
		return nil, fmt.Errorf("session: initial rows %d not in %v", cfg.InitialRows, cfg.Sizes)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	render := cfg.Render
	if render == nil {
		render = perf.StartRenderTimer(clock)
	}

	s := &Session{
		sizes:        append([]int(nil), cfg.Sizes...),
		initialRows:  cfg.InitialRows,
		reverseIndex: cfg.ReverseIndex,
		gridOpts:     cfg.GridOptions,
		reload:       cfg.Reload,
		frames:       perf.NewFrameLoop(clock),
		frameDriven:  cfg.FrameDriven,
		render:       render,
		metrics:      perf.NewMetrics(cfg.Registerer),
		hub:          NewHub(logger.WithField("component", "hub")),
		log:          logger,
	}
	s.probe = perf.NewProbe(s.frames, perf.WithClock(clock), perf.WithObserver(s.metrics.InputLatencySeconds))

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.installLocked(h, cat, cfg.InitialRows); err != nil {
		return nil, err
	}
	// первая стабильная отрисовка — первый кадр после построения таблицы
	s.frames.RequestFrame(func(time.Time) {
		if d, first := s.render.Stop(); first {
			s.metrics.FirstRenderSeconds.Set(d.Seconds())
			s.log.WithField("first_render", d).Info("grid rendered")
		}
	})
	s.endTurnLocked()
	return s, nil
}

// RulesFor переводит уровни иерархии в правила таблицы
func RulesFor(h *dsl.Hierarchy) []grid.Rule {
	rules := make([]grid.Rule, 0, h.Depth())
	for i, l := range h.Levels {
		rules = append(rules, grid.Rule{
			Name:     l.Name,
			Unique:   h.Unique(i),
			Required: l.Required(),
			Message:  l.Message(),
		})
	}
	return rules
}

func (s *Session) installLocked(h *dsl.Hierarchy, cat *reference.Catalog, rows int) error {
	opts := []grid.Option{
		grid.WithReverseIndex(s.reverseIndex),
		grid.WithLogger(s.log.WithField("component", "grid")),
	}
	ctrl, err := grid.New(cat, RulesFor(h), append(opts, s.gridOpts...)...)
	if err != nil {
		return err
	}
	cancel := ctrl.Subscribe(s.onChange)
	if _, err := ctrl.SetRowCount(rows); err != nil {
		cancel()
		return err
	}
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
	s.hierarchy, s.ctrl, s.unsubscribe = h, ctrl, cancel
	return nil
}

// onChange вызывается контроллером синхронно, под mu
func (s *Session) onChange(ch grid.Change) {
	s.metrics.RedrawCells.Observe(float64(len(ch.Cells)))
	s.metrics.Rows.Set(float64(ch.Rows))
	s.hub.Publish(Event{Type: EventChange, Change: &ch})
}

// endTurnLocked закрывает ход: без внешних часов кадр наступает сразу после рассылки
func (s *Session) endTurnLocked() {
	if !s.frameDriven {
		s.frames.Tick()
	}
}

// FrameTick оборачивает тик FrameLoop.Run блокировкой сессии
func (s *Session) FrameTick(tick func() int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tick()
}

func (s *Session) Frames() *perf.FrameLoop { return s.frames }

func (s *Session) Hub() *Hub { return s.hub }

func (s *Session) Metrics() *perf.Metrics { return s.metrics }

func (s *Session) Close() { s.hub.Close() }

// ===== операции =====

func (s *Session) Resize(n int) (grid.Change, error) {
	if !slices.Contains(s.sizes, n) {
		return grid.Change{}, fmt.Errorf("%w: %d (allowed %v)", ErrRowCountNotAllowed, n, s.sizes)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, err := s.ctrl.SetRowCount(n)
	s.endTurnLocked()
	return ch, err
}

// Edit — правка ячейки с замером задержки до следующего кадра
func (s *Session) Edit(rowID, levelRef, code string) (grid.Change, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	started := s.probe.MarkInputStart()
	ch, err := s.editLocked(rowID, levelRef, code)
	if err != nil && started {
		// отклонённая правка не попадает в гистограмму задержки
		s.probe.Abort()
	}
	s.metrics.EditsTotal.WithLabelValues(editResult(err)).Inc()
	s.endTurnLocked()
	return ch, err
}

func (s *Session) editLocked(rowID, levelRef, code string) (grid.Change, error) {
	if _, ok := s.ctrl.Row(rowID); !ok {
		return grid.Change{}, fmt.Errorf("%w: %q", ErrRowNotFound, rowID)
	}
	level, err := s.levelLocked(levelRef)
	if err != nil {
		return grid.Change{}, err
	}
	return s.ctrl.EditField(rowID, level, code)
}

func editResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrRowNotFound):
		return "not_found"
	case errors.Is(err, grid.ErrOptionTaken):
		return "option_taken"
	case errors.Is(err, grid.ErrOptionUnavailable):
		return "option_unavailable"
	default:
		return "invalid_reference"
	}
}

func (s *Session) Cell(rowID, levelRef string) (grid.CellView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ctrl.Row(rowID); !ok {
		return grid.CellView{}, fmt.Errorf("%w: %q", ErrRowNotFound, rowID)
	}
	level, err := s.levelLocked(levelRef)
	if err != nil {
		return grid.CellView{}, err
	}
	return s.ctrl.Cell(rowID, level)
}

// Options — варианты уровня для родителя, как их отдаёт справочник
func (s *Session) Options(levelRef, parent string) (int, []reference.Option, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	level, err := s.levelLocked(levelRef)
	if err != nil {
		return 0, nil, err
	}
	opts := s.ctrl.Catalog().OptionsFor(level, parent)
	if opts == nil {
		opts = []reference.Option{}
	}
	return level, opts, nil
}

// Rows — окно строк в плоском виде и общее их число
func (s *Session) Rows(offset, limit int) ([]map[string]any, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := s.ctrl.Rows()
	page := window(all, offset, limit)
	out := make([]map[string]any, 0, len(page))
	for _, r := range page {
		out = append(out, s.flatten(r))
	}
	return out, len(all)
}

func (s *Session) Row(id string) (map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.ctrl.Row(id)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrRowNotFound, id)
	}
	return s.flatten(r), nil
}

// RowIDs — id строк по порядку (bench и тесты)
func (s *Session) RowIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := s.ctrl.Rows()
	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ID)
	}
	return ids
}

func (s *Session) Validate() []grid.Violation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctrl.Validate()
}

func (s *Session) Seed(rowID string, values []string) (grid.Change, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ctrl.Row(rowID); !ok {
		return grid.Change{}, fmt.Errorf("%w: %q", ErrRowNotFound, rowID)
	}
	ch, err := s.ctrl.Seed(rowID, values)
	s.endTurnLocked()
	return ch, err
}

// Reload перечитывает иерархию и справочник и подменяет контроллер.
// Число строк сохраняется, значения сбрасываются.
func (s *Session) Reload(ctx context.Context) (*dsl.Hierarchy, *reference.Catalog, error) {
	if s.reload == nil {
		return nil, nil, ErrReloadDisabled
	}
	h, cat, err := s.reload(ctx)
	if err != nil {
		return nil, nil, err
	}
	if issues := LintHierarchy(h, cat); len(issues) > 0 {
		return nil, nil, &LintError{Issues: issues}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.installLocked(h, cat, s.ctrl.RowCount()); err != nil {
		return nil, nil, err
	}
	s.endTurnLocked()
	s.log.WithFields(log.Fields{"hierarchy": h.FQN(), "options": cat.Size()}).Info("hierarchy reloaded")
	return h, cat, nil
}

// ===== чтение для meta/perf =====

type PerfView struct {
	LastMs        *float64 `json:"last_ms"`
	Count         uint64   `json:"count"`
	Busy          bool     `json:"busy"`
	FirstRenderMs *float64 `json:"first_render_ms"`
	Frames        uint64   `json:"frames"`
}

func ms(d time.Duration) *float64 {
	v := float64(d) / float64(time.Millisecond)
	return &v
}

func (s *Session) Perf() PerfView {
	v := PerfView{Count: s.probe.Count(), Busy: s.probe.Busy(), Frames: s.frames.Frames()}
	if d, ok := s.probe.Last(); ok {
		v.LastMs = ms(d)
	}
	if d, ok := s.render.Value(); ok {
		v.FirstRenderMs = ms(d)
	}
	return v
}

// Probe — для bench: прямой доступ к замерам
func (s *Session) Probe() *perf.Probe { return s.probe }

// subscribe подключает клиента событий внутри хода сессии: hello и
// регистрация атомарны, поэтому изменение между ними не теряется.
func (s *Session) subscribe(c *wsClient) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hub.add(c, Event{Type: EventHello, Rows: s.ctrl.RowCount(), Hierarchy: s.hierarchy.FQN()})
}
