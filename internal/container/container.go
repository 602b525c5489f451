package container

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"cascade/internal/api"
	"cascade/internal/config"
	"cascade/internal/dsl"
	"cascade/internal/grid"
	"cascade/internal/perf"
	"cascade/internal/pg"
	"cascade/internal/reference"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	log "github.com/sirupsen/logrus"
)

// Container holds all initialized components
type Container struct {
	Config    *config.Config
	Hierarchy *dsl.Hierarchy
	Catalog   *reference.Catalog
	Session   *api.Session
	Registry  *prometheus.Registry
	Router    *gin.Engine

	db *sql.DB
}

type Option func(*options)

type options struct {
	gridOpts []grid.Option
	render   *perf.RenderTimer
}

// WithGridOptions — для тестов: детерминированные id строк и т.п.
func WithGridOptions(opts ...grid.Option) Option {
	return func(o *options) { o.gridOpts = append(o.gridOpts, opts...) }
}

// WithRenderTimer — таймер первой отрисовки, запущенный раньше (в main)
func WithRenderTimer(t *perf.RenderTimer) Option {
	return func(o *options) { o.render = t }
}

// New creates a new container with all dependencies initialized
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Container, error) {
	var o options
	for _, fn := range opts {
		fn(&o)
	}
	if o.render == nil {
		o.render = perf.StartRenderTimer(nil)
	}
	gin.SetMode(cfg.Server.Mode)

	c := &Container{Config: cfg}

	h, err := LoadHierarchy(cfg.Hierarchy)
	if err != nil {
		return nil, err
	}

	if cfg.Catalog.Source == "postgres" {
		db, err := pg.Open(ctx, cfg.Database.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to Postgres: %w", err)
		}
		c.db = db
		log.Info("✅ Connected to Postgres successfully")
	}

	cat, err := c.loadCatalog(ctx, h)
	if err != nil {
		_ = c.Close()
		return nil, err
	}
	if issues := api.LintHierarchy(h, cat); len(issues) > 0 {
		_ = c.Close()
		return nil, &api.LintError{Issues: issues}
	}
	c.Hierarchy, c.Catalog = h, cat

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	c.Registry = reg

	session, err := api.NewSession(h, cat, api.SessionConfig{
		Sizes:        cfg.Grid.Sizes,
		InitialRows:  cfg.Grid.InitialRows,
		ReverseIndex: cfg.Grid.ReverseIndex,
		FrameDriven:  cfg.Server.FrameInterval > 0,
		Registerer:   reg,
		Reload:       c.reload,
		Logger:       log.WithField("component", "session"),
		Render:       o.render,
		GridOptions:  o.gridOpts,
	})
	if err != nil {
		_ = c.Close()
		return nil, err
	}
	c.Session = session
	c.Router = api.NewRouter(session, reg)

	log.WithFields(log.Fields{
		"hierarchy":     h.FQN(),
		"levels":        h.Depth(),
		"catalog":       cfg.Catalog.Source,
		"options":       cat.Size(),
		"rows":          cfg.Grid.InitialRows,
		"reverse_index": cfg.Grid.ReverseIndex,
	}).Info("grid ready")
	return c, nil
}

// LoadHierarchy: каталог с .dsl или встроенная иерархия region
func LoadHierarchy(cfg config.HierarchyConfig) (*dsl.Hierarchy, error) {
	if cfg.DSLDir == "" {
		h := dsl.Default()
		if cfg.Name != "" && cfg.Name != h.Name && cfg.Name != h.FQN() {
			return nil, fmt.Errorf("hierarchy %q not found (no dsl dir, built-in is %s)", cfg.Name, h.FQN())
		}
		return h, nil
	}
	all, err := dsl.LoadAll(cfg.DSLDir)
	if err != nil {
		return nil, fmt.Errorf("DSL load error: %w", err)
	}
	h, ok := dsl.Find(all, cfg.Name)
	if !ok {
		return nil, fmt.Errorf("hierarchy %q not found or ambiguous in %s (%d loaded)", cfg.Name, cfg.DSLDir, len(all))
	}
	return h, nil
}

// GeneratedCatalog — демо-справочник по уровням иерархии: province1, province1-city1, ...
func GeneratedCatalog(h *dsl.Hierarchy, roots, fanout int) (*reference.Catalog, error) {
	levels := make([]reference.GenLevel, 0, h.Depth())
	for _, l := range h.Levels {
		levels = append(levels, reference.GenLevel{Code: l.Name, Label: l.Label()})
	}
	return reference.Generate(h.FQN(), levels, roots, fanout)
}

// SourceCatalog строит справочник из generated или yaml, без базы
func SourceCatalog(cfg config.CatalogConfig, source string, h *dsl.Hierarchy) (*reference.Catalog, error) {
	switch source {
	case "generated":
		return GeneratedCatalog(h, cfg.Roots, cfg.Fanout)
	case "yaml":
		cat, err := reference.LoadFile(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("catalog load error: %w", err)
		}
		return cat, nil
	default:
		return nil, fmt.Errorf("unknown catalog source %q", source)
	}
}

func (c *Container) loadCatalog(ctx context.Context, h *dsl.Hierarchy) (*reference.Catalog, error) {
	if c.Config.Catalog.Source != "postgres" {
		return SourceCatalog(c.Config.Catalog, c.Config.Catalog.Source, h)
	}
	if c.Config.Database.AutoMigrate {
		ddl, err := pg.GenerateDDL(h)
		if err != nil {
			return nil, err
		}
		if err := pg.ApplyDDL(ctx, c.db, ddl); err != nil {
			return nil, err
		}
	}
	return pg.LoadCatalog(ctx, c.db, h)
}

// reload — admin reload: те же источники, что и при старте
func (c *Container) reload(ctx context.Context) (*dsl.Hierarchy, *reference.Catalog, error) {
	h, err := LoadHierarchy(c.Config.Hierarchy)
	if err != nil {
		return nil, nil, err
	}
	cat, err := c.loadCatalog(ctx, h)
	if err != nil {
		return nil, nil, err
	}
	return h, cat, nil
}

// Run serves HTTP and, if configured, drives the frame clock until ctx is done
func (c *Container) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return api.RunServer(ctx, c.Config.Server.Addr(), c.Router)
	})

	if iv := c.Config.Server.FrameInterval; iv > 0 {
		g.Go(func() error {
			c.Session.Frames().Run(ctx, iv, c.Session.FrameTick)
			return nil
		})
	}

	// hijacked websocket-соединения Shutdown не закрывает
	g.Go(func() error {
		<-ctx.Done()
		c.Session.Close()
		return nil
	})

	return g.Wait()
}

// Close performs cleanup when shutting down
func (c *Container) Close() error {
	log.Info("Shutting down container...")
	if c.Session != nil {
		c.Session.Close()
	}
	if c.db != nil {
		if err := c.db.Close(); err != nil {
			return err
		}
	}
	log.Info("Container shut down successfully")
	return nil
}

// Seed заполняет таблицу Postgres справочником из source (generated | yaml)
func Seed(ctx context.Context, cfg *config.Config, source string) (int, error) {
	if cfg.Database.URL == "" {
		return 0, fmt.Errorf("database.url is required for seeding")
	}
	h, err := LoadHierarchy(cfg.Hierarchy)
	if err != nil {
		return 0, err
	}
	cat, err := SourceCatalog(cfg.Catalog, source, h)
	if err != nil {
		return 0, err
	}
	if issues := api.LintHierarchy(h, cat); len(issues) > 0 {
		return 0, &api.LintError{Issues: issues}
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()
	db, err := pg.Open(ctx, cfg.Database.URL)
	if err != nil {
		return 0, fmt.Errorf("failed to connect to Postgres: %w", err)
	}
	defer db.Close()

	ddl, err := pg.GenerateDDL(h)
	if err != nil {
		return 0, err
	}
	if err := pg.ApplyDDL(ctx, db, ddl); err != nil {
		return 0, err
	}
	if err := pg.SeedCatalog(ctx, db, h, cat); err != nil {
		return 0, err
	}
	return cat.Size(), nil
}
