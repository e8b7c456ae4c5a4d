package probe

import (
	"context"
	"log/slog"

	"github.com/jmylchreest/mutewatch/internal/catalog"
	"github.com/jmylchreest/mutewatch/internal/platform"
	"github.com/jmylchreest/mutewatch/internal/strategy"
)

// MediaConfig wires a Media probe.
type MediaConfig struct {
	Sessions platform.SessionSource
	Procs    platform.ProcessLister
	Player   platform.PlayerAutomation
	Catalog  catalog.Source
	Logger   *slog.Logger
}

// Media decides whether a known media producer is active. The first
// strategy to see one wins; a negative answer moves on to the next.
type Media struct {
	catalog catalog.Source
	chain   *strategy.Chain
}

// NewMedia builds the media probe. A nil catalog source uses the
// built-in catalog.
func NewMedia(cfg MediaConfig) *Media {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Catalog == nil {
		cfg.Catalog = catalog.Static{C: catalog.Default()}
	}
	src := cfg.Catalog

	var ss []strategy.Strategy
	if cfg.Sessions != nil {
		ss = append(ss, strategy.Func{ID: "sessions", Fn: func(ctx context.Context) (bool, error) {
			sessions, err := cfg.Sessions.Sessions(ctx)
			if err != nil {
				return false, err
			}
			c := src.Current()
			for _, s := range sessions {
				if s.Active && !s.Muted && s.Volume > 0 && c.Contains(s.ProcessName) {
					return true, nil
				}
			}
			return false, nil
		}})
	}
	if cfg.Procs != nil {
		ss = append(ss, strategy.Func{ID: "processes", Fn: func(ctx context.Context) (bool, error) {
			procs, err := cfg.Procs.Processes(ctx)
			if err != nil {
				return false, err
			}
			c := src.Current()
			for _, p := range procs {
				if c.Contains(p.Name) {
					return true, nil
				}
			}
			return false, nil
		}})
	}
	if cfg.Player != nil {
		ss = append(ss, strategy.Func{ID: "player", Fn: func(ctx context.Context) (bool, error) {
			state, err := cfg.Player.PlayState(ctx)
			if err != nil {
				return false, err
			}
			return state == platform.PlayStatePlaying, nil
		}})
	}

	return &Media{
		catalog: src,
		chain: strategy.NewChain("media", ss,
			strategy.WithMode(strategy.FirstTrue),
			strategy.WithLogger(cfg.Logger),
		),
	}
}

// Active reports whether a catalog media process is active.
func (m *Media) Active(ctx context.Context) bool {
	return m.chain.Run(ctx)
}

// Explain runs every strategy and reports each outcome.
func (m *Media) Explain(ctx context.Context) ([]strategy.Outcome, bool) {
	return m.chain.Explain(ctx)
}

// Strategies returns the strategy names in evaluation order.
func (m *Media) Strategies() []string {
	return m.chain.Strategies()
}

// Catalog returns the catalog currently in use.
func (m *Media) Catalog() *catalog.Catalog {
	return m.catalog.Current()
}
