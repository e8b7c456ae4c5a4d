package main

import (
	"log/slog"

	"github.com/jmylchreest/mutewatch/internal/actuate"
	"github.com/jmylchreest/mutewatch/internal/catalog"
	"github.com/jmylchreest/mutewatch/internal/config"
	"github.com/jmylchreest/mutewatch/internal/platform"
	"github.com/jmylchreest/mutewatch/internal/probe"
	"github.com/jmylchreest/mutewatch/internal/suppress"
	"github.com/jmylchreest/mutewatch/internal/watchdog"
)

// components is everything built from one configuration.
type components struct {
	bindings platform.Bindings
	catalog  catalog.Source
	watcher  *catalog.Watcher
	volume   *probe.Volume
	media    *probe.Media
	actuator *actuate.Actuator
}

// build wires the probes and the actuator onto the given bindings. With
// watch set and a catalog file configured, the catalog hot-reloads.
func build(c *config.Config, b platform.Bindings, watch bool, log *slog.Logger) (*components, error) {
	comp := &components{bindings: b}

	if watch && c.Catalog.Watch && c.Catalog.Path != "" {
		w, err := catalog.NewWatcher(c.Catalog.Path, log)
		if err != nil {
			return nil, err
		}
		if err := w.Start(); err != nil {
			log.Warn("catalog hot reload unavailable", "path", c.Catalog.Path, "error", err)
		}
		comp.watcher = w
		comp.catalog = w
	} else {
		cat, err := catalog.Load(c.Catalog.Path)
		if err != nil {
			return nil, err
		}
		comp.catalog = catalog.Static{C: cat}
	}

	comp.volume = probe.NewVolume(probe.VolumeConfig{
		Endpoint:   b.Endpoint,
		Sessions:   b.Sessions,
		Runner:     b.Runner,
		Mixer:      b.Mixer,
		Command:    c.Commands.Volume,
		Timeout:    c.Commands.Timeout.Duration(),
		Thresholds: thresholds(c),
		Logger:     log,
	})

	comp.media = probe.NewMedia(probe.MediaConfig{
		Sessions: b.Sessions,
		Procs:    b.Procs,
		Player:   b.Player,
		Catalog:  comp.catalog,
		Logger:   log,
	})

	comp.actuator = actuate.New(actuate.Config{
		Endpoint: b.Endpoint,
		Sessions: b.Sessions,
		Keys:     b.Keys,
		Runner:   b.Runner,
		Script:   c.Commands.MuteKeys,
		Timeout:  c.Commands.Timeout.Duration(),
		Logger:   log,
	})

	return comp, nil
}

// newLoop creates the watchdog loop for these components.
func (comp *components) newLoop(c *config.Config, window *suppress.Window, log *slog.Logger) *watchdog.Loop {
	return watchdog.New(watchdog.Config{
		Volume:      comp.volume,
		Media:       comp.media,
		Actuator:    comp.actuator,
		Window:      window,
		Poll:        c.Intervals.Poll.Duration(),
		Cooldown:    c.Intervals.Cooldown.Duration(),
		Suppressed:  c.Intervals.Suppressed.Duration(),
		Backoff:     c.Intervals.Backoff.Duration(),
		SuppressFor: c.Suppression.Duration.Duration(),
		Logger:      log,
	})
}

func (comp *components) close() {
	if comp.watcher != nil {
		_ = comp.watcher.Stop()
	}
}

func thresholds(c *config.Config) probe.Thresholds {
	return probe.Thresholds{
		Endpoint: c.Thresholds.Endpoint,
		Session:  c.Thresholds.Session,
		Command:  c.Thresholds.Command,
		Mixer:    c.Thresholds.Mixer,
	}
}
