package config

import (
	"fmt"
	"os"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// Loader reads a YAML config file and watches it for changes.
type Loader struct {
	path     string
	mu       sync.RWMutex
	current  *RanchConfig
	onChange []func(*RanchConfig)
	watcher  *fsnotify.Watcher
}

// NewLoader creates a Loader and performs the initial load.
func NewLoader(path string) (*Loader, error) {
	l := &Loader{path: path}
	cfg, err := l.load()
	if err != nil {
		return nil, err
	}
	l.current = cfg
	return l, nil
}

// Config returns the current (latest) configuration.
func (l *Loader) Config() *RanchConfig {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.current
}

// OnChange registers a callback invoked whenever the config reloads.
func (l *Loader) OnChange(fn func(*RanchConfig)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onChange = append(l.onChange, fn)
}

// Watch starts a background goroutine that hot-reloads the config on file changes.
// Call the returned stop function to clean up.
func (l *Loader) Watch() (stop func(), err error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config watcher: %w", err)
	}
	if err := w.Add(l.path); err != nil {
		w.Close()
		return nil, fmt.Errorf("config watcher add %s: %w", l.path, err)
	}
	l.watcher = w

	done := make(chan struct{})
	go func() {
		defer w.Close()
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) {
					cfg, err := l.load()
					if err != nil {
						// Log and continue with old config.
						continue
					}
					l.mu.Lock()
					l.current = cfg
					callbacks := make([]func(*RanchConfig), len(l.onChange))
					copy(callbacks, l.onChange)
					l.mu.Unlock()
					for _, fn := range callbacks {
						fn(cfg)
					}
				}
			case <-w.Errors:
				// Ignore watcher errors.
			case <-done:
				return
			}
		}
	}()

	return func() { close(done) }, nil
}

// Reload forces an immediate re-read of the config file.
func (l *Loader) Reload() (*RanchConfig, error) {
	cfg, err := l.load()
	if err != nil {
		return nil, err
	}
	l.mu.Lock()
	l.current = cfg
	callbacks := make([]func(*RanchConfig), len(l.onChange))
	copy(callbacks, l.onChange)
	l.mu.Unlock()
	for _, fn := range callbacks {
		fn(cfg)
	}
	return cfg, nil
}

func (l *Loader) load() (*RanchConfig, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", l.path, err)
	}
	var cfg RanchConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", l.path, err)
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *RanchConfig) {
	if cfg.Engine.SampleQueueDepth == 0 {
		cfg.Engine.SampleQueueDepth = 4096
	}
	if cfg.Alerts.MaxNotifications == 0 {
		cfg.Alerts.MaxNotifications = 100
	}
	if cfg.Alerts.DefaultExpirySeconds == 0 {
		cfg.Alerts.DefaultExpirySeconds = 30
	}
	if cfg.Hub.SendQueueSize == 0 {
		cfg.Hub.SendQueueSize = 256
	}
	if cfg.Hub.PingPeriodSeconds == 0 {
		cfg.Hub.PingPeriodSeconds = 20
	}
	if cfg.Hub.MissedPings == 0 {
		cfg.Hub.MissedPings = 3
	}
	if cfg.Feed.Simulator.MinIntervalMs == 0 {
		cfg.Feed.Simulator.MinIntervalMs = 2000
	}
	if cfg.Feed.Simulator.MaxIntervalMs == 0 {
		cfg.Feed.Simulator.MaxIntervalMs = 5000
	}
	if cfg.Feed.Simulator.DriftMeters == 0 {
		cfg.Feed.Simulator.DriftMeters = 50
	}
	if cfg.Feed.MQTT.Topic == "" {
		cfg.Feed.MQTT.Topic = "ranch/+/position"
	}
	if cfg.Feed.MQTT.ClientID == "" {
		cfg.Feed.MQTT.ClientID = "ranch-backend"
	}
}
