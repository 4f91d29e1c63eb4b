package plugins

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/simforge/simforge/internal/core/events"
	"github.com/simforge/simforge/internal/core/observability/log"
)

var (
	// ErrDependencyMissing rejects installs whose dependency is absent or
	// not in the installed state.
	ErrDependencyMissing = errors.New("plugin dependency missing")
	// ErrDependentsExist rejects uninstalls while installed plugins still
	// depend on the target.
	ErrDependentsExist = errors.New("plugin has installed dependents")
	ErrNotFound        = errors.New("plugin not found")
	ErrNameRequired    = errors.New("plugin name required")
)

type record struct {
	plugin *Plugin
	state  State
}

// Manager tracks installed plugins and enforces dependency ordering.
type Manager struct {
	mu      sync.Mutex
	records map[string]*record

	host   Host
	bus    *events.Bus
	logger log.Log
}

func NewManager(host Host, bus *events.Bus, logger log.Log) *Manager {
	return &Manager{
		records: make(map[string]*record),
		host:    host,
		bus:     bus,
		logger:  logger.With(log.String("component", "plugins")),
	}
}

// Install checks dependencies, replaces a same-name plugin, runs the
// plugin's Install hook against the host and records the outcome. A hook
// error marks the plugin errored, emits plugin:error and is returned.
func (m *Manager) Install(p *Plugin) error {
	if p.Name == "" {
		return ErrNameRequired
	}

	m.mu.Lock()
	for _, dep := range p.Dependencies {
		rec, ok := m.records[dep]
		if !ok || rec.state != StateInstalled {
			m.mu.Unlock()
			return fmt.Errorf("%w: %s requires %s", ErrDependencyMissing, p.Name, dep)
		}
	}
	existing := m.records[p.Name]
	m.mu.Unlock()

	// replace semantics: an already-present plugin is uninstalled first
	if existing != nil {
		if err := m.Uninstall(p.Name); err != nil {
			return fmt.Errorf("replace %s: %w", p.Name, err)
		}
	}

	if p.Install != nil {
		if err := m.safeInstall(p); err != nil {
			m.mu.Lock()
			m.records[p.Name] = &record{plugin: p, state: StateError}
			m.mu.Unlock()

			m.logger.Error("Plugin install failed", log.String("plugin", p.Name), log.Error(err))
			_ = m.bus.Publish(events.PluginError{At: time.Now(), Name: p.Name, Err: err})
			return err
		}
	}

	m.mu.Lock()
	m.records[p.Name] = &record{plugin: p, state: StateInstalled}
	m.mu.Unlock()

	m.logger.Info("Plugin installed", log.String("plugin", p.Name), log.String("version", p.Version))
	_ = m.bus.Publish(events.PluginInstalled{At: time.Now(), Name: p.Name, Version: p.Version})
	return nil
}

// Uninstall refuses while installed dependents exist, then runs the
// plugin's Uninstall hook and removes the bookkeeping.
func (m *Manager) Uninstall(name string) error {
	m.mu.Lock()
	rec, ok := m.records[name]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	var dependents []string
	for other, orec := range m.records {
		if other == name || orec.state != StateInstalled {
			continue
		}
		for _, dep := range orec.plugin.Dependencies {
			if dep == name {
				dependents = append(dependents, other)
			}
		}
	}
	if len(dependents) > 0 {
		m.mu.Unlock()
		sort.Strings(dependents)
		return fmt.Errorf("%w: %s is required by %v", ErrDependentsExist, name, dependents)
	}
	delete(m.records, name)
	m.mu.Unlock()

	if rec.plugin.Uninstall != nil {
		if err := m.safeUninstall(rec.plugin); err != nil {
			m.logger.Error("Plugin uninstall hook failed", log.String("plugin", name), log.Error(err))
		}
	}

	m.logger.Info("Plugin uninstalled", log.String("plugin", name))
	_ = m.bus.Publish(events.PluginUninstalled{At: time.Now(), Name: name})
	return nil
}

// StateOf reports a plugin's tracked state.
func (m *Manager) StateOf(name string) (State, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[name]
	if !ok {
		return "", false
	}
	return rec.state, true
}

// Installed returns the names of plugins in the installed state, sorted.
func (m *Manager) Installed() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for name, rec := range m.records {
		if rec.state == StateInstalled {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

func (m *Manager) safeInstall(p *Plugin) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic installing %s: %v", p.Name, rec)
		}
	}()
	return p.Install(m.host)
}

func (m *Manager) safeUninstall(p *Plugin) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic uninstalling %s: %v", p.Name, rec)
		}
	}()
	return p.Uninstall(m.host)
}
