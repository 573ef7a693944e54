package inputdaemon

import (
	"sync"

	"github.com/mkirsten/beosound5c-sub001/internal/config"
	"github.com/mkirsten/beosound5c-sub001/internal/eventtypes"
)

// menuState guards the daemon's menu model. Unlike the router's
// channel-owned sources map, this state has a single narrow mutation
// surface (add/remove/replace) and no cross-field invariant to protect, so
// a plain mutex is the simpler and idiomatic choice here.
type menuState struct {
	mu   sync.RWMutex
	menu eventtypes.Menu
}

func newMenuState(entries []config.MenuEntryConfig) *menuState {
	items := make([]eventtypes.MenuItem, len(entries))
	for i, e := range entries {
		items[i] = eventtypes.MenuItem{Label: e.Label, Route: e.Route, SourceID: e.SourceID, ID: e.Route}
	}
	return &menuState{menu: eventtypes.Menu{Items: items}}
}

func (m *menuState) snapshot() eventtypes.Menu {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.menu.Clone()
}

func (m *menuState) add(item eventtypes.MenuItem, after string) eventtypes.Menu {
	m.mu.Lock()
	defer m.mu.Unlock()
	if item.ID == "" {
		item.ID = item.Route
	}
	m.menu = m.menu.Add(item, after)
	return m.menu.Clone()
}

func (m *menuState) remove(id string) (eventtypes.Menu, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	updated, ok := m.menu.Remove(id)
	if ok {
		m.menu = updated
	}
	return m.menu.Clone(), ok
}

func (m *menuState) replace(items []eventtypes.MenuItem) eventtypes.Menu {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.menu = m.menu.Replace(items)
	return m.menu.Clone()
}
