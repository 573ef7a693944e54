package eventtypes

// MenuItem is one entry in the input daemon's menu model.
type MenuItem struct {
	Label    string `json:"label"`
	Route    string `json:"route"`
	SourceID string `json:"source_id,omitempty"`
	// ID uniquely identifies the item for later removal; if a source
	// doesn't supply one, the daemon derives one from Route.
	ID string `json:"id,omitempty"`
}

// MenuAction is the action field of POST /input/menu.
type MenuAction string

const (
	MenuAdd     MenuAction = "add"
	MenuRemove  MenuAction = "remove"
	MenuReplace MenuAction = "replace"
)

// Menu is an ordered, stable sequence of items. Order is deterministic
// across restarts given the same config.
type Menu struct {
	Items []MenuItem `json:"items"`
}

// Clone returns a deep-enough copy safe to hand to a subscriber without
// aliasing the daemon's backing slice.
func (m Menu) Clone() Menu {
	items := make([]MenuItem, len(m.Items))
	copy(items, m.Items)
	return Menu{Items: items}
}

// indexOf returns the index of the first item whose id, route, or label
// equals key, or -1. No field takes precedence over another: an earlier
// item matching by label wins over a later item matching by id.
func (m Menu) indexOf(key string) int {
	for i, it := range m.Items {
		if it.ID == key || it.Route == key || it.Label == key {
			return i
		}
	}
	return -1
}

// Add inserts item after the item identified by after (id, route, or
// label); if after is empty or not found, the item is appended.
func (m Menu) Add(item MenuItem, after string) Menu {
	items := make([]MenuItem, len(m.Items))
	copy(items, m.Items)

	pos := len(items)
	if after != "" {
		if idx := (Menu{Items: items}).indexOf(after); idx >= 0 {
			pos = idx + 1
		}
	}

	items = append(items, MenuItem{})
	copy(items[pos+1:], items[pos:])
	items[pos] = item
	return Menu{Items: items}
}

// Remove deletes the item identified by id (or route/label fallback),
// returning the updated menu and whether anything was removed.
func (m Menu) Remove(id string) (Menu, bool) {
	idx := m.indexOf(id)
	if idx < 0 {
		return m, false
	}
	items := make([]MenuItem, 0, len(m.Items)-1)
	items = append(items, m.Items[:idx]...)
	items = append(items, m.Items[idx+1:]...)
	return Menu{Items: items}, true
}

// Replace swaps the entire menu contents.
func (m Menu) Replace(items []MenuItem) Menu {
	cp := make([]MenuItem, len(items))
	copy(cp, items)
	return Menu{Items: cp}
}
