package domain

// Group is one category's slot on the board with its items in display order.
type Group struct {
	Category Category
	Items    []string
}

// Layout is the rendered structure: ordered groups of container names.
// It is a cache of server order and is rebuilt from scratch on every full
// load.
type Layout struct {
	Groups []Group
}

// Assign computes container placement from scratch. Categories are scanned
// in display order and the first category referencing a container claims
// it. Installed containers left unclaimed land in the reserved category.
// References to containers the backend did not list are dropped.
func Assign(categories []Category, containers []Container) Layout {
	known := make(map[string]bool, len(containers))
	for _, c := range containers {
		if c.Name != "" {
			known[c.Name] = true
		}
	}

	ordered := OrderCategories(categories)
	claimed := make(map[string]bool, len(containers))
	layout := Layout{Groups: make([]Group, 0, len(ordered))}
	for _, cat := range ordered {
		group := Group{Category: cat, Items: []string{}}
		for _, name := range cat.Containers {
			if !known[name] || claimed[name] {
				continue
			}
			claimed[name] = true
			group.Items = append(group.Items, name)
		}
		layout.Groups = append(layout.Groups, group)
	}

	reserved := &layout.Groups[len(layout.Groups)-1]
	for _, c := range containers {
		if c.Name == "" || claimed[c.Name] || !c.Installed {
			continue
		}
		claimed[c.Name] = true
		reserved.Items = append(reserved.Items, c.Name)
	}
	return layout
}

// Locate finds the group holding name and its index within that group.
func (l Layout) Locate(name string) (category string, index int, ok bool) {
	for _, g := range l.Groups {
		for i, item := range g.Items {
			if item == name {
				return g.Category.ID, i, true
			}
		}
	}
	return "", -1, false
}

// Children returns a copy of the items in category.
func (l Layout) Children(category string) ([]string, bool) {
	for _, g := range l.Groups {
		if g.Category.ID == category {
			items := make([]string, len(g.Items))
			copy(items, g.Items)
			return items, true
		}
	}
	return nil, false
}

// CategoryIDs returns the group order.
func (l Layout) CategoryIDs() []string {
	ids := make([]string, 0, len(l.Groups))
	for _, g := range l.Groups {
		ids = append(ids, g.Category.ID)
	}
	return ids
}
