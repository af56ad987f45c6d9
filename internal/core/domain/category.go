package domain

import "sort"

// ReservedCategoryID is the catch-all category. It always exists, cannot be
// edited or deleted, and absorbs containers no other category claims.
const ReservedCategoryID = "Other"

// Category groups containers on the board. Containers holds references by
// container name in display order.
type Category struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Icon        string   `json:"icon,omitempty"`
	Containers  []string `json:"containers"`
	Description string   `json:"description,omitempty"`
	Position    *int     `json:"position,omitempty"`
}

// Reserved reports whether c is the catch-all category.
func (c Category) Reserved() bool {
	return c.ID == ReservedCategoryID
}

// ReservedCategory returns an empty catch-all category.
func ReservedCategory() Category {
	return Category{
		ID:   ReservedCategoryID,
		Name: ReservedCategoryID,
		Icon: "box",
	}
}

// OrderCategories returns categories in display order: explicit positions
// first, then unpositioned categories in the order given, with the reserved
// category always last. The reserved category is added if missing and
// duplicate IDs keep their first occurrence.
func OrderCategories(categories []Category) []Category {
	ordered := make([]Category, 0, len(categories)+1)
	seen := make(map[string]bool, len(categories))
	reserved := ReservedCategory()
	for _, c := range categories {
		if c.ID == "" || seen[c.ID] {
			continue
		}
		seen[c.ID] = true
		if c.Reserved() {
			reserved = c
			continue
		}
		ordered = append(ordered, c)
	}

	sort.SliceStable(ordered, func(i, j int) bool {
		pi, pj := ordered[i].Position, ordered[j].Position
		switch {
		case pi != nil && pj != nil:
			return *pi < *pj
		case pi != nil:
			return true
		default:
			return false
		}
	})
	return append(ordered, reserved)
}

// PositionsFor builds the category order payload from a list of IDs. The
// reserved category is pinned to the end regardless of where it appears.
func PositionsFor(order []string) map[string]int {
	positions := make(map[string]int, len(order)+1)
	next := 0
	for _, id := range order {
		if id == "" || id == ReservedCategoryID {
			continue
		}
		if _, dup := positions[id]; dup {
			continue
		}
		positions[id] = next
		next++
	}
	positions[ReservedCategoryID] = next
	return positions
}
