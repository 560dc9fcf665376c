package lesson

// IconTable resolves the icon shown for a lesson: a known icon id wins, then
// the category icon, then the fallback
type IconTable struct {
	known      map[string]struct{}
	byCategory map[Category]string
	fallback   string
}

// NewIconTable .
func NewIconTable(known []string, byCategory map[Category]string, fallback string) *IconTable {
	t := &IconTable{
		known:      make(map[string]struct{}, len(known)),
		byCategory: byCategory,
		fallback:   fallback,
	}
	for _, id := range known {
		t.known[id] = struct{}{}
	}
	return t
}

// DefaultIcons icons bundled with the app
func DefaultIcons() *IconTable {
	byCategory := map[Category]string{
		Beginner: "basic_icon_image",
		Advanced: "advanced_icon_image",
		Expert:   "expert_icon_image",
	}
	known := []string{DefaultIconID, "person_icon"}
	for _, id := range byCategory {
		known = append(known, id)
	}
	return NewIconTable(known, byCategory, DefaultIconID)
}

// Resolve icon for item
func (t *IconTable) Resolve(item Item) string {
	if _, ok := t.known[item.IconID]; ok {
		return item.IconID
	}
	if icon, ok := t.byCategory[item.Category]; ok {
		return icon
	}
	return t.fallback
}
