package tableui

import "github.com/charmbracelet/bubbles/key"

// KeyMap binds the table's controls.
type KeyMap struct {
	Up          key.Binding
	Down        key.Binding
	SortNext    key.Binding
	SortPrev    key.Binding
	Resort      key.Binding
	Search      key.Binding
	CycleFilter key.Binding
	NextFilter  key.Binding
	Submit      key.Binding
	Reset       key.Binding
	PrevPage    key.Binding
	NextPage    key.Binding
	Bigger      key.Binding
	Smaller     key.Binding
	Select      key.Binding
	Action      key.Binding
	Toggle      key.Binding
}

// DefaultKeyMap returns the standard bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Up:          key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:        key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		SortNext:    key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "sort next col")),
		SortPrev:    key.NewBinding(key.WithKeys("shift+tab"), key.WithHelp("shift+tab", "sort prev col")),
		Resort:      key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "flip sort")),
		Search:      key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "search")),
		CycleFilter: key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "filter value")),
		NextFilter:  key.NewBinding(key.WithKeys("F"), key.WithHelp("F", "next filter")),
		Submit:      key.NewBinding(key.WithKeys("S"), key.WithHelp("S", "submit")),
		Reset:       key.NewBinding(key.WithKeys("R"), key.WithHelp("R", "reset")),
		PrevPage:    key.NewBinding(key.WithKeys("["), key.WithHelp("[", "prev page")),
		NextPage:    key.NewBinding(key.WithKeys("]"), key.WithHelp("]", "next page")),
		Bigger:      key.NewBinding(key.WithKeys("+", "="), key.WithHelp("+", "more rows")),
		Smaller:     key.NewBinding(key.WithKeys("-"), key.WithHelp("-", "fewer rows")),
		Select:      key.NewBinding(key.WithKeys(" ", "space"), key.WithHelp("space", "select")),
		Action:      key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "row action")),
		Toggle:      key.NewBinding(key.WithKeys("1", "2", "3", "4", "5", "6", "7", "8", "9"), key.WithHelp("1-9", "toggle column")),
	}
}

// ShortHelp implements help.KeyMap.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.SortNext, k.Search, k.CycleFilter, k.Submit, k.PrevPage, k.NextPage, k.Action}
}

// FullHelp implements help.KeyMap.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Select, k.Action},
		{k.SortNext, k.SortPrev, k.Resort, k.Toggle},
		{k.Search, k.CycleFilter, k.NextFilter, k.Submit, k.Reset},
		{k.PrevPage, k.NextPage, k.Bigger, k.Smaller},
	}
}
