package main

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/lumenshell/widget-runtime/arena"
	"github.com/lumenshell/widget-runtime/host"
	"github.com/lumenshell/widget-runtime/surface"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	moduleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	tagStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	textStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

// inspector is the terminal front-end. It plays the compositor role:
// acknowledging surfaces as they are announced and displaying each
// surface's latest tree.
type inspector struct {
	events   <-chan host.Event
	requests chan<- host.Request

	// queue re-feeds events to the tea model; Start keeps it supplied
	// from an unbounded backlog.
	queue chan host.Event
}

type moduleInfo struct {
	id       uint32
	name     string
	subs     int
	surfaces []surface.Handle
}

type inspectorModel struct {
	events   <-chan host.Event
	requests chan<- host.Request

	modules  []*moduleInfo
	byID     map[uint32]*moduleInfo
	trees    map[surface.Handle]*arena.Node
	selected int

	viewport viewport.Model
	ready    bool
	width    int
}

type hostEventMsg struct {
	event host.Event
}

func newInspector(events <-chan host.Event, requests chan<- host.Request) *inspector {
	return &inspector{
		events:   events,
		requests: requests,
		queue:    make(chan host.Event),
	}
}

// Start drains the loop's bounded event channel into an unbounded
// backlog. Module adoption emits setup events before the program is on
// screen, so the drain must be running before LoadAll.
func (i *inspector) Start(ctx context.Context) {
	go func() {
		var backlog []host.Event
		for {
			var out chan<- host.Event
			var next host.Event
			if len(backlog) > 0 {
				out = i.queue
				next = backlog[0]
			}
			select {
			case <-ctx.Done():
				return
			case ev := <-i.events:
				backlog = append(backlog, ev)
			case out <- next:
				backlog = backlog[1:]
			}
		}
	}()
}

func (i *inspector) Run() error {
	m := &inspectorModel{
		events:   i.queue,
		requests: i.requests,
		byID:     make(map[uint32]*moduleInfo),
		trees:    make(map[surface.Handle]*arena.Node),
	}
	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

func (m *inspectorModel) Init() tea.Cmd {
	return m.waitForEvent
}

func (m *inspectorModel) waitForEvent() tea.Msg {
	ev, ok := <-m.events
	if !ok {
		return tea.Quit()
	}
	return hostEventMsg{event: ev}
}

func (m *inspectorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "up", "k":
			if m.selected > 0 {
				m.selected--
				m.refreshViewport()
			}
		case "down", "j":
			if m.selected < len(m.modules)-1 {
				m.selected++
				m.refreshViewport()
			}
		default:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		headerHeight := 3
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-headerHeight)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - headerHeight
		}
		m.refreshViewport()

	case hostEventMsg:
		cmd := m.apply(msg.event)
		return m, tea.Batch(m.waitForEvent, cmd)
	}

	return m, nil
}

// apply folds one host event into the model. Surface announcements are
// acknowledged from a command so a full request channel never stalls the
// UI goroutine.
func (m *inspectorModel) apply(ev host.Event) tea.Cmd {
	switch e := ev.(type) {
	case host.EventRegisterSubscriptions:
		info := m.module(e.Module)
		info.name = e.Name
		info.subs = len(e.Subscriptions)

	case host.EventCreateSurface:
		info := m.module(e.Module)
		info.surfaces = append(info.surfaces, e.Handle)
		handle := e.Handle
		m.refreshViewport()
		return func() tea.Msg {
			m.requests <- host.RequestSurfaceReady{Handle: handle}
			return nil
		}

	case host.EventDestroySurface:
		info := m.module(e.Module)
		for idx, h := range info.surfaces {
			if h == e.Handle {
				info.surfaces = append(info.surfaces[:idx], info.surfaces[idx+1:]...)
				break
			}
		}
		delete(m.trees, e.Handle)
		m.refreshViewport()

	case host.EventUIUpdate:
		m.trees[e.Handle] = e.Tree
		m.refreshViewport()
	}
	return nil
}

func (m *inspectorModel) module(id uint32) *moduleInfo {
	if info, ok := m.byID[id]; ok {
		return info
	}
	info := &moduleInfo{id: id, name: fmt.Sprintf("module-%d", id)}
	m.byID[id] = info
	m.modules = append(m.modules, info)
	sort.Slice(m.modules, func(i, j int) bool { return m.modules[i].id < m.modules[j].id })
	return info
}

func (m *inspectorModel) refreshViewport() {
	if !m.ready || len(m.modules) == 0 {
		return
	}
	if m.selected >= len(m.modules) {
		m.selected = len(m.modules) - 1
	}

	var b strings.Builder
	info := m.modules[m.selected]
	for _, h := range info.surfaces {
		b.WriteString(dimStyle.Render(fmt.Sprintf("surface %d", uint64(h))))
		b.WriteString("\n")
		if tree, ok := m.trees[h]; ok {
			writeTree(&b, tree, 1)
		} else {
			b.WriteString("  " + dimStyle.Render("(no frame yet)") + "\n")
		}
		b.WriteString("\n")
	}
	if len(info.surfaces) == 0 {
		b.WriteString(dimStyle.Render("(no surfaces)") + "\n")
	}
	m.viewport.SetContent(b.String())
}

func writeTree(b *strings.Builder, n *arena.Node, depth int) {
	indent := strings.Repeat("  ", depth)
	b.WriteString(indent)
	b.WriteString(tagStyle.Render(n.Tag.String()))

	switch n.Tag {
	case arena.TagText:
		b.WriteString(" " + textStyle.Render(fmt.Sprintf("%q", n.Text)))
		b.WriteString(dimStyle.Render(fmt.Sprintf(" color=%d", n.Style.Color)))
	case arena.TagButton:
		b.WriteString(dimStyle.Render(fmt.Sprintf(" callback=%d", n.CallbackID)))
	case arena.TagSlider:
		b.WriteString(dimStyle.Render(fmt.Sprintf(" %s %.3g in [%.3g, %.3g] callback=%d",
			n.Slider.Kind, n.Slider.Value(), n.Slider.Min(), n.Slider.Max(), n.CallbackID)))
	}
	b.WriteString("\n")

	for _, child := range n.Children {
		writeTree(b, child, depth+1)
	}
}

func (m *inspectorModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Widget Runner"))
	b.WriteString(" ")
	for i, info := range m.modules {
		entry := fmt.Sprintf("%s (%d)", info.name, len(info.surfaces))
		if i == m.selected {
			b.WriteString(selectedStyle.Render(entry))
		} else {
			b.WriteString(moduleStyle.Render(entry))
		}
		b.WriteString("  ")
	}
	if len(m.modules) == 0 {
		b.WriteString(dimStyle.Render("waiting for modules..."))
	}
	b.WriteString("\n\n")

	if m.ready {
		b.WriteString(m.viewport.View())
	}
	b.WriteString("\n")
	b.WriteString(dimStyle.Render("↑/↓ module • pgup/pgdn scroll • q quit"))
	return b.String()
}
