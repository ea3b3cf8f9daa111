package ui

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/Aman-CERP/docrag/internal/async"
)

// TUIRenderer shows one progress bar per task using bubbletea.
type TUIRenderer struct {
	mu      sync.Mutex
	cfg     Config
	program *tea.Program
	done    chan struct{}
}

// NewTUIRenderer returns a TUI renderer for cfg.Output.
func NewTUIRenderer(cfg Config) *TUIRenderer {
	return &TUIRenderer{cfg: cfg, done: make(chan struct{})}
}

// Start implements Renderer.
func (r *TUIRenderer) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.program != nil {
		return nil
	}
	opts := []tea.ProgramOption{tea.WithContext(ctx), tea.WithInput(nil)}
	if f, ok := r.cfg.Output.(*os.File); ok {
		opts = append(opts, tea.WithOutput(f))
	}
	r.program = tea.NewProgram(newProgressModel(GetStyles(r.cfg.NoColor)), opts...)

	go func() {
		defer close(r.done)
		_, _ = r.program.Run()
	}()
	return nil
}

// Update implements Renderer.
func (r *TUIRenderer) Update(task async.TaskSnapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.program != nil {
		r.program.Send(taskMsg(task))
	}
}

// Complete implements Renderer.
func (r *TUIRenderer) Complete(s Summary) {
	r.mu.Lock()
	p := r.program
	r.mu.Unlock()
	if p == nil {
		return
	}
	p.Send(summaryMsg(s))
	select {
	case <-r.done:
	case <-time.After(2 * time.Second):
	}
}

// Stop implements Renderer.
func (r *TUIRenderer) Stop() error {
	r.mu.Lock()
	p := r.program
	r.mu.Unlock()
	if p == nil {
		return nil
	}
	p.Quit()
	select {
	case <-r.done:
	case <-time.After(2 * time.Second):
	}
	return nil
}

type taskMsg async.TaskSnapshot
type summaryMsg Summary

type progressModel struct {
	styles  Styles
	tasks   map[string]async.TaskSnapshot
	bars    map[string]progress.Model
	summary *Summary
	width   int
}

func newProgressModel(styles Styles) *progressModel {
	return &progressModel{
		styles: styles,
		tasks:  make(map[string]async.TaskSnapshot),
		bars:   make(map[string]progress.Model),
		width:  40,
	}
}

func (m *progressModel) Init() tea.Cmd { return nil }

func (m *progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = max(20, msg.Width-40)
		for id, bar := range m.bars {
			bar.Width = m.width
			m.bars[id] = bar
		}
	case taskMsg:
		task := async.TaskSnapshot(msg)
		m.tasks[task.ID] = task
		if _, ok := m.bars[task.ID]; !ok {
			m.bars[task.ID] = progress.New(progress.WithSolidFill(ColorLime), progress.WithWidth(m.width))
		}
	case summaryMsg:
		s := Summary(msg)
		m.summary = &s
		return m, tea.Quit
	}
	return m, nil
}

func (m *progressModel) View() string {
	ids := make([]string, 0, len(m.tasks))
	for id := range m.tasks {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return m.tasks[ids[i]].CreatedAt.Before(m.tasks[ids[j]].CreatedAt)
	})

	var b strings.Builder
	b.WriteString(m.styles.Header.Render("Ingesting") + "\n")
	for _, id := range ids {
		task := m.tasks[id]
		bar := m.bars[id]
		status := m.styles.Label.Render(task.Stage)
		switch task.State {
		case async.TaskFailed:
			status = m.styles.Error.Render("failed: " + task.Error)
		case async.TaskCompleted:
			status = m.styles.Success.Render("done")
		}
		fmt.Fprintf(&b, "%-24s %s %s\n", truncate(task.DocumentID, 24), bar.ViewAs(float64(task.Progress)/100), status)
	}
	if m.summary != nil {
		fmt.Fprintf(&b, "%d completed, %d failed\n", m.summary.Completed, m.summary.Failed)
	}
	return b.String()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
