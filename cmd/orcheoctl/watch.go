package main

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/orcheo/engine/internal/bus"
)

func newActionWatchCmd(jsonMode *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "watch <action-id>",
		Short: "Follow an action's task events live in a terminal UI",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			e, closeFn, err := buildEnv(*jsonMode)
			if err != nil {
				return err
			}
			defer closeFn()

			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid action id: %w", err)
			}

			ctx := context.Background()
			sub, err := e.bus.Subscribe(ctx, id, func(ctx context.Context, actionID uuid.UUID) (map[string]any, error) {
				tasks, err := e.store.ListTasks(ctx, actionID)
				if err != nil {
					return nil, err
				}
				return map[string]any{"task_count": len(tasks)}, nil
			})
			if err != nil {
				return fmt.Errorf("subscribe: %w", err)
			}
			defer sub.Close()

			_, err = tea.NewProgram(newWatchModel(id, sub)).Run()
			return err
		},
	}
}

// watchEventMsg delivers one bus event to the tea Update loop. Grounded
// on go-claw's tui.planEventMsg/waitForPlanEvent pair, which bridges a
// blocking channel receive into bubbletea's Cmd model the same way.
type watchEventMsg struct {
	event bus.Event
}

func waitForEvent(sub *bus.Subscription) tea.Cmd {
	return func() tea.Msg {
		event, ok := <-sub.Events()
		if !ok {
			return nil
		}
		return watchEventMsg{event: event}
	}
}

type watchModel struct {
	actionID uuid.UUID
	sub      *bus.Subscription
	lines    []string
	quitting bool
}

func newWatchModel(actionID uuid.UUID, sub *bus.Subscription) watchModel {
	return watchModel{actionID: actionID, sub: sub}
}

func (m watchModel) Init() tea.Cmd {
	return waitForEvent(m.sub)
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		}
	case watchEventMsg:
		m.lines = append(m.lines, formatEvent(msg.event))
		if len(m.lines) > 200 {
			m.lines = m.lines[len(m.lines)-200:]
		}
		return m, waitForEvent(m.sub)
	}
	return m, nil
}

func formatEvent(e bus.Event) string {
	style := lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	switch e.Kind {
	case bus.KindTaskFailed, bus.KindActionFailed:
		style = style.Foreground(lipgloss.Color("203"))
	case bus.KindTaskDone, bus.KindActionDone:
		style = style.Foreground(lipgloss.Color("114"))
	case bus.KindLag:
		style = style.Foreground(lipgloss.Color("220"))
	case bus.KindPing:
		style = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	}
	ts := e.Timestamp.Format("15:04:05")
	return style.Render(fmt.Sprintf("%s  %-16s  %v", ts, e.Kind, e.Data))
}

func (m watchModel) View() string {
	header := lipgloss.NewStyle().Bold(true).Render(fmt.Sprintf("watching action %s — q to quit", m.actionID))
	var b strings.Builder
	b.WriteString(header + "\n\n")
	for _, l := range m.lines {
		b.WriteString(l + "\n")
	}
	return b.String()
}
