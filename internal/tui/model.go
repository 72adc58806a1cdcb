// Package tui renders the follow-up dashboard: open issues first, task detail on demand.
package tui

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"strings"

	"charm.land/bubbles/v2/help"
	"charm.land/bubbles/v2/key"
	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	"github.com/g3/tornado/internal/adapters/server/common"
)

// Service is the slice of the tracker the dashboard drives.
type Service interface {
	ListIssues(ctx context.Context, all bool) ([]common.Issue, error)
	GetTask(ctx context.Context, taskID string) (common.Task, error)
	ListNotes(ctx context.Context, taskID string) ([]common.Note, error)
	AddNote(ctx context.Context, taskID string, in common.NoteRequest) (common.Note, error)
	CompleteGate(ctx context.Context, taskID, gateID string) (common.Task, error)
	CloseTask(ctx context.Context, taskID string) (common.Task, error)
}

// inputMode represents a selectable mode.
type inputMode int

const (
	modeNone inputMode = iota
	modeTaskInfo
	modeAddNote
)

// notesViewLimit caps rendered notes in the detail pane.
const notesViewLimit = 5

// Model is the dashboard state.
type Model struct {
	ctx context.Context
	svc Service

	ready  bool
	width  int
	height int
	err    error
	status string

	help     help.Model
	keys     keyMap
	markdown *markdownRenderer
	copyText func(string) error

	allScope bool
	issues   []common.Issue
	selected int

	mode      inputMode
	task      common.Task
	notes     []common.Note
	noteInput textinput.Model
}

type issuesLoadedMsg struct {
	issues []common.Issue
	err    error
}

type taskLoadedMsg struct {
	task  common.Task
	notes []common.Note
	err   error
}

type actionMsg struct {
	status string
	taskID string
	err    error
}

// NewModel builds a dashboard. ctx must carry the acting user.
func NewModel(ctx context.Context, svc Service, opts ...Option) Model {
	if ctx == nil {
		ctx = context.Background()
	}
	h := help.New()
	h.ShowAll = false
	in := textinput.New()
	in.Prompt = ""
	in.Placeholder = "what moved? (markdown)"
	in.CharLimit = 4000

	m := Model{
		ctx:       ctx,
		svc:       svc,
		status:    "loading...",
		help:      h,
		keys:      newKeyMap(),
		markdown:  &markdownRenderer{},
		copyText:  defaultClipboard,
		noteInput: in,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&m)
		}
	}
	return m
}

// Init loads the first page of issues.
func (m Model) Init() tea.Cmd {
	return m.loadIssues
}

// Update updates state for the requested operation.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case issuesLoadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.issues = msg.issues
		m.selected = clamp(m.selected, 0, len(m.issues)-1)
		if m.status == "" || m.status == "loading..." {
			m.status = "ready"
		}
		return m, nil

	case taskLoadedMsg:
		if msg.err != nil {
			m.status = "load task failed: " + msg.err.Error()
			m.mode = modeNone
			return m, nil
		}
		m.task = msg.task
		m.notes = msg.notes
		if m.mode == modeNone {
			m.mode = modeTaskInfo
		}
		return m, nil

	case actionMsg:
		if msg.err != nil {
			m.status = msg.err.Error()
			return m, nil
		}
		m.status = msg.status
		cmds := []tea.Cmd{m.loadIssues}
		if msg.taskID != "" && m.mode != modeNone {
			cmds = append(cmds, m.loadTask(msg.taskID))
		}
		return m, tea.Batch(cmds...)

	case tea.KeyPressMsg:
		switch m.mode {
		case modeAddNote:
			return m.handleNoteKey(msg)
		case modeTaskInfo:
			return m.handleTaskInfoKey(msg)
		default:
			return m.handleNormalModeKey(msg)
		}

	default:
		return m, nil
	}
}

// View handles view.
func (m Model) View() tea.View {
	v := tea.NewView(m.render())
	v.AltScreen = true
	return v
}

// render builds the full screen as text.
func (m Model) render() string {
	if m.err != nil {
		return "error: " + m.err.Error() + "\n\npress r to retry • q quit\n"
	}
	if !m.ready {
		return "loading..."
	}

	accent := lipgloss.Color("62")
	muted := lipgloss.Color("241")
	dim := lipgloss.Color("239")

	var content string
	switch m.mode {
	case modeTaskInfo, modeAddNote:
		content = m.renderTaskInfo(accent, muted, dim)
	default:
		content = m.renderIssues(accent, muted, dim)
	}

	helpBubble := m.help
	helpBubble.SetWidth(max(0, m.width-2))
	helpLine := lipgloss.NewStyle().
		Foreground(muted).
		BorderTop(true).
		BorderForeground(dim).
		Padding(0, 1).
		Width(max(0, m.width)).
		Render(helpBubble.View(m.keys))
	if m.height > 0 {
		content = fitLines(content, max(0, m.height-lipgloss.Height(helpLine)))
	}
	return content + "\n" + helpLine
}

// renderIssues renders the ranked issue list.
func (m Model) renderIssues(accent, muted, dim color.Color) string {
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252"))
	statusStyle := lipgloss.NewStyle().Foreground(dim)
	scope := "visible"
	if m.allScope {
		scope = "all"
	}
	lines := []string{
		titleStyle.Render("tornado") + statusStyle.Render(fmt.Sprintf("  issues: %d  scope: %s", len(m.issues), scope)),
		"",
	}
	if len(m.issues) == 0 {
		lines = append(lines, lipgloss.NewStyle().Foreground(muted).Render("Nothing needs a follow-up. Press r to reload."))
	}

	rowWidth := max(40, m.width-4)
	for idx, issue := range m.issues {
		badge := severityStyle(issue.Severity).Render(fmt.Sprintf("%-8s", issue.Severity))
		row := badge + " " + truncate(fmt.Sprintf("%-15s %s · %s", issue.Kind, issue.ProjectName, issue.TaskDescription), rowWidth-9)
		detail := "   " + issue.Summary
		if idx == m.selected {
			row = lipgloss.NewStyle().Foreground(accent).Bold(true).Render("› ") + row
		} else {
			row = "  " + row
		}
		lines = append(lines, row, lipgloss.NewStyle().Foreground(muted).Render(truncate(detail, rowWidth)))
	}
	if s := strings.TrimSpace(m.status); s != "" && s != "ready" {
		lines = append(lines, "", statusStyle.Render(s))
	}
	return strings.Join(lines, "\n")
}

// renderTaskInfo renders one task with gates and recent notes.
func (m Model) renderTaskInfo(accent, muted, dim color.Color) string {
	t := m.task
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252"))
	sectionStyle := lipgloss.NewStyle().Bold(true).Foreground(accent)
	hintStyle := lipgloss.NewStyle().Foreground(muted)

	owners := make([]string, 0, len(t.Owners))
	for _, o := range t.Owners {
		owners = append(owners, o.Name)
	}
	stale := ""
	if t.IsStale {
		stale = severityStyle("critical").Render("  stale")
	}
	lines := []string{
		titleStyle.Render(t.Description),
		hintStyle.Render(fmt.Sprintf("%s · %s · owners: %s", t.ProjectName, t.Status, strings.Join(owners, ", "))),
		hintStyle.Render(fmt.Sprintf("moved %d days ago · cadence %d days", t.DaysSinceMovement, t.CadenceDays)) + stale,
	}
	if t.NextStep != "" {
		lines = append(lines, "next: "+t.NextStep)
	}

	lines = append(lines, "", sectionStyle.Render("Gates"))
	if len(t.Gates) == 0 {
		lines = append(lines, hintStyle.Render("  none"))
	}
	for _, g := range t.Gates {
		mark := "[ ]"
		if g.Completed {
			mark = "[x]"
		}
		line := fmt.Sprintf("  %s %s", mark, g.Name)
		if g.OwnerName != "" {
			line += hintStyle.Render(" (" + g.OwnerName + ")")
		}
		if g.Active {
			line += lipgloss.NewStyle().Foreground(accent).Render("  ← waiting")
		}
		lines = append(lines, line)
	}

	lines = append(lines, "", sectionStyle.Render("Notes"))
	if len(m.notes) == 0 {
		lines = append(lines, hintStyle.Render("  no notes yet"))
	}
	wrap := max(24, m.width-6)
	for i, n := range m.notes {
		if i == notesViewLimit {
			lines = append(lines, hintStyle.Render(fmt.Sprintf("  … %d older", len(m.notes)-notesViewLimit)))
			break
		}
		lines = append(lines, hintStyle.Render(n.CreatedAt.Format("2006-01-02 15:04")+"  "+n.AuthorUserID))
		lines = append(lines, m.markdown.render(n.Body, wrap))
	}

	if m.mode == modeAddNote {
		in := m.noteInput
		in.SetWidth(max(20, m.width-12))
		lines = append(lines, "", "note: "+in.View(), hintStyle.Render("enter save • esc cancel"))
	}
	if s := strings.TrimSpace(m.status); s != "" && s != "ready" {
		lines = append(lines, "", lipgloss.NewStyle().Foreground(dim).Render(s))
	}
	return strings.Join(lines, "\n")
}

// handleNormalModeKey handles keys on the issue list.
func (m Model) handleNormalModeKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.toggleHelp):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	case key.Matches(msg, m.keys.reload):
		m.status = "loading..."
		return m, m.loadIssues
	case key.Matches(msg, m.keys.moveDown):
		m.selected = clamp(m.selected+1, 0, len(m.issues)-1)
		return m, nil
	case key.Matches(msg, m.keys.moveUp):
		m.selected = clamp(m.selected-1, 0, len(m.issues)-1)
		return m, nil
	case key.Matches(msg, m.keys.toggleScope):
		m.allScope = !m.allScope
		m.selected = 0
		return m, m.loadIssues
	}

	issue, ok := m.selectedIssue()
	if !ok {
		return m, nil
	}
	switch {
	case key.Matches(msg, m.keys.taskInfo):
		return m, m.loadTask(issue.TaskID)
	case key.Matches(msg, m.keys.copyTaskID):
		return m, m.copyID(issue.TaskID)
	case key.Matches(msg, m.keys.requestClose):
		return m, m.requestClose(issue.TaskID)
	case key.Matches(msg, m.keys.addNote):
		m.task = common.Task{ID: issue.TaskID, Description: issue.TaskDescription, ProjectName: issue.ProjectName}
		m.notes = nil
		m.mode = modeAddNote
		m.noteInput.SetValue("")
		return m, tea.Batch(m.noteInput.Focus(), m.loadTask(issue.TaskID))
	}
	return m, nil
}

// handleTaskInfoKey handles keys on the task detail view.
func (m Model) handleTaskInfoKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.back):
		m.mode = modeNone
		return m, nil
	case key.Matches(msg, m.keys.toggleHelp):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	case key.Matches(msg, m.keys.reload):
		return m, m.loadTask(m.task.ID)
	case key.Matches(msg, m.keys.copyTaskID):
		return m, m.copyID(m.task.ID)
	case key.Matches(msg, m.keys.addNote):
		m.mode = modeAddNote
		m.noteInput.SetValue("")
		return m, m.noteInput.Focus()
	case key.Matches(msg, m.keys.completeGate):
		if m.task.ActiveGate == nil {
			m.status = "task is not gated"
			return m, nil
		}
		return m, m.completeGate(m.task.ID, m.task.ActiveGate.ID)
	case key.Matches(msg, m.keys.requestClose):
		return m, m.requestClose(m.task.ID)
	}
	return m, nil
}

// handleNoteKey handles keys while the note composer is focused.
func (m Model) handleNoteKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.noteInput.Blur()
		m.mode = modeTaskInfo
		return m, nil
	case "enter":
		body := strings.TrimSpace(m.noteInput.Value())
		if body == "" {
			m.status = "note is empty"
			return m, nil
		}
		m.noteInput.Blur()
		m.mode = modeTaskInfo
		return m, m.addNote(m.task.ID, body)
	}
	var cmd tea.Cmd
	m.noteInput, cmd = m.noteInput.Update(msg)
	return m, cmd
}

func (m Model) selectedIssue() (common.Issue, bool) {
	if len(m.issues) == 0 {
		return common.Issue{}, false
	}
	return m.issues[clamp(m.selected, 0, len(m.issues)-1)], true
}

// loadIssues fetches the ranked issue list.
func (m Model) loadIssues() tea.Msg {
	issues, err := m.svc.ListIssues(m.ctx, m.allScope)
	return issuesLoadedMsg{issues: issues, err: err}
}

// loadTask fetches one task and its notes, newest first.
func (m Model) loadTask(taskID string) tea.Cmd {
	return func() tea.Msg {
		task, err := m.svc.GetTask(m.ctx, taskID)
		if err != nil {
			return taskLoadedMsg{err: err}
		}
		notes, err := m.svc.ListNotes(m.ctx, taskID)
		if err != nil {
			return taskLoadedMsg{err: err}
		}
		newestFirst := make([]common.Note, 0, len(notes))
		for i := len(notes) - 1; i >= 0; i-- {
			newestFirst = append(newestFirst, notes[i])
		}
		return taskLoadedMsg{task: task, notes: newestFirst}
	}
}

func (m Model) addNote(taskID, body string) tea.Cmd {
	return func() tea.Msg {
		if _, err := m.svc.AddNote(m.ctx, taskID, common.NoteRequest{Body: body}); err != nil {
			return actionMsg{err: fmt.Errorf("add note: %w", err)}
		}
		return actionMsg{status: "note added", taskID: taskID}
	}
}

func (m Model) completeGate(taskID, gateID string) tea.Cmd {
	return func() tea.Msg {
		if _, err := m.svc.CompleteGate(m.ctx, taskID, gateID); err != nil {
			return actionMsg{err: fmt.Errorf("complete gate: %w", err)}
		}
		return actionMsg{status: "gate completed", taskID: taskID}
	}
}

func (m Model) requestClose(taskID string) tea.Cmd {
	return func() tea.Msg {
		task, err := m.svc.CloseTask(m.ctx, taskID)
		if err != nil {
			return actionMsg{err: fmt.Errorf("close task: %w", err)}
		}
		status := "close requested"
		if task.Status == "closed" {
			status = "task closed"
		}
		return actionMsg{status: status, taskID: taskID}
	}
}

func (m Model) copyID(taskID string) tea.Cmd {
	return func() tea.Msg {
		if m.copyText == nil {
			return actionMsg{err: errors.New("clipboard unavailable")}
		}
		if err := m.copyText(taskID); err != nil {
			return actionMsg{err: fmt.Errorf("copy task id: %w", err)}
		}
		return actionMsg{status: "copied " + taskID}
	}
}

// severityStyle colors one severity badge.
func severityStyle(severity string) lipgloss.Style {
	switch severity {
	case "critical":
		return lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	case "warning":
		return lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	default:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	}
}

// clamp clamps v into [minV, maxV]; an empty range yields minV.
func clamp(v, minV, maxV int) int {
	if maxV < minV {
		return minV
	}
	if v < minV {
		return minV
	}
	if v > maxV {
		return maxV
	}
	return v
}

// fitLines pads or truncates content to exactly maxLines.
func fitLines(content string, maxLines int) string {
	if maxLines <= 0 {
		return ""
	}
	lines := strings.Split(content, "\n")
	switch {
	case len(lines) > maxLines:
		if maxLines == 1 {
			lines = []string{"…"}
		} else {
			lines = append(lines[:maxLines-1], "…")
		}
	case len(lines) < maxLines:
		lines = append(lines, make([]string, maxLines-len(lines))...)
	}
	return strings.Join(lines, "\n")
}

// truncate shortens s to at most n runes with a trailing ellipsis.
func truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	rs := []rune(s)
	if len(rs) <= n {
		return s
	}
	if n <= 1 {
		return string(rs[:n])
	}
	return string(rs[:n-1]) + "…"
}
