// Package tui implements the interactive receipt review screen: receipts no
// rule claimed are listed and the user assigns a category by hand.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Veraticus/receipt-sorter/internal/cli"
	"github.com/Veraticus/receipt-sorter/internal/model"
)

// AttributeSaver stores a manual classification.
type AttributeSaver interface {
	UpdateReceiptAttributes(ctx context.Context, receiptID string, attrs map[model.Attribute]string) error
}

// State is the current screen.
type State int

// Screens.
const (
	StateList State = iota
	StateCategory
	StateSubCategory
)

type savedMsg struct {
	err error
	id  string
}

// Model holds the review screen state.
type Model struct {
	ctx           context.Context
	saver         AttributeSaver
	lastErr       error
	help          help.Model
	keys          KeyMap
	chosen        model.Category
	receipts      []model.Receipt
	categories    []model.Category
	subCategories []model.SubCategory
	table         table.Model
	cursor        int
	saved         int
	skipped       int
	state         State
	quitting      bool
}

// NewModel creates a review screen over receipts.
func NewModel(ctx context.Context, saver AttributeSaver, receipts []model.Receipt) Model {
	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "Date", Width: 10},
			{Title: "Amount", Width: 10},
			{Title: "Type", Width: 12},
			{Title: "Seller", Width: 24},
			{Title: "Expense", Width: 12},
			{Title: "File", Width: 20},
		}),
		table.WithFocused(true),
		table.WithHeight(15),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(cli.SubtleColor).
		BorderBottom(true).
		Bold(false)
	s.Selected = s.Selected.Foreground(lipgloss.Color("#ffffff")).Background(cli.PrimaryColor)
	t.SetStyles(s)

	m := Model{
		ctx:           ctx,
		saver:         saver,
		receipts:      append([]model.Receipt(nil), receipts...),
		categories:    model.AllCategories(),
		subCategories: model.AllSubCategories(),
		table:         t,
		help:          help.New(),
		keys:          DefaultKeyMap(),
		state:         StateList,
	}
	m.refreshRows()
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.table.SetHeight(max(msg.Height-10, 3))
		m.help.Width = msg.Width
		return m, nil

	case savedMsg:
		if msg.err != nil {
			m.lastErr = msg.err
			m.state = StateList
			return m, nil
		}
		m.lastErr = nil
		m.saved++
		m.remove(msg.id)
		m.state = StateList
		if len(m.receipts) == 0 {
			m.quitting = true
			return m, tea.Quit
		}
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Quit) && (m.state == StateList || msg.String() == "ctrl+c") {
			m.quitting = true
			return m, tea.Quit
		}
		switch m.state {
		case StateList:
			return m.updateList(msg)
		case StateCategory:
			return m.updateCategory(msg), nil
		case StateSubCategory:
			return m.updateSubCategory(msg)
		}
	}
	return m, nil
}

func (m Model) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if len(m.receipts) == 0 {
		return m, nil
	}
	switch {
	case key.Matches(msg, m.keys.Enter):
		m.state = StateCategory
		m.cursor = 0
		return m, nil
	case key.Matches(msg, m.keys.Skip):
		m.skipped++
		m.remove(m.current().ID)
		if len(m.receipts) == 0 {
			m.quitting = true
			return m, tea.Quit
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m Model) updateCategory(msg tea.KeyMsg) Model {
	switch {
	case key.Matches(msg, m.keys.Up):
		m.cursor = max(m.cursor-1, 0)
	case key.Matches(msg, m.keys.Down):
		m.cursor = min(m.cursor+1, len(m.categories)-1)
	case key.Matches(msg, m.keys.Back):
		m.state = StateList
	case key.Matches(msg, m.keys.Enter):
		m.chosen = m.categories[m.cursor]
		m.state = StateSubCategory
		m.cursor = 0
	}
	return m
}

func (m Model) updateSubCategory(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Up):
		m.cursor = max(m.cursor-1, 0)
	case key.Matches(msg, m.keys.Down):
		m.cursor = min(m.cursor+1, len(m.subCategories)-1)
	case key.Matches(msg, m.keys.Back):
		m.state = StateCategory
		m.cursor = 0
	case key.Matches(msg, m.keys.None):
		return m, m.save(map[model.Attribute]string{model.AttrCategory: string(m.chosen)})
	case key.Matches(msg, m.keys.Enter):
		return m, m.save(map[model.Attribute]string{
			model.AttrCategory:    string(m.chosen),
			model.AttrSubCategory: string(m.subCategories[m.cursor]),
		})
	}
	return m, nil
}

func (m Model) save(attrs map[model.Attribute]string) tea.Cmd {
	id := m.current().ID
	ctx, saver := m.ctx, m.saver
	return func() tea.Msg {
		return savedMsg{id: id, err: saver.UpdateReceiptAttributes(ctx, id, attrs)}
	}
}

func (m Model) current() model.Receipt {
	i := m.table.Cursor()
	if i < 0 || i >= len(m.receipts) {
		i = 0
	}
	return m.receipts[i]
}

func (m *Model) remove(id string) {
	for i, r := range m.receipts {
		if r.ID == id {
			m.receipts = append(m.receipts[:i], m.receipts[i+1:]...)
			break
		}
	}
	m.refreshRows()
	if c := m.table.Cursor(); c >= len(m.receipts) && len(m.receipts) > 0 {
		m.table.SetCursor(len(m.receipts) - 1)
	}
}

func (m *Model) refreshRows() {
	rows := make([]table.Row, 0, len(m.receipts))
	for _, r := range m.receipts {
		rows = append(rows, table.Row{
			text(r.Fields, model.FieldDate),
			text(r.Fields, model.FieldAmount),
			text(r.Fields, model.FieldReceiptType),
			text(r.Fields, model.FieldSellerName),
			text(r.Fields, model.FieldExpenseType),
			text(r.Fields, model.FieldFileName),
		})
	}
	m.table.SetRows(rows)
}

func text(bag model.FieldBag, f model.Field) string {
	if v, ok := bag[f]; ok {
		return v.Text()
	}
	return ""
}

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(cli.TitleStyle.Render(fmt.Sprintf("%s Review receipts (%d left)", cli.ReceiptIcon, len(m.receipts))))
	b.WriteString("\n")

	switch m.state {
	case StateList:
		if len(m.receipts) == 0 {
			b.WriteString(cli.FormatSuccess("Nothing to review"))
		} else {
			b.WriteString(m.table.View())
		}
	case StateCategory:
		b.WriteString(cli.BoldStyle.Render("Category for " + m.current().ID))
		b.WriteString("\n")
		for i, c := range m.categories {
			b.WriteString(pickerLine(i == m.cursor, string(c)))
		}
	case StateSubCategory:
		b.WriteString(cli.BoldStyle.Render(fmt.Sprintf("Sub-category for %s (%s)", m.current().ID, m.chosen)))
		b.WriteString("\n")
		for i, sc := range m.subCategories {
			b.WriteString(pickerLine(i == m.cursor, string(sc)))
		}
	}

	b.WriteString("\n")
	if m.lastErr != nil {
		b.WriteString(cli.FormatError(m.lastErr.Error()))
		b.WriteString("\n")
	}
	b.WriteString(cli.SubtleStyle.Render(fmt.Sprintf("saved %d · skipped %d", m.saved, m.skipped)))
	b.WriteString("\n")
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func pickerLine(selected bool, label string) string {
	if selected {
		return cli.PromptStyle.Render("> "+label) + "\n"
	}
	return "  " + label + "\n"
}

// Saved returns how many receipts were classified by hand.
func (m Model) Saved() int {
	return m.saved
}
