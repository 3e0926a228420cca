package tui

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Veraticus/receipt-sorter/internal/model"
)

// Run shows the review screen until the user quits, ctx ends or every
// receipt is handled. It returns how many receipts were saved.
func Run(ctx context.Context, saver AttributeSaver, receipts []model.Receipt) (int, error) {
	if saver == nil {
		return 0, fmt.Errorf("saver is required")
	}

	p := tea.NewProgram(NewModel(ctx, saver, receipts), tea.WithContext(ctx), tea.WithAltScreen())
	final, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) {
		return 0, ctx.Err()
	}
	if err != nil {
		return 0, fmt.Errorf("review screen failed: %w", err)
	}
	m, ok := final.(Model)
	if !ok {
		return 0, nil
	}
	return m.Saved(), nil
}
