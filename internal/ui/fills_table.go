package ui

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/hlmonitor/engine/internal/store"
	"github.com/rivo/tview"
)

var fillHeaders = []string{"Time", "Label", "Trader", "Coin", "Side", "Dir", "Price", "Size", "Notional", "Closed PnL", "Fee"}

// FillsView displays the recent fills table, newest first. Poll cycles
// replace the whole table; streamed fills are prepended between cycles.
type FillsView struct {
	table   *tview.Table
	rows    []store.FillRecord
	maxRows int
}

// NewFillsView creates a new fills view.
func NewFillsView() *FillsView {
	table := tview.NewTable().
		SetBorders(false).
		SetFixed(1, 0)

	table.SetTitle(" Recent Fills ").SetBorder(true)

	for col, header := range fillHeaders {
		cell := tview.NewTableCell(header).
			SetTextColor(tview.Styles.SecondaryTextColor).
			SetAlign(tview.AlignLeft).
			SetSelectable(false)
		table.SetCell(0, col, cell)
	}

	return &FillsView{
		table:   table,
		maxRows: 500,
	}
}

// Widget returns the tview primitive.
func (v *FillsView) Widget() tview.Primitive {
	return v.table
}

// SetTable replaces the displayed rows with a completed cycle's table.
func (v *FillsView) SetTable(table store.FillsTable) {
	v.rows = table.Rows
	if len(v.rows) > v.maxRows {
		v.rows = v.rows[:v.maxRows]
	}
	v.updateTable()
}

// AddLive prepends a streamed fill.
func (v *FillsView) AddLive(fill store.FillRecord) {
	v.rows = append([]store.FillRecord{fill}, v.rows...)
	if len(v.rows) > v.maxRows {
		v.rows = v.rows[:v.maxRows]
	}
	v.updateTable()
}

// updateTable redraws the table from current rows.
func (v *FillsView) updateTable() {
	v.table.Clear()

	for col, header := range fillHeaders {
		cell := tview.NewTableCell(header).
			SetTextColor(tview.Styles.SecondaryTextColor).
			SetAlign(tview.AlignLeft).
			SetSelectable(false)
		v.table.SetCell(0, col, cell)
	}

	for i, fill := range v.rows {
		row := i + 1

		timeStr := fill.Time
		if timeStr == "" {
			timeStr = "unknown"
		}

		sideColor := tcell.ColorWhite
		switch fill.Side {
		case "B":
			sideColor = tcell.ColorGreen
		case "A":
			sideColor = tcell.ColorRed
		}

		cells := []string{
			timeStr,
			fill.Label,
			truncateAddress(fill.Trader),
			fill.Coin,
			fill.Side,
			fill.Direction,
			formatNum(fill.Price),
			formatNum(fill.Size),
			formatUSD(fill.Notional),
			formatUSD(fill.ClosedPnl),
			formatNum(fill.Fee),
		}

		for col, text := range cells {
			cell := tview.NewTableCell(text).
				SetAlign(tview.AlignLeft)
			if col == 4 {
				cell.SetTextColor(sideColor)
			}
			if fill.Liquidation {
				cell.SetTextColor(tcell.ColorOrange)
			}
			v.table.SetCell(row, col, cell)
		}
	}

	v.table.SetTitle(fmt.Sprintf(" Recent Fills (%d) ", len(v.rows)))
}
