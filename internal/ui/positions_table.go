package ui

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/hlmonitor/engine/internal/store"
	"github.com/rivo/tview"
)

var positionHeaders = []string{"Label", "Trader", "Coin", "Size", "Entry", "Value", "uPnL", "RoE", "Liq Price", "Margin", "Leverage"}

// PositionsView displays the active positions table.
type PositionsView struct {
	table *tview.Table
}

// NewPositionsView creates a new positions view.
func NewPositionsView() *PositionsView {
	table := tview.NewTable().
		SetBorders(false).
		SetFixed(1, 0)

	table.SetTitle(" Active Positions ").SetBorder(true)

	for col, header := range positionHeaders {
		cell := tview.NewTableCell(header).
			SetTextColor(tview.Styles.SecondaryTextColor).
			SetAlign(tview.AlignLeft).
			SetSelectable(false)
		table.SetCell(0, col, cell)
	}

	return &PositionsView{table: table}
}

// Widget returns the tview primitive.
func (v *PositionsView) Widget() tview.Primitive {
	return v.table
}

// SetTable replaces the displayed rows.
func (v *PositionsView) SetTable(t store.PositionsTable) {
	v.table.Clear()

	for col, header := range positionHeaders {
		cell := tview.NewTableCell(header).
			SetTextColor(tview.Styles.SecondaryTextColor).
			SetAlign(tview.AlignLeft).
			SetSelectable(false)
		v.table.SetCell(0, col, cell)
	}

	for i, pos := range t.Rows {
		row := i + 1

		// Signed size: green for longs, red for shorts
		sizeColor := tcell.ColorWhite
		if pos.Size > 0 {
			sizeColor = tcell.ColorGreen
		} else if pos.Size < 0 {
			sizeColor = tcell.ColorRed
		}

		pnlColor := tcell.ColorWhite
		if pos.UnrealizedPnl > 0 {
			pnlColor = tcell.ColorGreen
		} else if pos.UnrealizedPnl < 0 {
			pnlColor = tcell.ColorRed
		}

		leverage := ""
		if pos.LeverageKind != "" {
			leverage = fmt.Sprintf("%s %sx", pos.LeverageKind, formatNum(pos.LeverageValue))
		}

		cells := []string{
			pos.Label,
			truncateAddress(pos.Trader),
			pos.Coin,
			formatNum(pos.Size),
			formatNum(pos.EntryPrice),
			formatUSD(pos.PositionValue),
			formatUSD(pos.UnrealizedPnl),
			fmt.Sprintf("%s%%", formatNum(pos.ReturnOnEquity*100)),
			formatNum(pos.LiquidationPrice),
			formatUSD(pos.MarginUsed),
			leverage,
		}

		for col, text := range cells {
			cell := tview.NewTableCell(text).
				SetAlign(tview.AlignLeft)
			switch col {
			case 3:
				cell.SetTextColor(sizeColor)
			case 6, 7:
				cell.SetTextColor(pnlColor)
			}
			v.table.SetCell(row, col, cell)
		}
	}

	v.table.SetTitle(fmt.Sprintf(" Active Positions (%d) ", len(t.Rows)))
}
