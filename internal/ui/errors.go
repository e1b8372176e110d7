package ui

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/hlmonitor/engine/internal/store"
	"github.com/rivo/tview"
)

// FetchErrorsView lists per-address fetch failures from the last cycle so
// partial results are visible without hiding what succeeded.
type FetchErrorsView struct {
	list *tview.List
}

// NewFetchErrorsView creates a new fetch errors view.
func NewFetchErrorsView() *FetchErrorsView {
	list := tview.NewList().
		ShowSecondaryText(true)

	list.SetTitle(" Fetch Errors ").SetBorder(true)
	list.SetMainTextColor(tcell.ColorWhite)

	return &FetchErrorsView{list: list}
}

// Widget returns the tview primitive.
func (v *FetchErrorsView) Widget() tview.Primitive {
	return v.list
}

// SetErrors replaces the displayed failures with the last cycle's.
func (v *FetchErrorsView) SetErrors(fills, positions []store.RowError) {
	v.list.Clear()

	total := len(fills) + len(positions)
	if total == 0 {
		v.list.AddItem("All addresses loaded", "", 0, nil)
		v.list.SetTitle(" Fetch Errors ")
		return
	}

	for _, e := range fills {
		v.list.AddItem(
			fmt.Sprintf("[red]fills[-] %s", truncateAddress(e.Address)),
			e.Message, 0, nil)
	}
	for _, e := range positions {
		v.list.AddItem(
			fmt.Sprintf("[red]positions[-] %s", truncateAddress(e.Address)),
			e.Message, 0, nil)
	}

	v.list.SetTitle(fmt.Sprintf(" Fetch Errors (%d) ", total))
}
