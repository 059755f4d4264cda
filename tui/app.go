// Package tui provides a terminal monitor for live register values.
package tui

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"rmclink/gateway"
	"rmclink/rmc"
)

// RefreshInterval is how often the table redraws from the gateway snapshot.
const RefreshInterval = 500 * time.Millisecond

// App is the terminal monitor application.
type App struct {
	app       *tview.Application
	pages     *tview.Pages
	table     *tview.Table
	statusBar *tview.TextView

	gw       *gateway.Gateway
	rows     []rowRef
	stopChan chan struct{}
}

// rowRef maps a table row back to its register.
type rowRef struct {
	group    string
	index    int
	writable bool
}

// NewApp creates a new monitor bound to a running gateway.
func NewApp(gw *gateway.Gateway) *App {
	a := &App{
		app:      tview.NewApplication(),
		gw:       gw,
		stopChan: make(chan struct{}),
	}
	a.setupUI()
	return a
}

func (a *App) setupUI() {
	a.table = tview.NewTable().
		SetBorders(false).
		SetFixed(1, 0).
		SetSelectable(true, false)
	a.table.SetBorder(true).SetTitle(" Registers ")

	a.statusBar = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)

	flex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.table, 0, 1, true).
		AddItem(a.statusBar, 1, 0, false)

	a.pages = tview.NewPages()
	a.pages.AddPage("main", flex, true, true)

	a.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		// Don't steal keys from the write prompt.
		if front, _ := a.pages.GetFrontPage(); front != "main" {
			if event.Key() == tcell.KeyCtrlC {
				a.app.Stop()
				return nil
			}
			return event
		}
		switch event.Rune() {
		case 'q', 'Q':
			a.app.Stop()
			return nil
		case 'r', 'R':
			a.refresh()
			return nil
		case 'w', 'W':
			a.promptWrite()
			return nil
		}
		if event.Key() == tcell.KeyEscape || event.Key() == tcell.KeyCtrlC {
			a.app.Stop()
			return nil
		}
		return event
	})

	a.app.SetRoot(a.pages, true)
}

// promptWrite opens an input modal for the selected register if it is
// writable.
func (a *App) promptWrite() {
	row, _ := a.table.GetSelection()
	i := row - 1
	if i < 0 || i >= len(a.rows) {
		return
	}
	ref := a.rows[i]
	if !ref.writable {
		a.statusBar.SetText(fmt.Sprintf(" [red]%s[%d] is not writable[-]", ref.group, ref.index))
		return
	}

	input := tview.NewInputField().
		SetLabel(fmt.Sprintf("%s[%d] = ", ref.group, ref.index)).
		SetFieldWidth(20)
	input.SetBorder(true).SetTitle(" Write Register ")

	closePrompt := func() {
		a.pages.RemovePage("write")
		a.app.SetFocus(a.table)
	}

	input.SetDoneFunc(func(key tcell.Key) {
		if key == tcell.KeyEscape {
			closePrompt()
			return
		}
		value, err := strconv.ParseFloat(input.GetText(), 64)
		if err != nil {
			a.statusBar.SetText(" [red]invalid number[-]")
			closePrompt()
			return
		}
		if err := a.gw.Write(ref.group, ref.index, value); err != nil {
			a.statusBar.SetText(" [red]" + err.Error() + "[-]")
		} else {
			a.statusBar.SetText(fmt.Sprintf(" wrote %v to %s[%d]", value, ref.group, ref.index))
		}
		closePrompt()
	})

	modal := tview.NewFlex().
		AddItem(nil, 0, 1, false).
		AddItem(tview.NewFlex().SetDirection(tview.FlexRow).
			AddItem(nil, 0, 1, false).
			AddItem(input, 3, 0, true).
			AddItem(nil, 0, 1, false), 44, 0, true).
		AddItem(nil, 0, 1, false)

	a.pages.AddPage("write", modal, true, true)
	a.app.SetFocus(input)
}

// Run starts the refresh loop and blocks until the user quits.
func (a *App) Run() error {
	go a.refreshLoop()
	defer close(a.stopChan)
	return a.app.Run()
}

func (a *App) refreshLoop() {
	ticker := time.NewTicker(RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-a.stopChan:
			return
		case <-ticker.C:
			a.app.QueueUpdateDraw(a.refresh)
		}
	}
}

var headers = []string{"Group", "Address", "Type", "Writable", "Value", "Updated"}

// refresh redraws the table from the gateway's latest snapshot.
func (a *App) refresh() {
	a.table.Clear()

	for col, h := range headers {
		cell := tview.NewTableCell(h).
			SetTextColor(tcell.ColorYellow).
			SetSelectable(false).
			SetAttributes(tcell.AttrBold)
		a.table.SetCell(0, col, cell)
	}

	a.rows = a.rows[:0]
	row := 1
	for _, gv := range a.gw.Snapshot() {
		for i, v := range gv.Values {
			a.rows = append(a.rows, rowRef{group: gv.Group, index: i, writable: gv.Writable})
			writable := ""
			if gv.Writable {
				writable = "yes"
			}
			a.table.SetCell(row, 0, tview.NewTableCell(gv.Group))
			a.table.SetCell(row, 1, tview.NewTableCell(elementAddress(gv.Address, i)))
			a.table.SetCell(row, 2, tview.NewTableCell(gv.Type))
			a.table.SetCell(row, 3, tview.NewTableCell(writable))
			a.table.SetCell(row, 4, tview.NewTableCell(fmt.Sprintf("%v", v)).
				SetTextColor(tcell.ColorGreen))
			a.table.SetCell(row, 5, tview.NewTableCell(gv.Updated.Format("15:04:05")))
			row++
		}
	}

	st := a.gw.Status()
	state := "[red]OFFLINE[-]"
	if st.Connected {
		state = "[green]ONLINE[-]"
	}
	status := fmt.Sprintf(" %s  %s  polls:%d errors:%d  (w)rite (r)efresh (q)uit",
		st.Controller, state, st.PollCount, st.ErrorCount)
	if st.LastError != "" {
		status += "  [red]" + st.LastError + "[-]"
	}
	a.statusBar.SetText(status)
}

// elementAddress shifts a group's base address string by an element offset.
func elementAddress(base string, offset int) string {
	if offset == 0 {
		return base
	}
	addr, err := rmc.ParseAddress(base)
	if err != nil {
		return fmt.Sprintf("%s+%d", base, offset)
	}
	addr.Element += uint16(offset)
	return addr.String()
}
