package cmd

import (
	"context"
	stdjson "encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/gdamore/tcell/v2"
	json "github.com/nwidger/jsoncolor"
	"github.com/rivo/tview"

	"github.com/hbagdi/tracepulse/pkg/db"
)

var (
	tBlack = tcell.NewRGBColor(0, 0, 0)
)

type browser struct {
	app           *tview.Application
	traceTextArea *tview.TextView
	traceListView *tview.List
	traces        []db.Trace
	pages         *tview.Pages
}

func (b *browser) Run() error {
	return b.app.Run()
}

func (b *browser) listHandler() {
	textArea := b.traceTextArea
	list := b.traceListView
	textArea.Clear()
	textArea.SetDynamicColors(true)
	i := list.GetCurrentItem()
	if i < 0 || i >= len(b.traces) {
		return
	}
	t := b.traces[i]

	fprintf(textArea, "%s %s\n", t.Method, t.URL)
	fprintf(textArea, "[#656565]%s[-:-:-]",
		time.Unix(t.CreatedAt, 0).Format("2006-01-02 15:04:05"))
	if t.IPAddress != "" {
		fprintf(textArea, "  [#656565]%s[-:-:-]", t.IPAddress)
	}
	if t.TLSVersion != "" {
		fprintf(textArea, "  [#656565]%s[-:-:-]", t.TLSVersion)
	}
	fprintf(textArea, "\n")
	if t.Error != "" {
		fprintf(textArea, "[red]error: %s[-:-:-]\n", t.Error)
	} else {
		fprintf(textArea, "[%s]%d[-:-:-]  %d bytes\n",
			colorForCode(t.StatusCode), t.StatusCode, t.ResponseSize)
	}
	fprintf(textArea, "\n")

	phases := []struct {
		name string
		ms   float64
	}{
		{"DNS Lookup", t.DNSMs},
		{"TCP Connect", t.TCPConnectMs},
		{"TLS Handshake", t.TLSHandshakeMs},
		{"Server Processing", t.ServerProcessingMs},
		{"Content Transfer", t.ContentTransferMs},
	}
	for _, p := range phases {
		pct := 0.0
		if t.TotalMs > 0 {
			pct = p.ms / t.TotalMs * 100
		}
		c := "white"
		if pct > 50 {
			c = "yellow"
		}
		fprintf(textArea, "[%s]%-18s %9.2fms %5.1f%%[-:-:-]\n",
			c, p.name, p.ms, pct)
	}
	fprintf(textArea, "%-18s %9.2fms\n\n", "Total", t.TotalMs)

	sections := []struct {
		title string
		blob  string
	}{
		{"Request headers", t.HeadersSent},
		{"Response headers", t.HeadersReceived},
	}
	for _, sec := range sections {
		js, err := prettyPrint([]byte(sec.blob))
		if err != nil || len(js) == 0 {
			continue
		}
		fprintf(textArea, "[teal]%s[-:-:-]\n%s\n\n", sec.title, js)
	}
}

type fi struct {
	color string
}

func (f fi) SprintfFunc() func(format string, a ...interface{}) string {
	return func(format string, a ...interface{}) string {
		return fmt.Sprintf("["+f.color+"]"+format+"[-:-:-]", a...)
	}
}

var formatter *json.Formatter

func init() {
	f := json.NewFormatter()
	white := fi{color: "white"}
	blue := fi{color: "blue"}
	yellow := fi{color: "yellow"}
	green := fi{color: "green"}

	f.ObjectColor = white
	f.ArrayColor = white
	f.FieldQuoteColor = white
	f.CommaColor = white
	f.StringQuoteColor = white
	f.ColonColor = white
	f.SpaceColor = white

	f.FieldColor = blue

	f.NullColor = fi{color: "#656565"}

	f.StringColor = green

	f.TrueColor = yellow
	f.FalseColor = yellow

	f.NumberColor = blue
	formatter = f
}

func prettyPrint(js []byte) ([]byte, error) {
	if len(js) == 0 {
		return js, nil
	}

	var m interface{}
	err := stdjson.Unmarshal(js, &m)
	if err != nil {
		// probably not valid json
		return js, nil
	}

	dst, err := json.MarshalIndentWithFormatter(m, "", "  ", formatter)
	if err != nil {
		return nil, err
	}
	return dst, nil
}

func (b *browser) keyHandler(event *tcell.EventKey) *tcell.EventKey {
	if event.Key() == tcell.KeyRune {
		if event.Rune() == 'q' {
			b.app.Stop()
		}
	}
	return event
}

func (b *browser) setupMainPage() {
	sidebarFrame := tview.NewFrame(b.traceListView)
	sidebarFrame.SetBackgroundColor(tBlack)
	sidebarFrame.AddText("Traces", true, tview.AlignCenter, tcell.ColorAntiqueWhite)
	sidebarFrame.SetBorders(0, 0, 0, 0, 0, 0)

	mainFlexbox := tview.NewFlex()
	mainFlexbox.SetBackgroundColor(tBlack)
	mainFlexbox.AddItem(sidebarFrame, 0, 1, true).
		AddItem(tview.NewFlex().SetDirection(tview.FlexRow).
			AddItem(b.traceTextArea, 0, 4, false), 0, 4, false)

	mainFlexbox.SetInputCapture(b.keyHandler)

	mainFrame := tview.NewFrame(mainFlexbox)
	mainFrame.AddText("[::b]tracepulse browser[::-]", true, tview.AlignCenter,
		tcell.ColorWhite).
		SetBorders(0, 0, 0, 0, 0, 0).
		AddText("[q[] Quit", false, tview.AlignCenter, tcell.ColorWhite)

	mainFrame.SetTitle("tracepulse browser").
		SetBorder(false).
		SetBorderPadding(0, 0, 0, 0).
		SetBackgroundColor(tBlack)

	b.pages.AddPage("main-page", mainFrame, true, true)
}

func (b *browser) setupTraceTextArea() {
	b.traceTextArea = tview.NewTextView()
	b.traceTextArea.
		SetBorderPadding(1, 1, 1, 1).
		SetBorder(true).
		SetBackgroundColor(tBlack)
}

func (b *browser) setupApp() {
	b.app = tview.NewApplication().
		SetRoot(b.pages, true).
		EnableMouse(true)
}

func (b *browser) setupPages() {
	b.pages = tview.NewPages()
}

func (b *browser) setupTraceList() {
	b.traceListView = tview.NewList()
	b.traceListView.
		SetChangedFunc(func(index int, mainText string, secondaryText string, shortcut rune) {
			b.listHandler()
		}).
		SetFocusFunc(func() {
			b.listHandler()
		})
	b.traceListView.ShowSecondaryText(false).
		SetBorder(false).
		SetBackgroundColor(tBlack)
	b.refreshListView()
}

func (b *browser) refreshListView() {
	b.traceListView.Clear()
	for i := 0; i < len(b.traces); i++ {
		t := b.traces[i]
		var title string
		if t.Error != "" {
			title = fmt.Sprintf("[red]ERR[-] %s %s", t.Method, t.URL)
		} else {
			title = fmt.Sprintf("[%s][%d][-] %s %s",
				colorForCode(t.StatusCode), t.StatusCode, t.Method, t.URL)
		}
		b.traceListView.AddItem(title, "", 0, func() {
		})
	}
}

func newBrowser(ctx context.Context, store *db.Store) (*browser, error) {
	traces, err := store.ListTraces(ctx, db.ListOpts{Limit: 200})
	if err != nil {
		return nil, fmt.Errorf("list traces: %v", err)
	}

	b := &browser{
		traces: traces,
	}

	b.setupTraceTextArea()
	b.setupTraceList()
	b.setupPages()
	b.setupApp()
	b.setupMainPage()

	return b, nil
}

func executeBrowse(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore(store)

	b, err := newBrowser(ctx, store)
	if err != nil {
		return fmt.Errorf("set up browser: %v", err)
	}
	if err := b.Run(); err != nil {
		return fmt.Errorf("run browser: %v", err)
	}
	return nil
}

//nolint:gomnd
func colorForCode(code int) string {
	switch {
	case code < 200:
		return "white"
	case code < 300:
		return "green"
	case code < 500:
		return "yellow"
	case code < 600:
		return "red"
	default:
		return "white"
	}
}

func fprintf(w io.Writer, format string, a ...any) {
	_, err := fmt.Fprintf(w, format, a...)
	if err != nil {
		panic(fmt.Sprintf("fmt.Fprintf failed: %v", err))
	}
}
