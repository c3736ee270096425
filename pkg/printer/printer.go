// Package printer renders timing breakdowns for the console and the
// browse UI.
package printer

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/hbagdi/tracepulse/pkg/tracer"
	"github.com/nwidger/jsoncolor"
)

type Printer struct {
	writer io.Writer
	mode   Mode
}

type Mode int

const (
	ModeColorConsole = iota
	ModeBrowser
	ModeNoColor
)

type Opts struct {
	Writer io.Writer
	Mode   Mode
}

func NewPrinter(opts Opts) Printer {
	return Printer{
		writer: opts.Writer,
		mode:   opts.Mode,
	}
}

type colorPrinter interface {
	SprintfFunc() func(format string, a ...interface{}) string
}

type noColor struct {
}

func (n noColor) SprintfFunc() func(format string, a ...interface{}) string {
	return fmt.Sprintf
}

type tvColor struct {
	color string
}

func (c tvColor) SprintfFunc() func(format string, a ...interface{}) string {
	return func(format string, a ...interface{}) string {
		return fmt.Sprintf("["+c.color+"]"+format+"[-:-:-]", a...)
	}
}

type colorName int

const (
	white colorName = iota
	cyan
	yellow
	grey
	blue
	green
	red
)

var (
	consoleColors = map[colorName]colorPrinter{}
	browserColors = map[colorName]colorPrinter{}
)

func init() {
	consoleColors[white] = color.New(color.FgWhite)
	browserColors[white] = tvColor{color: "white"}

	consoleColors[cyan] = color.New(color.FgCyan)
	browserColors[cyan] = tvColor{color: "darkcyan"}

	consoleColors[yellow] = color.New(color.FgYellow)
	browserColors[yellow] = tvColor{color: "yellow"}

	consoleColors[grey] = color.New(color.FgBlack, color.Bold)
	browserColors[grey] = tvColor{color: "#656565"}

	consoleColors[blue] = color.New(color.FgBlue)
	browserColors[blue] = tvColor{color: "blue"}

	consoleColors[green] = color.New(color.FgGreen)
	browserColors[green] = tvColor{color: "green"}

	consoleColors[red] = color.New(color.FgRed)
	browserColors[red] = tvColor{color: "red"}
}

func (p Printer) colorPrinterFor(name colorName) colorPrinter {
	switch p.mode {
	case ModeColorConsole:
		return consoleColors[name]
	case ModeBrowser:
		return browserColors[name]
	case ModeNoColor:
		return noColor{}
	default:
		panic(fmt.Sprintf("invalid mode: %v", p.mode))
	}
}

// barWidth is the character width of a full phase bar.
const barWidth = 40

// bottleneckPct marks a phase as the dominant cost of a trace.
const bottleneckPct = 50.0

type phaseRow struct {
	name string
	ms   float64
}

func phaseRows(b *tracer.TimingBreakdown) []phaseRow {
	return []phaseRow{
		{"DNS Lookup", b.DNSMs},
		{"TCP Connect", b.TCPConnectMs},
		{"TLS Handshake", b.TLSHandshakeMs},
		{"Server Processing", b.ServerProcessingMs},
		{"Content Transfer", b.ContentTransferMs},
	}
}

// Print renders one breakdown as a phase waterfall. Phases consuming more
// than half of the total are flagged as the bottleneck.
func (p Printer) Print(b *tracer.TimingBreakdown) error {
	whiteS := p.colorPrinterFor(white).SprintfFunc()
	cyanS := p.colorPrinterFor(cyan).SprintfFunc()
	greyS := p.colorPrinterFor(grey).SprintfFunc()
	yellowS := p.colorPrinterFor(yellow).SprintfFunc()
	redS := p.colorPrinterFor(red).SprintfFunc()

	fmt.Fprintf(p.writer, "%s", cyanS("%s %s\n", b.Method, b.URL))
	if b.IPAddress != "" {
		fmt.Fprintf(p.writer, "%s", greyS("%s", b.IPAddress))
		if b.TLSVersion != "" {
			fmt.Fprintf(p.writer, "%s", greyS("  %s", b.TLSVersion))
		}
		fmt.Fprintln(p.writer)
	}
	if b.Failed() {
		fmt.Fprintf(p.writer, "%s", redS("error(%s): %s\n", b.ErrorKind, b.Error))
	} else {
		fmt.Fprintf(p.writer, "%s", whiteS("%d  %s\n",
			b.StatusCode, formatSize(b.ResponseSize)))
	}
	if b.GeoInfo != "" {
		fmt.Fprintf(p.writer, "%s", greyS("%s\n", b.GeoInfo))
	}
	fmt.Fprintln(p.writer)

	for _, row := range phaseRows(b) {
		pct := 0.0
		if b.TotalMs > 0 {
			pct = row.ms / b.TotalMs * 100
		}
		filled := int(pct / 100 * barWidth)
		if filled > barWidth {
			filled = barWidth
		}
		bar := strings.Repeat("█", filled) +
			strings.Repeat("░", barWidth-filled)
		line := fmt.Sprintf("%-18s %s %9.2fms %5.1f%%",
			row.name, bar, tracer.RoundMs(row.ms), pct)
		if pct > bottleneckPct {
			fmt.Fprintf(p.writer, "%s", yellowS("%s  <-- bottleneck\n", line))
		} else {
			fmt.Fprintf(p.writer, "%s", whiteS("%s\n", line))
		}
	}
	if overhead := b.OverheadMs(); overhead >= 0.01 {
		fmt.Fprintf(p.writer, "%s", greyS("%-18s %s %9.2fms\n",
			"Overhead", strings.Repeat(" ", barWidth), tracer.RoundMs(overhead)))
	}
	fmt.Fprintf(p.writer, "%s", whiteS("%-18s %s %9.2fms\n",
		"Total", strings.Repeat(" ", barWidth), tracer.RoundMs(b.TotalMs)))
	return nil
}

// PrintJSON renders one breakdown as indented JSON, colorized per mode.
func (p Printer) PrintJSON(b *tracer.TimingBreakdown) error {
	js, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("marshal breakdown: %v", err)
	}
	pretty, err := p.prettyJSON(js)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(p.writer, string(pretty))
	return err
}

// PrintComparison renders averaged breakdowns for multiple targets side by
// side and names the fastest.
func (p Printer) PrintComparison(averages map[string]*tracer.TimingBreakdown) error {
	whiteS := p.colorPrinterFor(white).SprintfFunc()
	cyanS := p.colorPrinterFor(cyan).SprintfFunc()
	greenS := p.colorPrinterFor(green).SprintfFunc()

	urls := make([]string, 0, len(averages))
	for u := range averages {
		urls = append(urls, u)
	}
	sort.Strings(urls)

	fastest := ""
	for _, u := range urls {
		if fastest == "" || averages[u].TotalMs < averages[fastest].TotalMs {
			fastest = u
		}
	}

	header := fmt.Sprintf("%-40s %9s %9s %9s %9s %9s %9s",
		"URL", "DNS", "TCP", "TLS", "Server", "Transfer", "Total")
	fmt.Fprintf(p.writer, "%s", cyanS("%s\n", header))
	for _, u := range urls {
		b := averages[u]
		line := fmt.Sprintf("%-40s %9.2f %9.2f %9.2f %9.2f %9.2f %9.2f",
			truncate(u, 40), tracer.RoundMs(b.DNSMs),
			tracer.RoundMs(b.TCPConnectMs), tracer.RoundMs(b.TLSHandshakeMs),
			tracer.RoundMs(b.ServerProcessingMs),
			tracer.RoundMs(b.ContentTransferMs), tracer.RoundMs(b.TotalMs))
		if u == fastest && len(urls) > 1 {
			fmt.Fprintf(p.writer, "%s", greenS("%s  fastest\n", line))
		} else {
			fmt.Fprintf(p.writer, "%s", whiteS("%s\n", line))
		}
	}
	return nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}

func formatSize(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}

func (p Printer) prettyJSON(js []byte) ([]byte, error) {
	formatter := p.formatter()

	if len(js) == 0 {
		return js, nil
	}

	var jsMap interface{}
	if err := json.Unmarshal(js, &jsMap); err != nil {
		return nil, err
	}

	dst, err := jsoncolor.MarshalIndentWithFormatter(jsMap, "", "  ", formatter)
	if err != nil {
		return nil, err
	}
	return dst, nil
}

func (p Printer) formatter() *jsoncolor.Formatter {
	f := jsoncolor.NewFormatter()
	whiteP := p.colorPrinterFor(white)
	blueP := p.colorPrinterFor(blue)
	greenP := p.colorPrinterFor(green)
	greyP := p.colorPrinterFor(grey)
	yellowP := p.colorPrinterFor(yellow)

	f.ObjectColor = whiteP
	f.ArrayColor = whiteP
	f.FieldQuoteColor = whiteP
	f.CommaColor = whiteP
	f.StringQuoteColor = whiteP
	f.ColonColor = whiteP
	f.SpaceColor = whiteP

	f.FieldColor = blueP

	f.NullColor = greyP

	f.StringColor = greenP

	f.TrueColor = yellowP
	f.FalseColor = yellowP

	f.NumberColor = blueP
	return f
}
