// Package display prints the colored console output of the demo scenarios.
package display

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/fatih/color"
	"golang.org/x/term"
)

// Style is a foreground/background combination.
type Style int

const (
	// Plain prints the text unchanged.
	Plain Style = iota
	// OnBrightMagenta is black text on bright magenta (echo replies).
	OnBrightMagenta
	// OnBrightBlue is used by the routing workers.
	OnBrightBlue
	// OnBrightBlack is used for client-side progress.
	OnBrightBlack
	// OnBrightPurple is used by the credential issuer.
	OnBrightPurple
	// OnPurple is used for warm titles.
	OnPurple
	// Yellow text marks replies.
	Yellow
	// Red text marks failures.
	Red
	// Green text marks success.
	Green
	// White text highlights values inside a line.
	White
)

func (s Style) attributes() []color.Attribute {
	switch s {
	case OnBrightMagenta:
		return []color.Attribute{color.FgBlack, color.BgHiMagenta}
	case OnBrightBlue:
		return []color.Attribute{color.BgHiBlue}
	case OnBrightBlack:
		return []color.Attribute{color.BgHiBlack}
	case OnBrightPurple:
		return []color.Attribute{color.BgHiMagenta}
	case OnPurple:
		return []color.Attribute{color.BgMagenta}
	case Yellow:
		return []color.Attribute{color.FgYellow}
	case Red:
		return []color.Attribute{color.FgRed}
	case Green:
		return []color.Attribute{color.FgGreen}
	case White:
		return []color.Attribute{color.FgWhite}
	default:
		return nil
	}
}

// TitleScheme picks the colors of a title banner.
type TitleScheme int

const (
	// TitleLight is black on bright white.
	TitleLight TitleScheme = iota
	// TitleWarm is a red on yellow padding around a purple title.
	TitleWarm
)

// Printer writes styled lines to a writer. A nil *Printer prints nothing.
type Printer struct {
	mu    sync.Mutex
	w     io.Writer
	color bool
}

// New returns a printer for w. Color is enabled when w is a terminal.
func New(w io.Writer) *Printer {
	return &Printer{w: w, color: isTerminal(w)}
}

// Stdout returns a printer for os.Stdout.
func Stdout() *Printer {
	return New(os.Stdout)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(interface{ Fd() uintptr })
	return ok && term.IsTerminal(int(f.Fd()))
}

// SetColor forces color on or off.
func (p *Printer) SetColor(on bool) *Printer {
	if p != nil {
		p.mu.Lock()
		p.color = on
		p.mu.Unlock()
	}
	return p
}

// Sprint returns s rendered in style.
func (p *Printer) Sprint(style Style, s string) string {
	if p == nil {
		return s
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sprint(style, s)
}

func (p *Printer) sprint(style Style, s string) string {
	attrs := style.attributes()
	if !p.color || len(attrs) == 0 {
		return s
	}
	c := color.New(attrs...)
	c.EnableColor()
	return c.Sprint(s)
}

// Println prints text in style followed by a newline.
func (p *Printer) Println(style Style, text string) {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.w, p.sprint(style, text))
}

// Printf formats and prints a line in style.
func (p *Printer) Printf(style Style, format string, args ...interface{}) {
	p.Println(style, fmt.Sprintf(format, args...))
}

// Lines prints every line in the same style.
func (p *Printer) Lines(style Style, lines ...string) {
	for _, l := range lines {
		p.Println(style, l)
	}
}

// Title prints title between two padding lines as long as title is in
// bytes, so non-ASCII titles get wider padding.
func (p *Printer) Title(title string, scheme TitleScheme) {
	if p == nil {
		return
	}
	padding := strings.Repeat("=", len(title))

	p.mu.Lock()
	defer p.mu.Unlock()
	switch scheme {
	case TitleWarm:
		pad := p.colored(padding, color.FgRed, color.BgYellow)
		fmt.Fprintln(p.w, pad)
		fmt.Fprintln(p.w, p.sprint(OnPurple, title))
		fmt.Fprintln(p.w, pad)
	default:
		fmt.Fprintln(p.w, p.colored(padding, color.FgBlack, color.BgHiWhite))
		fmt.Fprintln(p.w, p.colored(title, color.FgBlack, color.BgHiWhite))
		fmt.Fprintln(p.w, p.colored(padding, color.FgBlack, color.BgHiWhite))
	}
}

func (p *Printer) colored(s string, attrs ...color.Attribute) string {
	if !p.color {
		return s
	}
	c := color.New(attrs...)
	c.EnableColor()
	return c.Sprint(s)
}
