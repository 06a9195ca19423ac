package ui

import (
	"fmt"
	"io"
)

// ASCIILogo is printed at the top of interactive commands
const ASCIILogo = `
    ╔════════════════════════════════════════════════════╗
    ║  ██████╗  ██████╗ ██╗  ██╗   ██╗ █████╗  ██████╗   ║
    ║  ██╔══██╗██╔═══██╗██║  ╚██╗ ██╔╝██╔══██╗██╔════╝   ║
    ║  ██████╔╝██║   ██║██║   ╚████╔╝ ███████║██║  ███╗  ║
    ║  ██╔═══╝ ██║   ██║██║    ╚██╔╝  ██╔══██║██║   ██║  ║
    ║  ██║     ╚██████╔╝███████╗██║   ██║  ██║╚██████╔╝  ║
    ║  ╚═╝      ╚═════╝ ╚══════╝╚═╝   ╚═╝  ╚═╝ ╚═════╝   ║
    ║       OPTIONS AGGREGATES BULK FETCHER              ║
    ╚════════════════════════════════════════════════════╝
`

var (
	Cyan    = colorize("\033[36m%s\033[0m")
	Yellow  = colorize("\033[33m%s\033[0m")
	Red     = colorize("\033[31m%s\033[0m")
	Green   = colorize("\033[32m%s\033[0m")
	Magenta = colorize("\033[35m%s\033[0m")
	Dim     = colorize("\033[2m%s\033[0m")
)

func colorize(colorString string) func(string) string {
	return func(text string) string {
		return fmt.Sprintf(colorString, text)
	}
}

// Printer writes coloured status lines; quiet printers drop everything
// except errors.
type Printer struct {
	out   io.Writer
	quiet bool
}

// NewPrinter creates a printer writing to out
func NewPrinter(out io.Writer, quiet bool) *Printer {
	return &Printer{out: out, quiet: quiet}
}

func (p *Printer) Logo() {
	if p.quiet {
		return
	}
	fmt.Fprint(p.out, Cyan(ASCIILogo))
}

func (p *Printer) Error(msg string, args ...interface{}) {
	if len(args) > 0 {
		fmt.Fprintln(p.out, Red(msg+": "+fmt.Sprintf("%v", args[0])))
		return
	}
	fmt.Fprintln(p.out, Red(msg))
}

func (p *Printer) Success(msg string) {
	if p.quiet {
		return
	}
	fmt.Fprintln(p.out, Green(msg))
}

// Info prints a label/value pair
func (p *Printer) Info(label string, value string) {
	if p.quiet {
		return
	}
	fmt.Fprintf(p.out, "%s: %s\n", Cyan(label), Yellow(value))
}

func (p *Printer) Warning(msg string, args ...interface{}) {
	if p.quiet {
		return
	}
	if len(args) > 0 {
		fmt.Fprintln(p.out, Yellow(msg+": "+fmt.Sprintf("%v", args[0])))
		return
	}
	fmt.Fprintln(p.out, Yellow(msg))
}

func (p *Printer) Highlight(msg string) {
	if p.quiet {
		return
	}
	fmt.Fprintln(p.out, Magenta(msg))
}
