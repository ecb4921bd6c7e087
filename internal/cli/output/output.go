// Package output renders command results for terminals, pipes and machines.
//
// In auto mode a TTY gets styled text and anything else gets Markdown, so
// output pasted into an issue or piped into an agent stays readable.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Mode selects the output format.
type Mode string

// Output modes.
const (
	ModeAuto     Mode = "auto"
	ModeText     Mode = "text"
	ModeMarkdown Mode = "markdown"
	ModeJSON     Mode = "json"
)

// Styles are the lipgloss styles used in text mode.
type Styles struct {
	Header    lipgloss.Style
	Success   lipgloss.Style
	Error     lipgloss.Style
	Warning   lipgloss.Style
	Muted     lipgloss.Style
	Bold      lipgloss.Style
	Highlight lipgloss.Style
	Key       lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) Styles {
	return Styles{
		Header:    r.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		Success:   r.NewStyle().Foreground(lipgloss.Color("10")),
		Error:     r.NewStyle().Bold(true).Foreground(lipgloss.Color("9")),
		Warning:   r.NewStyle().Foreground(lipgloss.Color("11")),
		Muted:     r.NewStyle().Foreground(lipgloss.Color("8")),
		Bold:      r.NewStyle().Bold(true),
		Highlight: r.NewStyle().Foreground(lipgloss.Color("14")),
		Key:       r.NewStyle().Foreground(lipgloss.Color("8")).Width(18),
	}
}

// Renderer writes results in the configured mode.
type Renderer struct {
	w      io.Writer
	errW   io.Writer
	mode   Mode
	isTTY  bool
	styles Styles
}

// NewRenderer creates a renderer, detecting whether w is a terminal.
// An empty or unknown mode means ModeAuto.
func NewRenderer(w, errW io.Writer, mode Mode) *Renderer {
	isTTY := false
	if f, ok := w.(*os.File); ok {
		isTTY = term.IsTerminal(int(f.Fd()))
	}
	return NewRendererWithTTY(w, errW, isTTY, mode)
}

// NewRendererWithTTY creates a renderer with an explicit TTY state.
func NewRendererWithTTY(w, errW io.Writer, isTTY bool, mode Mode) *Renderer {
	switch mode {
	case ModeText, ModeMarkdown, ModeJSON:
	default:
		mode = ModeAuto
	}

	lr := lipgloss.NewRenderer(w)
	if isTTY {
		lr.SetColorProfile(termenv.ANSI256)
	} else {
		lr.SetColorProfile(termenv.Ascii)
	}

	return &Renderer{
		w:      w,
		errW:   errW,
		mode:   mode,
		isTTY:  isTTY,
		styles: newStyles(lr),
	}
}

// EffectiveMode resolves ModeAuto against the output device.
func (r *Renderer) EffectiveMode() Mode {
	if r.mode != ModeAuto {
		return r.mode
	}
	if r.isTTY {
		return ModeText
	}
	return ModeMarkdown
}

// IsTTY reports whether the output is a terminal.
func (r *Renderer) IsTTY() bool { return r.isTTY }

// Styles returns the text-mode styles.
func (r *Renderer) Styles() Styles { return r.styles }

// Writer returns the result writer.
func (r *Renderer) Writer() io.Writer { return r.w }

// ErrWriter returns the diagnostics writer.
func (r *Renderer) ErrWriter() io.Writer { return r.errW }

// Println writes a line.
func (r *Renderer) Println(a ...any) {
	_, _ = fmt.Fprintln(r.w, a...)
}

// Printf writes formatted output.
func (r *Renderer) Printf(format string, a ...any) {
	_, _ = fmt.Fprintf(r.w, format, a...)
}

// Header writes a section header.
func (r *Renderer) Header(level int, text string) {
	if r.EffectiveMode() == ModeMarkdown {
		r.Println(FormatHeader(level, text))
		r.Println()
		return
	}
	if level <= 1 {
		r.Println(r.styles.Header.Underline(true).Render(text))
	} else {
		r.Println(r.styles.Header.Render(text))
	}
}

// KeyValue writes an aligned key/value line.
func (r *Renderer) KeyValue(key, value string) {
	if r.EffectiveMode() == ModeMarkdown {
		r.Println(FormatKeyValue(key, value))
		return
	}
	r.Println(r.styles.Key.Render(key+":") + " " + value)
}

// Success writes a success message.
func (r *Renderer) Success(msg string) {
	if r.EffectiveMode() == ModeMarkdown {
		r.Println("**" + msg + "**")
		return
	}
	r.Println(r.styles.Success.Render("✓ " + msg))
}

// Error writes an error message to the diagnostics writer.
func (r *Renderer) Error(msg string) {
	_, _ = fmt.Fprintln(r.errW, r.styles.Error.Render("✗ "+msg))
}

// Warning writes a warning to the diagnostics writer.
func (r *Renderer) Warning(msg string) {
	_, _ = fmt.Fprintln(r.errW, r.styles.Warning.Render("! "+msg))
}

// Muted writes de-emphasized text.
func (r *Renderer) Muted(msg string) {
	if r.EffectiveMode() == ModeMarkdown {
		r.Println("_" + msg + "_")
		return
	}
	r.Println(r.styles.Muted.Render(msg))
}

// StatusLine writes "<icon> label  detail" for a status of success, error,
// warning or pending.
func (r *Renderer) StatusLine(label, status, detail string) {
	icon, style := "•", r.styles.Muted
	switch status {
	case "success":
		icon, style = "✓", r.styles.Success
	case "error":
		icon, style = "✗", r.styles.Error
	case "warning":
		icon, style = "!", r.styles.Warning
	}
	if r.EffectiveMode() == ModeMarkdown {
		line := "- " + icon + " " + label
		if detail != "" {
			line += " (" + detail + ")"
		}
		r.Println(line)
		return
	}
	line := style.Render(icon) + " " + label
	if detail != "" {
		line += "  " + r.styles.Muted.Render(detail)
	}
	r.Println(line)
}

// JSON writes v as indented JSON.
func (r *Renderer) JSON(v any) error {
	enc := json.NewEncoder(r.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// FormatHeader formats a Markdown header.
func FormatHeader(level int, text string) string {
	if level < 1 {
		level = 1
	}
	return strings.Repeat("#", level) + " " + text
}

// FormatKeyValue formats a Markdown key/value line.
func FormatKeyValue(key, value string) string {
	return fmt.Sprintf("**%s:** %s", key, value)
}

// Label turns a snake_case key into a title, e.g. "rows_processed" -> "Rows Processed".
func Label(key string) string {
	return cases.Title(language.English).String(strings.ReplaceAll(key, "_", " "))
}
