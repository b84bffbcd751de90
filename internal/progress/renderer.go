package progress

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"

	"github.com/hletrd/data-waster/internal/engine"
	"github.com/hletrd/data-waster/internal/locale"
)

const prefix = "[datawaster]"

var (
	labelStyle = lipgloss.NewStyle().Bold(true)

	severityStyles = map[engine.Severity]lipgloss.Style{
		engine.SeverityInfo:    lipgloss.NewStyle().Foreground(lipgloss.Color("33")),
		engine.SeverityWarning: lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true),
		engine.SeveritySuccess: lipgloss.NewStyle().Foreground(lipgloss.Color("46")).Bold(true),
		engine.SeverityError:   lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
	}
)

// Labels supplies the localized row labels. *locale.Catalog satisfies it.
type Labels interface {
	Text(key string) string
}

// Options configures the renderer.
type Options struct {
	// Output is where to write progress output.
	// Default: os.Stderr
	Output io.Writer

	// Labels supplies row labels.
	// Default: English catalog
	Labels Labels

	// BarWidth is the width of each progress bar in cells.
	// Default: 30
	BarWidth int
}

// Renderer draws engine snapshots as progress bars. It implements
// engine.Display.
type Renderer struct {
	opts Options

	mu    sync.Mutex
	down  progress.Model
	up    progress.Model
	drawn int
}

// NewRenderer creates a renderer.
func NewRenderer(opts Options) *Renderer {
	if opts.Output == nil {
		opts.Output = os.Stderr
	}
	if opts.Labels == nil {
		opts.Labels = locale.Default()
	}
	if opts.BarWidth <= 0 {
		opts.BarWidth = 30
	}

	bar := func() progress.Model {
		return progress.New(
			progress.WithDefaultGradient(),
			progress.WithWidth(opts.BarWidth),
			progress.WithoutPercentage(),
		)
	}

	return &Renderer{
		opts: opts,
		down: bar(),
		up:   bar(),
	}
}

// Show redraws the progress block in place. A snapshot of a finished
// session is drawn once more and left on screen.
func (r *Renderer) Show(s engine.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()

	lines := r.lines(s)

	var b strings.Builder
	if r.drawn > 0 {
		// Move back to the top of the previous block.
		fmt.Fprintf(&b, "\r\033[%dA", r.drawn)
	}
	for _, l := range lines {
		b.WriteString("\r\033[K")
		b.WriteString(l)
		b.WriteString("\n")
	}
	io.WriteString(r.opts.Output, b.String())

	if s.State == engine.StateRunning {
		r.drawn = len(lines)
	} else {
		r.drawn = 0
	}
}

// Render returns the progress block for s without cursor control.
func (r *Renderer) Render(s engine.Snapshot) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return strings.Join(r.lines(s), "\n")
}

func (r *Renderer) lines(s engine.Snapshot) []string {
	var out []string

	if s.Mode.Has(engine.Download) {
		out = append(out, r.row(&r.down, locale.KeyDownloadLabel, s.BytesDownloaded, s.DownloadPercent, s.TargetBytes))
	}
	if s.Mode.Has(engine.Upload) {
		out = append(out, r.row(&r.up, locale.KeyUploadLabel, s.BytesUploaded, s.UploadPercent, s.TargetBytes))
	}

	speed := int64(s.ThroughputMBps * engine.MB)
	out = append(out, fmt.Sprintf("%s %s: %s | %s: %s/s | %s",
		prefix,
		labelStyle.Render(r.opts.Labels.Text(locale.KeyTotalProgress)),
		formatBytes(s.TotalBytes),
		labelStyle.Render(r.opts.Labels.Text(locale.KeyTotalSpeed)),
		formatBytes(speed),
		formatDuration(s.Elapsed),
	))

	if s.StatusText != "" {
		text := s.StatusText
		if style, ok := severityStyles[s.StatusSeverity]; ok {
			text = style.Render(text)
		}
		out = append(out, fmt.Sprintf("%s %s", prefix, text))
	}

	return out
}

// row renders one direction. Unbounded sessions have no bar.
func (r *Renderer) row(bar *progress.Model, key string, bytes int64, percent float64, target int64) string {
	label := labelStyle.Render(fmt.Sprintf("%-8s", r.opts.Labels.Text(key)))
	if target <= 0 {
		return fmt.Sprintf("%s %s %s", prefix, label, formatBytes(bytes))
	}
	return fmt.Sprintf("%s %s %s %5.1f%% | %s / %s",
		prefix,
		label,
		bar.ViewAs(percent/100),
		percent,
		formatBytes(bytes),
		formatBytes(target),
	)
}
