package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/kass/go-geofence/pkg/boundaries"
	"github.com/kass/go-geofence/pkg/config"
	"github.com/kass/go-geofence/pkg/logging"
	"github.com/kass/go-geofence/pkg/metrics"
	"github.com/kass/go-geofence/pkg/models"
	"github.com/kass/go-geofence/pkg/rtree"
	"github.com/kass/go-geofence/pkg/sampler"
)

const (
	gridCols = 64
	gridRows = 24
	// reportEvery is how many accepted samples go by between progress updates
	reportEvery = 250
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF79C6")).
			Background(lipgloss.Color("#282A36")).
			Padding(0, 1).
			MarginTop(1).
			MarginBottom(1)

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#50FA7B"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5555"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6272A4"))

	mapStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#BD93F9")).
			Foreground(lipgloss.Color("#8BE9FD")).
			Padding(0, 1)

	statStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFB86C"))
)

// density counts accepted samples per map cell, row 0 being the north edge
type density [gridRows][gridCols]int

// add counts p in its cell. Points outside box are skipped; points on the
// east or south edge fall into the last column or row.
func (g *density) add(box models.BoundingBox, p models.Location) {
	if !box.Contains(p) {
		return
	}
	col := int((p.Lon - box.MinLon) / box.Width() * gridCols)
	row := int((box.MaxLat - p.Lat) / box.Height() * gridRows)
	if col >= gridCols {
		col = gridCols - 1
	}
	if row >= gridRows {
		row = gridRows - 1
	}
	g[row][col]++
}

func (g *density) render() string {
	const shades = " .:-=+*#%@"

	peak := 0
	for _, row := range g {
		for _, v := range row {
			if v > peak {
				peak = v
			}
		}
	}

	var b strings.Builder
	for r, row := range g {
		for _, v := range row {
			if v == 0 || peak == 0 {
				b.WriteByte(' ')
				continue
			}
			idx := 1 + v*(len(shades)-2)/peak
			b.WriteByte(shades[idx])
		}
		if r < gridRows-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// progressReport is a snapshot of a sampling run
type progressReport struct {
	accepted int
	attempts int
	total    int
	elapsed  time.Duration
	grid     density
}

func (p progressReport) ratio() float64 {
	if p.attempts == 0 {
		return 0
	}
	return float64(p.accepted) / float64(p.attempts)
}

func (p progressReport) fraction() float64 {
	if p.total == 0 {
		return 1
	}
	return float64(p.accepted) / float64(p.total)
}

type doneMsg struct {
	report progressReport
	err    error
}

// run draws n samples, handing a snapshot to report every reportEvery samples
func run(ctx context.Context, n int, box models.BoundingBox, c sampler.Container, s *sampler.Sampler, report func(progressReport)) (progressReport, error) {
	state := progressReport{total: n}
	start := time.Now()

	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return state, err
		}
		p, attempts, err := s.SampleWithStats(box, c)
		state.attempts += attempts
		if err != nil {
			return state, err
		}
		state.accepted++
		state.grid.add(box, p)

		if report != nil && (state.accepted%reportEvery == 0 || state.accepted == n) {
			state.elapsed = time.Since(start)
			report(state)
		}
	}
	state.elapsed = time.Since(start)
	return state, nil
}

type model struct {
	spinner  spinner.Model
	progress progress.Model
	report   progressReport
	done     bool
	err      error
}

func initialModel(total int) model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF79C6"))

	return model{
		spinner:  s,
		progress: progress.New(progress.WithDefaultGradient()),
		report:   progressReport{total: total},
	}
}

func (m model) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.progress.Width = msg.Width - 10
		if m.progress.Width > gridCols {
			m.progress.Width = gridCols
		}
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case progressReport:
		m.report = msg
		return m, nil

	case doneMsg:
		m.report = msg.report
		m.err = msg.err
		m.done = true
		return m, tea.Quit
	}

	return m, nil
}

func (m model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Random Australia"))
	b.WriteString("\n")

	if m.done {
		if m.err != nil {
			b.WriteString(errorStyle.Render("✗ " + m.err.Error()))
		} else {
			b.WriteString(successStyle.Render(fmt.Sprintf("✓ Placed %d points", m.report.accepted)))
		}
	} else {
		b.WriteString(m.spinner.View() + " Sampling...")
	}
	b.WriteString("\n\n")
	b.WriteString(m.progress.ViewAs(m.report.fraction()))
	b.WriteString("\n\n")
	b.WriteString(renderStats(m.report))
	b.WriteString("\n")
	b.WriteString(mapStyle.Render(m.report.grid.render()))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render("Press 'q' to quit"))
	b.WriteString("\n")
	return b.String()
}

func renderStats(r progressReport) string {
	return fmt.Sprintf(
		"Accepted: %s  Drawn: %s  Acceptance: %s  Elapsed: %s",
		statStyle.Render(fmt.Sprintf("%d/%d", r.accepted, r.total)),
		statStyle.Render(fmt.Sprintf("%d", r.attempts)),
		statStyle.Render(fmt.Sprintf("%.1f%%", r.ratio()*100)),
		statStyle.Render(r.elapsed.Round(time.Millisecond).String()),
	)
}

// runPlain prints a line per report when stdout is not a terminal
func runPlain(ctx context.Context, out io.Writer, n int, box models.BoundingBox, c sampler.Container, s *sampler.Sampler) error {
	step := n / 10
	if step < reportEvery {
		step = reportEvery
	}
	last := 0

	final, err := run(ctx, n, box, c, s, func(r progressReport) {
		if r.accepted-last >= step || r.accepted == n {
			last = r.accepted
			fmt.Fprintf(out, "%d/%d accepted, %d drawn (%.1f%%)\n", r.accepted, r.total, r.attempts, r.ratio()*100)
		}
	})
	if err != nil {
		return err
	}

	fmt.Fprintln(out, final.grid.render())
	fmt.Fprintf(out, "Placed %d points in %v, acceptance %.1f%%\n", final.accepted, final.elapsed.Round(time.Millisecond), final.ratio()*100)
	return nil
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		n          int
		seed       int64
	)

	cmd := &cobra.Command{
		Use:          "demo",
		Short:        "Watch random points fill the Australia outline",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Default()
			if configPath != "" {
				var err error
				if cfg, err = config.Load(configPath); err != nil {
					return err
				}
			}
			// the TUI owns the terminal, so only errors are logged
			logging.Init(logging.Config{Level: "error", Format: "console"})

			d, err := boundaries.Australia()
			if err != nil {
				return err
			}
			index, err := rtree.NewRingIndex(d)
			if err != nil {
				return err
			}

			opts := []sampler.Option{
				sampler.WithMaxAttempts(cfg.Sampler.MaxAttempts),
				sampler.WithObserver(metrics.ObserveSample),
			}
			if seed != 0 {
				opts = append(opts, sampler.WithSeed(seed))
			}
			s := sampler.New(opts...)
			box := boundaries.AustraliaBox

			if !isTerminal(os.Stdout) {
				return runPlain(cmd.Context(), cmd.OutOrStdout(), n, box, index, s)
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			p := tea.NewProgram(initialModel(n))
			go func() {
				final, err := run(ctx, n, box, index, s, func(r progressReport) { p.Send(r) })
				p.Send(doneMsg{report: final, err: err})
			}()

			result, err := p.Run()
			if err != nil {
				return err
			}
			if m, ok := result.(model); ok && m.err != nil && m.done {
				return m.err
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "YAML config file")
	cmd.Flags().IntVarP(&n, "number", "n", 20000, "Number of points to place")
	cmd.Flags().Int64Var(&seed, "seed", 0, "Random seed (0 seeds from the clock)")
	return cmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render(err.Error()))
		os.Exit(1)
	}
}
