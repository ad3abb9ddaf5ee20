package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/NimbleMarkets/ntcharts/sparkline"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	sparklineWidth  = 30
	sparklineHeight = 3
	historySize     = 30
)

// Model represents the BubbleTea dashboard model
type Model struct {
	addr       string
	interval   time.Duration
	lastUpdate time.Time
	health     HealthResult
	stores     []StoreStatus
	err        error
	quitting   bool

	// Webhook rate is a delta between two polls, so the first poll
	// only establishes the base.
	prevUpdates int64
	haveBase    bool
	rateHistory []float64

	hitProgress progress.Model
}

// Lipgloss styles (k9s-inspired color scheme)
var (
	// Header style - bright cyan background, bold black text
	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("0")).
			Background(lipgloss.Color("51")).
			Bold(true).
			Padding(0, 1)

	// Section title style - bold bright cyan
	sectionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("51")).
			Bold(true).
			MarginTop(1)

	// Label style - dim cyan
	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("45"))

	// Value style - bright white
	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("231")).
			Bold(true)

	// Dim style - for units and secondary info
	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	// Status styles with unicode symbols
	healthyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("46")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("226")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	// Container style - rounded border with dim gray
	containerStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("238")).
			Padding(1, 2)

	// Footer style - bright keys on dim background
	footerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			MarginTop(1)

	footerKeyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("51")).
			Bold(true)

	// Sparkline container
	sparklineStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("51"))
)

// NewModel creates a new dashboard model polling the given admin address
func NewModel(addr string, interval time.Duration) Model {
	hitProg := progress.New(
		progress.WithGradient("#00ff00", "#ffff00"),
		progress.WithWidth(40),
	)

	return Model{
		addr:        addr,
		interval:    interval,
		quitting:    false,
		hitProgress: hitProg,
		rateHistory: make([]float64, 0, historySize),
	}
}

// getStatusBadge returns the overall daemon status badge
func getStatusBadge(health HealthResult, failures int64) string {
	if health.Status != "ok" {
		return errorStyle.Render("✗ ERROR")
	}
	if failures > 0 {
		return warningStyle.Render("⚠ WARN")
	}
	return healthyStyle.Render("✓ HEALTHY")
}

// getStoreBadge marks a store row that has seen handler failures
func getStoreBadge(failures int64) string {
	if failures == 0 {
		return healthyStyle.Render("[✓]")
	}
	return errorStyle.Render("[✗]")
}

// appendToHistory appends a value to history, maintaining max size
func appendToHistory(history []float64, value float64) []float64 {
	history = append(history, value)
	if len(history) > historySize {
		history = history[1:]
	}
	return history
}

// createSparkline creates a sparkline chart from historical data
func createSparkline(data []float64) string {
	if len(data) == 0 {
		return dimStyle.Render(fmt.Sprintf("%*s", sparklineWidth, "no data"))
	}

	spark := sparkline.New(sparklineWidth, sparklineHeight)
	for _, v := range data {
		spark.Push(v)
	}

	return sparklineStyle.Render(spark.View())
}

// Message types
type tickMsg time.Time
type statusMsg struct {
	health HealthResult
	stores []StoreStatus
}
type errMsg error

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		tick(m.interval),
		fetchStatus(m.addr),
	)
}

// tick creates a tick command for auto-refresh
func tick(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// fetchStatus fetches health and per-store stats from the daemon
func fetchStatus(addr string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		client := NewAdminClient(addr)

		health, err := client.Health(ctx)
		if err != nil {
			return errMsg(err)
		}

		stores, err := client.Stores(ctx)
		if err != nil {
			return errMsg(err)
		}

		return statusMsg{health: health, stores: stores.Stores}
	}
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "r":
			return m, fetchStatus(m.addr)
		}

	case tickMsg:
		// Auto-refresh triggered
		return m, tea.Batch(
			tick(m.interval),
			fetchStatus(m.addr),
		)

	case statusMsg:
		total := totalUpdates(msg.stores)
		if m.haveBase {
			delta := total - m.prevUpdates
			if delta < 0 {
				// Daemon restarted and counters reset
				delta = 0
			}
			m.rateHistory = appendToHistory(m.rateHistory, float64(delta)/m.interval.Minutes())
		}
		m.prevUpdates = total
		m.haveBase = true

		m.health = msg.health
		m.stores = msg.stores
		m.lastUpdate = time.Now()
		m.err = nil
		return m, nil

	case errMsg:
		// Error occurred
		m.err = error(msg)
		return m, nil
	}

	return m, nil
}

// View renders the dashboard
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	// Display error state if error exists
	if m.err != nil {
		return m.renderError()
	}

	return m.renderDashboard()
}

// renderError renders the error view
func (m Model) renderError() string {
	header := headerStyle.Render(" storefrontd Monitor ")

	var content string
	content += "\n"
	content += errorStyle.Render("⚠ Cannot reach storefrontd") + "\n"
	content += "\n"
	content += dimStyle.Render("Address: ") + valueStyle.Render(m.addr) + "\n"
	content += dimStyle.Render("Error: ") + errorStyle.Render(m.err.Error()) + "\n"
	content += "\n"
	content += dimStyle.Render("Please ensure:") + "\n"
	content += dimStyle.Render("  1. the daemon is running: storefrontd serve") + "\n"
	content += dimStyle.Render("  2. the address matches --addr or STOREFRONTCTL_ADDR") + "\n"
	content += "\n"
	content += footerStyle.Render("[q] quit  [r] retry") + "\n"

	box := containerStyle.Render(header + "\n" + content)
	return box
}

// renderDashboard renders the main dashboard view
func (m Model) renderDashboard() string {
	var content string

	// Header with status badge
	lastUpdateStr := "Never"
	if !m.lastUpdate.IsZero() {
		lastUpdateStr = m.lastUpdate.Format("3:04:05 PM")
	}

	header := headerStyle.Render(" storefrontd Monitor ")
	statusBadge := getStatusBadge(m.health, totalFailures(m.stores))
	headerLine := fmt.Sprintf("%s   %s %s   %s %s   %s",
		statusBadge,
		dimStyle.Render("Stores:"),
		valueStyle.Render(fmt.Sprintf("%d", m.health.Stores)),
		dimStyle.Render("Uptime:"),
		valueStyle.Render(FormatDuration(m.health.Uptime)),
		dimStyle.Render(lastUpdateStr))

	content += header + "\n"
	content += headerLine + "\n"

	// Webhooks section with rate sparkline and hit-rate progress
	content += "\n" + sectionStyle.Render("┃ Webhooks") + "\n"

	rate := 0.0
	if len(m.rateHistory) > 0 {
		rate = m.rateHistory[len(m.rateHistory)-1]
	}
	rateSparkline := createSparkline(m.rateHistory)
	content += labelStyle.Render("  Rate: ") +
		valueStyle.Render(FormatRate(rate)) +
		"   " + rateSparkline + "\n"

	searches, hits := totalSearches(m.stores)
	hitRatio := 0.0
	if searches > 0 {
		hitRatio = float64(hits) / float64(searches)
	}
	content += labelStyle.Render("  Hit rate: ") +
		m.hitProgress.ViewAs(hitRatio) +
		" " + dimStyle.Render(FormatPercentage(hitRatio)) + "\n"

	// Stores section with one row per loaded store
	content += "\n" + sectionStyle.Render("┃ Stores") + "\n"

	if len(m.stores) == 0 {
		content += dimStyle.Render("  no stores loaded") + "\n"
	} else {
		content += dimStyle.Render(fmt.Sprintf("  %-18s %8s %9s %7s %7s %7s %9s",
			"SLUG", "PRODUCTS", "UPDATES", "HITS", "MISSES", "TROLLS", "FAILURES")) + "\n"
		for _, st := range m.stores {
			var c StoreCounters
			if st.Counters != nil {
				c = *st.Counters
			}
			row := fmt.Sprintf("  %-18s %8d %9s %7s %7s %7s %9s",
				truncate(st.Slug, 18),
				st.Products,
				FormatCount(c.Updates),
				FormatCount(c.Hits),
				FormatCount(c.NoResults),
				FormatCount(c.Trolls),
				FormatCount(c.Failures))
			content += valueStyle.Render(row) + " " + getStoreBadge(c.Failures) + "\n"
		}
	}

	// Footer with keyboard shortcuts
	footer := footerKeyStyle.Render("[q]") + footerStyle.Render(" quit  ") +
		footerKeyStyle.Render("[r]") + footerStyle.Render(" refresh  ") +
		footerStyle.Render(fmt.Sprintf("Auto: %v", m.interval))

	content += "\n" + footer

	// Wrap in container
	return containerStyle.Render(content)
}

// totalUpdates sums the update counters across all stores
func totalUpdates(stores []StoreStatus) int64 {
	var total int64
	for _, st := range stores {
		if st.Counters != nil {
			total += st.Counters.Updates
		}
	}
	return total
}

// totalFailures sums the failure counters across all stores
func totalFailures(stores []StoreStatus) int64 {
	var total int64
	for _, st := range stores {
		if st.Counters != nil {
			total += st.Counters.Failures
		}
	}
	return total
}

// totalSearches sums search and hit counters across all stores
func totalSearches(stores []StoreStatus) (searches, hits int64) {
	for _, st := range stores {
		if st.Counters != nil {
			searches += st.Counters.Searches
			hits += st.Counters.Hits
		}
	}
	return searches, hits
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}
