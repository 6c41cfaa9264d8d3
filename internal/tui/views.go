package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/caevv/autorevert/internal/store"
	"github.com/charmbracelet/lipgloss"
)

// View renders the UI.
func (m Model) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	// Switch between list and detail view
	if m.viewMode == ViewModeDetail {
		return m.renderDetailView()
	}

	var sections []string

	// Header
	sections = append(sections, m.renderHeader())

	// Stats bar
	sections = append(sections, m.renderStats())

	// Run list
	sections = append(sections, m.renderRunList())

	// Help/Status bar
	sections = append(sections, m.renderHelpBar())

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// renderHeader renders the dashboard header.
func (m Model) renderHeader() string {
	title := titleStyle.Render("⚡ Autorevert Dashboard")
	subtitle := subtitleStyle.Render(fmt.Sprintf("Last updated: %s", m.lastUpdate.Format("15:04:05")))

	header := lipgloss.JoinHorizontal(lipgloss.Top, title, "  ", subtitle)
	return headerStyle.Render(header)
}

// renderStats renders the statistics bar.
func (m Model) renderStats() string {
	stats := []string{
		fmt.Sprintf("%s %d", keyStyle.Render("Runs:"), m.totalRuns),
		fmt.Sprintf("%s %d", keyStyle.Render("Patterns:"), m.totalPatterns),
	}

	if m.totalPatterns > 0 {
		revertRate := float64(m.revertedPatterns) / float64(m.totalPatterns) * 100
		stats = append(stats, fmt.Sprintf("%s %d/%d (%.0f%%)",
			keyStyle.Render("Reverted:"),
			m.revertedPatterns,
			m.totalPatterns,
			revertRate,
		))
	}

	if m.totalDispatches > 0 {
		stats = append(stats, fmt.Sprintf("%s %d", keyStyle.Render("Restarts:"), m.totalDispatches))
	}

	content := strings.Join(stats, "  │  ")
	return statsStyle.Render(content)
}

// renderRunList renders the list of detection runs.
func (m Model) renderRunList() string {
	if len(m.runs) == 0 {
		return runListStyle.Render(subtitleStyle.Render("No detection runs recorded yet"))
	}

	var rows []string

	// Title
	rows = append(rows, titleStyle.Render("Detection Runs"))
	rows = append(rows, "")

	// Header row
	header := fmt.Sprintf("   %-20s  %-12s  %-8s  %-8s  %s",
		"Start Time", "Status", "Patterns", "Reverted", "Duration")
	rows = append(rows, keyStyle.Render(header))
	rows = append(rows, keyStyle.Render(strings.Repeat("─", 70)))

	// Run rows
	for i, run := range m.runs {
		rows = append(rows, m.renderRunRow(run, i == m.selectedRun))
	}

	content := strings.Join(rows, "\n")
	return runListStyle.Render(content)
}

// renderRunRow renders a single detection run row.
func (m Model) renderRunRow(run *store.DetectionRun, selected bool) string {
	// Cursor indicator
	cursor := " "
	if selected {
		cursor = iconArrow
	}

	timeStr := padRight(run.StartTime.Format("2006-01-02 15:04:05"), 20)

	// Status icon and text
	var statusIcon string
	var statusText string
	var statusStyle lipgloss.Style

	switch statusOf(run) {
	case RunStatusRunning:
		statusIcon = iconRunning
		statusText = "Running "
		statusStyle = statusRunningStyle
	case RunStatusError:
		statusIcon = iconError
		statusText = "Failed  "
		statusStyle = statusErrorStyle
	case RunStatusPatterns:
		statusIcon = iconPattern
		statusText = "Patterns"
		statusStyle = statusWarningStyle
	default:
		statusIcon = iconSuccess
		statusText = "Clean   "
		statusStyle = statusSuccessStyle
	}

	statusDisplay := statusStyle.Render(fmt.Sprintf("%s %s", statusIcon, statusText))

	patternsStr := padRight(fmt.Sprintf("%d", len(run.Patterns)), 8)
	revertedStr := padRight(fmt.Sprintf("%d", run.RevertedCount()), 8)

	durationStr := "running..."
	if !run.IsRunning() {
		durationStr = formatDuration(run.Duration())
	}
	durationDisplay := durationStyle.Render(durationStr)

	row := fmt.Sprintf("%s  %s  %s  %s  %s  %s",
		cursor,
		timeStr,
		statusDisplay,
		patternsStr,
		revertedStr,
		durationDisplay,
	)

	if selected {
		return runItemSelectedStyle.Render(row)
	}
	return runItemStyle.Render(row)
}

// renderHelpBar renders the help/status bar at the bottom.
func (m Model) renderHelpBar() string {
	if m.errorMessage != "" {
		return statusBarStyle.Render(statusErrorStyle.Render("Error: " + m.errorMessage))
	}

	help := "q: quit  │  ↑/↓: navigate  │  enter: details  │  r: refresh"
	return statusBarStyle.Render(help)
}

// renderDetailView renders the detailed view for a selected run.
func (m Model) renderDetailView() string {
	run := m.detailRun
	if run == nil {
		return "Invalid run selection"
	}

	var sections []string

	// Header with run ID
	runTitle := fmt.Sprintf("⚡ Autorevert Dashboard - %s", truncate(run.RunID, 36))
	lastUpdate := fmt.Sprintf("Last updated: %s", m.lastUpdate.Format("15:04:05"))
	header := lipgloss.JoinHorizontal(lipgloss.Top,
		titleStyle.Render(runTitle),
		"  ",
		subtitleStyle.Render(lastUpdate),
	)
	sections = append(sections, headerStyle.Render(header))

	// Run info panel
	var runInfo []string
	runInfo = append(runInfo, titleStyle.Render("Run"))
	runInfo = append(runInfo, "")

	runInfo = append(runInfo, fmt.Sprintf("%s %s", keyStyle.Render("Workflows:"), valueStyle.Render(strings.Join(run.Workflows, ", "))))
	runInfo = append(runInfo, fmt.Sprintf("%s %s", keyStyle.Render("Branch:"), valueStyle.Render(run.Branch)))
	runInfo = append(runInfo, fmt.Sprintf("%s %s", keyStyle.Render("Lookback:"), valueStyle.Render(fmt.Sprintf("%dh", run.LookbackHours))))
	runInfo = append(runInfo, fmt.Sprintf("%s %s", keyStyle.Render("Commits:"), valueStyle.Render(fmt.Sprintf("%d", run.CommitsScanned))))

	startStr := run.StartTime.Format("2006-01-02 15:04:05")
	if run.IsRunning() {
		runInfo = append(runInfo, fmt.Sprintf("%s %s (%s)", keyStyle.Render("Started:"), valueStyle.Render(startStr), statusRunningStyle.Render("running")))
	} else {
		duration := formatDuration(run.Duration())
		runInfo = append(runInfo, fmt.Sprintf("%s %s (%s)", keyStyle.Render("Started:"), valueStyle.Render(startStr), durationStyle.Render(duration)))
	}

	if run.Error != "" {
		runInfo = append(runInfo, fmt.Sprintf("%s %s", keyStyle.Render("Error:"), statusErrorStyle.Render(truncate(run.Error, 70))))
	}

	sections = append(sections, runListStyle.Render(strings.Join(runInfo, "\n")))

	// Patterns panel
	var patternInfo []string
	patternInfo = append(patternInfo, titleStyle.Render(fmt.Sprintf("Patterns (%d)", len(run.Patterns))))
	patternInfo = append(patternInfo, "")

	if len(run.Patterns) == 0 {
		patternInfo = append(patternInfo, subtitleStyle.Render("No patterns detected"))
	} else {
		// Header
		header := fmt.Sprintf("  %-20s  %-30s  %-10s  %s", "Workflow", "Rule", "Commit", "Revert")
		patternInfo = append(patternInfo, keyStyle.Render(header))
		patternInfo = append(patternInfo, keyStyle.Render("  "+strings.Repeat("─", 72)))

		for _, p := range run.Patterns {
			workflowStr := padRight(truncate(p.Workflow, 20), 20)
			ruleStr := padRight(truncate(p.Rule, 30), 30)
			shaStr := padRight(truncate(p.TargetSHA, 10), 10)

			revertDisplay := statusIdleStyle.Render(iconIdle + " pending")
			if revert, ok := run.Reverts[p.TargetSHA]; ok && revert != nil {
				revertDisplay = statusSuccessStyle.Render(fmt.Sprintf("%s %s", iconSuccess, truncate(revert.SHA, 10)))
			}

			row := fmt.Sprintf("  %s  %s  %s  %s",
				workflowStr,
				ruleStr,
				shaStr,
				revertDisplay,
			)
			patternInfo = append(patternInfo, row)

			if len(p.AdditionalWorkflows) > 0 {
				names := make([]string, 0, len(p.AdditionalWorkflows))
				for _, wr := range p.AdditionalWorkflows {
					names = append(names, wr.Workflow)
				}
				also := strings.Join(names, ", ")
				patternInfo = append(patternInfo, "    "+keyStyle.Render("Also in: ")+subtitleStyle.Render(truncate(also, 65)))
			}
		}
	}

	sections = append(sections, patternPanelStyle.Render(strings.Join(patternInfo, "\n")))

	// Restart dispatches panel
	if len(run.Dispatches) > 0 {
		var dispatchInfo []string
		dispatchInfo = append(dispatchInfo, titleStyle.Render(fmt.Sprintf("Restarts (%d)", len(run.Dispatches))))
		dispatchInfo = append(dispatchInfo, "")
		for _, d := range run.Dispatches {
			mode := ""
			if d.DryRun {
				mode = statusIdleStyle.Render(" (dry run)")
			}
			row := fmt.Sprintf("%s %s @ %s%s",
				iconBullet,
				valueStyle.Render(d.Workflow),
				durationStyle.Render(truncate(d.SHA, 10)),
				mode,
			)
			dispatchInfo = append(dispatchInfo, patternItemStyle.Render(row))
		}
		sections = append(sections, patternPanelStyle.Render(strings.Join(dispatchInfo, "\n")))
	}

	// Help bar
	helpText := "esc: back  │  q: quit  │  r: refresh"
	sections = append(sections, statusBarStyle.Render(helpText))

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// Helper functions

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	if d < time.Hour {
		return fmt.Sprintf("%.1fm", d.Minutes())
	}
	return fmt.Sprintf("%.1fh", d.Hours())
}

// truncate truncates a string to a maximum length.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

// padRight pads a string with spaces to reach the desired length.
func padRight(s string, length int) string {
	if len(s) >= length {
		return s
	}
	return s + strings.Repeat(" ", length-len(s))
}
