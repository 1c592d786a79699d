package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/dyike/StockAnalyzer/consts"
	"github.com/dyike/StockAnalyzer/models"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#3B82F6")).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#3B82F6")).
			Padding(0, 2)

	pendingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6B7280"))

	inProgressStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F59E0B")).
			Bold(true)

	completedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#10B981")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#EF4444")).
			Bold(true)

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F59E0B"))

	speakerStyles = map[string]lipgloss.Style{
		consts.CodeGenerator: lipgloss.NewStyle().Foreground(lipgloss.Color("#8B5CF6")).Bold(true),
		consts.CodeExecutor:  lipgloss.NewStyle().Foreground(lipgloss.Color("#3B82F6")).Bold(true),
		consts.ReportAgent:   lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981")).Bold(true),
	}

	turnStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.NormalBorder()).
			BorderLeft(true).
			BorderForeground(lipgloss.Color("#4B5563")).
			PaddingLeft(1)
)

func statusStyle(s models.JobStatus) lipgloss.Style {
	switch s {
	case models.StatusRunning:
		return inProgressStyle
	case models.StatusCompleted:
		return completedStyle
	case models.StatusFailed:
		return errorStyle
	default:
		return pendingStyle
	}
}

func renderStatus(sessionID string, s models.JobStatus) string {
	return fmt.Sprintf("%s %s", sessionID, statusStyle(s).Render(string(s)))
}

// renderRecord formats a finished job: header, one block per turn, then
// the failure reason if any.
func renderRecord(sessionID string, rec *models.JobRecord) string {
	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("Analysis %s | ticker %s | %s",
		sessionID, rec.Params.Ticker(), string(rec.Status))))
	b.WriteString("\n")

	for i, msg := range rec.Messages {
		speaker, content, ok := strings.Cut(msg, ": ")
		if !ok {
			speaker, content = "", msg
		}
		style, known := speakerStyles[speaker]
		if !known {
			style = pendingStyle
		}
		fmt.Fprintf(&b, "\n%s\n%s\n", style.Render(fmt.Sprintf("[%d] %s", i+1, speaker)), turnStyle.Render(content))
	}

	if rec.Error != "" {
		fmt.Fprintf(&b, "\n%s %s\n", errorStyle.Render("error:"), rec.Error)
	}
	return b.String()
}
