package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"mahira-clipper/internal/domain"
	"mahira-clipper/internal/worker"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true)
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	panelStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

var phaseLabels = map[domain.Phase]string{
	domain.PhaseDownload:   "Download",
	domain.PhaseTranscribe: "Transcribe",
	domain.PhaseDetect:     "Detect moments",
	domain.PhaseCut:        "Cut",
	domain.PhaseCrop:       "Crop",
	domain.PhaseSubtitle:   "Subtitles",
}

func phaseLabel(phase domain.Phase) string {
	if label, ok := phaseLabels[phase]; ok {
		return label
	}
	return string(phase)
}

// renderPhases draws one line per phase with its status mark and percentage.
func renderPhases(phases []domain.PhaseState) string {
	lines := make([]string, 0, len(phases))
	for _, p := range phases {
		var mark string
		switch p.Status {
		case domain.PhaseStatusDone:
			mark = okStyle.Render("✓")
		case domain.PhaseStatusRunning:
			mark = titleStyle.Render("▶")
		case domain.PhaseStatusError:
			mark = errorStyle.Render("✗")
		default:
			mark = mutedStyle.Render("·")
		}
		lines = append(lines, fmt.Sprintf("%s %-15s %s", mark, phaseLabel(p.Phase), mutedStyle.Render(fmt.Sprintf("%3.0f%%", p.Pct))))
	}
	return strings.Join(lines, "\n")
}

// renderEvent formats one worker event as a progress line. Events with
// nothing to show return "".
func renderEvent(ev worker.Event) string {
	switch e := ev.(type) {
	case worker.LogEvent:
		switch e.Level {
		case worker.LevelError:
			return errorStyle.Render(e.Msg)
		case worker.LevelWarn:
			return warnStyle.Render(e.Msg)
		default:
			return mutedStyle.Render(e.Msg)
		}
	case worker.ProgressEvent:
		return fmt.Sprintf("%s %s", titleStyle.Render(phaseLabel(e.Step)), mutedStyle.Render(fmt.Sprintf("%.0f%%", e.Pct)))
	case worker.ProjectCreatedEvent:
		return titleStyle.Render("Project: ") + e.Name
	case worker.ClipsEvent:
		return fmt.Sprintf("%s %d clip(s) selected", titleStyle.Render("Clips:"), len(e.Clips))
	default:
		return ""
	}
}

// renderSummary draws the final panel for a finished job.
func renderSummary(job domain.Job) string {
	var b strings.Builder
	switch job.Status {
	case domain.JobStatusSucceeded:
		b.WriteString(okStyle.Render("Done"))
	case domain.JobStatusFailed:
		b.WriteString(errorStyle.Render("Failed"))
	default:
		b.WriteString(mutedStyle.Render(string(job.Status)))
	}
	if job.ProjectName != "" {
		b.WriteString("  " + job.ProjectName)
	}
	b.WriteString("\n\n")
	b.WriteString(renderPhases(job.Phases))

	if job.Error != "" {
		b.WriteString("\n\n" + errorStyle.Render(job.Error))
	}
	if len(job.Clips) > 0 {
		b.WriteString("\n\n" + titleStyle.Render("Clips"))
		for i, clip := range job.Clips {
			line := fmt.Sprintf("\n%2d. %s", i+1, truncateRunes(clip.DisplayTitle(), 60))
			if clip.ViralScore > 0 {
				line += mutedStyle.Render(fmt.Sprintf("  score %.0f", clip.ViralScore))
			}
			b.WriteString(line)
		}
	}
	if job.FinalFolder != "" {
		b.WriteString("\n\n" + mutedStyle.Render("Output: ") + job.FinalFolder)
	}
	return panelStyle.Render(b.String())
}

func truncateRunes(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 1 {
		return string(r[:max])
	}
	return string(r[:max-1]) + "…"
}
