package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"showrunner/internal/api"
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
	ansiDim    = "\x1b[2m"
)

const (
	stageLabelWidth = 14
	stageIndent     = "  "
)

// renderStageLine prints one pipeline stage with its status, padded so the
// stages of a job line up as a column.
func renderStageLine(label string, status api.JobStatus, detail string, colorize bool) string {
	statusText := fmt.Sprintf("[%s]", humanizeStatus(status))
	if detail != "" {
		statusText += " " + detail
	}
	base := fmt.Sprintf("%s%-*s %s", stageIndent, stageLabelWidth, label+":", statusText)
	if colorize {
		if color := statusColor(status); color != "" {
			return color + base + ansiReset
		}
	}
	return base
}

func statusColor(status api.JobStatus) string {
	switch status {
	case api.StatusCompleted:
		return ansiGreen
	case api.StatusFailed:
		return ansiRed
	case api.StatusQueued, api.StatusProcessing, api.StatusRerendering:
		return ansiYellow
	case api.StatusNotRequested:
		return ansiDim
	default:
		return ""
	}
}

func renderSectionHeader(title string, colorize bool) []string {
	line := fmt.Sprintf("== %s ==", strings.TrimSpace(title))
	rule := strings.Repeat("-", len(line))
	if colorize {
		line = ansiBlue + line + ansiReset
		rule = ansiBlue + rule + ansiReset
	}
	return []string{line, rule}
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
