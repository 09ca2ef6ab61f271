package cli

import (
	"errors"
	"flag"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"mediabatch/internal/journal"
	"mediabatch/internal/model"
	"mediabatch/internal/runstore"
)

var (
	summaryKeyStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(14)
	summaryValueStyle = lipgloss.NewStyle().Bold(true)
	summaryTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	summaryPanelStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

func runAnalyze(args []string) error {
	fs := flag.NewFlagSet("analyze", flag.ContinueOnError)
	journalPath := fs.String("journal", "", "run journal to analyze")
	out := fs.String("out", "", "also write the summary as JSON to this path")
	jsonOut := fs.Bool("json", false, "print JSON output")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}
	path := firstNonEmpty(*journalPath, fs.Arg(0))
	if path == "" {
		fs.Usage()
		return errors.New("--journal is required")
	}

	summary, err := journal.AnalyzeFile(path)
	if err != nil {
		return err
	}
	if strings.TrimSpace(*out) != "" {
		if err := runstore.WriteJSON(*out, summary); err != nil {
			return err
		}
	}

	if *jsonOut {
		return printJSON(summary)
	}
	if stdoutIsTTY() {
		fmt.Println(renderSummary(path, summary))
		return nil
	}
	for _, row := range summaryRows(summary) {
		kv(row[0], row[1])
	}
	return nil
}

func summaryRows(s model.RunSummary) [][2]string {
	return [][2]string{
		{"start_time", s.StartTime},
		{"end_time", s.EndTime},
		{"total_items", fmt.Sprint(s.TotalItems)},
		{"total_time", s.TotalTime},
		{"average_time", s.AverageTime},
		{"min_time", s.MinTime},
		{"max_time", s.MaxTime},
		{"median_time", s.MedianTime},
		{"errors", fmt.Sprint(s.Errors)},
		{"success_rate", s.SuccessRate},
	}
}

func renderSummary(path string, s model.RunSummary) string {
	lines := []string{summaryTitleStyle.Render("run summary") + " " + path}
	for _, row := range summaryRows(s) {
		lines = append(lines, summaryKeyStyle.Render(row[0])+summaryValueStyle.Render(row[1]))
	}
	return summaryPanelStyle.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}
