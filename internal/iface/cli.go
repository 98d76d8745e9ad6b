package iface

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/thyrook/lrsched/internal/schedule"
	"github.com/thyrook/lrsched/internal/storage"
)

// CLI provides command-line output helpers
type CLI struct {
	out   io.Writer
	quiet bool
}

// NewCLI creates a new CLI writing to out
func NewCLI(out io.Writer, quiet bool) *CLI {
	return &CLI{
		out:   out,
		quiet: quiet,
	}
}

// PrintTable prints data in a formatted table
func (c *CLI) PrintTable(headers []string, rows [][]string) {
	if c.quiet {
		return
	}

	// Calculate column widths
	colWidths := make([]int, len(headers))
	for i, h := range headers {
		colWidths[i] = len(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(colWidths) && len(cell) > colWidths[i] {
				colWidths[i] = len(cell)
			}
		}
	}

	for i, h := range headers {
		fmt.Fprintf(c.out, "%-*s  ", colWidths[i], h)
	}
	fmt.Fprintln(c.out)

	for _, w := range colWidths {
		fmt.Fprint(c.out, strings.Repeat("-", w+2))
	}
	fmt.Fprintln(c.out)

	for _, row := range rows {
		for i, cell := range row {
			if i < len(colWidths) {
				fmt.Fprintf(c.out, "%-*s  ", colWidths[i], cell)
			}
		}
		fmt.Fprintln(c.out)
	}
}

// PrintCurve prints sampled schedule points with the learning rate they imply
func (c *CLI) PrintCurve(points []schedule.Point, baseLR float64) {
	rows := make([][]string, len(points))
	for i, p := range points {
		rows[i] = []string{
			strconv.Itoa(p.Step),
			formatFloat(p.Multiplier),
			formatFloat(p.Multiplier * baseLR),
		}
	}
	c.PrintTable([]string{"STEP", "MULTIPLIER", "LR"}, rows)
}

// PrintSummary prints curve statistics
func (c *CLI) PrintSummary(kind string, s schedule.Summary) {
	if c.quiet {
		return
	}

	fmt.Fprintf(c.out, "\nschedule=%s points=%d first=%s last=%s min=%s max=%s mean=%s\n",
		kind, s.Points,
		formatFloat(s.First), formatFloat(s.Last),
		formatFloat(s.Min), formatFloat(s.Max), formatFloat(s.Mean))
}

// PrintRuns prints stored training runs
func (c *CLI) PrintRuns(runs []storage.RunMeta) {
	rows := make([][]string, len(runs))
	for i, r := range runs {
		status := "running"
		if r.FinishedAt != nil {
			status = "finished"
		}
		rows[i] = []string{
			r.ID,
			r.Schedule,
			formatFloat(r.BaseLR),
			fmt.Sprintf("%d/%d", r.StepsDone, r.PlannedSteps),
			formatFloat(r.FinalLoss),
			status,
			r.CreatedAt.Format(time.RFC3339),
		}
	}
	c.PrintTable([]string{"ID", "SCHEDULE", "BASE_LR", "STEPS", "FINAL_LOSS", "STATUS", "CREATED"}, rows)
}

// PrintSteps prints the step records of one run
func (c *CLI) PrintSteps(records []storage.StepRecord) {
	rows := make([][]string, len(records))
	for i, r := range records {
		rows[i] = []string{
			strconv.Itoa(r.Step),
			formatFloat(r.Multiplier),
			formatFloat(r.LearningRate),
			formatFloat(r.Loss),
		}
	}
	c.PrintTable([]string{"STEP", "MULTIPLIER", "LR", "LOSS"}, rows)
}

// WriteCurveCSV writes sampled points as CSV with a header row
func WriteCurveCSV(w io.Writer, points []schedule.Point, baseLR float64) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"step", "multiplier", "lr"}); err != nil {
		return err
	}
	for _, p := range points {
		record := []string{
			strconv.Itoa(p.Step),
			strconv.FormatFloat(p.Multiplier, 'g', -1, 64),
			strconv.FormatFloat(p.Multiplier*baseLR, 'g', -1, 64),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', 6, 64)
}
