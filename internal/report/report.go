// Package report renders sprint plans for export.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/joescharf/sprintplan/internal/health"
	"github.com/joescharf/sprintplan/internal/models"
)

const dateLayout = "2006-01-02"

// Formats lists the export formats accepted by Write.
var Formats = []string{"json", "csv", "markdown", "pdf"}

// Write renders plan in the named format. score may be nil for formats that
// do not include a health summary.
func Write(w io.Writer, format string, plan *models.SprintPlan, score *health.PlanScore) error {
	switch format {
	case "json":
		return WriteJSON(w, plan)
	case "csv":
		return WriteCSV(w, plan)
	case "markdown", "md":
		return WriteMarkdown(w, plan, score)
	case "pdf":
		return WritePDF(w, plan, score)
	default:
		return fmt.Errorf("unknown format: %s (use: %s)", format, strings.Join(Formats, ", "))
	}
}

// WriteJSON writes the plan as indented JSON.
func WriteJSON(w io.Writer, plan *models.SprintPlan) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(plan)
}

// WriteCSV writes one row per task.
func WriteCSV(w io.Writer, plan *models.SprintPlan) error {
	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"Sprint", "Start", "End", "Feature", "Kind", "Task", "Priority", "Points", "Hours", "Assignee"})
	for _, sp := range plan.Sprints {
		for _, t := range sp.Tasks {
			_ = cw.Write([]string{
				strconv.Itoa(sp.Number),
				sp.StartDate.Format(dateLayout),
				sp.EndDate.Format(dateLayout),
				t.FeatureID,
				string(t.Kind),
				t.Title,
				string(t.Priority),
				strconv.Itoa(t.StoryPoints),
				strconv.Itoa(t.EstimatedHours),
				Assignee(t),
			})
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteMarkdown writes a heading per sprint with a task table.
func WriteMarkdown(w io.Writer, plan *models.SprintPlan, score *health.PlanScore) error {
	fmt.Fprintln(w, "# Sprint Plan")
	fmt.Fprintln(w)
	fmt.Fprintf(w, "- Start: %s\n", plan.Config.StartDate.Format(dateLayout))
	fmt.Fprintf(w, "- Sprint length: %d weeks\n", plan.Config.SprintLengthWeeks)
	fmt.Fprintf(w, "- Velocity: %d points\n", plan.Config.VelocityPerSprint)
	if score != nil {
		fmt.Fprintf(w, "- Health: %d/100\n", score.Total)
	}

	if len(plan.Sprints) == 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "No approved features to schedule.")
		return nil
	}

	for _, sp := range plan.Sprints {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "## %s (%s to %s)\n", sp.Name, sp.StartDate.Format(dateLayout), sp.EndDate.Format(dateLayout))
		fmt.Fprintln(w)
		fmt.Fprintf(w, "%s. %d points.\n", sp.Goal, sp.Velocity)
		fmt.Fprintln(w)
		fmt.Fprintln(w, "| Task | Priority | Points | Hours | Assignee |")
		fmt.Fprintln(w, "|------|----------|--------|-------|----------|")
		for _, t := range sp.Tasks {
			fmt.Fprintf(w, "| %s | %s | %d | %d | %s |\n", t.Title, t.Priority, t.StoryPoints, t.EstimatedHours, Assignee(t))
		}
	}
	return nil
}

// Assignee returns the task owner or "unassigned".
func Assignee(t models.Task) string {
	if t.AssigneeID == nil {
		return "unassigned"
	}
	return *t.AssigneeID
}
