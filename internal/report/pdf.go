package report

import (
	"fmt"
	"io"

	"github.com/go-pdf/fpdf"

	"github.com/joescharf/sprintplan/internal/health"
	"github.com/joescharf/sprintplan/internal/models"
)

// WritePDF renders the plan as an A4 document: one section per sprint
// followed by a health summary when score is non-nil.
func WritePDF(w io.Writer, plan *models.SprintPlan, score *health.PlanScore) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle("Sprint Plan", true)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.Cell(0, 10, "Sprint Plan")
	pdf.Ln(10)

	pdf.SetFont("Arial", "", 11)
	pdf.Cell(0, 6, fmt.Sprintf("Starts %s, %d-week sprints, %d points per sprint",
		plan.Config.StartDate.Format(dateLayout), plan.Config.SprintLengthWeeks, plan.Config.VelocityPerSprint))
	pdf.Ln(10)

	if len(plan.Sprints) == 0 {
		pdf.Cell(0, 8, "No approved features to schedule.")
		pdf.Ln(8)
	}

	for _, sp := range plan.Sprints {
		// Header
		pdf.SetFont("Arial", "B", 14)
		pdf.Cell(0, 10, tr(fmt.Sprintf("%s (%s to %s)", sp.Name, sp.StartDate.Format(dateLayout), sp.EndDate.Format(dateLayout))))
		pdf.Ln(8)

		pdf.SetFont("Arial", "I", 11)
		pdf.MultiCell(0, 6, tr(fmt.Sprintf("%s. %d points.", sp.Goal, sp.Velocity)), "", "", false)
		pdf.Ln(2)

		// Tasks
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(80, 7, "Task", "B", 0, "", false, 0, "")
		pdf.CellFormat(22, 7, "Priority", "B", 0, "", false, 0, "")
		pdf.CellFormat(16, 7, "Points", "B", 0, "R", false, 0, "")
		pdf.CellFormat(16, 7, "Hours", "B", 0, "R", false, 0, "")
		pdf.CellFormat(0, 7, "Assignee", "B", 1, "", false, 0, "")

		pdf.SetFont("Arial", "", 10)
		for _, t := range sp.Tasks {
			pdf.CellFormat(80, 6, tr(t.Title), "", 0, "", false, 0, "")
			pdf.CellFormat(22, 6, string(t.Priority), "", 0, "", false, 0, "")
			pdf.CellFormat(16, 6, fmt.Sprintf("%d", t.StoryPoints), "", 0, "R", false, 0, "")
			pdf.CellFormat(16, 6, fmt.Sprintf("%d", t.EstimatedHours), "", 0, "R", false, 0, "")
			pdf.CellFormat(0, 6, tr(Assignee(t)), "", 1, "", false, 0, "")
		}
		pdf.Ln(6)
	}

	// Summary
	if score != nil {
		pdf.SetFont("Arial", "B", 14)
		pdf.Cell(0, 10, fmt.Sprintf("Health: %d/100", score.Total))
		pdf.Ln(8)

		pdf.SetFont("Arial", "", 11)
		for _, line := range []string{
			fmt.Sprintf("Utilization %d/40", score.Utilization),
			fmt.Sprintf("Overflow %d/20", score.Overflow),
			fmt.Sprintf("Coverage %d/20", score.Coverage),
			fmt.Sprintf("Balance %d/20", score.Balance),
		} {
			pdf.Cell(0, 6, line)
			pdf.Ln(6)
		}
		for _, l := range score.Load {
			pdf.Cell(0, 6, tr(fmt.Sprintf("  %s: %d tasks, %d points", l.MemberID, l.Tasks, l.Points)))
			pdf.Ln(6)
		}
	}

	if err := pdf.Error(); err != nil {
		return fmt.Errorf("render pdf: %w", err)
	}
	return pdf.Output(w)
}
