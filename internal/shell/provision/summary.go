package provision

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/artpar/devstack/internal/core/domain"
	"github.com/artpar/devstack/internal/core/instance"
	"github.com/artpar/devstack/internal/core/monitoring"
)

// =============================================================================
// Presentation
// =============================================================================

var boxStyle = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(lipgloss.Color("69")).
	Padding(0, 1)

var (
	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#626262"))
	headerStyle  = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle    = lipgloss.NewStyle().Padding(0, 1)
)

// RenderSummary boxes the frontend and admin locations of a started
// instance.
func RenderSummary(m instance.Metadata) string {
	var b strings.Builder
	b.WriteString(headingStyle.Render("Your application is ready!"))
	b.WriteString("\n")
	writeSection(&b, "Frontend", m.Frontend)
	writeSection(&b, "Admin", m.Admin)
	return boxStyle.Render(strings.TrimRight(b.String(), "\n"))
}

func writeSection(b *strings.Builder, heading string, locations []instance.Location) {
	if len(locations) == 0 {
		return
	}
	b.WriteString("\n")
	b.WriteString(headingStyle.Render(heading))
	b.WriteString("\n")
	for _, l := range locations {
		fmt.Fprintf(b, "%s %s\n", labelStyle.Render(l.Title+":"), l.Text)
	}
}

// RenderStatus renders the status listing as a table followed by the
// overall health.
func RenderStatus(rows []domain.ServiceStatus) string {
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("69"))).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers("SERVICE", "CONTAINER", "IMAGE", "STATUS", "PORTS")

	for _, r := range rows {
		t.Row(string(r.Service), r.Name, r.Image, statusCell(r), formatPorts(r.Ports))
	}
	return fmt.Sprintf("%s\n%s %s", t.Render(), labelStyle.Render("Overall:"), monitoring.AggregateHealth(rows))
}

func statusCell(r domain.ServiceStatus) string {
	cell := string(r.Status)
	if r.Health != domain.HealthNone {
		cell += " (" + string(r.Health) + ")"
	}
	if r.Drift {
		cell += ", outdated"
	}
	return cell
}

func formatPorts(bindings []domain.PortBinding) string {
	parts := make([]string, 0, len(bindings))
	for _, b := range bindings {
		parts = append(parts, strconv.Itoa(b.HostPort)+"->"+strconv.Itoa(b.ContainerPort))
	}
	return strings.Join(parts, ", ")
}
