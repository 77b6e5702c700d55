package api

import (
	"fmt"
	"strings"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"

	"commonmetrics/domain/report"
)

// Reports are rendered to markdown first, then through the markdown renderer
// to HTML, so the same text works for HTML pages and plain-text exports.

// RenderMeanHTML renders a mean report as an HTML fragment.
func RenderMeanHTML(rep *report.MeanReport) []byte {
	return toHTML(RenderMeanMarkdown(rep))
}

// RenderGrowthHTML renders a growth report as an HTML fragment.
func RenderGrowthHTML(rep *report.GrowthReport) []byte {
	return toHTML(RenderGrowthMarkdown(rep))
}

// RenderMeanMarkdown renders a mean report as markdown.
func RenderMeanMarkdown(rep *report.MeanReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s mean\n\n", rep.Metric)
	fmt.Fprintf(&b, "Report `%s`, %s model, created %s.\n\n", rep.ID, rep.Mode, rep.CreatedAt)
	fmt.Fprintf(&b, "Respondents: %d scored, %d without a composite.\n\n", rep.Summary.N, rep.MissingComposite)

	b.WriteString("| Estimate | Value | SE | 95% CI | df |\n")
	b.WriteString("|---|---|---|---|---|\n")
	writeEstimateRow(&b, "Overall", rep.Overall)
	for _, g := range rep.Groups {
		writeEstimateRow(&b, fmt.Sprintf("%s = %s", rep.EquityGroup, g.Group), g.Estimate)
	}

	if len(rep.Contrasts) > 0 {
		b.WriteString("\n## Contrasts\n\n")
		writeContrastTable(&b, rep.Contrasts)
	}
	writeFindings(&b, rep.Findings)
	return b.String()
}

// RenderGrowthMarkdown renders a growth report as markdown.
func RenderGrowthMarkdown(rep *report.GrowthReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s growth\n\n", rep.Metric)
	fmt.Fprintf(&b, "Report `%s`, %s model, created %s.\n\n", rep.ID, rep.Mode, rep.CreatedAt)

	b.WriteString("| Estimate | Value | SE | 95% CI | df |\n")
	b.WriteString("|---|---|---|---|---|\n")
	writeEstimateRow(&b, "Timepoint 1", rep.Timepoint1)
	writeEstimateRow(&b, "Timepoint 2", rep.Timepoint2)
	writeEstimateRow(&b, "Growth", rep.Growth)

	if len(rep.TimepointContrasts) > 0 {
		b.WriteString("\n## Contrasts by timepoint\n\n")
		b.WriteString("| Timepoint | Contrast | Difference | SE | p |\n")
		b.WriteString("|---|---|---|---|---|\n")
		for _, tc := range rep.TimepointContrasts {
			c := tc.Contrast
			fmt.Fprintf(&b, "| %d | %s vs %s | %.3f | %.3f | %.4f |\n",
				tc.Timepoint, c.First, c.Second, c.Difference, c.StdErr, c.PValue)
		}
	}
	if len(rep.ChangeInDifferences) > 0 {
		b.WriteString("\n## Change in differences\n\n")
		writeContrastTable(&b, rep.ChangeInDifferences)
	}
	writeFindings(&b, rep.Findings)
	return b.String()
}

func writeEstimateRow(b *strings.Builder, label string, e report.Estimate) {
	fmt.Fprintf(b, "| %s | %.3f | %.3f | [%.3f, %.3f] | %.0f |\n",
		label, e.Value, e.StdErr, e.Lower, e.Upper, e.DF)
}

func writeContrastTable(b *strings.Builder, contrasts []report.Contrast) {
	b.WriteString("| Contrast | Difference | SE | df | p |\n")
	b.WriteString("|---|---|---|---|---|\n")
	for _, c := range contrasts {
		fmt.Fprintf(b, "| %s vs %s | %.3f | %.3f | %.0f | %.4f |\n",
			c.First, c.Second, c.Difference, c.StdErr, c.DF, c.PValue)
	}
}

func writeFindings(b *strings.Builder, findings report.Findings) {
	if len(findings) == 0 {
		return
	}
	b.WriteString("\n## Findings\n\n")
	for _, f := range findings {
		fmt.Fprintf(b, "- **%s** (%s): %s\n", f.Code, f.Severity, f.Message)
	}
}

func toHTML(md string) []byte {
	p := parser.NewWithExtensions(parser.CommonExtensions)
	renderer := html.NewRenderer(html.RendererOptions{Flags: html.CommonFlags})
	return markdown.ToHTML([]byte(md), p, renderer)
}
