package generation

import (
	"strings"

	"github.com/phrazzld/scry-bi/internal/domain"
)

// Delimiter separates the sections of a model reply. A well-formed reply is
// "<preamble>" + Delimiter + "<chart config>" + Delimiter + "<analysis>".
const Delimiter = "【【【【【"

// SystemPrompt instructs the model how to answer a chart request. Providers
// that support a system role send it there; the user prompt carries the goal
// and the data.
const SystemPrompt = `You are a data analyst and front-end developer. You will receive content in this format:
Analysis goal:
{the analysis requirement, optionally naming a chart type}
Raw data:
{CSV rows, comma separated}

From these two parts, reply in exactly the following format, with no extra
opening, closing, or commentary:
` + Delimiter + `
{an ECharts V5 option object, as valid JSON, that visualizes the data for the goal. No comments.}
` + Delimiter + `
{a clear, detailed plain-text conclusion for the goal. No comments.}`

// BuildPrompt assembles the user prompt for a goal and its dataset. The
// chart type is optional. Only the data rows are included; the header row
// is left out of the data section.
func BuildPrompt(goal, chartType string, dataset *domain.Dataset) (string, error) {
	data, err := dataset.CSV()
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("Analysis goal:\n")
	b.WriteString(goal)
	if chartType != "" {
		b.WriteString(", please use a ")
		b.WriteString(chartType)
		b.WriteString(" chart")
	}
	b.WriteString("\nRaw data:\n")
	b.WriteString(data)
	b.WriteString("\n")
	return b.String(), nil
}
