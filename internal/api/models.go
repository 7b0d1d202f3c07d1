package api

import (
	"github.com/google/uuid"
)

// GenChartForm holds the text fields of a generation upload. The dataset
// arrives in the multipart "file" part.
type GenChartForm struct {
	Name      string `form:"name"       validate:"max=100"`
	Goal      string `form:"goal"       validate:"required"`
	ChartType string `form:"chart_type" validate:"max=50"`
}

// GenChartAsyncResponse is returned once a chart is accepted for
// background generation.
type GenChartAsyncResponse struct {
	ChartID uuid.UUID `json:"chart_id"`
}
