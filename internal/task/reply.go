package task

import (
	"fmt"
	"strings"

	"github.com/phrazzld/scry-bi/internal/generation"
)

// ParseReply splits a model reply into the chart configuration and the
// analysis text. The reply must hold at least three delimiter-separated
// sections with non-blank second and third sections.
func ParseReply(reply string) (genChart, genResult string, err error) {
	parts := strings.Split(reply, generation.Delimiter)
	if len(parts) < 3 {
		return "", "", fmt.Errorf("%w: expected 3 sections, got %d", ErrAIResponseFormat, len(parts))
	}

	genChart = strings.TrimSpace(parts[1])
	genResult = strings.TrimSpace(parts[2])
	if genChart == "" {
		return "", "", fmt.Errorf("%w: chart section is empty", ErrAIResponseFormat)
	}
	if genResult == "" {
		return "", "", fmt.Errorf("%w: analysis section is empty", ErrAIResponseFormat)
	}
	return genChart, genResult, nil
}
