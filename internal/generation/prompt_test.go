package generation

import (
	"strings"
	"testing"

	"github.com/phrazzld/scry-bi/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPrompt(t *testing.T) {
	t.Parallel()

	ds, err := domain.NewDataset([]string{"date", "users"}, [][]string{{"1", "10"}, {"2", "20"}})
	require.NoError(t, err)

	t.Run("with chart type", func(t *testing.T) {
		prompt, err := BuildPrompt("analyze growth", "line", ds)
		require.NoError(t, err)
		assert.Equal(t, "Analysis goal:\nanalyze growth, please use a line chart\nRaw data:\n1,10\n2,20\n", prompt)
	})

	t.Run("without chart type", func(t *testing.T) {
		prompt, err := BuildPrompt("analyze growth", "", ds)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(prompt, "Analysis goal:\nanalyze growth\nRaw data:\n"))
		assert.NotContains(t, prompt, "users")
	})
}

func TestSystemPromptMentionsDelimiter(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 2, strings.Count(SystemPrompt, Delimiter))
}
