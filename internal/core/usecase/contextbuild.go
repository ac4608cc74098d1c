package usecase

import (
	"fmt"
	"strings"

	"github.com/univera-lab/univera-rag/internal/core/domain"
	"github.com/univera-lab/univera-rag/internal/search/lexical"
)

// buildContext converts ranked results into the generation context: one
// labeled block per document with front-matter stripped, joined by blank
// lines. Ranking order is preserved — it signals priority to the generation
// step.
func buildContext(results []domain.RankedResult) string {
	blocks := make([]string, 0, len(results))
	for _, result := range results {
		content := lexical.StripFrontMatter(result.Content)
		blocks = append(blocks, fmt.Sprintf("## 문서: %s\n%s", result.DocumentID, content))
	}
	return strings.Join(blocks, "\n\n")
}
