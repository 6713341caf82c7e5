package chat

import (
	"fmt"
	"strings"

	"github.com/hyperjump/helpmate/internal/ingest"
	"github.com/hyperjump/helpmate/internal/llm"
	"github.com/hyperjump/helpmate/internal/models"
)

const policySystemPrompt = `You answer questions from employers about hiring and employing a migrant domestic worker (MDW) in Singapore.
Answer using only the numbered passages provided. Cite the passages you rely on as [Source 1], [Source 2] and so on.
Do not invent rules, fees, figures or deadlines that are not stated in the passages.
If the passages do not contain enough information to answer, say so briefly and suggest checking the official source (the Ministry of Manpower website).
Keep the answer concise.`

// PolicyMessages builds the grounded prompt for a policy question.
func PolicyMessages(question string, hits []models.ScoredChunk) []llm.Message {
	var sb strings.Builder
	sb.WriteString("Passages:\n")
	for i, h := range hits {
		fmt.Fprintf(&sb, "\nSource %d:\n%s\n", i+1, strings.TrimSpace(ingest.StripSectionLabel(h.Chunk.Text)))
	}
	fmt.Fprintf(&sb, "\nQuestion: %s", question)
	return []llm.Message{
		llm.System(policySystemPrompt),
		llm.User(sb.String()),
	}
}

// SourcesFooter lists the retrieved chunks after a streamed answer.
func SourcesFooter(hits []models.ScoredChunk) string {
	var sb strings.Builder
	sb.WriteString("\n\nSources:")
	for i, h := range hits {
		fmt.Fprintf(&sb, "\n[%d] %s (chunk %d, score %.3f)", i+1, h.Chunk.Title, h.Chunk.ChunkIndex, h.Score)
	}
	return sb.String()
}

// FormatHelpers renders one line per helper: "Name, Age years old, Nationality, skills: a, b".
func FormatHelpers(helpers []*models.HelperProfile) string {
	lines := make([]string, len(helpers))
	for i, h := range helpers {
		lines[i] = fmt.Sprintf("%s, %d years old, %s, skills: %s", h.Name, h.Age, h.Nationality, strings.Join(h.Skills, ", "))
	}
	return strings.Join(lines, "\n")
}
