package agentic

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kailas-cloud/meetdex/internal/domain"
)

const (
	maxSources            = 10
	maxSnippetChars       = 200
	maxExcerptsInPrompt   = 10
	maxTranscriptInPrompt = 15000
)

// gatheredContext accumulates everything the agent's tool calls found.
// It is the sole input to the final answer prompt and the source list.
type gatheredContext struct {
	hits        []domain.SearchHit
	titles      map[string]string // meeting id -> title
	transcripts map[string]string // meeting id -> full transcript
	notes       map[string]string // meeting id -> notes
}

func newGatheredContext() *gatheredContext {
	return &gatheredContext{
		titles:      make(map[string]string),
		transcripts: make(map[string]string),
		notes:       make(map[string]string),
	}
}

func (g *gatheredContext) addHits(hits []domain.SearchHit) {
	for _, hit := range hits {
		g.hits = append(g.hits, hit)
		if hit.DocType == domain.DocTypeTitle {
			g.titles[hit.Document.MeetingID] = hit.Document.Text
		}
	}
}

func (g *gatheredContext) empty() bool {
	return len(g.hits) == 0 && len(g.transcripts) == 0 && len(g.notes) == 0
}

// buildSources deduplicates hits by (meeting, doc type, source id), orders
// them by score and caps the list.
func (g *gatheredContext) buildSources() []domain.SourceReference {
	type key struct {
		meetingID string
		docType   domain.DocType
		sourceID  string
	}
	seen := make(map[key]bool)

	sources := make([]domain.SourceReference, 0, len(g.hits))
	for _, hit := range g.hits {
		k := key{hit.Document.MeetingID, hit.DocType, hit.Document.SourceID}
		if seen[k] {
			continue
		}
		seen[k] = true
		sources = append(sources, domain.SourceReference{
			MeetingID:    hit.Document.MeetingID,
			MeetingTitle: g.titles[hit.Document.MeetingID],
			DocType:      hit.DocType,
			Snippet:      truncate(hit.Document.Text, maxSnippetChars),
			Score:        hit.Score,
			SourceID:     hit.Document.SourceID,
		})
	}

	sort.SliceStable(sources, func(i, j int) bool { return sources[i].Score > sources[j].Score })
	if len(sources) > maxSources {
		sources = sources[:maxSources]
	}
	return sources
}

// buildPrompt renders the gathered context into answer-prompt sections.
func (g *gatheredContext) buildPrompt() string {
	var b strings.Builder

	if len(g.notes) > 0 {
		b.WriteString("## Meeting Notes\n")
		for meetingID, notes := range sortedByKey(g.notes) {
			fmt.Fprintf(&b, "\nMeeting %s (%s):\n%s\n", meetingID, g.titles[meetingID], notes)
		}
	}

	var excerpts int
	for _, hit := range g.hits {
		if hit.DocType != domain.DocTypeTranscriptChunk {
			continue
		}
		if excerpts == 0 {
			b.WriteString("\n## Transcript Excerpts\n")
		}
		if excerpts >= maxExcerptsInPrompt {
			break
		}
		fmt.Fprintf(&b, "\n[meeting %s, chunk %s]\n%s\n",
			hit.Document.MeetingID, hit.Document.SourceID, hit.Document.Text)
		excerpts++
	}

	var workflows int
	for _, hit := range g.hits {
		if hit.DocType != domain.DocTypeWorkflowSummary {
			continue
		}
		if workflows == 0 {
			b.WriteString("\n## Workflows\n")
		}
		fmt.Fprintf(&b, "\n[meeting %s]\n%s\n", hit.Document.MeetingID, hit.Document.Text)
		workflows++
	}

	if len(g.transcripts) > 0 {
		b.WriteString("\n## Full Transcripts\n")
		for meetingID, transcript := range sortedByKey(g.transcripts) {
			fmt.Fprintf(&b, "\nMeeting %s (%s):\n%s\n",
				meetingID, g.titles[meetingID], truncate(transcript, maxTranscriptInPrompt))
		}
	}

	return b.String()
}

// sortedByKey yields map entries in key order for stable prompts.
func sortedByKey(m map[string]string) func(func(string, string) bool) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return func(yield func(string, string) bool) {
		for _, k := range keys {
			if !yield(k, m[k]) {
				return
			}
		}
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
