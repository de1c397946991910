package indexer

import (
	"reflect"
	"strings"
	"testing"
)

func TestSplitSentences(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want []string
	}{
		{
			name: "basic",
			in:   "First point. Second point! Third point?",
			want: []string{"First point.", "Second point!", "Third point?"},
		},
		{
			name: "ellipsis and stacked punctuation",
			in:   "Wait... Really?! Yes.",
			want: []string{"Wait...", "Really?!", "Yes."},
		},
		{
			name: "decimal not a boundary",
			in:   "The margin is 3.14 percent. Approved.",
			want: []string{"The margin is 3.14 percent.", "Approved."},
		},
		{
			name: "no terminal punctuation",
			in:   "trailing fragment without an end",
			want: []string{"trailing fragment without an end"},
		},
		{
			name: "newlines between sentences",
			in:   "Alpha.\nBeta.\n",
			want: []string{"Alpha.", "Beta."},
		},
		{
			name: "empty",
			in:   "   ",
			want: nil,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := SplitSentences(tc.in)
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestChunkTranscript(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 13; i++ {
		sb.WriteString("Sentence number ")
		sb.WriteString(strings.Repeat("x", i+1))
		sb.WriteString(". ")
	}

	chunks := ChunkTranscript(sb.String(), 5)
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks for 13 sentences at 5 per chunk, got %d", len(chunks))
	}
	// Final chunk is the trailing partial group of 3.
	if got := strings.Count(chunks[2], "."); got != 3 {
		t.Errorf("expected 3 sentences in final chunk, got %d", got)
	}
	for i, chunk := range chunks[:2] {
		if got := strings.Count(chunk, "."); got != 5 {
			t.Errorf("chunk %d: expected 5 sentences, got %d", i, got)
		}
	}
}

func TestChunkTranscript_Empty(t *testing.T) {
	if chunks := ChunkTranscript("", 10); chunks != nil {
		t.Errorf("expected nil for empty transcript, got %v", chunks)
	}
}

func TestChunkTranscript_FewerThanChunkSize(t *testing.T) {
	chunks := ChunkTranscript("One. Two.", 10)
	if len(chunks) != 1 {
		t.Fatalf("expected single chunk, got %d", len(chunks))
	}
	if chunks[0] != "One. Two." {
		t.Errorf("got %q", chunks[0])
	}
}
