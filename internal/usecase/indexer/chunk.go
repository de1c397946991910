package indexer

import "strings"

// sentenceEnders terminate a sentence when followed by whitespace or EOF.
const sentenceEnders = ".!?"

// SplitSentences splits text into sentences on terminal punctuation.
// Punctuation inside a token (like "3.14" or "v1.2") does not split because
// a boundary requires trailing whitespace.
func SplitSentences(text string) []string {
	var sentences []string
	var start int

	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		if !strings.ContainsRune(sentenceEnders, runes[i]) {
			continue
		}
		// Consume a run of enders ("..." or "?!").
		end := i
		for end+1 < len(runes) && strings.ContainsRune(sentenceEnders, runes[end+1]) {
			end++
		}
		atEOF := end+1 >= len(runes)
		if !atEOF && !isSpace(runes[end+1]) {
			i = end
			continue
		}
		s := strings.TrimSpace(string(runes[start : end+1]))
		if s != "" {
			sentences = append(sentences, s)
		}
		start = end + 1
		i = end
	}

	if tail := strings.TrimSpace(string(runes[start:])); tail != "" {
		sentences = append(sentences, tail)
	}
	return sentences
}

func isSpace(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\r':
		return true
	}
	return false
}

// ChunkTranscript groups the transcript's sentences into chunks of
// sentencesPerChunk. A trailing partial group becomes the final chunk.
func ChunkTranscript(transcript string, sentencesPerChunk int) []string {
	if sentencesPerChunk <= 0 {
		sentencesPerChunk = 10
	}
	sentences := SplitSentences(transcript)
	if len(sentences) == 0 {
		return nil
	}

	chunks := make([]string, 0, (len(sentences)+sentencesPerChunk-1)/sentencesPerChunk)
	for start := 0; start < len(sentences); start += sentencesPerChunk {
		end := min(start+sentencesPerChunk, len(sentences))
		chunks = append(chunks, strings.Join(sentences[start:end], " "))
	}
	return chunks
}
