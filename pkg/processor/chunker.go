package processor

import (
	"unicode"
	"unicode/utf8"
)

// span is a half-open byte range [start, end) of the source text.
type span struct {
	start int
	end   int
}

// ChunkText splits text into segments of at most size characters along
// sentence boundaries. Consecutive segments share the trailing sentences of
// the previous segment that fit within overlap characters. A sentence
// longer than size becomes a segment of its own.
func ChunkText(text string, size, overlap int) []string {
	spans := chunkSpans(text, size, overlap)
	if len(spans) == 0 {
		return nil
	}
	chunks := make([]string, len(spans))
	for i, s := range spans {
		chunks[i] = text[s.start:s.end]
	}
	return chunks
}

func chunkSpans(text string, size, overlap int) []span {
	sentences := splitIntoSentences(text)
	if len(sentences) == 0 {
		return nil
	}
	if size < 1 {
		size = 1
	}
	if overlap < 0 {
		overlap = 0
	}

	var chunks []span
	i := 0
	for i < len(sentences) {
		// Greedily pack sentences starting at i; always take at least one.
		j := i
		for j+1 < len(sentences) && runeLen(text, sentences[i].start, sentences[j+1].end) <= size {
			j++
		}
		chunks = append(chunks, span{start: sentences[i].start, end: sentences[j].end})
		if j == len(sentences)-1 {
			break
		}

		// Walk back from the end of the chunk, re-including sentences that
		// fit in the overlap window. The next chunk must start after i.
		next := j + 1
		for k := j; k > i; k-- {
			if runeLen(text, sentences[k].start, sentences[j].end) > overlap {
				break
			}
			next = k
		}
		i = next
	}
	return chunks
}

// splitIntoSentences returns sentence spans without surrounding whitespace.
// A sentence ends at '.', '!' or '?' followed by whitespace or end of text.
func splitIntoSentences(text string) []span {
	var sentences []span
	start := -1
	for pos, r := range text {
		if start < 0 {
			if unicode.IsSpace(r) {
				continue
			}
			start = pos
		}
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		end := pos + utf8.RuneLen(r)
		if end == len(text) {
			break
		}
		if next, _ := utf8.DecodeRuneInString(text[end:]); unicode.IsSpace(next) {
			sentences = append(sentences, span{start: start, end: end})
			start = -1
		}
	}
	if start >= 0 {
		end := len(text)
		for end > start {
			r, size := utf8.DecodeLastRuneInString(text[:end])
			if !unicode.IsSpace(r) {
				break
			}
			end -= size
		}
		sentences = append(sentences, span{start: start, end: end})
	}
	return sentences
}

func runeLen(text string, start, end int) int {
	return utf8.RuneCountInString(text[start:end])
}
