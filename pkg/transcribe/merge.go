package transcribe

import (
	"math"
	"regexp"
	"slices"
	"strings"
	"unicode"

	"github.com/haivivi/voxmemo/pkg/memo"
)

// minOverlapWords is the shortest repeated word run trimmed at an untimed
// seam. Single-word matches are too often coincidence.
const minOverlapWords = 2

// maxOverlapWords bounds the search; 30 seconds of speech stays well below.
const maxOverlapWords = 200

var specialToken = regexp.MustCompile(`<\|[^|>]*\|>`)

// chunkOutput is what the backend produced for one chunk.
type chunkOutput struct {
	chunk memo.AudioChunk
	parts []Transcription
}

// piece is a segment on the source timeline before ids are assigned.
type piece struct {
	text       string
	start, end float64
}

func (p piece) mid() float64 { return (p.start + p.end) / 2 }

type placed struct {
	pieces []piece
	timed  bool
	// start and end of the chunk in seconds.
	start, end float64
}

// mergeChunks stitches per-chunk output into one ordered segment list.
//
// Times are rebased by the chunk start. Where two chunks overlap and both
// carry segment timing, the shared span is cut at its midpoint: the earlier
// chunk keeps segments centred before the cut, the later one keeps the
// rest. A chunk without timing becomes one segment spanning the chunk, and
// its seams are reconciled by dropping the longest run of words that ends
// the earlier chunk and also starts the later one.
func mergeChunks(outs []chunkOutput, skipSpecial bool) []memo.Segment {
	chunks := make([]placed, len(outs))
	for i, out := range outs {
		chunks[i] = place(out, skipSpecial)
	}

	// Midpoint cuts between timed neighbours.
	for i := 1; i < len(chunks); i++ {
		prev, next := &chunks[i-1], &chunks[i]
		if !prev.timed || !next.timed {
			continue
		}
		cut := (next.start + prev.end) / 2
		prev.pieces = slices.DeleteFunc(prev.pieces, func(p piece) bool { return p.mid() >= cut })
		next.pieces = slices.DeleteFunc(next.pieces, func(p piece) bool { return p.mid() < cut })
	}

	// Word overlap at seams involving an untimed chunk.
	for i := 1; i < len(chunks); i++ {
		prev, next := &chunks[i-1], &chunks[i]
		if prev.timed && next.timed {
			continue
		}
		trimSeam(prev.pieces, next)
	}

	var segments []memo.Segment
	lastStart := 0.0
	for _, c := range chunks {
		for _, p := range c.pieces {
			text := normalizeSpace(p.text)
			if text == "" {
				continue
			}
			start := math.Max(p.start, lastStart)
			end := math.Max(p.end, start)
			lastStart = start
			segments = append(segments, memo.Segment{
				ID:    len(segments),
				Text:  text,
				Start: start,
				End:   end,
			})
		}
	}
	return segments
}

// place rebases a chunk's output onto the source timeline.
func place(out chunkOutput, skipSpecial bool) placed {
	pc := placed{
		start: out.chunk.Start.Seconds(),
		end:   out.chunk.End.Seconds(),
	}

	var texts []string
	for _, part := range out.parts {
		segs := part.Segments
		if len(segs) == 0 && strings.TrimSpace(part.Text) != "" {
			segs = []RawSegment{{Text: part.Text}}
		}
		for _, s := range segs {
			text := cleanText(s.Text, skipSpecial)
			if text == "" {
				continue
			}
			texts = append(texts, text)
			if s.End > s.Start {
				pc.timed = true
			}
			start := clamp(pc.start+s.Start, pc.start, pc.end)
			end := clamp(pc.start+s.End, start, pc.end)
			pc.pieces = append(pc.pieces, piece{text: text, start: start, end: end})
		}
	}

	if !pc.timed {
		pc.pieces = nil
		if len(texts) > 0 {
			pc.pieces = []piece{{text: strings.Join(texts, " "), start: pc.start, end: pc.end}}
		}
		return pc
	}
	slices.SortStableFunc(pc.pieces, func(a, b piece) int {
		switch {
		case a.start < b.start:
			return -1
		case a.start > b.start:
			return 1
		}
		return 0
	})
	return pc
}

// trimSeam removes from the head of next the longest word run that also
// ends prev.
func trimSeam(prev []piece, next *placed) {
	if len(prev) == 0 || len(next.pieces) == 0 {
		return
	}
	var tail []string
	for _, p := range prev {
		tail = append(tail, strings.Fields(p.text)...)
	}
	var head []string
	for _, p := range next.pieces {
		head = append(head, strings.Fields(p.text)...)
	}

	k := overlapWords(tail, head)
	if k < minOverlapWords {
		return
	}
	for k > 0 && len(next.pieces) > 0 {
		words := strings.Fields(next.pieces[0].text)
		if len(words) <= k {
			k -= len(words)
			next.pieces = next.pieces[1:]
			continue
		}
		next.pieces[0].text = strings.Join(words[k:], " ")
		k = 0
	}
}

// overlapWords returns the largest k such that the last k words of a equal
// the first k words of b, ignoring case and surrounding punctuation.
func overlapWords(a, b []string) int {
	for k := min(len(a), len(b), maxOverlapWords); k > 0; k-- {
		match := true
		for i := range k {
			if foldWord(a[len(a)-k+i]) != foldWord(b[i]) {
				match = false
				break
			}
		}
		if match {
			return k
		}
	}
	return 0
}

func foldWord(w string) string {
	return strings.ToLower(strings.TrimFunc(w, func(r rune) bool {
		return unicode.IsPunct(r) || unicode.IsSymbol(r)
	}))
}

func cleanText(s string, skipSpecial bool) string {
	if skipSpecial {
		s = specialToken.ReplaceAllString(s, " ")
	}
	return normalizeSpace(s)
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}
