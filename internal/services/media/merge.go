package media

// SpeakerTurn is a speaker-attributed time interval produced by a
// diarization call that ran independently of transcription.
type SpeakerTurn struct {
	Speaker string  `json:"speaker"`
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
}

// MergeSpeakers attributes each transcript segment to the speaker turn with
// the greatest temporal overlap. Ties resolve to the earliest-starting turn.
// Segments with no overlapping turn keep an empty speaker label.
func MergeSpeakers(segments []Segment, turns []SpeakerTurn) []Segment {
	if len(turns) == 0 {
		return segments
	}

	out := make([]Segment, len(segments))
	copy(out, segments)

	for i := range out {
		best := -1
		bestOverlap := 0.0
		for j, turn := range turns {
			o := overlap(out[i].Start, out[i].End, turn.Start, turn.End)
			if o <= 0 {
				continue
			}
			if o > bestOverlap || (o == bestOverlap && best >= 0 && turn.Start < turns[best].Start) {
				best = j
				bestOverlap = o
			}
		}
		if best >= 0 {
			out[i].Speaker = turns[best].Speaker
		}
	}
	return out
}

// CountSpeakers returns the number of distinct speaker labels in segments.
func CountSpeakers(segments []Segment) int {
	seen := make(map[string]struct{})
	for _, s := range segments {
		if s.Speaker != "" {
			seen[s.Speaker] = struct{}{}
		}
	}
	return len(seen)
}

func overlap(aStart, aEnd, bStart, bEnd float64) float64 {
	start := aStart
	if bStart > start {
		start = bStart
	}
	end := aEnd
	if bEnd < end {
		end = bEnd
	}
	return end - start
}
