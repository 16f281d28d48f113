package media

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMergeSpeakersPicksLargestOverlap(t *testing.T) {
	segments := []Segment{
		{Start: 10, End: 15, Text: "hello there"},
	}
	turns := []SpeakerTurn{
		{Speaker: "A", Start: 8, End: 12},  // 2s overlap
		{Speaker: "B", Start: 12, End: 20}, // 3s overlap
	}

	merged := MergeSpeakers(segments, turns)
	assert.Equal(t, "B", merged[0].Speaker)
}

func TestMergeSpeakersTieGoesToEarliestTurn(t *testing.T) {
	segments := []Segment{
		{Start: 10, End: 14, Text: "even split"},
	}
	turns := []SpeakerTurn{
		{Speaker: "B", Start: 12, End: 16}, // 2s overlap, later start
		{Speaker: "A", Start: 8, End: 12},  // 2s overlap, earlier start
	}

	merged := MergeSpeakers(segments, turns)
	assert.Equal(t, "A", merged[0].Speaker)
}

func TestMergeSpeakersNoOverlapLeavesEmptyLabel(t *testing.T) {
	segments := []Segment{
		{Start: 0, End: 5, Text: "orphan"},
	}
	turns := []SpeakerTurn{
		{Speaker: "A", Start: 10, End: 20},
	}

	merged := MergeSpeakers(segments, turns)
	assert.Empty(t, merged[0].Speaker)
}

func TestMergeSpeakersNoTurns(t *testing.T) {
	segments := []Segment{{Start: 0, End: 5, Text: "solo"}}
	merged := MergeSpeakers(segments, nil)
	assert.Equal(t, segments, merged)
}

func TestMergeSpeakersDoesNotMutateInput(t *testing.T) {
	segments := []Segment{{Start: 0, End: 5, Text: "original"}}
	turns := []SpeakerTurn{{Speaker: "A", Start: 0, End: 5}}

	merged := MergeSpeakers(segments, turns)
	assert.Equal(t, "A", merged[0].Speaker)
	assert.Empty(t, segments[0].Speaker)
}

func TestMergeSpeakersMultipleSegments(t *testing.T) {
	segments := []Segment{
		{Start: 0, End: 4, Text: "first"},
		{Start: 4, End: 9, Text: "second"},
		{Start: 9, End: 12, Text: "third"},
	}
	turns := []SpeakerTurn{
		{Speaker: "A", Start: 0, End: 5},
		{Speaker: "B", Start: 5, End: 12},
	}

	merged := MergeSpeakers(segments, turns)
	assert.Equal(t, "A", merged[0].Speaker)
	assert.Equal(t, "B", merged[1].Speaker) // 4s with B beats 1s with A
	assert.Equal(t, "B", merged[2].Speaker)
}

func TestCountSpeakers(t *testing.T) {
	segments := []Segment{
		{Speaker: "A"},
		{Speaker: "B"},
		{Speaker: "A"},
		{Speaker: ""},
	}
	assert.Equal(t, 2, CountSpeakers(segments))
	assert.Equal(t, 0, CountSpeakers(nil))
}
