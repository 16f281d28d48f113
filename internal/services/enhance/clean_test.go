package enhance

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanTranscript(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "strips filler words",
			in:   "um so I think, uh, we should ship it",
			want: "So I think, we should ship it",
		},
		{
			name: "collapses whitespace",
			in:   "hello    world \n\n again",
			want: "Hello world again",
		},
		{
			name: "removes space before punctuation",
			in:   "we agree , right ?",
			want: "We agree, right?",
		},
		{
			name: "capitalizes sentence starts",
			in:   "first point. second point. third",
			want: "First point. Second point. Third",
		},
		{
			name: "multi-word fillers",
			in:   "it was you know kind of like a mess",
			want: "It was a mess",
		},
		{
			name: "empty input stays empty",
			in:   "",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanTranscript(tt.in))
		})
	}
}

func TestCleanStageWritesDraft(t *testing.T) {
	d := NewDraft("um hello world", "en")
	stage := NewCleanStage()

	require.NoError(t, stage.Run(context.Background(), d))
	assert.Equal(t, "Hello world", d.Cleaned)
	assert.Equal(t, "um hello world", d.Raw)
}

func TestCleanStageFullyFilleredTranscriptIsError(t *testing.T) {
	d := NewDraft("um uh hmm", "en")
	stage := NewCleanStage()

	err := stage.Run(context.Background(), d)
	require.Error(t, err)
	assert.Empty(t, d.Cleaned)
}
