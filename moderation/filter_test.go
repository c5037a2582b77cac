package moderation

import (
	"log/slog"
	"testing"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

const maskChar = '*'

// The dictionary uses distinct words to avoid partial collisions
// (e.g. "he" inside "The").
func TestFilter_Mask(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	filter, err := NewFilter([]string{"badger", "snake", "mushroom"}, maskChar, log)
	req.NoError(err)

	tests := []struct {
		name     string
		input    string
		expected string
		matched  []string
	}{
		{
			name:     "simple word, spacing preserved",
			input:    "The badger is here",
			expected: "The ****** is here",
			matched:  []string{"badger"},
		},
		{
			name:     "every occurrence masked",
			input:    "badger badger badger",
			expected: "****** ****** ******",
			matched:  []string{"badger", "badger", "badger"},
		},
		{
			name:     "leet speak with internal punctuation",
			input:    "Look at B.4.d.g.€r !",
			expected: "Look at ********** !",
			matched:  []string{"badger"},
		},
		{
			name:     "uppercase and separator stuffing",
			input:    "S-N-A-K-E is a B.A.D.G.E.R",
			expected: "********* is a ***********",
			matched:  []string{"snake", "badger"},
		},
		{
			name:     "accented text around the match",
			input:    "Un été avec un badger",
			expected: "Un été avec un ******",
			matched:  []string{"badger"},
		},
		{
			name:     "trailing punctuation stays",
			input:    "I love badger!",
			expected: "I love ******!",
			matched:  []string{"badger"},
		},
		{
			name:     "nothing to mask",
			input:    "Whisper is amazing",
			expected: "Whisper is amazing",
			matched:  nil,
		},
		{
			name:     "empty string",
			input:    "",
			expected: "",
			matched:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			masked, matched := filter.Mask(tt.input)
			req.Equal(tt.expected, masked)
			req.Equal(tt.matched, matched)
		})
	}
}

func TestFilter_SeparatorOnlyTermsAreIgnored(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)

	// Terms reducing to nothing after canonicalization must not poison
	// the automaton into matching everything.
	filter, err := NewFilter([]string{"...", ",,,", "", "badger"}, maskChar, log)
	req.NoError(err)

	masked, matched := filter.Mask("The badger is safe")
	req.Equal("The ****** is safe", masked)
	req.Equal([]string{"badger"}, matched)

	masked, matched = filter.Mask("Hello ...")
	req.Equal("Hello ...", masked)
	req.Nil(matched)
}

func TestParseWordList(t *testing.T) {
	req := require.New(t)

	words := ParseWordList("# comment\n\nbadger\n  snake  \n")
	req.Equal([]string{"badger", "snake"}, words)

	req.NotEmpty(DefaultWords())
}
