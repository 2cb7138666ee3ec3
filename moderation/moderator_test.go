package moderation

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const replacementChar = '*'

// The dictionary avoids short words that would collide inside others ("he" in "The").
func TestFilter_Censor(t *testing.T) {
	req := require.New(t)
	filter, err := NewFilter([]string{"badger", "snake", "mushroom"}, replacementChar)
	req.NoError(err)
	req.True(filter.Enabled())

	tests := []struct {
		name     string
		input    string
		expected string
		words    []string
	}{
		{
			name:     "Simple word and space preservation",
			input:    "The badger is here",
			expected: "The ****** is here",
			words:    []string{"badger"},
		},
		{
			name:     "Multiple occurrences",
			input:    "badger badger badger",
			expected: "****** ****** ******",
			words:    []string{"badger", "badger", "badger"},
		},
		{
			name:     "Leet speak and internal punctuation",
			input:    "Look at B.4.d.g.€r now",
			expected: "Look at ********** now",
			words:    []string{"badger"},
		},
		{
			name:     "Uppercase and noise",
			input:    "S-N-A-K-E is a B.A.D.G.E.R",
			expected: "********* is a ***********",
			words:    []string{"snake", "badger"},
		},
		{
			name:     "Accents around a match",
			input:    "Un été avec un badger",
			expected: "Un été avec un ******",
			words:    []string{"badger"},
		},
		{
			name:     "Nothing to censor",
			input:    "Chat hub is amazing",
			expected: "Chat hub is amazing",
		},
		{
			name:     "Empty string",
			input:    "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			content, words := filter.Censor(tt.input)
			require.Equal(t, tt.expected, content)
			require.Equal(t, tt.words, words)
		})
	}
}

func TestFilter_Without_Words_Passes_Everything(t *testing.T) {
	req := require.New(t)

	// Given a dictionary of pure noise
	filter, err := NewFilter([]string{"...", ",,,", ""}, replacementChar)
	req.NoError(err)

	// Then nothing is ever masked
	req.False(filter.Enabled())
	content, words := filter.Censor("Hello ... badger")
	req.Equal("Hello ... badger", content)
	req.Nil(words)

	var none *Filter
	content, _ = none.Censor("badger")
	req.Equal("badger", content)
}

func TestLanguage(t *testing.T) {
	require.Equal(t, "fr", Language("Bonjour tout le monde, comment allez-vous aujourd'hui ?"))
}
