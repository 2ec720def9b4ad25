package catalogue

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatch(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		pattern string
		want    bool
	}{
		{"empty pattern matches everything", "anything", "", true},
		{"bare star matches everything", "anything", "*", true},
		{"bare star matches empty name", "", "*", true},
		{"empty pattern matches empty name", "", "", true},
		{"literal exact", "fee", "fee", true},
		{"literal mismatch", "fee", "fi", false},
		{"literal prefix is not a match", "feed", "fee", false},

		{"hash matches one char", "a", "#", true},
		{"hash needs a char", "", "#", false},
		{"hash refuses two chars", "ab", "#", false},
		{"hash inside literals", "fum", "f#m", true},
		{"hash mismatch around it", "fum", "f#x", false},

		{"star then suffix", "!foo", "*fo#", true},
		{"star resolves to zero chars", "foo", "*fo#", true},
		{"star suffix mismatch", "fee", "*fo#", false},
		{"star suffix mismatch two", "longname", "*fo#", false},

		{"infix star both sides", "!foo", "*oo*", true},
		{"infix star mid name", "noob", "*oo*", true},
		{"infix star absent", "fum", "*oo*", false},
		{"infix star single o", "fi", "*oo*", false},

		{"trailing star", "barrel", "bar*", true},
		{"trailing star zero chars", "bar", "bar*", true},
		{"run of stars collapses", "barrel", "bar**", true},

		{"star before hash takes zero chars", "ab", "*#b", true},
		{"star before hash does not backtrack", "aab", "*#b", false},
		{"star before hash run", "ab", "*##", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Match(tt.input, tt.pattern),
				"Match(%q, %q)", tt.input, tt.pattern)
		})
	}
}

// The matcher resolves each '*' against the first occurrence of the next
// literal and never backtracks, so a later occurrence that would satisfy
// the pattern is not considered. Host utilities share this behavior and
// rely on both sides agreeing.
func TestMatchDoesNotBacktrack(t *testing.T) {
	assert.False(t, Match("xoxoo", "*oo*"))
	assert.True(t, Match("xxoo", "*oo*"))
}
