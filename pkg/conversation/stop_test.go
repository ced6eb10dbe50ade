package conversation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultStop(t *testing.T) {
	tests := []struct {
		name    string
		persona string
		turn    int
		want    bool
	}{
		{"closing phrase after minimum turns", "Thank you so much, that helps!", 3, true},
		{"case insensitive", "THANK YOU SO MUCH", 2, true},
		{"goodbye", "Okay, goodbye for now.", 4, true},
		{"no more questions", "I have no more questions.", 2, true},
		{"closing phrase too early", "Thank you so much!", 1, false},
		{"ordinary question", "What form do I need for that?", 5, false},
		{"plain thanks is not closing", "Thanks, and one more thing...", 3, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DefaultStop(tt.persona, "some agent reply", tt.turn))
		})
	}
}
