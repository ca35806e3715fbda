package present

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBulletize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"empty", "", []string{}},
		{"single sentence", "Hard and durable.", []string{"Hard and durable"}},
		{"periods and semicolons", "Hard; durable. Warm to the touch.", []string{"Hard", "durable", "Warm to the touch"}},
		{"runs of separators", "Dense..;; Heavy;", []string{"Dense", "Heavy"}},
		{"only separators", " . ; . ", []string{}},
		{"no separator", "Flexible", []string{"Flexible"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Bulletize(tt.in)
			assert.Equal(t, tt.want, got)
			for _, item := range got {
				assert.NotEmpty(t, item)
			}
		})
	}
}

func TestSplitColours(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"empty", "", nil},
		{"comma", "Brown, Tan", []string{"Brown", "Tan"}},
		{"slash and ampersand", "Grey/White & Black", []string{"Grey", "White", "Black"}},
		{"repeated separators", "Red,, /&Blue", []string{"Red", "Blue"}},
		{"trailing separator", "Gold,", []string{"Gold"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chips := SplitColours(tt.in)
			var labels []string
			for _, c := range chips {
				assert.NotEmpty(t, c.Label)
				labels = append(labels, c.Label)
			}
			assert.Equal(t, tt.want, labels)
		})
	}
}

func TestSplitColours_Swatch(t *testing.T) {
	chips := SplitColours("Dark Brown, TAN")
	assert.Equal(t, []Chip{
		{Label: "Dark Brown", Swatch: "dark brown"},
		{Label: "TAN", Swatch: "tan"},
	}, chips)
}
