package eval

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrecisionAtK(t *testing.T) {
	tests := []struct {
		name      string
		retrieved []string
		relevant  []string
		k         int
		want      float64
	}{
		{"two of three", []string{"A", "B", "C"}, []string{"A", "C", "D"}, 3, 2.0 / 3.0},
		{"all relevant", []string{"A", "C"}, []string{"A", "C", "D"}, 2, 1},
		{"none relevant", []string{"X", "Y", "Z"}, []string{"A"}, 3, 0},
		{"short list still divides by k", []string{"A"}, []string{"A"}, 5, 0.2},
		{"duplicates count once", []string{"A", "A", "A"}, []string{"A"}, 3, 1.0 / 3.0},
		{"only first k considered", []string{"X", "Y", "Z", "A"}, []string{"A"}, 3, 0},
		{"zero k", []string{"A"}, []string{"A"}, 0, 0},
		{"nothing retrieved", nil, []string{"A"}, 3, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, PrecisionAtK(tt.retrieved, tt.relevant, tt.k), 1e-9)
		})
	}
}

func TestTopicCoverage(t *testing.T) {
	text := "Create a ROS 2 workspace with colcon. The publisher sends a message on a topic."

	assert.Equal(t, 1.0, TopicCoverage(text, []string{"workspace", "ROS 2"}))
	assert.Equal(t, 0.5, TopicCoverage(text, []string{"publisher", "Isaac Sim"}))
	assert.Equal(t, 0.0, TopicCoverage(text, []string{"the"}), "stop-word topics never match")
	assert.Equal(t, 0.0, TopicCoverage(text, nil))
}

func TestTokenizeAndFilter(t *testing.T) {
	assert.Equal(t, []string{"what", "ros", "2", "nodes"}, tokenizeAndFilter("What is the ROS 2 (nodes)?"))
	assert.Empty(t, tokenizeAndFilter("the a an"))
}

func TestExcerpt(t *testing.T) {
	assert.Equal(t, "short text", Excerpt("short   text", 150))
	assert.Equal(t, "abc...", Excerpt("abcdef", 3))
}
