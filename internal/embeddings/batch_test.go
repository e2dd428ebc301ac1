package embeddings

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPlanBatches(t *testing.T) {
	tests := []struct {
		name  string
		n     int
		size  int
		sizes []int
	}{
		{"empty", 0, 96, nil},
		{"single short batch", 3, 96, []int{3}},
		{"exact multiple", 192, 96, []int{96, 96}},
		{"remainder", 200, 96, []int{96, 96, 8}},
		{"size one", 3, 1, []int{1, 1, 1}},
		{"zero size uses default", 100, 0, []int{96, 4}},
		{"negative size uses default", 97, -1, []int{96, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items := make([]string, tt.n)
			for i := range items {
				items[i] = fmt.Sprintf("chunk-%d", i)
			}

			batches := PlanBatches(items, tt.size)

			var got []int
			var flat []string
			for _, b := range batches {
				got = append(got, len(b))
				flat = append(flat, b...)
			}
			assert.Equal(t, tt.sizes, got)
			assert.Equal(t, len(tt.sizes), BatchCount(tt.n, tt.size))
			if tt.n > 0 {
				assert.Equal(t, items, flat)
			} else {
				assert.Empty(t, flat)
			}
		})
	}
}

func TestPlanBatches_BatchesDoNotAlias(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}
	batches := PlanBatches(items, 2)

	batches[0] = append(batches[0], 99)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, items)
}
