package embeddings

import "slices"

// DefaultBatchSize is the largest number of texts Cohere accepts per embed call.
const DefaultBatchSize = 96

// PlanBatches splits items into consecutive batches of at most size items.
// Concatenating the batches yields items unchanged. size <= 0 means
// DefaultBatchSize. An empty input yields no batches.
func PlanBatches[T any](items []T, size int) [][]T {
	if size <= 0 {
		size = DefaultBatchSize
	}
	batches := make([][]T, 0, BatchCount(len(items), size))
	for b := range slices.Chunk(items, size) {
		batches = append(batches, b)
	}
	return batches
}

// BatchCount returns how many batches PlanBatches produces for n items.
func BatchCount(n, size int) int {
	if size <= 0 {
		size = DefaultBatchSize
	}
	return (n + size - 1) / size
}
