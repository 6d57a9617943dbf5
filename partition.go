package frio

// partition splits paths into exactly n chunks, round-robin by index.
//
// Chunk i receives every path whose index j satisfies j % n == i, in input
// order. n < 1 is treated as 1. Chunks may be empty.
func partition(paths []string, n int) [][]string {
	if n < 1 {
		n = 1
	}

	chunks := make([][]string, n)

	per := len(paths)/n + 1
	for i := range chunks {
		chunks[i] = make([]string, 0, per)
	}

	for j, p := range paths {
		chunks[j%n] = append(chunks[j%n], p)
	}

	return chunks
}
