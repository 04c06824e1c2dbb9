package eval

// PrecisionAtK returns the fraction of the first k retrieved URLs that are
// relevant. Duplicate URLs count once and a short result list still divides
// by k. k <= 0 yields 0.
func PrecisionAtK(retrieved, relevant []string, k int) float64 {
	if k <= 0 {
		return 0
	}
	want := make(map[string]bool, len(relevant))
	for _, u := range relevant {
		want[u] = true
	}
	hits := make(map[string]bool)
	for _, u := range retrieved[:min(k, len(retrieved))] {
		if want[u] {
			hits[u] = true
		}
	}
	return float64(len(hits)) / float64(k)
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
