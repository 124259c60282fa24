package pathutil

import "testing"

// Normalization sits on the hot path of every HTTP request; keep it well
// under a microsecond.
func BenchmarkNormalizePath_Template(b *testing.B) {
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		NormalizePath("/fact_graph/123456")
	}
}

func BenchmarkNormalizePath_Static(b *testing.B) {
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		NormalizePath("/query/natural")
	}
}

func BenchmarkNormalizePath_NoMatch(b *testing.B) {
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		NormalizePath("/some/other/path/42")
	}
}
