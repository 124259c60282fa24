package pathutil

import "testing"

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		name string
		path string
		want string
	}{
		{"fact graph with id", "/fact_graph/123", "/fact_graph/:id"},
		{"fact graph another id", "/fact_graph/9999999", "/fact_graph/:id"},
		{"fact graph trailing slash", "/fact_graph/123/", "/fact_graph/:id"},
		{"fact graph with query", "/fact_graph/123?depth=2", "/fact_graph/:id"},
		{"natural query endpoint unchanged", "/query/natural", "/query/natural"},
		{"health unchanged", "/health", "/health"},
		{"metrics unchanged", "/metrics", "/metrics"},
		{"root unchanged", "/", "/"},
		{"non-numeric id unchanged", "/fact_graph/abc", "/fact_graph/abc"},
		{"unknown path with number unchanged", "/unknown/path/123", "/unknown/path/123"},
		{"empty path", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizePath(tt.path); got != tt.want {
				t.Errorf("NormalizePath(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestGetExpectedCardinality(t *testing.T) {
	got := GetExpectedCardinality()
	if got <= 0 {
		t.Errorf("expected positive cardinality estimate, got %d", got)
	}
}
