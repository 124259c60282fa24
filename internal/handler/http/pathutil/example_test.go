package pathutil_test

import (
	"fmt"

	"catchup-feed/internal/handler/http/pathutil"
)

func ExampleNormalizePath() {
	fmt.Println(pathutil.NormalizePath("/fact_graph/123"))
	fmt.Println(pathutil.NormalizePath("/query/natural"))
	fmt.Println(pathutil.NormalizePath("/health"))
	// Output:
	// /fact_graph/:id
	// /query/natural
	// /health
}

func ExampleExtractID() {
	id, err := pathutil.ExtractID("/fact_graph/42", "/fact_graph/")
	fmt.Println(id, err)
	// Output:
	// 42 <nil>
}
