package searchclient

import "time"

// Result is one hit from the Search Client. PublishedDate is never nil on a
// Result returned from Search — results missing a date are dropped before
// the caller ever sees them, per the Search Client contract.
type Result struct {
	URL           string
	PublishedDate time.Time
}

type jsonResult struct {
	URL           string `json:"url"`
	PublishedDate string `json:"published_date"`
}

type jsonSearchResponse struct {
	Results []jsonResult `json:"results"`
}
