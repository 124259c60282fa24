package entity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestArticle_ReadyForDigest(t *testing.T) {
	text := "some raw text"
	now := time.Now()

	tests := []struct {
		name string
		a    Article
		want bool
	}{
		{"no raw text yet", Article{}, false},
		{"has raw text, unprocessed", Article{RawText: &text}, true},
		{"has raw text, already processed", Article{RawText: &text, ProcessedAt: &now}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.a.ReadyForDigest())
		})
	}
}

func TestFeedSource_Validate(t *testing.T) {
	tests := []struct {
		name    string
		src     FeedSource
		wantErr bool
	}{
		{
			name: "valid RSS source",
			src:  FeedSource{Name: "Reuters", FeedURL: "https://example.com/rss", Kind: FeedKindRSS},
		},
		{
			name: "empty kind defaults to RSS",
			src:  FeedSource{Name: "Reuters", FeedURL: "https://example.com/rss"},
		},
		{
			name:    "invalid kind",
			src:     FeedSource{Name: "Reuters", FeedURL: "https://example.com/rss", Kind: "ATOM"},
			wantErr: true,
		},
		{
			name:    "missing name",
			src:     FeedSource{FeedURL: "https://example.com/rss"},
			wantErr: true,
		},
		{
			name:    "missing url",
			src:     FeedSource{Name: "Reuters"},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.src.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
