package extractor

import (
	"context"
	"errors"
	"testing"

	"catchup-feed/internal/domain/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeExtractor struct {
	candidates []entity.Candidate
	err        error
}

func (f *fakeExtractor) ExtractFacts(_ context.Context, _ string) ([]entity.Candidate, error) {
	return f.candidates, f.err
}

func TestFallback_PrimarySucceeds_NeverCallsSecondary(t *testing.T) {
	primary := &fakeExtractor{candidates: []entity.Candidate{{Subject: "a", Predicate: "b", Object: "c", Confidence: 0.9}}}
	secondary := &fakeExtractor{err: errors.New("should not be called")}

	f := NewFallback(primary, secondary)
	got, err := f.ExtractFacts(context.Background(), "text")

	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestFallback_PrimaryContractViolation_IsSuccessNotFallback(t *testing.T) {
	primary := &fakeExtractor{candidates: nil, err: nil}
	secondary := &fakeExtractor{err: errors.New("should not be called")}

	f := NewFallback(primary, secondary)
	got, err := f.ExtractFacts(context.Background(), "text")

	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestFallback_PrimaryErrors_FallsBackToSecondary(t *testing.T) {
	primary := &fakeExtractor{err: errors.New("claude unavailable")}
	secondary := &fakeExtractor{candidates: []entity.Candidate{{Subject: "x", Predicate: "y", Object: "z", Confidence: 0.7}}}

	f := NewFallback(primary, secondary)
	got, err := f.ExtractFacts(context.Background(), "text")

	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestFallback_BothFail_ReturnsSecondaryError(t *testing.T) {
	primary := &fakeExtractor{err: errors.New("claude unavailable")}
	secondary := &fakeExtractor{err: errors.New("openai unavailable too")}

	f := NewFallback(primary, secondary)
	_, err := f.ExtractFacts(context.Background(), "text")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "openai unavailable")
}
