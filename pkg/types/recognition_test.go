package types

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecognitionOptionsValidate(t *testing.T) {
	tests := []struct {
		name    string
		opts    RecognitionOptions
		wantErr bool
	}{
		{
			name: "valid ordering",
			opts: RecognitionOptions{Threshold: 0.75, LLMLowerBound: 0.60, LLMUpperBound: 0.75},
		},
		{
			name: "bands collapsed to threshold",
			opts: RecognitionOptions{Threshold: 0.5, LLMLowerBound: 0.5, LLMUpperBound: 0.5},
		},
		{
			name:    "threshold above one",
			opts:    RecognitionOptions{Threshold: 1.2, LLMLowerBound: 0.1, LLMUpperBound: 0.2},
			wantErr: true,
		},
		{
			name:    "lower above upper",
			opts:    RecognitionOptions{Threshold: 0.9, LLMLowerBound: 0.8, LLMUpperBound: 0.7},
			wantErr: true,
		},
		{
			name:    "upper above threshold",
			opts:    RecognitionOptions{Threshold: 0.6, LLMLowerBound: 0.5, LLMUpperBound: 0.7},
			wantErr: true,
		},
		{
			name:    "negative lower bound",
			opts:    RecognitionOptions{Threshold: 0.5, LLMLowerBound: -0.1, LLMUpperBound: 0.4},
			wantErr: true,
		},
		{
			name:    "negative limit",
			opts:    RecognitionOptions{Threshold: 0.5, LLMLowerBound: 0.1, LLMUpperBound: 0.4, Limit: -1},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrConfiguration), "expected ErrConfiguration, got %v", err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestMemoryItemRecordProcessing(t *testing.T) {
	item := &MemoryItem{ID: "itm-1"}
	item.RecordProcessing("acquisition", "filter")
	item.RecordProcessing("encoding", "normalizer")

	assert.Equal(t, []string{"acquisition:filter", "encoding:normalizer"}, item.Metadata.ProcessingHistory)
}

func TestMemoryItemCloneIndependentHistory(t *testing.T) {
	item := &MemoryItem{ID: "itm-1"}
	item.RecordProcessing("acquisition", "filter")

	clone := item.Clone()
	clone.RecordProcessing("encoding", "normalizer")

	assert.Len(t, item.Metadata.ProcessingHistory, 1)
	assert.Len(t, clone.Metadata.ProcessingHistory, 2)
}
