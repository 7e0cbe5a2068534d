package fetcher

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drainJSON[T any](elemCh <-chan T, errCh <-chan error) ([]T, error) {
	var out []T
	for elem := range elemCh {
		out = append(out, elem)
	}
	return out, <-errCh
}

func TestDecodeJSONArray_Objects(t *testing.T) {
	input := `[{"title":"Backend Engineer"},{"title":"Data Analyst"}]`

	type rec struct {
		Title string `json:"title"`
	}
	elems, err := drainJSON(DecodeJSONArray[rec](context.Background(), strings.NewReader(input)))
	require.NoError(t, err)
	require.Len(t, elems, 2)
	assert.Equal(t, "Backend Engineer", elems[0].Title)
}

func TestDecodeJSONArray_RawMessages(t *testing.T) {
	input := `[{"a":1}, 42, "str"]`

	elems, err := drainJSON(DecodeJSONArray[json.RawMessage](context.Background(), strings.NewReader(input)))
	require.NoError(t, err)
	assert.Len(t, elems, 3)
}

func TestDecodeJSONArray_NotAnArray(t *testing.T) {
	_, err := drainJSON(DecodeJSONArray[json.RawMessage](context.Background(), strings.NewReader(`{"a":1}`)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected '['")
}

func TestDecodeJSONArray_TruncatedStream(t *testing.T) {
	input := `[{"title":"ok"},{"title":`

	type rec struct {
		Title string `json:"title"`
	}
	elems, err := drainJSON(DecodeJSONArray[rec](context.Background(), strings.NewReader(input)))
	// Elements before the break are delivered; the error reports the break.
	require.Error(t, err)
	assert.Len(t, elems, 1)
}

func TestDecodeJSONArray_EmptyInput(t *testing.T) {
	elems, err := drainJSON(DecodeJSONArray[json.RawMessage](context.Background(), strings.NewReader("")))
	require.NoError(t, err)
	assert.Empty(t, elems)
}
