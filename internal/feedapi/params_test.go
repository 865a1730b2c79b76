package feedapi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"newsfeed/internal/common/pagination"
)

func TestParseFeedQueryParams_Defaults(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/feed", nil)
	params, err := ParseFeedQueryParams(r, pagination.DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, "", params.Category)
	assert.Equal(t, 20, params.Limit)
	assert.Equal(t, 0, params.Offset)
}

func TestParseFeedQueryParams_CustomValues(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/feed?category=world&limit=10&offset=30", nil)
	params, err := ParseFeedQueryParams(r, pagination.DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, "world", params.Category)
	assert.Equal(t, 10, params.Limit)
	assert.Equal(t, 30, params.Offset)
}

func TestParseFeedQueryParams_RejectsLimitOverMax(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/feed?limit=101", nil)
	_, err := ParseFeedQueryParams(r, pagination.DefaultConfig())
	assert.Error(t, err)
}

func TestParseFeedQueryParams_RejectsZeroLimit(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/feed?limit=0", nil)
	_, err := ParseFeedQueryParams(r, pagination.DefaultConfig())
	assert.Error(t, err)
}

func TestParseFeedQueryParams_RejectsNegativeOffset(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/feed?offset=-1", nil)
	_, err := ParseFeedQueryParams(r, pagination.DefaultConfig())
	assert.Error(t, err)
}
