package shape

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

type page struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type pagesResponse struct {
	Pages Variant[page] `json:"pages"`
}

func TestVariantDecoding(t *testing.T) {
	tests := []struct {
		name string
		body string
		kind Kind
		want []page
	}{
		{name: "missing field", body: `{}`, kind: Absent, want: []page{}},
		{name: "null", body: `{"pages":null}`, kind: Absent, want: []page{}},
		{name: "single object", body: `{"pages":{"id":"1","name":"Cafe"}}`, kind: Single, want: []page{{ID: "1", Name: "Cafe"}}},
		{name: "array", body: `{"pages":[{"id":"1"},{"id":"2"}]}`, kind: Many, want: []page{{ID: "1"}, {ID: "2"}}},
		{name: "empty array", body: `{"pages":[]}`, kind: Many, want: []page{}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var resp pagesResponse
			require.NoError(t, json.Unmarshal([]byte(tc.body), &resp))
			require.Equal(t, tc.kind, resp.Pages.Kind())
			require.Equal(t, tc.want, resp.Pages.Slice())
		})
	}
}

func TestVariantRejectsMismatchedPayload(t *testing.T) {
	var resp pagesResponse
	require.ErrorContains(t, json.Unmarshal([]byte(`{"pages":"oops"}`), &resp), "decode single")
}

func TestVariantConstructors(t *testing.T) {
	require.Equal(t, []int{}, None[int]().Slice())
	require.Equal(t, []int{7}, One(7).Slice())
	require.Equal(t, []int{1, 2}, List([]int{1, 2}).Slice())
	require.Equal(t, "many", List([]int{}).Kind().String())
}

func TestVariantMarshalsNormalized(t *testing.T) {
	out, err := json.Marshal(pagesResponse{Pages: One(page{ID: "9"})})
	require.NoError(t, err)
	require.JSONEq(t, `{"pages":[{"id":"9","name":""}]}`, string(out))
}
