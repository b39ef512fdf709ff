package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadRequests(t *testing.T) {
	tests := []struct {
		name      string
		method    string
		target    string
		ctype     string
		body      string
		maxBody   int64
		want      []GraphQLRequest
		wantBatch bool
		wantErr   string
	}{
		{
			name:   "get",
			method: http.MethodGet,
			target: `/graphql?query={hello}&operationName=Q&variables={"id":"1"}`,
			want:   []GraphQLRequest{{Query: "{hello}", OperationName: "Q", Variables: map[string]any{"id": "1"}}},
		},
		{
			name:    "get bad variables",
			method:  http.MethodGet,
			target:  `/graphql?query={hello}&variables={`,
			wantErr: "invalid 'variables' JSON",
		},
		{
			name:   "json with charset",
			method: http.MethodPost,
			ctype:  "application/json; charset=utf-8",
			body:   `{"query":"{hello}"}`,
			want:   []GraphQLRequest{{Query: "{hello}"}},
		},
		{
			name:      "batch",
			method:    http.MethodPost,
			body:      `[{"query":"{a}"},{"query":"{b}"}]`,
			want:      []GraphQLRequest{{Query: "{a}"}, {Query: "{b}"}},
			wantBatch: true,
		},
		{
			name:    "too large",
			method:  http.MethodPost,
			body:    `{"query":"{hello}"}`,
			maxBody: 4,
			wantErr: "body too large",
		},
		{
			name:    "form",
			method:  http.MethodPost,
			ctype:   "application/x-www-form-urlencoded",
			body:    `query={hello}`,
			wantErr: "unsupported Content-Type",
		},
		{
			name:    "delete",
			method:  http.MethodDelete,
			wantErr: "method not allowed",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			target := tc.target
			if target == "" {
				target = "/graphql"
			}
			r := httptest.NewRequest(tc.method, strings.ReplaceAll(target, `"`, "%22"), strings.NewReader(tc.body))
			if tc.ctype != "" {
				r.Header.Set("Content-Type", tc.ctype)
			}

			reqs, batch, err := readRequests(httptest.NewRecorder(), r, tc.maxBody)
			if tc.wantErr != "" {
				require.NotNil(t, err)
				assert.Equal(t, tc.wantErr, err.Error())
				return
			}
			require.Nil(t, err)
			assert.Equal(t, tc.want, reqs)
			assert.Equal(t, tc.wantBatch, batch)
		})
	}
}
