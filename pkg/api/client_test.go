package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	tokens := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "abc", TokenType: "Bearer"})
	return NewClient(server.URL+"/", tokens, WithRetry(3, time.Millisecond), WithUserAgent("vantage-cli/test"))
}

func TestClient_Get(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer abc", r.Header.Get("Authorization"))
		assert.Equal(t, "vantage-cli/test", r.Header.Get("User-Agent"))
		assert.Equal(t, "/lm/products/7", r.URL.Path)
		_, _ = w.Write([]byte(`{"id": 7, "name": "abaqus"}`))
	})

	var out Record
	require.NoError(t, client.Get(context.Background(), "/lm/products/7", nil, &out))
	assert.Equal(t, "abaqus", out["name"])
}

func TestClient_RetriesTransientFailures(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantCalls int32
		wantErr   bool
	}{
		{name: "retries 503 then succeeds", status: http.StatusServiceUnavailable, wantCalls: 2},
		{name: "does not retry 400", status: http.StatusBadRequest, wantCalls: 1, wantErr: true},
		{name: "does not retry 404", status: http.StatusNotFound, wantCalls: 1, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				if calls.Add(1) == 1 {
					w.WriteHeader(tt.status)
					_, _ = w.Write([]byte("nope"))
					return
				}
				_, _ = w.Write([]byte(`{}`))
			})

			err := client.Get(context.Background(), "/x", nil, nil)
			assert.Equal(t, tt.wantCalls, calls.Load())
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}

			var httpErr *HTTPError
			require.ErrorAs(t, err, &httpErr)
			assert.Equal(t, tt.status, httpErr.StatusCode)
			assert.Equal(t, "nope", httpErr.Body)
		})
	}
}

func TestClient_GivesUpAfterAttempts(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	})

	err := client.Get(context.Background(), "/x", nil, nil)
	require.Error(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_NonIdempotentRetries(t *testing.T) {
	const mutation = `mutation createCluster($input: CreateClusterInput!) { createCluster(createClusterInput: $input) { name } }`
	const query = `query getClusters { clusters { total } }`

	tests := []struct {
		name      string
		status    int
		call      func(c *Client) error
		wantCalls int32
	}{
		{
			name:   "post not retried on 502",
			status: http.StatusBadGateway,
			call: func(c *Client) error {
				return c.Post(context.Background(), "/lm/products", map[string]string{"name": "abaqus"}, nil)
			},
			wantCalls: 1,
		},
		{
			name:   "post retried on 429",
			status: http.StatusTooManyRequests,
			call: func(c *Client) error {
				return c.Post(context.Background(), "/lm/products", map[string]string{"name": "abaqus"}, nil)
			},
			wantCalls: 3,
		},
		{
			name:   "mutation not retried on 502",
			status: http.StatusBadGateway,
			call: func(c *Client) error {
				return c.GraphQL(context.Background(), "/cluster/graphql", mutation, nil, nil)
			},
			wantCalls: 1,
		},
		{
			name:   "query retried on 502",
			status: http.StatusBadGateway,
			call: func(c *Client) error {
				return c.GraphQL(context.Background(), "/cluster/graphql", query, nil, nil)
			},
			wantCalls: 3,
		},
		{
			name:   "put retried on 503",
			status: http.StatusServiceUnavailable,
			call: func(c *Client) error {
				return c.Put(context.Background(), "/lm/products/7", map[string]string{"name": "abaqus"}, nil)
			},
			wantCalls: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(tt.status)
			})

			err := tt.call(client)
			var httpErr *HTTPError
			require.ErrorAs(t, err, &httpErr)
			assert.Equal(t, tt.status, httpErr.StatusCode)
			assert.Equal(t, tt.wantCalls, calls.Load())
		})
	}
}

func TestIsMutation(t *testing.T) {
	assert.True(t, IsMutation("\n  mutation deleteCluster($name: String!) {}"))
	assert.False(t, IsMutation("query getClusters { clusters { total } }"))
	assert.False(t, IsMutation("{ mutationLog { total } }"))
}

func TestClient_GraphQL(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var req graphQLRequest
		require.NoError(t, json.Unmarshal(body, &req))
		assert.Equal(t, "getClusters", req.OperationName)
		assert.EqualValues(t, 10, req.Variables["first"])

		_, _ = w.Write([]byte(`{"data": {"clusters": {"total": 1}}}`))
	})

	var out struct {
		Clusters struct {
			Total int `json:"total"`
		} `json:"clusters"`
	}
	err := client.GraphQL(context.Background(), "/cluster/graphql",
		"query getClusters($first: Int!) { clusters(first: $first) { total } }",
		map[string]interface{}{"first": 10}, &out)
	require.NoError(t, err)
	assert.Equal(t, 1, out.Clusters.Total)
}

func TestClient_GraphQLErrors(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{"errors": [{"message": "bad filter"}, {"message": "denied"}]}`))
	})

	err := client.GraphQL(context.Background(), "/cluster/graphql", "mutation deleteCluster { x }", nil, nil)

	var gqlErr *GraphQLError
	require.ErrorAs(t, err, &gqlErr)
	assert.Equal(t, "deleteCluster: bad filter; denied", gqlErr.Error())
	assert.Equal(t, int32(1), calls.Load())
}

func TestDecodeList(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    int
		wantErr bool
	}{
		{name: "bare array", raw: `[{"id": 1}, {"id": 2}]`, want: 2},
		{name: "items", raw: `{"items": [{"id": 1}], "total": 1}`, want: 1},
		{name: "data", raw: `{"data": []}`, want: 0},
		{name: "results", raw: `{"results": [{"id": 1}]}`, want: 1},
		{name: "no envelope", raw: `{"id": 1}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records, err := DecodeList(json.RawMessage(tt.raw))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, records, tt.want)
		})
	}
}

func TestListOptions_Values(t *testing.T) {
	asc := true
	v := ListOptions{Search: "abaqus", Sort: "name", SortAscending: &asc, Limit: 5}.Values()
	assert.Equal(t, "abaqus", v.Get("search"))
	assert.Equal(t, "name", v.Get("sort_field"))
	assert.Equal(t, "true", v.Get("sort_ascending"))
	assert.Equal(t, "5", v.Get("limit"))
	assert.Equal(t, "limit=5&search=abaqus&sort_ascending=true&sort_field=name", v.Encode())
}

func TestOperationName(t *testing.T) {
	assert.Equal(t, "NotebookServers", OperationName("\n  query NotebookServers($first: Int) {}"))
	assert.Equal(t, "", OperationName("{ clusters { total } }"))
}

func TestHTTPError_TruncatesBodyOnRuneBoundary(t *testing.T) {
	err := &HTTPError{
		Method:     http.MethodGet,
		URL:        "https://apis.vantagecompute.ai/lm/products",
		StatusCode: http.StatusBadGateway,
		Body:       "a" + strings.Repeat("ü", 250),
	}

	msg := err.Error()
	assert.True(t, utf8.ValidString(msg))
	assert.True(t, strings.HasSuffix(msg, ": a"+strings.Repeat("ü", 199)+"..."))
}
