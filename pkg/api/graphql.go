package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
)

var (
	operationRe = regexp.MustCompile(`^\s*(?:query|mutation|subscription)\s+(\w+)`)
	mutationRe  = regexp.MustCompile(`^\s*mutation\b`)
)

type graphQLRequest struct {
	Query         string                 `json:"query"`
	Variables     map[string]interface{} `json:"variables,omitempty"`
	OperationName string                 `json:"operationName,omitempty"`
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// OperationName returns the name of the first operation in query
func OperationName(query string) string {
	if m := operationRe.FindStringSubmatch(query); m != nil {
		return m[1]
	}
	return ""
}

// IsMutation reports whether query is a mutation document
func IsMutation(query string) bool {
	return mutationRe.MatchString(query)
}

// GraphQL posts query to endpoint and decodes the data member into out.
// Queries are retried like GET, mutations only on 429.
func (c *Client) GraphQL(ctx context.Context, endpoint, query string, variables map[string]interface{}, out interface{}) error {
	op := OperationName(query)

	var resp graphQLResponse
	err := c.do(ctx, http.MethodPost, endpoint, nil, graphQLRequest{
		Query:         query,
		Variables:     variables,
		OperationName: op,
	}, &resp, !IsMutation(query))
	if err != nil {
		return err
	}

	if len(resp.Errors) > 0 {
		gqlErr := &GraphQLError{Operation: op}
		for _, e := range resp.Errors {
			gqlErr.Messages = append(gqlErr.Messages, e.Message)
		}
		return gqlErr
	}

	if out == nil || len(resp.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Data, out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", op, err)
	}
	return nil
}
