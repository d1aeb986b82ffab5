package clusters

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/vantagecompute/vantage-cli/internal/vantage"
	"github.com/vantagecompute/vantage-cli/pkg/api"
)

const clusterFields = `
        name
        status
        clientId
        description
        ownerEmail
        provider
        cloudAccountId
        creationParameters`

const listQuery = `query getClusters($first: Int!, $filters: JSONScalar) {
    clusters(first: $first, filters: $filters) {
        edges {
            node {` + clusterFields + `
            }
        }
    }
}`

const createMutation = `mutation createCluster($createClusterInput: CreateClusterInput!) {
    createCluster(createClusterInput: $createClusterInput) {
        ... on Cluster {` + clusterFields + `
        }
        ... on ClusterNameInUse { message }
        ... on InvalidInput { message }
        ... on ClusterCouldNotBeDeployed { message }
        ... on UnexpectedBehavior { message }
    }
}`

const deleteMutation = `mutation deleteCluster($clusterName: String!) {
    deleteCluster(clusterName: $clusterName) {
        ... on ClusterDeleted { message }
        ... on ClusterNotFound { message }
        ... on InvalidProviderInput { message }
        ... on UnexpectedBehavior { message }
    }
}`

// DefaultListSize is the page size used by List
const DefaultListSize = 100

// Service wraps the cluster endpoints
type Service struct {
	client     *api.Client
	graphqlURL string
	vantageURL string
}

func NewService(client *api.Client, graphqlURL, vantageURL string) *Service {
	return &Service{client: client, graphqlURL: graphqlURL, vantageURL: vantageURL}
}

type connection struct {
	Clusters struct {
		Edges []struct {
			Node Cluster `json:"node"`
		} `json:"edges"`
	} `json:"clusters"`
}

func (s *Service) query(ctx context.Context, first int, filters map[string]interface{}) ([]Cluster, error) {
	vars := map[string]interface{}{"first": first}
	if filters != nil {
		vars["filters"] = filters
	}

	var out connection
	if err := s.client.GraphQL(ctx, s.graphqlURL, listQuery, vars, &out); err != nil {
		return nil, err
	}

	result := make([]Cluster, 0, len(out.Clusters.Edges))
	for _, edge := range out.Clusters.Edges {
		c := edge.Node
		c.JupyterHubURL = JupyterHubURL(s.vantageURL, c.ClientID)
		result = append(result, c)
	}
	return result, nil
}

// List returns up to limit clusters, DefaultListSize when limit is zero
func (s *Service) List(ctx context.Context, limit int) ([]Cluster, error) {
	if limit <= 0 {
		limit = DefaultListSize
	}
	return s.query(ctx, limit, nil)
}

// Get looks a cluster up by name
func (s *Service) Get(ctx context.Context, name string) (*Cluster, error) {
	found, err := s.query(ctx, 1, map[string]interface{}{
		"name": map[string]interface{}{"eq": name},
	})
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, fmt.Errorf("cluster %q: %w", name, vantage.ErrNotFound)
	}
	return &found[0], nil
}

// GetWithSecret returns the cluster with its client secret populated. A
// secret that cannot be fetched is logged and left empty.
func (s *Service) GetWithSecret(ctx context.Context, name string) (*Cluster, error) {
	c, err := s.Get(ctx, name)
	if err != nil {
		return nil, err
	}

	secret, err := s.ClientSecret(ctx, c.ClientID)
	if err != nil {
		log.Debug("Could not fetch client secret", "cluster", name, "error", err)
		return c, nil
	}
	c.ClientSecret = secret
	return c, nil
}

// CreateInput is the payload of the createCluster mutation
type CreateInput struct {
	Name               string                 `json:"name"`
	Description        string                 `json:"description,omitempty"`
	Provider           string                 `json:"provider"`
	ProviderAttributes map[string]interface{} `json:"providerAttributes,omitempty"`
}

// NewCreateInput builds the input for a cloud with the provider mapping and
// defaults the API expects
func NewCreateInput(name, cloud, description string) CreateInput {
	if description == "" {
		description = fmt.Sprintf("Cluster %s created via CLI", name)
	}

	in := CreateInput{
		Name:        name,
		Description: description,
		Provider:    Provider(cloud),
	}
	if cloud == "aws" {
		in.ProviderAttributes = map[string]interface{}{
			"aws": map[string]interface{}{
				"headNodeInstanceType": "t3.medium",
				"keyPair":              "default",
				"cloudAccountId":       1,
				"regionName":           "us_west_2",
			},
		}
	}
	return in
}

// Create registers a new cluster. Union error types of the mutation are
// returned as errors carrying their message.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Cluster, error) {
	var out struct {
		CreateCluster json.RawMessage `json:"createCluster"`
	}
	if err := s.client.GraphQL(ctx, s.graphqlURL, createMutation,
		map[string]interface{}{"createClusterInput": in}, &out); err != nil {
		return nil, err
	}

	if len(out.CreateCluster) == 0 || string(out.CreateCluster) == "null" {
		return nil, errors.New("no response from server")
	}

	var union struct {
		Name    string `json:"name"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(out.CreateCluster, &union); err != nil {
		return nil, err
	}
	if union.Message != "" && union.Name == "" {
		if strings.Contains(strings.ToLower(union.Message), "in use") {
			return nil, fmt.Errorf("%w: %s", vantage.ErrAlreadyExists, union.Message)
		}
		return nil, fmt.Errorf("cluster creation failed: %s", union.Message)
	}

	var c Cluster
	if err := json.Unmarshal(out.CreateCluster, &c); err != nil {
		return nil, err
	}
	c.JupyterHubURL = JupyterHubURL(s.vantageURL, c.ClientID)
	if secret, err := s.ClientSecret(ctx, c.ClientID); err == nil {
		c.ClientSecret = secret
	}
	return &c, nil
}

// Delete removes a cluster by name
func (s *Service) Delete(ctx context.Context, name string) error {
	var out struct {
		DeleteCluster *struct {
			Message string `json:"message"`
		} `json:"deleteCluster"`
	}
	if err := s.client.GraphQL(ctx, s.graphqlURL, deleteMutation,
		map[string]interface{}{"clusterName": name}, &out); err != nil {
		return err
	}

	if out.DeleteCluster == nil {
		return nil
	}

	msg := strings.ToLower(out.DeleteCluster.Message)
	switch {
	case msg == "" || strings.Contains(msg, "deleted"):
		return nil
	case strings.Contains(msg, "not found"):
		return fmt.Errorf("cluster %q: %w", name, vantage.ErrNotFound)
	default:
		return fmt.Errorf("failed to delete cluster: %s", out.DeleteCluster.Message)
	}
}

// ClientSecret fetches the OIDC client secret of a cluster from the admin
// management API
func (s *Service) ClientSecret(ctx context.Context, clientID string) (string, error) {
	var clients struct {
		Clients []struct {
			ID string `json:"id"`
		} `json:"clients"`
	}
	if err := s.client.Get(ctx, "/admin/management/clients", url.Values{"client_id": {clientID}}, &clients); err != nil {
		return "", err
	}
	if len(clients.Clients) == 0 || clients.Clients[0].ID == "" {
		return "", fmt.Errorf("client %q: %w", clientID, vantage.ErrNotFound)
	}

	var secret struct {
		ClientSecret string `json:"client_secret"`
	}
	if err := s.client.Get(ctx, "/admin/management/clients/"+url.PathEscape(clients.Clients[0].ID), nil, &secret); err != nil {
		return "", err
	}
	if secret.ClientSecret == "" {
		return "", fmt.Errorf("client %q has no secret", clientID)
	}
	return secret.ClientSecret, nil
}
