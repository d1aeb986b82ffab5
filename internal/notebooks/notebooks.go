// Package notebooks manages Jupyter notebook servers running as Slurm jobs
// on Vantage clusters.
package notebooks

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/vantagecompute/vantage-cli/internal/vantage"
	"github.com/vantagecompute/vantage-cli/pkg/api"
)

const listQuery = `query NotebookServers($first: Int) {
    notebookServers(first: $first) {
        edges {
            node {
                id
                name
                clusterName
                partition
                owner
                serverUrl
                slurmJobId
                createdAt
                updatedAt
            }
        }
        total
    }
}`

const createMutation = `mutation CreateJupyterServer($input: CreateNotebookInput!) {
    createJupyterServer(createNotebookInput: $input) {
        __typename
        ... on NotebookServer {
            name
            clusterName
            partition
            owner
            serverUrl
            slurmJobId
        }
        ... on NotebookServerAlreadyExists { message }
        ... on ClusterNotFound { message }
        ... on PartitionNotFound { message }
    }
}`

const deleteMutation = `mutation DeleteJupyterServer($notebookServerName: String!) {
    deleteJupyterServer(notebookServerName: $notebookServerName) {
        __typename
        ... on NotebookServerDeleted { message }
        ... on NotebookServerNotFound { message }
    }
}`

const DefaultListSize = 100

var memoryRe = regexp.MustCompile(`^\s*(\d+(?:\.\d+)?)([kKmMgGtT])?\s*$`)

// Notebook is a notebook server record
type Notebook struct {
	ID          flexString `json:"id"`
	Name        string     `json:"name"`
	ClusterName string     `json:"clusterName"`
	Partition   string     `json:"partition"`
	Owner       string     `json:"owner"`
	ServerURL   string     `json:"serverUrl"`
	SlurmJobID  flexString `json:"slurmJobId"`
	CreatedAt   string     `json:"createdAt,omitempty"`
	UpdatedAt   string     `json:"updatedAt,omitempty"`
}

// flexString decodes JSON strings and numbers alike
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*f = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

// CreateInput describes a notebook server to start
type CreateInput struct {
	Name      string
	Cluster   string
	Partition string
	CPUCores  int
	GPUs      int
	Node      string
	Memory    string
}

// Payload validates the input and builds the mutation variables
func (in CreateInput) Payload() (map[string]interface{}, error) {
	if in.Name == "" {
		return nil, vantage.Abortf("SERVER NAME REQUIRED", "Notebook creation requires a server name. Supply one with --name.")
	}
	if in.Cluster == "" {
		return nil, vantage.Abortf("CLUSTER REQUIRED", "Notebook creation requires a cluster. Supply one with --cluster.")
	}
	if in.Partition == "" {
		return nil, vantage.Abortf("PARTITION REQUIRED", "Notebook creation requires a partition. Provide one with --partition.")
	}

	payload := map[string]interface{}{
		"name":          in.Name,
		"clusterName":   in.Cluster,
		"partitionName": in.Partition,
	}
	if in.CPUCores > 0 {
		payload["cpuCores"] = in.CPUCores
	}
	if in.GPUs > 0 {
		payload["gpus"] = in.GPUs
	}
	if in.Node != "" {
		payload["nodeName"] = in.Node
	}
	if in.Memory != "" {
		value, unit, err := ParseMemory(in.Memory)
		if err != nil {
			return nil, err
		}
		payload["memory"] = value
		if unit != "" {
			payload["memoryUnit"] = unit
		}
	}
	return payload, nil
}

// ParseMemory splits a size such as 4G or 4096M into value and unit
func ParseMemory(s string) (float64, string, error) {
	m := memoryRe.FindStringSubmatch(s)
	if m == nil {
		return 0, "", &vantage.Abort{
			Subject:    "INVALID MEMORY SPECIFICATION",
			Message:    fmt.Sprintf("Invalid memory specification '%s'. Use formats like 4G or 4096M.", s),
			LogMessage: fmt.Sprintf("unable to parse memory option: %s", s),
		}
	}
	value, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, "", err
	}
	return value, strings.ToUpper(m[2]), nil
}

// Result is the outcome of a create request
type Result struct {
	Notebook
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Service wraps the notebook GraphQL operations
type Service struct {
	client     *api.Client
	graphqlURL string
}

func NewService(client *api.Client, graphqlURL string) *Service {
	return &Service{client: client, graphqlURL: graphqlURL}
}

// List returns notebook servers, optionally only those on cluster
func (s *Service) List(ctx context.Context, cluster string, limit int) ([]Notebook, error) {
	if limit <= 0 {
		limit = DefaultListSize
	}

	var out struct {
		NotebookServers struct {
			Edges []struct {
				Node Notebook `json:"node"`
			} `json:"edges"`
			Total int `json:"total"`
		} `json:"notebookServers"`
	}
	if err := s.client.GraphQL(ctx, s.graphqlURL, listQuery, map[string]interface{}{"first": limit}, &out); err != nil {
		return nil, err
	}

	result := make([]Notebook, 0, len(out.NotebookServers.Edges))
	for _, edge := range out.NotebookServers.Edges {
		if cluster != "" && edge.Node.ClusterName != cluster {
			continue
		}
		result = append(result, edge.Node)
	}
	return result, nil
}

// Get finds a notebook server by name. The API has no single-server query
// so the list is filtered.
func (s *Service) Get(ctx context.Context, name string) (*Notebook, error) {
	all, err := s.List(ctx, "", 0)
	if err != nil {
		return nil, err
	}
	for i := range all {
		if all[i].Name == name {
			return &all[i], nil
		}
	}
	return nil, fmt.Errorf("notebook %q: %w", name, vantage.ErrNotFound)
}

type unionResult struct {
	Typename string `json:"__typename"`
	Message  string `json:"message"`
}

// Create requests a notebook server. An existing server with the same name
// is returned with status exists.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Result, error) {
	payload, err := in.Payload()
	if err != nil {
		return nil, err
	}

	var out struct {
		CreateJupyterServer json.RawMessage `json:"createJupyterServer"`
	}
	if err := s.client.GraphQL(ctx, s.graphqlURL, createMutation, map[string]interface{}{"input": payload}, &out); err != nil {
		return nil, err
	}
	if len(out.CreateJupyterServer) == 0 || string(out.CreateJupyterServer) == "null" {
		return nil, vantage.Abortf("NOTEBOOK CREATION FAILED", "Unexpected response structure while creating notebook server.")
	}

	var union unionResult
	if err := json.Unmarshal(out.CreateJupyterServer, &union); err != nil {
		return nil, err
	}

	switch union.Typename {
	case "", "NotebookServer":
	case "NotebookServerAlreadyExists":
		log.Info("Notebook server already registered, fetching existing record", "name", in.Name)
		existing, err := s.Get(ctx, in.Name)
		if err != nil {
			return nil, &vantage.Abort{
				Subject: "NOTEBOOK CREATION FAILED",
				Message: "Notebook server already exists according to the API, but no record could be fetched. Use 'vantage notebook list' to inspect existing notebooks.",
				Err:     err,
			}
		}
		return &Result{Notebook: *existing, Status: "exists", Message: "Notebook server already exists; returning existing record."}, nil
	default:
		msg := union.Message
		if msg == "" {
			msg = "Notebook server creation was rejected by the API."
		}
		return nil, &vantage.Abort{
			Subject:    "NOTEBOOK CREATION FAILED",
			Message:    msg,
			LogMessage: fmt.Sprintf("createJupyterServer returned %s", union.Typename),
		}
	}

	var nb Notebook
	if err := json.Unmarshal(out.CreateJupyterServer, &nb); err != nil {
		return nil, err
	}
	return &Result{Notebook: nb, Status: "created", Message: "Notebook server creation requested"}, nil
}

// Delete stops and removes a notebook server
func (s *Service) Delete(ctx context.Context, name string) error {
	var out struct {
		DeleteJupyterServer *unionResult `json:"deleteJupyterServer"`
	}
	if err := s.client.GraphQL(ctx, s.graphqlURL, deleteMutation,
		map[string]interface{}{"notebookServerName": name}, &out); err != nil {
		return err
	}

	if out.DeleteJupyterServer == nil {
		return fmt.Errorf("no delete response from server")
	}
	if out.DeleteJupyterServer.Typename == "NotebookServerNotFound" ||
		strings.Contains(strings.ToLower(out.DeleteJupyterServer.Message), "not found") {
		return fmt.Errorf("notebook %q: %w", name, vantage.ErrNotFound)
	}
	return nil
}

// Update changes the resources of a notebook server. Servers are Slurm
// jobs and cannot be resized while running, so the server is deleted and
// created again with the merged settings.
func (s *Service) Update(ctx context.Context, name string, changes CreateInput) (*Result, error) {
	current, err := s.Get(ctx, name)
	if err != nil {
		return nil, err
	}

	in := changes
	in.Name = name
	if in.Cluster == "" {
		in.Cluster = current.ClusterName
	}
	if in.Partition == "" {
		in.Partition = current.Partition
	}
	if _, err := in.Payload(); err != nil {
		return nil, err
	}

	if err := s.Delete(ctx, name); err != nil {
		return nil, err
	}

	result, err := s.Create(ctx, in)
	if err != nil {
		return nil, err
	}
	result.Status = "updated"
	result.Message = "Notebook server recreated with new settings"
	return result, nil
}
