package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/vantagecompute/vantage-cli/internal/notebooks"
	"github.com/vantagecompute/vantage-cli/internal/vantage"
)

func notebookFields(n *notebooks.Notebook) []field {
	return []field{
		{"id", string(n.ID)},
		{"name", n.Name},
		{"cluster", n.ClusterName},
		{"partition", n.Partition},
		{"owner", n.Owner},
		{"server_url", n.ServerURL},
		{"slurm_job_id", string(n.SlurmJobID)},
		{"created_at", n.CreatedAt},
	}
}

func notebookError(name string, err error) error {
	if errors.Is(err, vantage.ErrNotFound) {
		return &vantage.Abort{
			Subject: "NOTEBOOK NOT FOUND",
			Message: fmt.Sprintf("Notebook server '%s' not found.", name),
			Err:     err,
		}
	}
	return err
}

func addNotebookFlags(cmd *cobra.Command, in *notebooks.CreateInput) {
	cmd.Flags().StringVarP(&in.Cluster, "cluster", "c", "", "Cluster to run the notebook server on")
	cmd.Flags().StringVar(&in.Partition, "partition", "", "Slurm partition")
	cmd.Flags().IntVar(&in.CPUCores, "cpu-cores", 0, "CPU cores")
	cmd.Flags().IntVar(&in.GPUs, "gpus", 0, "GPUs")
	cmd.Flags().StringVar(&in.Node, "node", "", "Node to pin the server to")
	cmd.Flags().StringVar(&in.Memory, "memory", "", "Memory, e.g. 4G or 4096M")
}

func newNotebookCommand(s *state) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "notebook",
		Aliases: []string{"notebooks"},
		Short:   "Manage Jupyter notebook servers",
	}

	cmd.AddCommand(
		newNotebookCreateCommand(s),
		newNotebookGetCommand(s),
		newNotebookListCommand(s),
		newNotebookUpdateCommand(s),
		newNotebookDeleteCommand(s),
	)
	return cmd
}

func renderNotebookResult(s *state, cmd *cobra.Command, result *notebooks.Result) error {
	return s.render(cmd, result, func() *metav1.Table {
		fields := append([]field{{"status", result.Status}, {"message", result.Message}}, notebookFields(&result.Notebook)...)
		return detailTable(fields)
	})
}

func newNotebookCreateCommand(s *state) *cobra.Command {
	var in notebooks.CreateInput

	cmd := &cobra.Command{
		Use:   "create NAME",
		Short: "Start a notebook server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in.Name = args[0]
			svc, err := s.notebooks(cmd.Context())
			if err != nil {
				return err
			}
			result, err := svc.Create(cmd.Context(), in)
			if err != nil {
				return err
			}
			return renderNotebookResult(s, cmd, result)
		},
	}

	addNotebookFlags(cmd, &in)
	return cmd
}

func newNotebookGetCommand(s *state) *cobra.Command {
	return &cobra.Command{
		Use:   "get NAME",
		Short: "Show a notebook server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := s.notebooks(cmd.Context())
			if err != nil {
				return err
			}
			nb, err := svc.Get(cmd.Context(), args[0])
			if err != nil {
				return notebookError(args[0], err)
			}
			return s.render(cmd, nb, func() *metav1.Table { return detailTable(notebookFields(nb)) })
		},
	}
}

func newNotebookListCommand(s *state) *cobra.Command {
	var (
		cluster string
		limit   int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List notebook servers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := s.notebooks(cmd.Context())
			if err != nil {
				return err
			}
			list, err := svc.List(cmd.Context(), cluster, limit)
			if err != nil {
				return err
			}
			if len(list) == 0 {
				return s.renderEmpty(cmd, "No notebook servers found.")
			}

			return s.render(cmd, list, func() *metav1.Table {
				rows := make([][]interface{}, 0, len(list))
				for _, n := range list {
					rows = append(rows, []interface{}{n.Name, n.ClusterName, display(n.Partition), display(n.Owner), display(n.ServerURL)})
				}
				return newTable([]string{"NAME", "CLUSTER", "PARTITION", "OWNER", "URL"}, rows)
			})
		},
	}

	cmd.Flags().StringVarP(&cluster, "cluster", "c", "", "Only servers on this cluster")
	cmd.Flags().IntVarP(&limit, "limit", "l", notebooks.DefaultListSize, "Maximum number of servers")
	return cmd
}

func newNotebookUpdateCommand(s *state) *cobra.Command {
	var (
		in    notebooks.CreateInput
		force bool
	)

	cmd := &cobra.Command{
		Use:   "update NAME",
		Short: "Restart a notebook server with new resources",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := s.confirm(cmd, force, "Updating restarts notebook server '%s'. Continue?", args[0]); err != nil {
				return err
			}
			svc, err := s.notebooks(cmd.Context())
			if err != nil {
				return err
			}
			result, err := svc.Update(cmd.Context(), args[0], in)
			if err != nil {
				return notebookError(args[0], err)
			}
			return renderNotebookResult(s, cmd, result)
		},
	}

	addNotebookFlags(cmd, &in)
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Skip the confirmation prompt")
	return cmd
}

func newNotebookDeleteCommand(s *state) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "delete NAME",
		Short: "Stop and remove a notebook server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := s.confirm(cmd, force, "Delete notebook server '%s'?", args[0]); err != nil {
				return err
			}
			svc, err := s.notebooks(cmd.Context())
			if err != nil {
				return err
			}
			if err := svc.Delete(cmd.Context(), args[0]); err != nil {
				return notebookError(args[0], err)
			}
			return s.message(cmd, fmt.Sprintf("Notebook server %s deleted", args[0]), map[string]interface{}{"name": args[0]})
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Skip the confirmation prompt")
	return cmd
}
