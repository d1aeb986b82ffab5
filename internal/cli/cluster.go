package cli

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/vantagecompute/vantage-cli/internal/apps"
	"github.com/vantagecompute/vantage-cli/internal/clusters"
	"github.com/vantagecompute/vantage-cli/internal/vantage"
)

func clusterTable(c *clusters.Cluster) *metav1.Table {
	return detailTable([]field{
		{"name", c.Name},
		{"status", c.Status},
		{"type", c.Type()},
		{"client_id", c.ClientID},
		{"description", c.Description},
		{"owner_email", c.OwnerEmail},
		{"cloud_account_id", c.CloudAccountID},
		{"jupyterhub_url", c.JupyterHubURL},
	})
}

func clusterError(name string, err error) error {
	if errors.Is(err, vantage.ErrNotFound) {
		return &vantage.Abort{
			Subject: "CLUSTER NOT FOUND",
			Message: fmt.Sprintf("No cluster found with name '%s'.", name),
			Err:     err,
		}
	}
	return err
}

func newClusterCommand(s *state) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "cluster",
		Aliases: []string{"clusters"},
		Short:   "Manage Vantage clusters",
	}

	cmd.AddCommand(
		newClusterCreateCommand(s),
		newClusterGetCommand(s),
		newClusterListCommand(s),
		newClusterDeleteCommand(s),
	)
	return cmd
}

func newClusterCreateCommand(s *state) *cobra.Command {
	var (
		cloud       string
		description string
		deploy      string
	)

	cmd := &cobra.Command{
		Use:   "create NAME",
		Short: "Create a cluster, optionally deploying an app to it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]

			if _, err := s.clouds().Get(cloud); err != nil && !vantage.MustSettings(cmd.Context()).SupportsCloud(cloud) {
				return vantage.Abortf("UNSUPPORTED CLOUD", "Cloud '%s' is not supported. See `vantage cloud list`.", cloud)
			}
			if deploy != "" {
				if _, err := s.registry.Get(deploy); err != nil {
					return vantage.Abortf("APP NOT FOUND", "App '%s' not found. Run `vantage app list` to see available apps.", deploy)
				}
			}

			svc, err := s.clusters(cmd.Context())
			if err != nil {
				return err
			}

			cluster, err := svc.Create(cmd.Context(), clusters.NewCreateInput(name, cloud, description))
			if err != nil {
				if errors.Is(err, vantage.ErrAlreadyExists) {
					return &vantage.Abort{
						Subject: "CLUSTER EXISTS",
						Message: fmt.Sprintf("A cluster named '%s' already exists.", name),
						Err:     err,
					}
				}
				return err
			}
			log.Info("Cluster created", "name", cluster.Name, "client_id", cluster.ClientID)

			if deploy == "" {
				return s.render(cmd, cluster, func() *metav1.Table { return clusterTable(cluster) })
			}

			driver, err := s.driver(cmd.Context(), svc)
			if err != nil {
				return err
			}
			record, err := driver.Deploy(cmd.Context(), deploy, cluster, apps.DeployOptions{})
			if err != nil {
				return err
			}

			return s.render(cmd, map[string]interface{}{
				"cluster":    cluster,
				"deployment": record,
			}, func() *metav1.Table {
				fields := []field{{"cluster", cluster.Name}, {"client_id", cluster.ClientID}}
				return detailTable(append(fields, deploymentFields(record)...))
			})
		},
	}

	cmd.Flags().StringVarP(&cloud, "cloud", "c", "", "Cloud the cluster runs on")
	cmd.Flags().StringVarP(&description, "description", "d", "", "Cluster description")
	cmd.Flags().StringVar(&deploy, "deploy", "", "App to deploy once the cluster is created")
	_ = cmd.MarkFlagRequired("cloud")
	return cmd
}

func newClusterGetCommand(s *state) *cobra.Command {
	return &cobra.Command{
		Use:   "get NAME",
		Short: "Show a cluster",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := s.clusters(cmd.Context())
			if err != nil {
				return err
			}
			cluster, err := svc.Get(cmd.Context(), args[0])
			if err != nil {
				return clusterError(args[0], err)
			}
			return s.render(cmd, cluster, func() *metav1.Table { return clusterTable(cluster) })
		},
	}
}

func newClusterListCommand(s *state) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List clusters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := s.clusters(cmd.Context())
			if err != nil {
				return err
			}
			list, err := svc.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(list) == 0 {
				return s.renderEmpty(cmd, "No clusters found.")
			}

			return s.render(cmd, list, func() *metav1.Table {
				rows := make([][]interface{}, 0, len(list))
				for _, c := range list {
					rows = append(rows, []interface{}{c.Name, c.Status, c.Type(), c.ClientID, display(c.OwnerEmail)})
				}
				return newTable([]string{"NAME", "STATUS", "TYPE", "CLIENT-ID", "OWNER"}, rows)
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "l", clusters.DefaultListSize, "Maximum number of clusters")
	return cmd
}

func newClusterDeleteCommand(s *state) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "delete NAME",
		Short: "Delete a cluster",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			if err := s.confirm(cmd, force, "Delete cluster '%s'?", name); err != nil {
				return err
			}

			svc, err := s.clusters(cmd.Context())
			if err != nil {
				return err
			}
			if err := svc.Delete(cmd.Context(), name); err != nil {
				return clusterError(name, err)
			}

			if record, err := s.deployments().GetByCluster(name); err == nil {
				log.Warn("Local deployment still references the cluster",
					"deployment", record.Name, "hint", "vantage app deployment delete "+record.ID)
			}

			return s.message(cmd, fmt.Sprintf("Cluster %s deleted", name), map[string]interface{}{"name": name})
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Skip the confirmation prompt")
	return cmd
}
