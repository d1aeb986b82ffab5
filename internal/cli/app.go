package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/vantagecompute/vantage-cli/internal/apps"
	"github.com/vantagecompute/vantage-cli/internal/clusters"
	"github.com/vantagecompute/vantage-cli/internal/deployments"
	"github.com/vantagecompute/vantage-cli/internal/vantage"
)

// appInfo is the JSON form of an app
type appInfo struct {
	Name        string `json:"name"`
	Cloud       string `json:"cloud"`
	Substrate   string `json:"substrate"`
	Description string `json:"description"`
}

func deploymentFields(d *deployments.Deployment) []field {
	return []field{
		{"id", d.ID},
		{"name", d.Name},
		{"app", d.AppName},
		{"cluster", d.ClusterName},
		{"cloud", d.Cloud},
		{"substrate", d.Substrate},
		{"status", string(d.Status)},
		{"namespaces", d.K8sNamespaces},
		{"metadata", d.Metadata},
		{"created_at", d.CreatedAt.Format(time.RFC3339)},
		{"updated_at", d.UpdatedAt.Format(time.RFC3339)},
	}
}

func deploymentTable(list []*deployments.Deployment) *metav1.Table {
	rows := make([][]interface{}, 0, len(list))
	for _, d := range list {
		rows = append(rows, []interface{}{d.ID, d.Name, d.AppName, d.ClusterName, string(d.Status), d.CreatedAt.Format(time.RFC3339)})
	}
	return newTable([]string{"ID", "NAME", "APP", "CLUSTER", "STATUS", "CREATED"}, rows)
}

func newAppCommand(s *state) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "app",
		Aliases: []string{"apps"},
		Short:   "Deploy apps to clusters",
	}

	cmd.AddCommand(
		newAppListCommand(s),
		newAppDeployCommand(s),
		newDeploymentCommand(s),
	)
	return cmd
}

func newAppListCommand(s *state) *cobra.Command {
	var filter apps.Filter

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List available apps",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			list := s.registry.List(filter)

			infos := make([]appInfo, 0, len(list))
			for _, app := range list {
				infos = append(infos, appInfo{
					Name:        app.Name(),
					Cloud:       app.Cloud(),
					Substrate:   app.Substrate(),
					Description: app.Description(),
				})
			}
			if len(infos) == 0 {
				return s.renderEmpty(cmd, "No apps match the given filters.")
			}

			return s.render(cmd, infos, func() *metav1.Table {
				rows := make([][]interface{}, 0, len(infos))
				for _, i := range infos {
					rows = append(rows, []interface{}{i.Name, i.Cloud, i.Substrate, i.Description})
				}
				return newTable([]string{"NAME", "CLOUD", "SUBSTRATE", "DESCRIPTION"}, rows)
			})
		},
	}

	cmd.Flags().StringVar(&filter.Cloud, "cloud", "", "Only apps for this cloud")
	cmd.Flags().StringVar(&filter.Substrate, "substrate", "", "Only apps for this substrate")
	return cmd
}

func newAppDeployCommand(s *state) *cobra.Command {
	var devRun bool

	cmd := &cobra.Command{
		Use:   "deploy APP CLUSTER",
		Short: "Deploy an app to a cluster",
		Long: `Deploy an app to a cluster and record the deployment locally.

With --dev-run the cluster is not looked up in the API; synthetic
credentials are used instead, which is useful to exercise an app locally.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			appName, clusterName := args[0], args[1]

			var (
				cluster *clusters.Cluster
				secrets apps.SecretSource
			)
			if devRun {
				cluster = apps.DevCluster(clusterName)
			} else {
				svc, err := s.clusters(cmd.Context())
				if err != nil {
					return err
				}
				if cluster, err = svc.GetWithSecret(cmd.Context(), clusterName); err != nil {
					return clusterError(clusterName, err)
				}
				secrets = svc
			}

			driver, err := s.driver(cmd.Context(), secrets)
			if err != nil {
				return err
			}

			record, err := driver.Deploy(cmd.Context(), appName, cluster, apps.DeployOptions{DevRun: devRun})
			if err != nil {
				return err
			}
			return s.render(cmd, record, func() *metav1.Table { return detailTable(deploymentFields(record)) })
		},
	}

	cmd.Flags().BoolVar(&devRun, "dev-run", false, "Use synthetic cluster data instead of the API")
	return cmd
}

func newDeploymentCommand(s *state) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "deployment",
		Aliases: []string{"deployments"},
		Short:   "Manage recorded app deployments",
	}

	cmd.AddCommand(
		newDeploymentListCommand(s),
		newDeploymentGetCommand(s),
		newDeploymentDeleteCommand(s),
		newDeploymentCleanupCommand(s),
	)
	return cmd
}

func newDeploymentListCommand(s *state) *cobra.Command {
	var (
		filter deployments.Filter
		status string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List deployments",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter.Status = deployments.Status(status)
			list, err := s.deployments().List(filter)
			if err != nil {
				return err
			}
			if len(list) == 0 {
				return s.renderEmpty(cmd, "No deployments found.")
			}
			return s.render(cmd, list, func() *metav1.Table { return deploymentTable(list) })
		},
	}

	cmd.Flags().StringVar(&filter.Cloud, "cloud", "", "Only deployments on this cloud")
	cmd.Flags().StringVar(&filter.App, "app", "", "Only deployments of this app")
	cmd.Flags().StringVar(&status, "status", "", "Only deployments with this status")
	return cmd
}

func newDeploymentGetCommand(s *state) *cobra.Command {
	return &cobra.Command{
		Use:   "get ID|NAME",
		Short: "Show a deployment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			record, err := s.deployments().Get(args[0])
			if err != nil {
				if errors.Is(err, deployments.ErrNotFound) {
					return vantage.Abortf("DEPLOYMENT NOT FOUND", "Deployment '%s' not found", args[0])
				}
				return err
			}
			return s.render(cmd, record, func() *metav1.Table { return detailTable(deploymentFields(record)) })
		},
	}
}

func newDeploymentDeleteCommand(s *state) *cobra.Command {
	var (
		force      bool
		keepRecord bool
	)

	cmd := &cobra.Command{
		Use:   "delete ID|NAME",
		Short: "Tear down a deployment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := s.confirm(cmd, force, "Remove deployment '%s' and everything it created?", args[0]); err != nil {
				return err
			}

			driver, err := s.driver(cmd.Context(), nil)
			if err != nil {
				return err
			}
			record, err := driver.Remove(cmd.Context(), args[0], keepRecord)
			if err != nil {
				return err
			}
			return s.message(cmd, fmt.Sprintf("Deployment %s removed", record.Name), map[string]interface{}{
				"id":     record.ID,
				"status": record.Status,
			})
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Skip the confirmation prompt")
	cmd.Flags().BoolVar(&keepRecord, "keep-record", false, "Keep the record with status deleted")
	return cmd
}

func newDeploymentCleanupCommand(s *state) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Drop the records of failed and deleted deployments",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := s.confirm(cmd, force, "Drop all failed and deleted deployment records?"); err != nil {
				return err
			}

			driver, err := s.driver(cmd.Context(), nil)
			if err != nil {
				return err
			}
			removed, err := driver.Cleanup()
			if err != nil {
				return err
			}

			ids := make([]string, 0, len(removed))
			for _, r := range removed {
				ids = append(ids, r.ID)
			}
			return s.message(cmd, fmt.Sprintf("Removed %d deployment records", len(removed)), map[string]interface{}{
				"removed": ids,
			})
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Skip the confirmation prompt")
	return cmd
}
