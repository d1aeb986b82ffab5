package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/vantagecompute/vantage-cli/internal/cli/resources"
	"github.com/vantagecompute/vantage-cli/internal/clouds"
	"github.com/vantagecompute/vantage-cli/internal/vantage"
)

func cloudTable(c *clouds.Cloud) *metav1.Table {
	return detailTable([]field{
		{"name", c.Name},
		{"provider", c.Provider},
		{"region", c.Region},
		{"substrates", c.Substrates},
		{"enabled", c.Enabled},
		{"built_in", c.BuiltIn},
		{"metadata", c.Metadata},
		{"created_at", c.CreatedAt},
		{"updated_at", c.UpdatedAt},
	})
}

func cloudError(name string, err error) error {
	switch {
	case errors.Is(err, vantage.ErrNotFound):
		return &vantage.Abort{Subject: "CLOUD NOT FOUND", Message: fmt.Sprintf("Cloud '%s' not found.", name), Err: err}
	case errors.Is(err, vantage.ErrAlreadyExists):
		return &vantage.Abort{Subject: "CLOUD EXISTS", Message: fmt.Sprintf("Cloud '%s' already exists.", name), Err: err}
	case errors.Is(err, clouds.ErrBuiltIn):
		return &vantage.Abort{Subject: "BUILT-IN CLOUD", Message: fmt.Sprintf("Cloud '%s' is built in and cannot be changed.", name), Err: err}
	}
	return err
}

func newCloudCommand(s *state) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "cloud",
		Aliases: []string{"clouds"},
		Short:   "Manage deployment clouds",
	}

	cmd.AddCommand(
		newCloudAddCommand(s),
		newCloudUpdateCommand(s),
		newCloudDeleteCommand(s),
		newCloudGetCommand(s),
		newCloudListCommand(s),
		newCredentialCommand(s),
	)
	return cmd
}

func newCloudAddCommand(s *state) *cobra.Command {
	var (
		cloud clouds.Cloud
		set   []string
	)

	cmd := &cobra.Command{
		Use:   "add NAME",
		Short: "Add a user cloud",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cloud.Name = args[0]
			metadata, err := resources.ParseSet(set)
			if err != nil {
				return err
			}
			if len(metadata) > 0 {
				cloud.Metadata = metadata
			}

			added, err := s.clouds().Add(cloud)
			if err != nil {
				return cloudError(cloud.Name, err)
			}
			return s.render(cmd, added, func() *metav1.Table { return cloudTable(added) })
		},
	}

	cmd.Flags().StringVar(&cloud.Provider, "provider", "", "Provider label sent to the cluster API (default on_prem)")
	cmd.Flags().StringVar(&cloud.Region, "region", "", "Default region")
	cmd.Flags().StringSliceVar(&cloud.Substrates, "substrate", nil, "Substrates available on the cloud, repeatable")
	cmd.Flags().StringArrayVar(&set, "set", nil, "Metadata as key=value, repeatable")
	return cmd
}

func newCloudUpdateCommand(s *state) *cobra.Command {
	var (
		changes clouds.Cloud
		set     []string
		enable  bool
		disable bool
	)

	cmd := &cobra.Command{
		Use:   "update NAME",
		Short: "Change a user cloud",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			metadata, err := resources.ParseSet(set)
			if err != nil {
				return err
			}
			changes.Metadata = metadata

			var enabled *bool
			switch {
			case enable && disable:
				return vantage.Abortf("INVALID OPTIONS", "--enable and --disable are mutually exclusive.")
			case enable:
				enabled = &enable
			case disable:
				v := false
				enabled = &v
			}

			updated, err := s.clouds().Update(args[0], changes, enabled)
			if err != nil {
				return cloudError(args[0], err)
			}
			return s.render(cmd, updated, func() *metav1.Table { return cloudTable(updated) })
		},
	}

	cmd.Flags().StringVar(&changes.Provider, "provider", "", "Provider label")
	cmd.Flags().StringVar(&changes.Region, "region", "", "Default region")
	cmd.Flags().StringSliceVar(&changes.Substrates, "substrate", nil, "Replace the substrates, repeatable")
	cmd.Flags().StringArrayVar(&set, "set", nil, "Metadata as key=value, repeatable")
	cmd.Flags().BoolVar(&enable, "enable", false, "Enable the cloud")
	cmd.Flags().BoolVar(&disable, "disable", false, "Disable the cloud")
	return cmd
}

func newCloudDeleteCommand(s *state) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "delete NAME",
		Short: "Delete a user cloud",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			if _, err := s.clouds().Get(name); err != nil {
				return cloudError(name, err)
			}
			if err := s.confirm(cmd, force, "Delete cloud '%s'?", name); err != nil {
				return err
			}
			if err := s.clouds().Delete(name); err != nil {
				return cloudError(name, err)
			}
			return s.message(cmd, fmt.Sprintf("Cloud %s deleted", name), map[string]interface{}{"name": name})
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Skip the confirmation prompt")
	return cmd
}

func newCloudGetCommand(s *state) *cobra.Command {
	return &cobra.Command{
		Use:   "get NAME",
		Short: "Show a cloud",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cloud, err := s.clouds().Get(args[0])
			if err != nil {
				return cloudError(args[0], err)
			}
			return s.render(cmd, cloud, func() *metav1.Table { return cloudTable(cloud) })
		},
	}
}

func newCloudListCommand(s *state) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List clouds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := s.clouds().List(all)
			if err != nil {
				return err
			}

			return s.render(cmd, list, func() *metav1.Table {
				rows := make([][]interface{}, 0, len(list))
				for _, c := range list {
					rows = append(rows, []interface{}{c.Name, c.Provider, display(c.Substrates), c.Enabled, c.BuiltIn})
				}
				return newTable([]string{"NAME", "PROVIDER", "SUBSTRATES", "ENABLED", "BUILT-IN"}, rows)
			})
		},
	}

	cmd.Flags().BoolVarP(&all, "all", "a", false, "Include disabled clouds")
	return cmd
}
