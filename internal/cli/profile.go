package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/vantagecompute/vantage-cli/internal/config"
	"github.com/vantagecompute/vantage-cli/internal/vantage"
)

func profileTable(p *config.Profile) *metav1.Table {
	return detailTable([]field{
		{"name", p.Name},
		{"active", p.Active},
		{"api_base_url", p.Settings.APIBaseURL},
		{"oidc_base_url", p.Settings.OIDCBaseURL},
		{"tunnel_api_url", p.Settings.TunnelAPIURL},
		{"oidc_client_id", p.Settings.OIDCClientID},
		{"oidc_max_poll_time", p.Settings.OIDCMaxPollTime},
		{"supported_clouds", p.Settings.SupportedClouds},
	})
}

func profileError(name string, err error) error {
	switch {
	case errors.Is(err, config.ErrProfileNotFound):
		return &vantage.Abort{Subject: "PROFILE NOT FOUND", Message: fmt.Sprintf("Profile '%s' does not exist.", name), Err: err}
	case errors.Is(err, config.ErrProfileExists):
		return &vantage.Abort{Subject: "PROFILE EXISTS", Message: fmt.Sprintf("Profile '%s' already exists. Use --force to overwrite it.", name), Err: err}
	case errors.Is(err, config.ErrDefaultProfile):
		return &vantage.Abort{Subject: "CANNOT DELETE DEFAULT PROFILE", Message: "The default profile can only be deleted with --force.", Err: err}
	}
	return err
}

func addSettingsFlags(cmd *cobra.Command, settings *config.Settings) {
	cmd.Flags().StringVar(&settings.APIBaseURL, "api-base-url", "", "Vantage API base URL")
	cmd.Flags().StringVar(&settings.OIDCBaseURL, "oidc-base-url", "", "OIDC provider base URL")
	cmd.Flags().StringVar(&settings.TunnelAPIURL, "tunnel-api-url", "", "Tunnel API URL")
	cmd.Flags().StringVar(&settings.OIDCClientID, "oidc-client-id", "", "OIDC client id used for login")
	cmd.Flags().IntVar(&settings.OIDCMaxPollTime, "oidc-max-poll-time", 0, "Seconds to wait for the device login to complete")
	cmd.Flags().StringSliceVar(&settings.SupportedClouds, "supported-clouds", nil, "Clouds this profile may deploy to")
}

func newProfileCommand(s *state) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "profile",
		Aliases: []string{"profiles"},
		Short:   "Manage configuration profiles",
	}

	cmd.AddCommand(
		newProfileCreateCommand(s),
		newProfileGetCommand(s),
		newProfileListCommand(s),
		newProfileUpdateCommand(s),
		newProfileUseCommand(s),
		newProfileDeleteCommand(s),
	)
	return cmd
}

func newProfileCreateCommand(s *state) *cobra.Command {
	var (
		settings config.Settings
		force    bool
		activate bool
	)

	cmd := &cobra.Command{
		Use:   "create NAME",
		Short: "Create a profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			profile, err := s.profiles.Create(args[0], settings, force, activate)
			if err != nil {
				return profileError(args[0], err)
			}
			return s.render(cmd, profile, func() *metav1.Table { return profileTable(profile) })
		},
	}

	addSettingsFlags(cmd, &settings)
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing profile")
	cmd.Flags().BoolVar(&activate, "activate", false, "Make the new profile active")
	return cmd
}

func newProfileGetCommand(s *state) *cobra.Command {
	return &cobra.Command{
		Use:   "get [NAME]",
		Short: "Show a profile, the active one by default",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := vantage.OutputOptions(cmd.Context()).Profile
			if len(args) == 1 {
				name = args[0]
			}
			profile, err := s.profiles.Get(name)
			if err != nil {
				return profileError(name, err)
			}
			return s.render(cmd, profile, func() *metav1.Table { return profileTable(profile) })
		},
	}
}

func newProfileListCommand(s *state) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List profiles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			profiles, err := s.profiles.List()
			if err != nil {
				return err
			}

			return s.render(cmd, profiles, func() *metav1.Table {
				rows := make([][]interface{}, 0, len(profiles))
				for _, p := range profiles {
					active := ""
					if p.Active {
						active = "*"
					}
					rows = append(rows, []interface{}{active, p.Name, p.Settings.APIBaseURL, p.Settings.OIDCBaseURL})
				}
				return newTable([]string{"ACTIVE", "NAME", "API", "OIDC"}, rows)
			})
		},
	}
}

func newProfileUpdateCommand(s *state) *cobra.Command {
	var settings config.Settings

	cmd := &cobra.Command{
		Use:   "update NAME",
		Short: "Change settings of a profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			profile, err := s.profiles.Update(args[0], settings)
			if err != nil {
				return profileError(args[0], err)
			}
			return s.render(cmd, profile, func() *metav1.Table { return profileTable(profile) })
		},
	}

	addSettingsFlags(cmd, &settings)
	return cmd
}

func newProfileUseCommand(s *state) *cobra.Command {
	return &cobra.Command{
		Use:   "use NAME",
		Short: "Make a profile the active one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := s.profiles.Activate(args[0]); err != nil {
				return profileError(args[0], err)
			}
			return s.message(cmd, fmt.Sprintf("Switched to profile %s", args[0]), map[string]interface{}{
				"profile": args[0],
			})
		},
	}
}

func newProfileDeleteCommand(s *state) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "delete NAME",
		Short: "Delete a profile and its cached tokens",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			if _, err := s.profiles.Get(name); err != nil {
				return profileError(name, err)
			}
			if err := s.confirm(cmd, force, "Delete profile '%s'?", name); err != nil {
				return err
			}
			if err := s.profiles.Delete(name, force); err != nil {
				return profileError(name, err)
			}
			return s.message(cmd, fmt.Sprintf("Profile %s deleted", name), map[string]interface{}{"profile": name})
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Skip confirmation; also allows deleting the default profile")
	return cmd
}
