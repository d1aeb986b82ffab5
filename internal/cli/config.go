package cli

import (
	"github.com/spf13/cobra"
)

func newConfigCommand(s *state) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the local CLI configuration",
	}

	var force bool
	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove every profile, token and deployment record",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := s.confirm(cmd, force, "Remove all local configuration under %s?", s.paths.Base); err != nil {
				return err
			}
			if err := s.profiles.Clear(); err != nil {
				return err
			}
			return s.message(cmd, "Configuration cleared", map[string]interface{}{"path": s.paths.Base})
		},
	}
	clearCmd.Flags().BoolVarP(&force, "force", "f", false, "Skip the confirmation prompt")

	cmd.AddCommand(clearCmd)
	return cmd
}
