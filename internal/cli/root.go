package cli

import (
	"github.com/spf13/cobra"

	"github.com/vantagecompute/vantage-cli/internal/cli/resources"
)

func NewRootCommand(opts ...Option) *cobra.Command {
	s := newState(opts...)

	rootCmd := &cobra.Command{
		Use:   "vantage",
		Short: "Vantage CLI",
		Long:  `Vantage manages HPC clusters, notebooks, licenses and jobs on the Vantage platform, and deploys Slurm and JupyterHub apps to local substrates.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return s.load(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.BoolVarP(&s.opts.JSON, "json", "j", false, "Output as JSON")
	flags.BoolVarP(&s.opts.Verbose, "verbose", "v", false, "Enable debug logging")
	flags.StringVarP(&s.opts.Profile, "profile", "p", "", "Profile to use (default: the active profile)")

	rootCmd.AddCommand(newVersionCommand(s))
	rootCmd.AddCommand(newLoginCommand(s))
	rootCmd.AddCommand(newLogoutCommand(s))
	rootCmd.AddCommand(newWhoamiCommand(s))
	rootCmd.AddCommand(newConfigCommand(s))
	rootCmd.AddCommand(newProfileCommand(s))
	rootCmd.AddCommand(newCloudCommand(s))
	rootCmd.AddCommand(newClusterCommand(s))
	rootCmd.AddCommand(newAppCommand(s))
	rootCmd.AddCommand(newNotebookCommand(s))
	rootCmd.AddCommand(newSupportTicketCommand(s))

	kinds := resources.DefaultRegistry()
	for _, group := range kinds.Groups() {
		rootCmd.AddCommand(newKindGroupCommand(s, group, kinds.List(group)))
	}
	for _, kind := range kinds.List("") {
		rootCmd.AddCommand(newKindCommand(s, kind))
	}

	return rootCmd
}
