package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/oauth2"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/vantagecompute/vantage-cli/internal/auth"
	"github.com/vantagecompute/vantage-cli/internal/vantage"
)

func personaTable(p *auth.Persona) *metav1.Table {
	expires := none
	if !p.ExpiresAt.IsZero() {
		expires = p.ExpiresAt.Local().Format(time.RFC3339)
	}
	return detailTable([]field{
		{"email", p.Email},
		{"client_id", p.ClientID},
		{"org_id", p.OrgID},
		{"expires_at", expires},
	})
}

func newLoginCommand(s *state) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Log in with the device authorization flow",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt := func(device *oauth2.DeviceAuthResponse) {
				url := device.VerificationURIComplete
				if url == "" {
					url = device.VerificationURI
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "Open %s in a browser and confirm the code %s\n", url, device.UserCode)
				fmt.Fprintln(cmd.ErrOrStderr(), "Waiting for login to complete...")
			}

			authenticator, err := s.authenticator(cmd.Context())
			if err != nil {
				return err
			}
			persona, err := authenticator.Login(cmd.Context(), prompt)
			if err != nil {
				return err
			}

			opts := vantage.OutputOptions(cmd.Context())
			if opts.JSON {
				return printJSON(persona, cmd.OutOrStdout())
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s (profile %s)\n", persona.Email, opts.Profile)
			return err
		},
	}
}

func newLogoutCommand(s *state) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the cached tokens of the profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			authenticator, err := s.authenticator(cmd.Context())
			if err != nil {
				return err
			}
			if err := authenticator.Logout(); err != nil {
				return err
			}

			profile := vantage.OutputOptions(cmd.Context()).Profile
			return s.message(cmd, fmt.Sprintf("Logged out of profile %s", profile), map[string]interface{}{
				"profile": profile,
			})
		},
	}
}

func newWhoamiCommand(s *state) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the identity of the logged in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			authenticator, err := s.authenticator(cmd.Context())
			if err != nil {
				return err
			}
			persona, err := authenticator.Persona(cmd.Context())
			if err != nil {
				return err
			}
			return s.render(cmd, persona, func() *metav1.Table { return personaTable(persona) })
		},
	}
}
