package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/vantagecompute/vantage-cli/internal/clouds"
	"github.com/vantagecompute/vantage-cli/internal/vantage"
)

func credentialTable(c *clouds.Credential) *metav1.Table {
	return detailTable([]field{
		{"id", c.ID},
		{"name", c.Name},
		{"cloud", c.Cloud},
		{"provider", c.Provider},
		{"default", c.Default},
		{"data", c.DataKeys()},
		{"created_at", c.CreatedAt},
		{"updated_at", c.UpdatedAt},
	})
}

func credentialError(id string, err error) error {
	switch {
	case errors.Is(err, vantage.ErrNotFound):
		return &vantage.Abort{Subject: "CREDENTIAL NOT FOUND", Message: fmt.Sprintf("Credential or cloud '%s' not found.", id), Err: err}
	case errors.Is(err, vantage.ErrAlreadyExists):
		return &vantage.Abort{Subject: "CREDENTIAL EXISTS", Message: fmt.Sprintf("Credential '%s' already exists for this cloud.", id), Err: err}
	}
	return err
}

// credentialData reads the secret payload from --data or --data-file. Both
// accept JSON or YAML.
func credentialData(inline, path string) (map[string]interface{}, error) {
	if inline != "" && path != "" {
		return nil, vantage.Abortf("INVALID OPTIONS", "--data and --data-file are mutually exclusive.")
	}

	raw := []byte(inline)
	if path != "" {
		var err error
		if raw, err = os.ReadFile(path); err != nil {
			return nil, vantage.Abortf("INVALID CREDENTIALS", "Could not read %s: %v", path, err)
		}
	}
	if len(raw) == 0 {
		return nil, nil
	}

	var data map[string]interface{}
	if err := yaml.Unmarshal(raw, &data); err != nil {
		return nil, vantage.Abortf("INVALID CREDENTIALS", "Credential data must be a JSON or YAML object: %v", err)
	}
	return data, nil
}

func (s *state) credentials() *clouds.CredentialStore {
	return clouds.NewCredentialStore(s.paths.CredentialsFile(), s.clouds())
}

func newCredentialCommand(s *state) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "credential",
		Aliases: []string{"credentials"},
		Short:   "Manage cloud provider credentials",
	}

	cmd.AddCommand(
		newCredentialCreateCommand(s),
		newCredentialGetCommand(s),
		newCredentialListCommand(s),
		newCredentialUpdateCommand(s),
		newCredentialDeleteCommand(s),
	)
	return cmd
}

func newCredentialCreateCommand(s *state) *cobra.Command {
	var cloud, inline, path string

	cmd := &cobra.Command{
		Use:   "create NAME",
		Short: "Store a credential for a cloud",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := credentialData(inline, path)
			if err != nil {
				return err
			}

			created, err := s.credentials().Create(args[0], cloud, data)
			if err != nil {
				return credentialError(args[0], err)
			}
			redacted := created.Redacted()
			return s.render(cmd, redacted, func() *metav1.Table { return credentialTable(&redacted) })
		},
	}

	cmd.Flags().StringVarP(&cloud, "cloud", "c", "", "Cloud the credential belongs to")
	cmd.Flags().StringVar(&inline, "data", "", "Credential data as a JSON or YAML object")
	cmd.Flags().StringVar(&path, "data-file", "", "File holding the credential data")
	_ = cmd.MarkFlagRequired("cloud")
	return cmd
}

func newCredentialGetCommand(s *state) *cobra.Command {
	return &cobra.Command{
		Use:   "get ID",
		Short: "Show a credential, with the data masked",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := s.credentials().Get(args[0])
			if err != nil {
				return credentialError(args[0], err)
			}
			redacted := c.Redacted()
			return s.render(cmd, redacted, func() *metav1.Table { return credentialTable(&redacted) })
		},
	}
}

func newCredentialListCommand(s *state) *cobra.Command {
	var cloud string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List credentials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := s.credentials().List(cloud)
			if err != nil {
				return err
			}
			if len(list) == 0 {
				return s.renderEmpty(cmd, "No credentials found.")
			}

			redacted := make([]clouds.Credential, 0, len(list))
			for _, c := range list {
				redacted = append(redacted, c.Redacted())
			}
			return s.render(cmd, redacted, func() *metav1.Table {
				rows := make([][]interface{}, 0, len(list))
				for _, c := range list {
					rows = append(rows, []interface{}{c.ID, c.Name, c.Cloud, c.Default, display(c.DataKeys())})
				}
				return newTable([]string{"ID", "NAME", "CLOUD", "DEFAULT", "DATA"}, rows)
			})
		},
	}

	cmd.Flags().StringVarP(&cloud, "cloud", "c", "", "Only show credentials of this cloud")
	return cmd
}

func newCredentialUpdateCommand(s *state) *cobra.Command {
	var (
		name, inline, path string
		setDefault         bool
	)

	cmd := &cobra.Command{
		Use:   "update ID",
		Short: "Change a credential",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := credentialData(inline, path)
			if err != nil {
				return err
			}

			changes := clouds.CredentialChanges{Data: data, SetDefault: setDefault}
			if cmd.Flags().Changed("name") {
				changes.Name = &name
			}
			if changes.Name == nil && changes.Data == nil && !setDefault {
				return vantage.Abortf("NOTHING TO UPDATE", "Pass at least one of --name, --data, --data-file or --default.")
			}

			updated, err := s.credentials().Update(args[0], changes)
			if err != nil {
				return credentialError(args[0], err)
			}
			redacted := updated.Redacted()
			return s.render(cmd, redacted, func() *metav1.Table { return credentialTable(&redacted) })
		},
	}

	cmd.Flags().StringVarP(&name, "name", "n", "", "New name")
	cmd.Flags().StringVar(&inline, "data", "", "Replace the data with this JSON or YAML object")
	cmd.Flags().StringVar(&path, "data-file", "", "Replace the data with the contents of this file")
	cmd.Flags().BoolVar(&setDefault, "default", false, "Make this the default credential of its cloud")
	return cmd
}

func newCredentialDeleteCommand(s *state) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a credential",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store := s.credentials()
			c, err := store.Get(args[0])
			if err != nil {
				return credentialError(args[0], err)
			}
			if err := s.confirm(cmd, force, "Delete credential '%s' of cloud '%s'?", c.Name, c.Cloud); err != nil {
				return err
			}
			if _, err := store.Delete(c.ID); err != nil {
				return credentialError(args[0], err)
			}
			return s.message(cmd, fmt.Sprintf("Credential %s deleted", c.Name), map[string]interface{}{"id": c.ID})
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Skip the confirmation prompt")
	return cmd
}
