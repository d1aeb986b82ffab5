package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/vantagecompute/vantage-cli/internal/cli/resources"
	"github.com/vantagecompute/vantage-cli/internal/vantage"
	"github.com/vantagecompute/vantage-cli/pkg/api"
)

var groupShort = map[string]string{
	"license": "Manage license servers, products and bookings",
	"job":     "Manage Jobbergate scripts, templates and submissions",
}

// newKindGroupCommand nests the kinds of a group under one command, e.g.
// "vantage license server list"
func newKindGroupCommand(s *state, group string, kinds []*resources.Kind) *cobra.Command {
	cmd := &cobra.Command{
		Use:   group,
		Short: groupShort[group],
	}
	for _, kind := range kinds {
		cmd.AddCommand(newKindCommand(s, kind))
	}
	return cmd
}

func newKindCommand(s *state, kind *resources.Kind) *cobra.Command {
	cmd := &cobra.Command{
		Use:     kind.Name,
		Aliases: kind.Aliases,
		Short:   kind.Short,
	}

	cmd.AddCommand(
		newKindCreateCommand(s, kind),
		newKindGetCommand(s, kind),
		newKindListCommand(s, kind),
		newKindUpdateCommand(s, kind),
		newKindDeleteCommand(s, kind),
	)
	if kind.Attachable {
		cmd.AddCommand(
			newKindActionCommand(s, kind, "attach"),
			newKindActionCommand(s, kind, "detach"),
		)
	}
	return cmd
}

// title is the human name of a kind, e.g. "license server"
func title(kind *resources.Kind) string {
	return strings.TrimSpace(kind.Group + " " + kind.Name)
}

// payloadOptions are the flags shared by create and update
type payloadOptions struct {
	description string
	file        string
	set         []string
}

func addPayloadFlags(cmd *cobra.Command, kind *resources.Kind, opts *payloadOptions) {
	cmd.Flags().StringVarP(&opts.description, "description", "d", "", "Description")
	cmd.Flags().StringVarP(&opts.file, "json-file", "F", "", "JSON or YAML file with the request body")
	cmd.Flags().StringArrayVar(&opts.set, "set", nil, "Extra body field as key=value, repeatable")

	for _, f := range kind.Fields {
		switch f.Type {
		case resources.Int:
			cmd.Flags().IntP(f.Flag, f.Short, 0, f.Usage)
		case resources.Bool:
			cmd.Flags().BoolP(f.Flag, f.Short, false, f.Usage)
		case resources.Strings:
			cmd.Flags().StringArrayP(f.Flag, f.Short, nil, f.Usage)
		default:
			cmd.Flags().StringP(f.Flag, f.Short, "", f.Usage)
		}
	}
}

// buildPayload layers the file, the typed flags and --set, in that order
func buildPayload(cmd *cobra.Command, kind *resources.Kind, opts *payloadOptions) (map[string]interface{}, error) {
	payload := map[string]interface{}{}
	if opts.file != "" {
		var err error
		if payload, err = resources.LoadFile(opts.file); err != nil {
			return nil, err
		}
	}

	if cmd.Flags().Changed("description") {
		payload["description"] = opts.description
	}

	flags := cmd.Flags()
	for _, f := range kind.Fields {
		if !flags.Changed(f.Flag) {
			continue
		}
		var (
			value interface{}
			err   error
		)
		switch f.Type {
		case resources.Int:
			value, err = flags.GetInt(f.Flag)
		case resources.Bool:
			value, err = flags.GetBool(f.Flag)
		case resources.Strings:
			value, err = flags.GetStringArray(f.Flag)
		default:
			value, err = flags.GetString(f.Flag)
		}
		if err != nil {
			return nil, err
		}
		payload[f.Key] = value
	}

	extra, err := resources.ParseSet(opts.set)
	if err != nil {
		return nil, vantage.Abortf("INVALID OPTIONS", "%v", err)
	}
	for k, v := range extra {
		payload[k] = v
	}
	return payload, nil
}

func renderRecord(s *state, cmd *cobra.Command, record api.Record) error {
	return s.render(cmd, record, func() *metav1.Table { return detailTable(mapFields(record)) })
}

func newKindCreateCommand(s *state, kind *resources.Kind) *cobra.Command {
	var opts payloadOptions

	cmd := &cobra.Command{
		Use:   "create [NAME]",
		Short: fmt.Sprintf("Create a %s", title(kind)),
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := buildPayload(cmd, kind, &opts)
			if err != nil {
				return err
			}
			if len(args) == 1 {
				payload["name"] = args[0]
			}
			if _, ok := payload["name"]; !ok && !kind.Unnamed {
				return vantage.Abortf("NAME REQUIRED", "Creating a %s requires a name, as argument or in --json-file.", title(kind))
			}
			for _, f := range kind.Fields {
				if _, ok := payload[f.Key]; f.Required && !ok {
					return vantage.Abortf("MISSING OPTION", "Creating a %s requires --%s.", title(kind), f.Flag)
				}
			}

			client, err := s.apiClient(cmd.Context())
			if err != nil {
				return err
			}
			var created api.Record
			if err := client.Post(cmd.Context(), kind.Endpoint, payload, &created); err != nil {
				return err
			}
			return renderRecord(s, cmd, created)
		},
	}

	addPayloadFlags(cmd, kind, &opts)
	return cmd
}

func newKindGetCommand(s *state, kind *resources.Kind) *cobra.Command {
	return &cobra.Command{
		Use:   "get ID",
		Short: fmt.Sprintf("Show a %s", title(kind)),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := s.apiClient(cmd.Context())
			if err != nil {
				return err
			}
			var record api.Record
			if err := client.Get(cmd.Context(), kind.ItemPath(args[0]), nil, &record); err != nil {
				return kindError(kind, args[0], err)
			}
			return renderRecord(s, cmd, record)
		},
	}
}

func newKindListCommand(s *state, kind *resources.Kind) *cobra.Command {
	var opts api.ListOptions

	cmd := &cobra.Command{
		Use:   "list",
		Short: fmt.Sprintf("List %ss", title(kind)),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := s.apiClient(cmd.Context())
			if err != nil {
				return err
			}
			records, err := client.List(cmd.Context(), kind.Endpoint, opts)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				return s.renderEmpty(cmd, fmt.Sprintf("No %ss found.", title(kind)))
			}
			return s.render(cmd, records, func() *metav1.Table { return kind.Table(records) })
		},
	}

	cmd.Flags().StringVarP(&opts.Search, "search", "s", "", "Search term")
	cmd.Flags().StringVar(&opts.Sort, "sort", "", "Field to sort by")
	cmd.Flags().IntVarP(&opts.Limit, "limit", "l", 0, "Maximum number of results")
	cmd.Flags().IntVarP(&opts.Offset, "offset", "o", 0, "Number of results to skip")
	return cmd
}

func newKindUpdateCommand(s *state, kind *resources.Kind) *cobra.Command {
	var (
		opts payloadOptions
		name string
	)

	cmd := &cobra.Command{
		Use:   "update ID",
		Short: fmt.Sprintf("Update a %s", title(kind)),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := buildPayload(cmd, kind, &opts)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("name") {
				payload["name"] = name
			}
			if len(payload) == 0 {
				return vantage.Abortf("NOTHING TO UPDATE", "No changes given for %s '%s'.", title(kind), args[0])
			}

			client, err := s.apiClient(cmd.Context())
			if err != nil {
				return err
			}
			var updated api.Record
			if err := client.Put(cmd.Context(), kind.ItemPath(args[0]), payload, &updated); err != nil {
				return kindError(kind, args[0], err)
			}
			return renderRecord(s, cmd, updated)
		},
	}

	cmd.Flags().StringVarP(&name, "name", "n", "", "New name")
	addPayloadFlags(cmd, kind, &opts)
	return cmd
}

func newKindDeleteCommand(s *state, kind *resources.Kind) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "delete ID",
		Short: fmt.Sprintf("Delete a %s", title(kind)),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := s.confirm(cmd, force, "Delete %s '%s'?", title(kind), args[0]); err != nil {
				return err
			}
			client, err := s.apiClient(cmd.Context())
			if err != nil {
				return err
			}
			if err := client.Delete(cmd.Context(), kind.ItemPath(args[0]), nil); err != nil {
				return kindError(kind, args[0], err)
			}
			return s.message(cmd, fmt.Sprintf("Deleted %s %s", title(kind), args[0]), map[string]interface{}{"id": args[0]})
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Skip the confirmation prompt")
	return cmd
}

// newKindActionCommand posts to <item>/attach or <item>/detach
func newKindActionCommand(s *state, kind *resources.Kind, action string) *cobra.Command {
	var (
		set   []string
		force bool
	)

	cmd := &cobra.Command{
		Use:   action + " ID INSTANCE_ID",
		Short: fmt.Sprintf("%s a %s", strings.ToUpper(action[:1])+action[1:], title(kind)),
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := resources.ParseSet(set)
			if err != nil {
				return vantage.Abortf("INVALID OPTIONS", "%v", err)
			}
			payload["instance_id"] = args[1]
			if force {
				payload["force"] = true
			}

			client, err := s.apiClient(cmd.Context())
			if err != nil {
				return err
			}
			var result api.Record
			if err := client.Post(cmd.Context(), kind.ActionPath(args[0], action), payload, &result); err != nil {
				return kindError(kind, args[0], err)
			}
			if len(result) == 0 {
				return s.message(cmd, fmt.Sprintf("%s %s %sed", title(kind), args[0], strings.TrimSuffix(action, "e")), map[string]interface{}{
					"id":          args[0],
					"instance_id": args[1],
				})
			}
			return renderRecord(s, cmd, result)
		},
	}

	cmd.Flags().StringArrayVar(&set, "set", nil, "Extra body field as key=value, e.g. mount_point=/data")
	if action == "detach" {
		cmd.Flags().BoolVarP(&force, "force", "f", false, "Force the detachment")
	}
	return cmd
}

func kindError(kind *resources.Kind, id string, err error) error {
	if api.IsNotFound(err) {
		return &vantage.Abort{
			Subject: strings.ToUpper(title(kind)) + " NOT FOUND",
			Message: fmt.Sprintf("No %s found with id '%s'.", title(kind), id),
			Err:     err,
		}
	}
	return err
}
