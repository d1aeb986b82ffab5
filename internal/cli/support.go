package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/vantagecompute/vantage-cli/internal/support"
	"github.com/vantagecompute/vantage-cli/internal/vantage"
)

func ticketTable(t *support.Ticket) *metav1.Table {
	return detailTable([]field{
		{"id", string(t.ID)},
		{"title", t.Title},
		{"description", t.Description},
		{"status", t.Status},
		{"priority", t.Priority},
		{"user_email", t.UserEmail},
		{"assigned_to", t.AssignedTo},
		{"created_at", t.CreatedAt},
		{"updated_at", t.UpdatedAt},
	})
}

func ticketError(id string, err error) error {
	if errors.Is(err, vantage.ErrNotFound) {
		return &vantage.Abort{
			Subject: "TICKET NOT FOUND",
			Message: fmt.Sprintf("Support ticket '%s' not found.", id),
			Err:     err,
		}
	}
	return err
}

func (s *state) support(cmd *cobra.Command) (*support.Service, error) {
	client, err := s.apiClient(cmd.Context())
	if err != nil {
		return nil, err
	}
	return support.NewService(client, vantage.MustSettings(cmd.Context()).SupportGraphQLURL()), nil
}

func newSupportTicketCommand(s *state) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "support-ticket",
		Aliases: []string{"support-tickets", "ticket"},
		Short:   "File and track support tickets",
	}

	cmd.AddCommand(
		newTicketCreateCommand(s),
		newTicketGetCommand(s),
		newTicketListCommand(s),
		newTicketUpdateCommand(s),
		newTicketDeleteCommand(s),
	)
	return cmd
}

func newTicketCreateCommand(s *state) *cobra.Command {
	var title, description, priority string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "File a support ticket",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := s.support(cmd)
			if err != nil {
				return err
			}
			ticket, err := svc.Create(cmd.Context(), title, description, priority)
			if err != nil {
				return err
			}
			return s.render(cmd, ticket, func() *metav1.Table { return ticketTable(ticket) })
		},
	}

	cmd.Flags().StringVarP(&title, "title", "t", "", "Ticket title")
	cmd.Flags().StringVarP(&description, "description", "d", "", "Ticket description")
	cmd.Flags().StringVar(&priority, "priority", support.DefaultPriority, "LOW, MEDIUM, HIGH or CRITICAL")
	return cmd
}

func newTicketGetCommand(s *state) *cobra.Command {
	return &cobra.Command{
		Use:   "get ID",
		Short: "Show a support ticket",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := s.support(cmd)
			if err != nil {
				return err
			}
			ticket, err := svc.Get(cmd.Context(), args[0])
			if err != nil {
				return ticketError(args[0], err)
			}
			return s.render(cmd, ticket, func() *metav1.Table { return ticketTable(ticket) })
		},
	}
}

func newTicketListCommand(s *state) *cobra.Command {
	var (
		filter           support.Filter
		status, priority string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List support tickets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if status != "" {
				if filter.Status, err = support.NormalizeStatus(status); err != nil {
					return err
				}
			}
			if priority != "" {
				if filter.Priority, err = support.NormalizePriority(priority); err != nil {
					return err
				}
			}

			svc, err := s.support(cmd)
			if err != nil {
				return err
			}
			list, err := svc.List(cmd.Context(), filter)
			if err != nil {
				return err
			}
			if len(list) == 0 {
				return s.renderEmpty(cmd, "No support tickets found.")
			}

			return s.render(cmd, list, func() *metav1.Table {
				rows := make([][]interface{}, 0, len(list))
				for _, t := range list {
					rows = append(rows, []interface{}{string(t.ID), t.Title, t.Status, t.Priority, display(t.AssignedTo), display(t.CreatedAt)})
				}
				return newTable([]string{"ID", "TITLE", "STATUS", "PRIORITY", "ASSIGNED TO", "CREATED"}, rows)
			})
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "Only show tickets in this state")
	cmd.Flags().StringVar(&priority, "priority", "", "Only show tickets with this priority")
	cmd.Flags().IntVarP(&filter.Limit, "limit", "l", 0, "Maximum number of tickets to fetch")
	return cmd
}

func newTicketUpdateCommand(s *state) *cobra.Command {
	var description string

	cmd := &cobra.Command{
		Use:   "update ID",
		Short: "Replace the description of a support ticket",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := s.support(cmd)
			if err != nil {
				return err
			}
			ticket, err := svc.Update(cmd.Context(), args[0], description)
			if err != nil {
				return ticketError(args[0], err)
			}
			return s.render(cmd, ticket, func() *metav1.Table { return ticketTable(ticket) })
		},
	}

	cmd.Flags().StringVarP(&description, "description", "d", "", "New description")
	_ = cmd.MarkFlagRequired("description")
	return cmd
}

func newTicketDeleteCommand(s *state) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a support ticket",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := s.confirm(cmd, force, "Delete support ticket %s?", args[0]); err != nil {
				return err
			}
			svc, err := s.support(cmd)
			if err != nil {
				return err
			}
			if err := svc.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			return s.message(cmd, fmt.Sprintf("Support ticket %s deleted", args[0]), map[string]interface{}{"id": args[0]})
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Skip the confirmation prompt")
	return cmd
}
