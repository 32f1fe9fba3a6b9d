package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"taska/internal/model"
)

func membersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "members",
		Short: "Manage the team roster",
	}
	cmd.AddCommand(membersAddCmd())
	cmd.AddCommand(membersListCmd())
	return cmd
}

func membersAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add [name]",
		Short: "Add a team member",
		Long: `Add a team member directly to the store.

Use this to bootstrap the first admin; afterwards admins manage
the roster through the API.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			role, _ := cmd.Flags().GetString("role")
			team, _ := cmd.Flags().GetString("team")
			email, _ := cmd.Flags().GetString("email")
			telegramID, _ := cmd.Flags().GetInt64("telegram-id")

			member := model.TeamMember{
				ID:         uuid.NewString(),
				TeamID:     team,
				Name:       args[0],
				Role:       model.Role(role),
				Email:      email,
				TelegramID: telegramID,
			}
			if !member.Role.Valid() {
				return fmt.Errorf("unknown role %q (admin, manager, member)", role)
			}
			if email != "" {
				member.Contact = model.Contact{Type: "email", Value: email}
			}

			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.members.Create(cmd.Context(), &member); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %s (%s) with id %s\n", member.Name, member.Role, member.ID)
			return nil
		},
	}
	cmd.Flags().StringP("role", "r", string(model.RoleMember), "Role (admin, manager, member)")
	cmd.Flags().StringP("team", "t", "default", "Team id")
	cmd.Flags().String("email", "", "Contact email")
	cmd.Flags().Int64("telegram-id", 0, "Telegram user id to link")
	return cmd
}

func membersListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List team members",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()
			members, err := a.members.List(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTEAM\tNAME\tROLE\tTELEGRAM")
			for _, m := range members {
				linked := "-"
				if m.TelegramID != 0 {
					linked = fmt.Sprint(m.TelegramID)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", m.ID, m.TeamID, m.Name, m.Role, linked)
			}
			return w.Flush()
		},
	}
}
