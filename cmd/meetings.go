package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"meeting-recorder/config"
	"meeting-recorder/entities"
	"meeting-recorder/repository"
	"meeting-recorder/service"
	server2 "meeting-recorder/server"
)

func meetings(cfg *config.Config) *cobra.Command {
	var userId string

	cmd := &cobra.Command{
		Use:   "meetings",
		Short: "inspect recorded meetings",
	}
	cmd.PersistentFlags().StringVar(&userId, "user", "", "owner of the meetings")
	_ = cmd.MarkPersistentFlagRequired("user")

	newService := func() (service.MeetingService, error) {
		if cfg.DB == nil {
			return nil, server2.ErrDatabaseNotConfigured
		}
		repo, err := repository.NewRepo(cfg.DB)
		if err != nil {
			return nil, err
		}
		return service.NewMeetingService(repo), nil
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "list meetings, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newService()
			if err != nil {
				return err
			}
			list, err := svc.List(cmd.Context(), userId)
			if err != nil {
				return userError(err)
			}
			printMeetings(cmd, list)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "get <id>",
		Short: "show a single meeting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid meeting id %q: %w", args[0], err)
			}
			svc, err := newService()
			if err != nil {
				return err
			}
			m, err := svc.Get(cmd.Context(), userId, id)
			if err != nil {
				return userError(err)
			}
			printMeeting(cmd, m)
			return nil
		},
	})

	return cmd
}

func deref(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}

func printMeetings(cmd *cobra.Command, list []*entities.Meeting) {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATUS\tCREATED\tTITLE")
	for _, m := range list {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", m.ID, m.Status, m.CreatedAt.Format(time.DateTime), deref(m.Title))
	}
	_ = w.Flush()
}

func printMeeting(cmd *cobra.Command, m *entities.Meeting) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "id:       %s\n", m.ID)
	fmt.Fprintf(out, "status:   %s\n", m.Status)
	fmt.Fprintf(out, "created:  %s\n", m.CreatedAt.Format(time.DateTime))
	fmt.Fprintf(out, "audio:    %s\n", m.AudioUrl)
	fmt.Fprintf(out, "title:    %s\n", deref(m.Title))
	fmt.Fprintf(out, "summary:  %s\n", deref(m.Summary))
	if m.Transcript != nil {
		fmt.Fprintf(out, "\n%s\n", *m.Transcript)
	}
}
