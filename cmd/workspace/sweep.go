package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"notion-lite/workspace/config"
	"notion-lite/workspace/database"
	"notion-lite/workspace/services"
	"notion-lite/workspace/store"
)

func addSweep(topLevel *cobra.Command) {
	var userID, pageID string

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Correct task statuses on a workflow page once",
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := uuid.Parse(userID)
			if err != nil {
				return fmt.Errorf("invalid --user: %w", err)
			}
			cfg := config.Load()
			if _, ok := cfg.WorkflowPages.StatusForPage(pageID); !ok {
				return fmt.Errorf("%s is not a workflow page", pageID)
			}

			db, err := database.Setup(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			enforcer := services.NewStatusEnforcer(store.NewGormStore(db), nil, cfg.WorkflowPages, services.WithStatusCooldown(0))
			report, err := enforcer.Sweep(cmd.Context(), user, pageID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			_, _ = color.New(color.Bold, color.Underline).Fprintln(out, pageID)
			_, _ = color.New(color.FgGreen).Fprintf(out, "  patched %d of %d\n", report.Patched, report.Planned)
			if report.Failed > 0 {
				_, _ = color.New(color.FgRed).Fprintf(out, "  failed  %d\n", report.Failed)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "owner of the page")
	cmd.Flags().StringVar(&pageID, "page", "", "workflow page id")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("page")
	topLevel.AddCommand(cmd)
}
