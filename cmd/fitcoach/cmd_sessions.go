package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"fitcoach/internal/session"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Session maintenance",
}

// sessionsReapCmd deactivates sessions idle past the configured timeout.
var sessionsReapCmd = &cobra.Command{
	Use:   "reap",
	Short: "Deactivate idle sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer a.Close()

		m := session.NewManager(a.st, cfg.SessionIdleTimeout(), logger)
		n, err := m.ReapIdle(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("Reaped %d idle session(s)\n", n)
		return nil
	},
}

// sessionsListCmd lists subjects with an active session.
var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List subjects with an active session",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer a.Close()

		subjects, err := a.st.ActiveSubjects(cmd.Context())
		if err != nil {
			return err
		}
		if len(subjects) == 0 {
			fmt.Println("No active sessions")
			return nil
		}
		for _, s := range subjects {
			fmt.Println(s)
		}
		return nil
	},
}

func init() {
	sessionsCmd.AddCommand(sessionsReapCmd)
	sessionsCmd.AddCommand(sessionsListCmd)
}
