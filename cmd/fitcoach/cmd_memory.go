package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"fitcoach/internal/config"
	"fitcoach/internal/memory"
)

var memoryCmd = &cobra.Command{
	Use:   "memory",
	Short: "Memory policy inspection",
}

// memoryStatsCmd prints the policy table and the configured tier.
var memoryStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show memory tiers and the active one",
	RunE: func(cmd *cobra.Command, args []string) error {
		modes := []config.Mode{
			config.ModeUltraCompact,
			config.ModeOptimized,
			config.ModeStandard,
			config.ModeFull,
		}
		fmt.Println("Tier           MaxTurns  MaxChars/turn")
		for _, mode := range modes {
			p := memory.PolicyFor(mode)
			chars := fmt.Sprintf("%d", p.MaxCharsPerTurn)
			if p.MaxCharsPerTurn <= 0 {
				chars = "unlimited"
			}
			marker := "  "
			if mode == cfg.Memory.Mode {
				marker = "* "
			}
			fmt.Printf("%s%-13s %8d  %s\n", marker, mode, p.MaxTurns, chars)
		}
		e := memory.EmergencyPolicy()
		fmt.Printf("  %-13s %8d  %d (operator-selected)\n", "emergency", e.MaxTurns, e.MaxCharsPerTurn)
		return nil
	},
}

func init() {
	memoryCmd.AddCommand(memoryStatsCmd)
}
