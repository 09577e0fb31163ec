package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// chatCmd starts the interactive REPL.
var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive coaching chat",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat(cmd.Context())
	},
}

func runChat(ctx context.Context) error {
	a, err := buildApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.Close()

	fmt.Println("fitcoach — escribe tu mensaje, /clear borra la conversación, /quit sale.")
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		if err := ctx.Err(); err != nil {
			return nil
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch line {
		case "/quit", "/exit":
			return nil
		case "/clear":
			if err := a.orch.EndSession(ctx, subjectID); err != nil {
				fmt.Println("No se pudo borrar la conversación:", err)
				continue
			}
			fmt.Println("Conversación borrada.")
			continue
		}

		reply, err := a.orch.HandleTurn(ctx, subjectID, line)
		if err != nil {
			// Only cancellation reaches here; everything else degrades
			// inside the orchestrator.
			return nil
		}
		fmt.Println(reply)
	}
	return scanner.Err()
}
