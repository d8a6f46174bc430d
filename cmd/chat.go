package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive support conversation",
	RunE:  runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	rt, err := newRuntime(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer rt.Close()

	sess, err := rt.sessions.Create(ctx, "Chat session")
	if err != nil {
		return fmt.Errorf("creating session: %w", err)
	}

	fmt.Printf("Helpline (%s mode). Type /quit to exit, /new for a fresh session.\n", cfg.Mode)
	fmt.Printf("Session: %s\n\n", sess.ID)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			fmt.Println("\nGoodbye.")
			return scanner.Err()
		}

		input := strings.TrimSpace(scanner.Text())
		switch {
		case input == "":
			continue
		case input == "/quit", input == "/exit":
			fmt.Println("Goodbye.")
			return nil
		case input == "/new":
			sess, err = rt.sessions.Create(ctx, "Chat session")
			if err != nil {
				return fmt.Errorf("creating session: %w", err)
			}
			fmt.Printf("Started session %s\n", sess.ID)
			continue
		}

		result, err := rt.agent.Run(ctx, sess.ID, input)
		if err != nil {
			return fmt.Errorf("chat turn: %w", err)
		}

		fmt.Println()
		fmt.Println(result.Answer)
		if len(result.Sources) > 0 {
			fmt.Println()
			fmt.Println("Sources:")
			for _, src := range result.Sources {
				fmt.Printf("  %s (%.2f)\n", src.Path, src.Score)
			}
		}
		fmt.Println()
	}
}
