package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newChatCmd(configPath *string) *cobra.Command {
	var stream bool

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Ask questions interactively",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), appOptions{configPath: *configPath})
			if err != nil {
				return err
			}
			defer a.Close()

			color.Cyan("\nAsk about your course materials (type 'new' for a fresh session, 'exit' to quit)")

			scanner := bufio.NewScanner(os.Stdin)
			userPrompt := color.New(color.FgGreen).PrintfFunc()
			assistantPrompt := color.New(color.FgCyan).PrintfFunc()
			sessionID := a.system.NewSession()

			for {
				userPrompt("\nYou: ")
				if !scanner.Scan() {
					break
				}

				query := strings.TrimSpace(scanner.Text())
				switch strings.ToLower(query) {
				case "":
					continue
				case "exit", "quit":
					return nil
				case "new":
					sessionID = a.system.NewSession()
					color.Yellow("Started a new session")
					continue
				}

				var onToken func(string)
				spinner := getSpinner("Thinking...")
				if stream {
					started := false
					onToken = func(chunk string) {
						if !started {
							spinner.Finish()
							assistantPrompt("Assistant: ")
							started = true
						}
						fmt.Print(chunk)
					}
				}

				resp, err := a.system.QueryStream(cmd.Context(), query, sessionID, onToken)
				spinner.Finish()
				if err != nil {
					color.Red("Error: %v", err)
					continue
				}
				if stream {
					fmt.Println()
				} else {
					assistantPrompt("Assistant: %s\n", resp.Answer)
				}

				for _, src := range resp.Sources {
					if src.Link != "" {
						color.HiBlack("  • %s (%s)", src.Label, src.Link)
					} else {
						color.HiBlack("  • %s", src.Label)
					}
				}
			}
			return scanner.Err()
		},
	}
	cmd.Flags().BoolVar(&stream, "stream", true, "print the answer as it is generated")
	return cmd
}
