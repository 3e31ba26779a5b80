package cli

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wolfman30/support-escalation-bot/internal/conversation"
	"github.com/wolfman30/support-escalation-bot/internal/history"
)

func newDemoCommand(load Loader) *cobra.Command {
	var pause bool

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run the scripted support scenarios",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(cmd, load, func(svc *Services) error {
				out := cmd.OutOrStdout()
				st := newStyles(out)
				in := bufio.NewReader(cmd.InOrStdin())

				fmt.Fprintln(out, st.Title.Render("Support bot demo"))
				escalations := 0
				for i, sc := range demoScenarios {
					fmt.Fprintln(out, rule(st))
					fmt.Fprintln(out, st.Title.Render(fmt.Sprintf("Scenario %d: %s", i+1, sc.Name)))
					fmt.Fprintf(out, "%s @%s (%s)\n", st.Label.Render("From:"), sc.Username, sc.kind())
					fmt.Fprintf(out, "%s %q\n", st.Label.Render("Message:"), sc.Message)

					res, err := svc.Processor.Process(cmd.Context(), conversation.Inbound{
						Username: sc.Username,
						Text:     sc.Message,
						Direct:   sc.Direct,
					})
					if err != nil {
						return fmt.Errorf("cli: scenario %d: %w", i+1, err)
					}
					printResult(out, st, res)
					if res.Escalated {
						escalations++
					}

					if pause && i < len(demoScenarios)-1 {
						fmt.Fprint(out, st.Muted.Render("Press Enter for next scenario..."))
						if _, err := in.ReadString('\n'); err != nil {
							fmt.Fprintln(out)
							break
						}
					}
				}
				fmt.Fprintln(out, rule(st))
				fmt.Fprintln(out, st.Success.Render(fmt.Sprintf("Demo complete: %d scenarios, %d escalated", len(demoScenarios), escalations)))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&pause, "pause", false, "wait for Enter between scenarios")
	return cmd
}

func newHistoryCommand(load Loader) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history <username>",
		Short: "Show recent conversation records for a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			username := normalizeUsername(args[0])
			return withServices(cmd, load, func(svc *Services) error {
				records, err := svc.History.RecentConversations(cmd.Context(), username, limit)
				if err != nil {
					return fmt.Errorf("cli: load history: %w", err)
				}
				out := cmd.OutOrStdout()
				printHistory(out, newStyles(out), username, records)
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "maximum records to show")
	return cmd
}

func newStatsCommand(load Loader) *cobra.Command {
	return &cobra.Command{
		Use:   "stats <username>",
		Short: "Show stored state for a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			username := normalizeUsername(args[0])
			return withServices(cmd, load, func(svc *Services) error {
				out := cmd.OutOrStdout()
				st := newStyles(out)
				state, err := svc.History.GetUserState(cmd.Context(), username)
				if errors.Is(err, history.ErrNotFound) {
					fmt.Fprintln(out, st.Warning.Render("No data found for @"+username))
					return nil
				}
				if err != nil {
					return fmt.Errorf("cli: load user state: %w", err)
				}
				printState(out, st, state)
				return nil
			})
		},
	}
}

func newClassifyCommand(load Loader) *cobra.Command {
	var direct bool

	cmd := &cobra.Command{
		Use:   "classify <text>",
		Short: "Classify a message without recording it",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.TrimSpace(strings.Join(args, " "))
			return withServices(cmd, load, func(svc *Services) error {
				out := cmd.OutOrStdout()
				st := newStyles(out)
				intent := svc.Classifier.Classify(cmd.Context(), text, direct)
				fmt.Fprintf(out, "%s %s\n", st.Label.Render("Intent:"), intent)
				ticket, ok := conversation.ExtractTicket(text)
				if ok {
					fmt.Fprintf(out, "%s #%s\n", st.Label.Render("Ticket:"), ticket)
				}
				category, escalate := conversation.Decide(intent, conversation.ChannelFor(direct), ticket)
				fmt.Fprintf(out, "%s %s\n", st.Label.Render("Category:"), category)
				if escalate {
					fmt.Fprintln(out, st.Warning.Render("would escalate"))
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&direct, "dm", false, "treat the text as a direct message")
	return cmd
}

func newNotifyTestCommand(load Loader) *cobra.Command {
	return &cobra.Command{
		Use:   "notify-test",
		Short: "Send a test message to the Slack escalation channel",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(cmd, load, func(svc *Services) error {
				if svc.Tester == nil {
					return ErrNotifierTestUnavailable
				}
				if err := svc.Tester.SendTest(cmd.Context()); err != nil {
					return fmt.Errorf("cli: send test notification: %w", err)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, newStyles(out).Success.Render("Test notification sent"))
				return nil
			})
		},
	}
}

func normalizeUsername(raw string) string {
	return strings.TrimPrefix(strings.TrimSpace(raw), "@")
}
