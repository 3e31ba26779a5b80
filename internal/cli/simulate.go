package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wolfman30/support-escalation-bot/internal/conversation"
	"github.com/wolfman30/support-escalation-bot/internal/history"
)

var menuItems = []string{
	"Simulate public post",
	"Simulate direct message",
	"View conversation history",
	"View user stats",
	"Run test scenarios",
	"Exit",
}

func newSimulateCommand(load Loader) *cobra.Command {
	return &cobra.Command{
		Use:   "simulate",
		Short: "Interactive menu for sending messages through the bot",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(cmd, load, func(svc *Services) error {
				s := &simulator{
					svc: svc,
					in:  bufio.NewReader(cmd.InOrStdin()),
					out: cmd.OutOrStdout(),
				}
				s.st = newStyles(s.out)
				return s.run(cmd.Context())
			})
		},
	}
}

type simulator struct {
	svc *Services
	in  *bufio.Reader
	out io.Writer
	st  styles
}

// run loops over the menu until Exit or end of input.
func (s *simulator) run(ctx context.Context) error {
	fmt.Fprintln(s.out, s.st.Title.Render("Support bot simulator"))
	for {
		s.printMenu()
		choice, err := s.prompt(fmt.Sprintf("Select option (1-%d): ", len(menuItems)))
		if err != nil {
			return s.eof(err)
		}

		switch choice {
		case "1":
			err = s.simulate(ctx, false)
		case "2":
			err = s.simulate(ctx, true)
		case "3":
			err = s.history(ctx)
		case "4":
			err = s.stats(ctx)
		case "5":
			err = s.scenarios(ctx)
		case "6", "q", "exit":
			fmt.Fprintln(s.out, s.st.Success.Render("Goodbye"))
			return nil
		default:
			fmt.Fprintln(s.out, s.st.Error.Render(fmt.Sprintf("Invalid option. Choose 1-%d.", len(menuItems))))
			continue
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return s.eof(err)
			}
			// Per-action failures are shown and the menu continues.
			fmt.Fprintln(s.out, s.st.Error.Render("Error: "+err.Error()))
		}
	}
}

func (s *simulator) printMenu() {
	fmt.Fprintln(s.out, rule(s.st))
	for i, item := range menuItems {
		fmt.Fprintf(s.out, "%s %s\n", s.st.Label.Render(fmt.Sprintf("%d.", i+1)), item)
	}
}

func (s *simulator) simulate(ctx context.Context, direct bool) error {
	username, err := s.prompt("Username: ")
	if err != nil {
		return err
	}
	message, err := s.prompt("Message: ")
	if err != nil {
		return err
	}
	res, err := s.svc.Processor.Process(ctx, conversation.Inbound{
		Username: username,
		Text:     message,
		Direct:   direct,
	})
	if err != nil {
		return err
	}
	printResult(s.out, s.st, res)
	return nil
}

func (s *simulator) history(ctx context.Context) error {
	username, err := s.prompt("Username: ")
	if err != nil {
		return err
	}
	username = normalizeUsername(username)
	records, err := s.svc.History.RecentConversations(ctx, username, 10)
	if err != nil {
		return err
	}
	printHistory(s.out, s.st, username, records)
	return nil
}

func (s *simulator) stats(ctx context.Context) error {
	username, err := s.prompt("Username: ")
	if err != nil {
		return err
	}
	username = normalizeUsername(username)
	state, err := s.svc.History.GetUserState(ctx, username)
	if errors.Is(err, history.ErrNotFound) {
		fmt.Fprintln(s.out, s.st.Warning.Render("No data found for @"+username))
		return nil
	}
	if err != nil {
		return err
	}
	printState(s.out, s.st, state)
	return nil
}

func (s *simulator) scenarios(ctx context.Context) error {
	for i, sc := range demoScenarios {
		fmt.Fprintln(s.out, s.st.Title.Render(fmt.Sprintf("Scenario %d: %s", i+1, sc.Name)))
		fmt.Fprintf(s.out, "%s @%s (%s): %q\n", s.st.Label.Render("From:"), sc.Username, sc.kind(), sc.Message)
		res, err := s.svc.Processor.Process(ctx, conversation.Inbound{
			Username: sc.Username,
			Text:     sc.Message,
			Direct:   sc.Direct,
		})
		if err != nil {
			return err
		}
		printResult(s.out, s.st, res)
	}
	return nil
}

// prompt returns the trimmed next line. A final line without a newline is
// still returned; io.EOF is only reported when nothing was read.
func (s *simulator) prompt(label string) (string, error) {
	fmt.Fprint(s.out, s.st.Warning.Render(label))
	line, err := s.in.ReadString('\n')
	if err != nil && (!errors.Is(err, io.EOF) || line == "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func (s *simulator) eof(err error) error {
	if errors.Is(err, io.EOF) {
		fmt.Fprintln(s.out)
		return nil
	}
	return err
}
