package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/wolfman30/support-escalation-bot/internal/conversation"
)

const version = "0.3.0"

// ErrNotifierTestUnavailable is returned by notify-test when no Slack webhook
// is configured.
var ErrNotifierTestUnavailable = errors.New("cli: slack webhook not configured")

// ConnectivityTester sends a test message to the operator channel.
type ConnectivityTester interface {
	SendTest(ctx context.Context) error
}

// Services are the collaborators the commands run against.
type Services struct {
	Processor  conversation.Processor
	History    conversation.HistoryReader
	Classifier conversation.Classifier
	// Tester is nil when no Slack webhook is configured.
	Tester ConnectivityTester
	Close  func() error
}

// Loader builds Services on demand so commands that fail flag parsing never
// open a database.
type Loader func(ctx context.Context) (*Services, error)

func NewRoot(load Loader) *cobra.Command {
	root := &cobra.Command{
		Use:           "supportctl",
		Short:         "Drive the support escalation bot from a terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newSimulateCommand(load))
	root.AddCommand(newDemoCommand(load))
	root.AddCommand(newHistoryCommand(load))
	root.AddCommand(newStatsCommand(load))
	root.AddCommand(newClassifyCommand(load))
	root.AddCommand(newNotifyTestCommand(load))
	root.AddCommand(newVersionCommand())

	return root
}

// withServices loads the services, runs fn and closes them.
func withServices(cmd *cobra.Command, load Loader, fn func(*Services) error) error {
	svc, err := load(cmd.Context())
	if err != nil {
		return err
	}
	if svc.Close != nil {
		defer svc.Close()
	}
	return fn(svc)
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print CLI version",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Println(version)
		},
	}
}
