package main

import (
	"errors"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := buildRoot()
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// buildRoot creates the command tree. Handlers live on the command struct;
// cobra only parses flags and dispatches.
func buildRoot() *cobra.Command {
	globalFlags := &GlobalFlags{}
	statusFlags := &StatusFlags{}
	watchdogFlags := &DaemonFlags{}
	notifierFlags := &DaemonFlags{}
	notifyFlags := &NotifyFlags{}
	secretSetFlags := &SecretSetFlags{}
	historyFlags := &HistoryFlags{}

	c := command{flags: globalFlags}

	root := createRootCommand(globalFlags)
	root.AddCommand(
		createStartCommand(c),
		createStopCommand(c),
		createRestartCommand(c),
		createStatusCommand(c, statusFlags),
		createWatchdogCommand(c, watchdogFlags),
		createNotifierCommand(c, notifierFlags),
		createNotifyCommand(c, notifyFlags),
		createSecretCommand(c, secretSetFlags),
		createHistoryCommand(c, historyFlags),
	)
	return root
}

func createRootCommand(flags *GlobalFlags) *cobra.Command {
	root := &cobra.Command{
		Use:   "dev-services",
		Short: "Supervisor for the dev environment's background services",
		Long: `dev-services starts, stops and inspects the fixed set of background
services a development container needs: cached credentials, the beads issue
daemon, the gastown orchestrator, its watchdog and the Slack notifier.

Examples:
  dev-services start
  dev-services status --json
  dev-services watchdog            # detach the health watchdog
  dev-services notify review "Need eyes on the API change"`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			// No subcommand is a usage error, not a help request.
			cmd.SilenceUsage = false
			return errors.New("a subcommand is required")
		},
	}
	root.PersistentFlags().StringVar(&flags.ConfigPath, "config", "", "path to TOML config file (optional)")
	return root
}

func createStartCommand(c command) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start every service in order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Start()
		},
	}
}

func createStopCommand(c command) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop every service in reverse order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Stop()
		},
	}
}

func createRestartCommand(c command) *cobra.Command {
	return &cobra.Command{
		Use:   "restart",
		Short: "Stop everything, then start everything",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Restart()
		},
	}
}

func createStatusCommand(c command, flags *StatusFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Report each service's state",
		Long: `Report each service's state. The exit code is non-zero when at least
one service that should be running is stopped; disabled and not-configured
services are not failures.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Status(*flags)
		},
	}
	cmd.Flags().BoolVar(&flags.JSON, "json", false, "machine-readable output")
	return cmd
}

func createWatchdogCommand(c command, flags *DaemonFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watchdog",
		Short: "Run the daemon health watchdog",
		Long: `Run the loop that keeps the gastown daemon alive. Without --foreground
the command re-executes itself detached and returns immediately.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Watchdog(*flags)
		},
	}
	cmd.Flags().BoolVar(&flags.Foreground, "foreground", false, "stay attached instead of daemonizing")
	cmd.Flags().StringVar(&flags.LogLevel, "log-level", "info", "debug, info, warn or error")
	return cmd
}

func createNotifierCommand(c command, flags *DaemonFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "notifier",
		Short: "Run the Slack issue notifier",
		Long: `Watch the project's .beads/issues.jsonl and announce changes to Slack.
Without --foreground the command re-executes itself detached and returns
immediately.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Notifier(*flags)
		},
	}
	cmd.Flags().BoolVar(&flags.Foreground, "foreground", false, "stay attached instead of daemonizing")
	cmd.Flags().StringVar(&flags.Project, "project", "", "project directory (default: configured project dir)")
	cmd.Flags().StringVar(&flags.LogLevel, "log-level", "info", "debug, info, warn or error")
	return cmd
}

func createNotifyCommand(c command, flags *NotifyFlags) *cobra.Command {
	notify := &cobra.Command{
		Use:   "notify",
		Short: "Send one-shot Slack notifications",
		Long: `Send a notification from a coding agent. The agent identity comes from
BEADS_AGENT_ID (hostname when unset); the issue from --issue or
BEADS_ISSUE_ID.`,
	}
	notify.PersistentFlags().StringVarP(&flags.Issue, "issue", "i", "", "issue ID (overrides BEADS_ISSUE_ID)")

	oneShot := func(use, short, kind string) *cobra.Command {
		return &cobra.Command{
			Use:   use + " MESSAGE",
			Short: short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return c.NotifySend(kind, args[0], *flags)
			},
		}
	}
	notify.AddCommand(
		oneShot("review", "Request human review", kindReview),
		oneShot("blocked", "Report a blocker", kindBlocked),
		oneShot("message", "Send a status update", kindMessage),
		oneShot("complete", "Report work complete", kindComplete),
		&cobra.Command{
			Use:   "check",
			Short: "Check the notification configuration",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return c.NotifyCheck(cmd.OutOrStdout())
			},
		},
	)
	return notify
}

func createSecretCommand(c command, setFlags *SecretSetFlags) *cobra.Command {
	secret := &cobra.Command{
		Use:   "secret",
		Short: "Maintain the credential store",
	}

	set := &cobra.Command{
		Use:   "set NAME",
		Short: "Store a credential",
		Long: `Store a credential. The value comes from --value, from a stdin pipe,
or from a hidden prompt when attached to a terminal.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.SecretSet(args[0], *setFlags)
		},
	}
	set.Flags().StringVar(&setFlags.Value, "value", "", "credential value (prefer stdin or the prompt)")

	get := &cobra.Command{
		Use:   "get NAME",
		Short: "Print a stored credential",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.SecretGet(args[0], cmd.OutOrStdout())
		},
	}

	check := &cobra.Command{
		Use:   "check",
		Short: "Validate and repair store permissions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.SecretCheck(cmd.OutOrStdout())
		},
	}

	secret.AddCommand(set, get, check)
	return secret
}

func createHistoryCommand(c command, flags *HistoryFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent lifecycle events",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.History(*flags, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&flags.Service, "service", "", "filter by service name")
	cmd.Flags().IntVar(&flags.Limit, "limit", 20, "maximum number of events")
	cmd.Flags().BoolVar(&flags.JSON, "json", false, "machine-readable output")
	return cmd
}
