package cli

import (
	"fmt"
	"io"

	"github.com/ether/easysync/lib/apool"
	"github.com/ether/easysync/lib/changeset"
	"github.com/ether/easysync/lib/events"
	"github.com/ether/easysync/lib/server"
	"github.com/ether/easysync/lib/settings"
	"github.com/ether/easysync/lib/utils"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type rootOptions struct {
	configFile string
	logLevel   string
	noColor    bool
}

func (o *rootOptions) logger() *zap.SugaredLogger {
	if o.logLevel == "" {
		return utils.SetupLogger("info")
	}
	return utils.SetupLogger(o.logLevel)
}

// NewRootCommand returns the easysync command tree. extra commands are added
// next to the built-in ones.
func NewRootCommand(extra ...*cobra.Command) *cobra.Command {
	options := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "easysync",
		Short: "Collaborative plain text editing with easysync changesets",
		Long: `easysync serves pads that many authors edit at the same time. Edits
travel as changesets and are merged with operational transformation.

The changeset commands work offline and help to inspect and debug changesets.`,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			if options.noColor {
				color.NoColor = true
			}
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&options.configFile, "config", "c", "", "path to settings.json")
	rootCmd.PersistentFlags().StringVar(&options.logLevel, "log-level", "", "log level, overrides the configured one")
	rootCmd.PersistentFlags().BoolVar(&options.noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(newServeCommand(options))
	rootCmd.AddCommand(newConnectCommand(options))
	rootCmd.AddCommand(newApplyCommand())
	rootCmd.AddCommand(newComposeCommand())
	rootCmd.AddCommand(newFollowCommand())
	rootCmd.AddCommand(newInverseCommand())
	rootCmd.AddCommand(newInspectCommand())
	rootCmd.AddCommand(newConfigCommand(options))
	rootCmd.AddCommand(extra...)

	return rootCmd
}

func newServeCommand(options *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the pad server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			retrievedSettings, err := settings.ReadConfigFile(options.configFile)
			if err != nil {
				return fmt.Errorf("error reading settings: %w", err)
			}
			if options.logLevel != "" {
				retrievedSettings.LogLevel = options.logLevel
			}
			setupLogger := utils.SetupLogger(retrievedSettings.LogLevel)
			defer func() {
				_ = setupLogger.Sync()
			}()

			setupLogger.Info("Starting easysync...")
			dataStore, err := utils.GetDB(*retrievedSettings, setupLogger)
			if err != nil {
				return fmt.Errorf("error connecting to database: %w", err)
			}
			publisher, err := events.New(retrievedSettings.Kafka, setupLogger)
			if err != nil {
				_ = dataStore.Close()
				return err
			}

			return server.New(retrievedSettings, dataStore, publisher, setupLogger).Run(cmd.Context())
		},
	}
}

func newConnectCommand(options *rootOptions) *cobra.Command {
	var appendText string

	cmd := &cobra.Command{
		Use:   "connect <url>",
		Short: "Join a pad and follow its contents",
		Long: `Join the pad at a URL like http://127.0.0.1:9001/p/test and print its
contents whenever they change. With --append the text is added to the end of
the pad and the command exits once the server accepted it.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := options.logger()
			client, err := NewClient(args[0], logger)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("append") {
				return appendToPad(cmd, client, appendText)
			}
			return followPad(cmd, client)
		},
	}
	cmd.Flags().StringVarP(&appendText, "append", "a", "", "append text to the pad and exit")
	return cmd
}

func appendToPad(cmd *cobra.Command, client *Client, text string) error {
	ctx := cmd.Context()
	if err := client.Connect(ctx); err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	select {
	case <-client.Ready():
	case <-client.Done():
		return client.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := client.Append(text); err != nil {
		return err
	}
	if err := client.WaitSettled(ctx); err != nil {
		return err
	}
	_, err := fmt.Fprintf(cmd.OutOrStdout(), "Appended %q to %s\n", text, client.PadId())
	return err
}

func followPad(cmd *cobra.Command, client *Client) error {
	out := cmd.OutOrStdout()
	client.OnConnected(func(c *Client) {
		fmt.Fprint(out, "\u001b[2J\u001b[0;0H")
		fmt.Fprintf(out, "Pad %s\n\n%s", c.PadId(), c.Text())
	})
	client.OnNewContents(func(atext apool.AText) {
		fmt.Fprint(out, "\u001b[2J\u001b[0;0H")
		fmt.Fprintf(out, "Pad %s\n\n%s", client.PadId(), atext.Text)
	})

	ctx := cmd.Context()
	if err := client.Connect(ctx); err != nil {
		return err
	}
	select {
	case <-client.Done():
		return client.Err()
	case <-ctx.Done():
		return client.Close()
	}
}

// textArg reads the text argument, "-" stands for stdin.
func textArg(cmd *cobra.Command, arg string) (string, error) {
	if arg != "-" {
		return arg, nil
	}
	text, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", fmt.Errorf("error reading stdin: %w", err)
	}
	return string(text), nil
}

func newApplyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "apply <changeset> <text>",
		Short: "Apply a changeset to a text",
		Long:  `Apply a changeset to a text and print the result. Pass - as text to read it from stdin.`,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := textArg(cmd, args[1])
			if err != nil {
				return err
			}
			result, err := changeset.ApplyToText(args[0], text)
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), result)
			return err
		},
	}
}

func newComposeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "compose <changeset1> <changeset2>",
		Short: "Combine two consecutive changesets into one",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			composed, err := changeset.Compose(args[0], args[1], apool.NewAPool())
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), composed)
			return err
		},
	}
}

func newFollowCommand() *cobra.Command {
	var reverse bool

	cmd := &cobra.Command{
		Use:   "follow <changeset1> <changeset2>",
		Short: "Transform changeset1 so that it applies after changeset2",
		Long: `Both changesets must apply to the same text. The result applies to the text
changeset2 produced and keeps the intent of changeset1. Concurrent inserts at
the same position put the text of changeset2 first, --reverse swaps that.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			followed, err := changeset.Follow(args[0], args[1], reverse, apool.NewAPool())
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), followed)
			return err
		},
	}
	cmd.Flags().BoolVarP(&reverse, "reverse", "r", false, "put the inserts of changeset1 first")
	return cmd
}

func newInverseCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "inverse <changeset> <text>",
		Short: "Print the changeset that undoes a changeset",
		Long:  `Print the changeset that undoes changeset after it was applied to text. Pass - as text to read it from stdin.`,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := textArg(cmd, args[1])
			if err != nil {
				return err
			}
			if err := changeset.CheckRep(args[0]); err != nil {
				return err
			}
			alines, err := changeset.SplitAttributionLines(changeset.MakeAttribution(text), text)
			if err != nil {
				return err
			}
			inverse, err := changeset.Inverse(args[0], changeset.SplitTextLines(text), alines, apool.NewAPool())
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), inverse)
			return err
		},
	}
}

func newInspectCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <changeset>",
		Short: "List the operations of a changeset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return inspect(cmd.OutOrStdout(), args[0])
		},
	}
}

var (
	keepColor   = color.New(color.FgCyan)
	insertColor = color.New(color.FgGreen)
	removeColor = color.New(color.FgRed)
	headerColor = color.New(color.Bold)
)

func inspect(w io.Writer, cs string) error {
	if err := changeset.CheckRep(cs); err != nil {
		return err
	}
	unpacked, err := changeset.Unpack(cs)
	if err != nil {
		return err
	}
	ops, err := changeset.DeserializeOps(unpacked.Ops)
	if err != nil {
		return err
	}

	headerColor.Fprintf(w, "%d -> %d chars, %d ops\n", unpacked.OldLen, unpacked.NewLen, len(ops))
	bank := changeset.NewStringIterator(unpacked.CharBank)
	for _, op := range ops {
		line := fmt.Sprintf("%s %d", op.OpCode, op.Chars)
		if op.Lines > 0 {
			line += fmt.Sprintf(" (%d lines)", op.Lines)
		}
		if op.Attribs != "" {
			line += " " + op.Attribs
		}
		switch op.OpCode {
		case "+":
			inserted, err := bank.Take(op.Chars)
			if err != nil {
				return err
			}
			insertColor.Fprintf(w, "%s %q\n", line, inserted)
		case "-":
			removeColor.Fprintln(w, line)
		case "=":
			keepColor.Fprintln(w, line)
		default:
			return fmt.Errorf("%w: unknown op %q", changeset.ErrMalformed, op.OpCode)
		}
	}
	return nil
}

func newConfigCommand(options *rootOptions) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Show and create settings",
	}

	configCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "List every setting with its env var, current and default value",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return settings.ConfigShow(cmd.OutOrStdout(), options.configFile)
		},
	})
	configCmd.AddCommand(&cobra.Command{
		Use:   "dump",
		Short: "Print the effective settings as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return settings.ConfigDump(cmd.OutOrStdout(), options.configFile)
		},
	})
	configCmd.AddCommand(&cobra.Command{
		Use:   "env",
		Short: "List the environment variables of every setting",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			settings.ConfigEnv(cmd.OutOrStdout())
		},
	})
	configCmd.AddCommand(&cobra.Command{
		Use:   "get <key>",
		Short: "Print the value of one setting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return settings.ConfigGet(cmd.OutOrStdout(), options.configFile, args[0])
		},
	})
	configCmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Print a settings.json holding every default",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return settings.ConfigInit(cmd.OutOrStdout())
		},
	})

	return configCmd
}
