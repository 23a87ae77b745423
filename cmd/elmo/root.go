package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	elmo "github.com/caarlos0/homekit-elmo"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

// errFailed is returned once a result was printed but was not successful.
var errFailed = errors.New("operation failed")

type newCommanderFunc func(logger *log.Logger) *elmo.Commander

type rootCmd struct {
	cmd   *cobra.Command
	debug bool
}

func newRootCmd(stdout, stderr io.Writer, newCommander newCommanderFunc) *rootCmd {
	root := &rootCmd{}
	cmd := &cobra.Command{
		Use:           "elmo",
		Short:         "Control Elmo e-Connect and IESS Metronet alarm systems",
		SilenceErrors: true,
		Version:       fmt.Sprintf("%s (commit %s, built at %s)", version, commit, date),
		Args:          cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			return errors.New("missing command")
		},
	}
	// stdout only carries the JSON result, help and usage go to stderr.
	cmd.SetOut(stderr)
	cmd.SetErr(stderr)
	cmd.PersistentFlags().BoolVar(&root.debug, "debug", false, "enable debug logs")

	commander := func() *elmo.Commander {
		logger := log.NewWithOptions(stderr, log.Options{
			ReportTimestamp: true,
			TimeFormat:      time.Kitchen,
			Prefix:          "elmo",
		})
		if root.debug {
			logger.SetLevel(log.DebugLevel)
		}
		return newCommander(logger)
	}

	cmd.AddCommand(
		newSessionCmd("authenticate", "Check the credentials against the cloud service", nil, commander, stdout),
		newSessionCmd("status", "Print sectors, inputs and alerts", (*elmo.Commander).Status, commander, stdout),
		newSessionCmd("ready", "Check whether the system has active alerts", (*elmo.Commander).Ready, commander, stdout),
		newControlCmd("arm", "Arm the system, or only the given sectors", (*elmo.Commander).Arm, commander, stdout),
		newControlCmd("disarm", "Disarm the system, or only the given sectors", (*elmo.Commander).Disarm, commander, stdout),
	)

	root.cmd = cmd
	return root
}

// sessionFunc runs once authentication succeeded. A nil sessionFunc prints
// the authentication result itself.
type sessionFunc func(c *elmo.Commander, ctx context.Context, sess elmo.Session) elmo.Result

func newSessionCmd(name, short string, fn sessionFunc, commander func() *elmo.Commander, out io.Writer) *cobra.Command {
	return positional(&cobra.Command{
		Use:   name + " <username> <password> <system> <domain>",
		Short: short,
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSession(cmd, commander(), out, args, fn)
		},
	})
}

type controlFunc func(c *elmo.Commander, ctx context.Context, sess elmo.Session, code string, sectors []int) elmo.Result

func newControlCmd(name, short string, fn controlFunc, commander func() *elmo.Commander, out io.Writer) *cobra.Command {
	return positional(&cobra.Command{
		Use:   name + " <username> <password> <system> <domain> <code> [sector1,sector2,...]",
		Short: short,
		Args: func(cmd *cobra.Command, args []string) error {
			if err := cobra.RangeArgs(5, 6)(cmd, args); err != nil {
				return err
			}
			if len(args) == 6 {
				if _, err := elmo.ParseSectors(args[5]); err != nil {
					return err
				}
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			var sectors []int
			if len(args) == 6 {
				// already validated.
				sectors, _ = elmo.ParseSectors(args[5])
			}
			return runSession(cmd, commander(), out, args, func(
				c *elmo.Commander,
				ctx context.Context,
				sess elmo.Session,
			) elmo.Result {
				return fn(c, ctx, sess, args[4], sectors)
			})
		},
	})
}

// positional stops flag parsing at the first argument, so passwords and
// codes starting with "-" are taken as they are.
func positional(cmd *cobra.Command) *cobra.Command {
	cmd.Flags().SetInterspersed(false)
	return cmd
}

func runSession(cmd *cobra.Command, c *elmo.Commander, out io.Writer, args []string, fn sessionFunc) error {
	cmd.SilenceUsage = true
	ctx := cmd.Context()

	sess, res := c.Authenticate(ctx, args[0], args[1], args[2], args[3])
	if res.Success && fn != nil {
		res = fn(c, ctx, sess)
	}

	if err := json.NewEncoder(out).Encode(res); err != nil {
		return fmt.Errorf("could not print result: %w", err)
	}
	if !res.Success {
		return errFailed
	}
	return nil
}
