package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"scribed/internal/client"
	"scribed/internal/common/fsutil"
	"scribed/pkg/types"
)

// errNotRunning is returned whenever a call produced no response within its
// timeout. The daemon being absent and the daemon being wedged look the same
// from here.
var errNotRunning = errors.New("daemon not running (no response on socket)")

// buildRootCmd constructs the scribectl command tree.
func buildRootCmd() *cobra.Command {
	var (
		socketPath string
		timeoutSec int
	)

	root := &cobra.Command{
		Use:           "scribectl",
		Short:         "Control a running scribed transcription daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&socketPath, "socket", fsutil.DefaultSocketPath(), "Daemon socket path")
	root.PersistentFlags().IntVar(&timeoutSec, "timeout", 0, "Call timeout in seconds (0 = default)")

	newClient := func() *client.Client { return client.New(socketPath) }
	timeout := func() time.Duration { return time.Duration(timeoutSec) * time.Second }

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show loaded model and session history",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, ok := newClient().Call(types.Request{Action: types.ActionStatus}, timeout())
			if !ok {
				return errNotRunning
			}
			return printResponse(resp)
		},
	}

	pingCmd := &cobra.Command{
		Use:   "ping",
		Short: "Check whether the daemon is serving",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !newClient().IsRunning() {
				return errNotRunning
			}
			fmt.Println("ok")
			return nil
		},
	}

	preloadCmd := &cobra.Command{
		Use:   "preload <model>",
		Short: "Download and load a model ahead of first use",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, ok := newClient().Call(types.Request{Action: types.ActionPreload, Model: args[0]}, timeout())
			if !ok {
				return errNotRunning
			}
			if !resp.OK {
				return errors.New(resp.Error)
			}
			return printResponse(resp)
		},
	}

	var (
		model    string
		language string
	)
	transcribeCmd := &cobra.Command{
		Use:   "transcribe <audio-file>",
		Short: "Transcribe an audio file through the resident engine",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, ok := newClient().Call(types.Request{
				Action:   types.ActionTranscribe,
				Audio:    args[0],
				Model:    model,
				Language: language,
			}, timeout())
			if !ok {
				return errNotRunning
			}
			if !resp.OK {
				return errors.New(resp.Error)
			}
			if resp.Text != nil {
				fmt.Println(*resp.Text)
			}
			return nil
		},
	}
	transcribeCmd.Flags().StringVar(&model, "model", "tiny.en", "Model id to transcribe with")
	transcribeCmd.Flags().StringVar(&language, "language", "", "Transcription language (empty = daemon default)")

	completionCmd := &cobra.Command{Use: "completion", Short: "Generate the autocompletion script for the specified shell"}
	completionCmd.AddCommand(&cobra.Command{Use: "bash", Short: "Bash completion", RunE: func(cmd *cobra.Command, args []string) error { return root.GenBashCompletion(os.Stdout) }})
	completionCmd.AddCommand(&cobra.Command{Use: "zsh", Short: "Zsh completion", RunE: func(cmd *cobra.Command, args []string) error { return root.GenZshCompletion(os.Stdout) }})
	completionCmd.AddCommand(&cobra.Command{Use: "fish", Short: "Fish completion", RunE: func(cmd *cobra.Command, args []string) error { return root.GenFishCompletion(os.Stdout, true) }})

	root.AddCommand(statusCmd, pingCmd, preloadCmd, transcribeCmd, completionCmd)
	return root
}

// printResponse writes the daemon's reply as indented JSON.
func printResponse(resp types.Response) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}
