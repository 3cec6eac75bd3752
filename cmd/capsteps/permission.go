package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	capsteps "github.com/yelzgniq/cap-android-steps"
)

var permissionCmd = &cobra.Command{
	Use:   "permission",
	Short: "Request or answer the activity recognition permission",
}

var permissionRequestCmd = &cobra.Command{
	Use:   "request",
	Short: "Call requestActivityRecognitionPermission and wait for the answer",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		var res capsteps.PermissionResult
		if err := clientFromFlags(cmd).call(cmd.Context(), "requestActivityRecognitionPermission", nil, &res); err != nil {
			return err
		}
		if res.Granted {
			fmt.Fprintln(cmd.OutOrStdout(), okColor.Sprint("granted"))
		} else {
			fmt.Fprintln(cmd.OutOrStdout(), warnColor.Sprint("denied"))
		}
		return nil
	},
}

var (
	answerDeny bool
	answerOnce bool
)

var permissionAnswerCmd = &cobra.Command{
	Use:   "answer",
	Short: "Act as the host shell: pull permission prompts and answer them",
	Long: `Long-polls a bridge running with permission.mode: host and answers every
prompt it queues, the way the app's permission dialog would.

Examples:
  capsteps permission answer
  capsteps permission answer --deny --once`,
	Args: cobra.NoArgs,
	RunE: runPermissionAnswer,
}

func init() {
	permissionAnswerCmd.Flags().BoolVar(&answerDeny, "deny", false, "Deny instead of grant")
	permissionAnswerCmd.Flags().BoolVar(&answerOnce, "once", false, "Exit after answering one prompt")

	permissionCmd.AddCommand(permissionRequestCmd)
	permissionCmd.AddCommand(permissionAnswerCmd)
}

func runPermissionAnswer(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := clientFromFlags(cmd)
	out := cmd.OutOrStdout()

	for {
		prompt, ok, err := client.nextPrompt(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if !ok {
			continue
		}

		if err := answerPrompt(ctx, client, out, prompt, answerDeny); err != nil {
			return err
		}
		if answerOnce {
			return nil
		}
	}
}

func answerPrompt(ctx context.Context, client *bridgeClient, out io.Writer, prompt capsteps.PermissionRequest, deny bool) error {
	grant, label := 0, okColor.Sprint("granted")
	if deny {
		grant, label = -1, warnColor.Sprint("denied")
	}
	grants := make([]int, len(prompt.Permissions))
	for i := range grants {
		grants[i] = grant
	}

	matched, err := client.sendResult(ctx, prompt.RequestCode, prompt.Permissions, grants)
	if err != nil {
		return err
	}
	if !matched {
		fmt.Fprintf(out, "%s no caller is waiting anymore\n", keyColor.Sprintf("#%d", prompt.RequestCode))
		return nil
	}
	fmt.Fprintf(out, "%s %s %s\n", keyColor.Sprintf("#%d", prompt.RequestCode), strings.Join(prompt.Permissions, ","), label)
	return nil
}
