package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"mueck/internal/slack"
)

func newVerifyCmd() *cobra.Command {
	var secret, timestamp, signature, bodyFile string
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check a captured webhook signature offline",
		RunE: func(cmd *cobra.Command, _ []string) error {
			body, err := os.ReadFile(bodyFile)
			if err != nil {
				return fmt.Errorf("read body: %w", err)
			}
			if err := slack.VerifySignature(secret, timestamp, signature, body); err != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "expected %s\n", slack.Sign(secret, timestamp, body))
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "signature ok")
			return nil
		},
	}
	cmd.Flags().StringVar(&secret, "secret", "", "Signing secret (required)")
	cmd.Flags().StringVar(&timestamp, "timestamp", "", "X-Slack-Request-Timestamp value (required)")
	cmd.Flags().StringVar(&signature, "signature", "", "X-Slack-Signature value (required)")
	cmd.Flags().StringVar(&bodyFile, "body-file", "", "File holding the raw request body (required)")
	for _, name := range []string{"secret", "timestamp", "signature", "body-file"} {
		if err := cmd.MarkFlagRequired(name); err != nil {
			panic(fmt.Sprintf("failed to mark %s flag as required: %v", name, err))
		}
	}
	return cmd
}
