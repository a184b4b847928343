package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"mueck/internal/adapter/repo"
	"mueck/internal/domain"
	"mueck/internal/pipeline"
)

func newEventsCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Inspect and release inbound events",
	}

	var limit int
	var heldOnly bool
	pending := &cobra.Command{
		Use:   "pending",
		Short: "List unprocessed events, held ones included",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()
			runner, closeFn, err := opts.connect(ctx, "events")
			if err != nil {
				return err
			}
			defer closeFn()

			events := repo.NewEventRepository(runner)
			var rows []domain.InboundEvent
			if !heldOnly {
				active, err := events.ListUnprocessed(ctx, limit)
				if err != nil {
					return fmt.Errorf("list unprocessed events: %w", err)
				}
				rows = append(rows, active...)
			}
			held, err := events.ListHeld(ctx, limit)
			if err != nil {
				return fmt.Errorf("list held events: %w", err)
			}
			rows = append(rows, held...)
			printEvents(cmd.OutOrStdout(), rows)
			return nil
		},
	}
	pending.Flags().IntVar(&limit, "limit", 50, "Maximum events per group")
	pending.Flags().BoolVar(&heldOnly, "held", false, "Only list held events")

	var abandon bool
	release := &cobra.Command{
		Use:   "release <event-id>",
		Short: "Clear the hold on an event so the worker picks it up again",
		Long: "Clear the hold on an event so the worker picks it up again.\n\n" +
			"An event held because its submission outcome is unknown keeps being held until the\n" +
			"submission is abandoned. Check the vendor first: --abandon-submission makes the next\n" +
			"pass submit a new job.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid event id %q", args[0])
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()
			runner, closeFn, err := opts.connect(ctx, "events")
			if err != nil {
				return err
			}
			defer closeFn()
			if err := pipeline.ReleaseEvent(ctx, repo.NewEventRepository(runner), id, abandon); err != nil {
				return err
			}
			if abandon {
				fmt.Fprintf(cmd.OutOrStdout(), "event %d released, submission abandoned\n", id)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "event %d released\n", id)
			return nil
		},
	}
	release.Flags().BoolVar(&abandon, "abandon-submission", false, "Drop the in-flight submission record (only while no job is recorded)")

	cmd.AddCommand(pending, release)
	return cmd
}

func printEvents(out io.Writer, events []domain.InboundEvent) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCHANNEL\tTS\tJOB\tCREATED\tHELD")
	for _, ev := range events {
		job := "-"
		if ev.JobRef != nil {
			job = strconv.FormatInt(*ev.JobRef, 10)
		}
		held := "-"
		if ev.HeldAt != nil {
			held = ev.HoldReason
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n", ev.ID, ev.Channel, ev.RequestTS, job, ev.Created.Format(time.RFC3339), held)
	}
	_ = tw.Flush()
}
