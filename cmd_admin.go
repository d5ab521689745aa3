package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"partsmarket/database"
	"partsmarket/internal/domain/audit"
	"partsmarket/internal/domain/outbox"
	"partsmarket/internal/service/relay"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update database tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp()
			if err != nil {
				return err
			}
			defer a.close()

			if err := database.Migrate(a.db); err != nil {
				return err
			}
			fmt.Println("Database migrated")
			return nil
		},
	}
}

func outboxCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "outbox",
		Short: "Inspect and drive the outbound message queue",
	}
	cmd.AddCommand(outboxRunCmd(), outboxDeadCmd(), outboxRequeueCmd())
	return cmd
}

func outboxRunCmd() *cobra.Command {
	var once bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Dispatch due messages",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := buildApp()
			if err != nil {
				return err
			}
			defer a.close()

			return runOutbox(ctx, a.dispatcher, once, os.Stdout)
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "process one batch and exit")
	return cmd
}

// runOutbox polls until ctx is cancelled, or processes a single batch when
// once is set. Cancellation is a clean stop.
func runOutbox(ctx context.Context, d *relay.Dispatcher, once bool, out io.Writer) error {
	if !once {
		if err := d.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	}
	n, err := d.RunOnce(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Dispatched %d message(s)\n", n)
	return nil
}

func outboxDeadCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "dead",
		Short: "List dead-lettered messages",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp()
			if err != nil {
				return err
			}
			defer a.close()

			msgs, err := relay.List(a.db, outbox.StatusDead, limit)
			if err != nil {
				return err
			}
			if len(msgs) == 0 {
				fmt.Println("No dead messages")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tKIND\tDEDUP KEY\tATTEMPTS\tUPDATED\tLAST ERROR")
			for _, m := range msgs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
					m.ID, m.Kind, m.DedupKey, m.Attempts, m.UpdatedAt.Format(time.RFC3339), truncate(m.LastError, 60))
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "maximum rows")
	return cmd
}

func outboxRequeueCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "requeue [id]",
		Short: "Move a dead message back to pending",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid message id: %w", err)
			}
			a, err := buildApp()
			if err != nil {
				return err
			}
			defer a.close()

			if err := relay.Requeue(a.db, id); err != nil {
				return err
			}
			if err := audit.Record(a.db, "outbox.requeued", "outbox_message", id.String(), "cli", map[string]any{}); err != nil {
				a.log.Error("audit outbox.requeued failed", "id", id, "error", err)
			}
			fmt.Printf("Requeued %s\n", id)
			return nil
		},
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
