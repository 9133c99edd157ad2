package queuecmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rzbill/docq/internal/adapter"
	"github.com/rzbill/docq/internal/message"
	"github.com/rzbill/docq/internal/runtime"
	"github.com/rzbill/docq/pkg/id"
)

// NewQueueCommand constructs the `queue` command group and subcommands.
func NewQueueCommand() *cobra.Command {
	queueCmd := &cobra.Command{
		Use:     "queue",
		Aliases: []string{"q"},
		Short:   "Queue operations",
		Long: `Queue operations on standard and bounded queues.

Message Lifecycle:
  send → unhandled → [receive claims] → handled → [delete] (standard only)
  Bounded queues never delete; old documents are evicted as new ones arrive.

Commands:
  create    Create a queue (--bounded for a capped queue)
  exists    Report whether a queue exists with the expected shape
  drop      Delete a queue and all its messages
  send      Send one message
  receive   Claim up to --max messages in one pass
  count     Count unhandled messages
  delete    Delete a received message by id (standard only)
  await     Follow a bounded queue and print messages as they arrive
  stats     Show store-level information about a queue`,
	}

	queueCmd.AddCommand(
		newCreateCommand(),
		newExistsCommand(),
		newDropCommand(),
		newSendCommand(),
		newReceiveCommand(),
		newCountCommand(),
		newDeleteCommand(),
		newAwaitCommand(),
		newStatsCommand(),
	)
	return queueCmd
}

func addQueueFlags(cmd *cobra.Command) {
	cmd.Flags().String("name", "", "Queue name")
	cmd.Flags().Bool("bounded", false, "Use the bounded (capped) queue adapter")
	_ = cmd.MarkFlagRequired("name")
}

// newCreateCommand constructs the `queue create` subcommand.
func newCreateCommand() *cobra.Command {
	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a queue",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withAdapter(cmd, func(ctx context.Context, a adapter.Adapter, q adapter.Queue) error {
				if v, _ := cmd.Flags().GetInt64("capacity-bytes"); v > 0 {
					q.Options.CapacityBytes = v
				}
				if v, _ := cmd.Flags().GetInt64("max-documents"); v > 0 {
					q.Options.MaxDocumentCount = v
				}
				created, err := a.CreateQueue(ctx, q)
				if err != nil {
					return err
				}
				status := "created"
				if !created {
					status = "exists"
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "status:", status)
				return nil
			})
		},
	}
	addQueueFlags(createCmd)
	createCmd.Flags().Int64("capacity-bytes", 0, "Bounded queue byte capacity (default from config)")
	createCmd.Flags().Int64("max-documents", 0, "Bounded queue document count (default from config)")
	return createCmd
}

// newExistsCommand constructs the `queue exists` subcommand.
func newExistsCommand() *cobra.Command {
	existsCmd := &cobra.Command{
		Use:   "exists",
		Short: "Report whether a queue exists",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withAdapter(cmd, func(ctx context.Context, a adapter.Adapter, q adapter.Queue) error {
				ok, err := a.QueueExists(ctx, q.Name)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "exists:", ok)
				return nil
			})
		},
	}
	addQueueFlags(existsCmd)
	return existsCmd
}

// newDropCommand constructs the `queue drop` subcommand.
func newDropCommand() *cobra.Command {
	dropCmd := &cobra.Command{
		Use:   "drop",
		Short: "Delete a queue and all its messages",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withAdapter(cmd, func(ctx context.Context, a adapter.Adapter, q adapter.Queue) error {
				dropped, err := a.DeleteQueue(ctx, q.Name)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "dropped:", dropped)
				return nil
			})
		},
	}
	addQueueFlags(dropCmd)
	return dropCmd
}

// newSendCommand constructs the `queue send` subcommand.
func newSendCommand() *cobra.Command {
	sendCmd := &cobra.Command{
		Use:   "send",
		Short: "Send a message",
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, _ := cmd.Flags().GetString("data")
			class, _ := cmd.Flags().GetString("class")
			metas, _ := cmd.Flags().GetStringArray("meta")

			m := message.New([]byte(data))
			if class != "" {
				m.Class = class
			}
			for _, kv := range metas {
				k, v, ok := strings.Cut(kv, "=")
				if !ok || k == "" {
					return fmt.Errorf("invalid --meta %q; use key=value", kv)
				}
				m.Metadata[k] = v
			}
			return withAdapter(cmd, func(ctx context.Context, a adapter.Adapter, q adapter.Queue) error {
				if err := a.Send(ctx, q, m); err != nil {
					return err
				}
				t, _ := m.Ticket(q.Options.MetadataKey)
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "id:", t.MessageID.String())
				return nil
			})
		},
	}
	addQueueFlags(sendCmd)
	sendCmd.Flags().String("data", "", "Message content")
	sendCmd.Flags().String("class", "", "Message class (default \""+message.DefaultClass+"\")")
	sendCmd.Flags().StringArray("meta", nil, "Metadata entry key=value (repeatable)")
	return sendCmd
}

// newReceiveCommand constructs the `queue receive` subcommand.
func newReceiveCommand() *cobra.Command {
	receiveCmd := &cobra.Command{
		Use:   "receive",
		Short: "Claim messages in one pass",
		RunE: func(cmd *cobra.Command, _ []string) error {
			maxCount, _ := cmd.Flags().GetInt("max")
			del, _ := cmd.Flags().GetBool("delete")
			bounded, _ := cmd.Flags().GetBool("bounded")
			if del && bounded {
				return errors.New("--delete is not supported on bounded queues")
			}
			params, err := receiveParams(cmd)
			if err != nil {
				return err
			}
			return withAdapter(cmd, func(ctx context.Context, a adapter.Adapter, q adapter.Queue) error {
				set, err := a.Receive(ctx, q, maxCount, params)
				if err != nil {
					return err
				}
				msgs, err := set.Messages()
				if err != nil {
					return err
				}
				for _, m := range msgs {
					if err := printMessage(cmd.OutOrStdout(), q, m); err != nil {
						return err
					}
					if del {
						if _, err := a.(*adapter.Standard).DeleteMessage(ctx, q, m); err != nil {
							return err
						}
					}
				}
				return nil
			})
		},
	}
	addQueueFlags(receiveCmd)
	addReceiveFlags(receiveCmd)
	receiveCmd.Flags().Int("max", 1, "Maximum number of messages to claim")
	receiveCmd.Flags().Bool("delete", false, "Delete each message after printing it (standard only)")
	return receiveCmd
}

func addReceiveFlags(cmd *cobra.Command) {
	cmd.Flags().String("class", "", "Only claim messages of this class")
	cmd.Flags().String("selector", "", "CEL expression over class, size, text, json and metadata")
}

func receiveParams(cmd *cobra.Command) (adapter.ReceiveParams, error) {
	class, _ := cmd.Flags().GetString("class")
	expr, _ := cmd.Flags().GetString("selector")
	sel, err := adapter.CompileSelector(expr)
	if err != nil {
		return adapter.ReceiveParams{}, err
	}
	return adapter.ReceiveParams{ClassFilter: class, Selector: sel}, nil
}

// newCountCommand constructs the `queue count` subcommand.
func newCountCommand() *cobra.Command {
	countCmd := &cobra.Command{
		Use:   "count",
		Short: "Count unhandled messages",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withAdapter(cmd, func(ctx context.Context, a adapter.Adapter, q adapter.Queue) error {
				n, err := a.Count(ctx, q)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "count:", n)
				return nil
			})
		},
	}
	addQueueFlags(countCmd)
	return countCmd
}

// newDeleteCommand constructs the `queue delete` subcommand.
func newDeleteCommand() *cobra.Command {
	deleteCmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete a message by id (standard queues only)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			name, _ := cmd.Flags().GetString("name")
			rawID, _ := cmd.Flags().GetString("id")
			unhandled, _ := cmd.Flags().GetBool("unhandled")
			msgID, err := id.Parse(rawID)
			if err != nil {
				return fmt.Errorf("invalid --id: %w", err)
			}
			return withRuntime(cmd, func(ctx context.Context, rt *runtime.Runtime) error {
				std, err := rt.Standard()
				if err != nil {
					return err
				}
				q := rt.Queue(name)
				m := &message.Message{Metadata: message.Metadata{}}
				m.Embed(q.Options.MetadataKey, message.Ticket{Handled: !unhandled, MessageID: msgID, Queue: name})
				deleted, err := std.DeleteMessage(ctx, q, m)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "deleted:", deleted)
				return nil
			})
		},
	}
	deleteCmd.Flags().String("name", "", "Queue name")
	deleteCmd.Flags().String("id", "", "Message id as printed by send or receive")
	deleteCmd.Flags().Bool("unhandled", false, "Delete a message that was never received")
	_ = deleteCmd.MarkFlagRequired("name")
	_ = deleteCmd.MarkFlagRequired("id")
	return deleteCmd
}

// newAwaitCommand constructs the `queue await` subcommand.
func newAwaitCommand() *cobra.Command {
	awaitCmd := &cobra.Command{
		Use:   "await",
		Short: "Follow a bounded queue",
		RunE: func(cmd *cobra.Command, _ []string) error {
			name, _ := cmd.Flags().GetString("name")
			limit, _ := cmd.Flags().GetInt("limit")
			metricsAddr, _ := cmd.Flags().GetString("metrics-addr")
			params, err := receiveParams(cmd)
			if err != nil {
				return err
			}
			return withRuntime(cmd, func(ctx context.Context, rt *runtime.Runtime) error {
				b, err := rt.Bounded()
				if err != nil {
					return err
				}
				ctx, cancel := context.WithCancel(ctx)
				defer cancel()
				if metricsAddr != "" {
					go func() { _ = rt.Metrics().Serve(ctx, metricsAddr, rt.Logger()) }()
				}

				q := rt.Queue(name)
				seen := 0
				for set, err := range b.Await(ctx, q, params) {
					if err != nil {
						if errors.Is(err, context.Canceled) {
							return nil
						}
						return err
					}
					msgs, err := set.Messages()
					if err != nil {
						return err
					}
					for _, m := range msgs {
						if err := printMessage(cmd.OutOrStdout(), q, m); err != nil {
							return err
						}
						seen++
						if limit > 0 && seen >= limit {
							return nil
						}
					}
				}
				return nil
			})
		},
	}
	awaitCmd.Flags().String("name", "", "Queue name")
	awaitCmd.Flags().Int("limit", 0, "Stop after this many messages (0 = until interrupted)")
	awaitCmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics on this address while awaiting")
	addReceiveFlags(awaitCmd)
	_ = awaitCmd.MarkFlagRequired("name")
	return awaitCmd
}

// newStatsCommand constructs the `queue stats` subcommand.
func newStatsCommand() *cobra.Command {
	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show queue statistics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			name, _ := cmd.Flags().GetString("name")
			bounded, _ := cmd.Flags().GetBool("bounded")
			return withRuntime(cmd, func(ctx context.Context, rt *runtime.Runtime) error {
				store := rt.Store()
				if store == nil {
					return errors.New("store closed")
				}
				info, err := store.Inspect(ctx, name)
				if err != nil {
					return err
				}
				a, err := rt.Adapter(bounded)
				if err != nil {
					return err
				}
				out := map[string]any{
					"name":      info.Name,
					"exists":    info.Exists,
					"capped":    info.Capped,
					"documents": info.Count,
					"valid":     info.Valid,
				}
				if info.Capped {
					out["sizeBytes"] = info.SizeBytes
					out["maxDocuments"] = info.MaxDocuments
				}
				if info.Exists {
					pending, err := a.Count(ctx, rt.Queue(name))
					if err != nil {
						return err
					}
					out["unhandled"] = pending
				}
				return writeJSON(cmd.OutOrStdout(), out)
			})
		},
	}
	addQueueFlags(statsCmd)
	return statsCmd
}
