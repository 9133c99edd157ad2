package queuecmd

import (
	"github.com/spf13/cobra"
)

// NewRoot constructs the root `docq` command with the queue command group
// and the global configuration flags.
func NewRoot() *cobra.Command {
	root := &cobra.Command{
		Use:           "docq",
		Short:         "Message queues on a document store",
		Long:          "docq runs standard and bounded message queues on an embedded or MongoDB document store.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	addGlobalFlags(root)
	root.AddCommand(NewQueueCommand())
	return root
}
