// Package queuecmd provides the `docq queue` command group.
//
// Every command opens the configured store directly, runs one adapter
// operation and closes the store again. Configuration is read from an
// optional file (--config, JSON or YAML), an optional .env file
// (--env-file), DOCQ_* environment variables and finally the flags below,
// in that order.
//
// Usage
//
//	docq queue create --name jobs
//	docq queue create --name events --bounded --max-documents 500
//
//	docq queue send --name jobs --data '{"id":1}' --class job --meta tenant=acme
//	docq queue receive --name jobs --max 10 --delete
//	docq queue receive --name jobs --selector 'size > 100'
//	docq queue count --name jobs
//
//	# Delete a received message by id (standard queues only)
//	docq queue delete --name jobs --id 0000019234ab...
//
//	# Follow a bounded queue, exposing metrics while it runs
//	docq queue await --name events --class audit --metrics-addr :9102
//
//	docq queue stats --name events --bounded
//	docq queue drop --name jobs
//
// Notes
//
//   - --bounded selects the capped adapter; the flag must match how the
//     queue was created or the command fails with a structural mismatch.
//   - await keeps running until interrupted or --limit messages arrived.
package queuecmd
