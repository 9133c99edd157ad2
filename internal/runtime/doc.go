// Package runtime wires configuration, the document store, metrics and the
// queue adapters into a single docq instance.
//
// Example:
//
//	cfg := config.Default()
//	rt, err := runtime.Open(ctx, runtime.Options{Config: cfg})
//	if err != nil {
//	    return err
//	}
//	defer rt.Close(ctx)
//	std, _ := rt.Standard()
//	q := rt.Queue("jobs")
//	_, _ = std.CreateQueue(ctx, q)
//	_ = std.Send(ctx, q, message.New([]byte("hello")))
package runtime
