// Package runtime wires configuration, logging and the index cache into one
// place and hands out tubs and tub groups configured from them. Commands use
// it instead of assembling those pieces themselves.
//
// Example:
//
//	cfg := config.Default()
//	rt, _ := runtime.Open(runtime.Options{Config: cfg})
//	defer rt.Close()
//	// Log a session
//	t, _ := rt.NewSessionTub(schema)
//	_, _ = tub.NewWriter(t).Run(frame, angle, throttle, "user")
//	// Train
//	g, _ := rt.BuildGroup(context.Background(), runtime.GroupOptions{})
//	train, val, _ := rt.TrainValSplit(context.Background(), g, nil)
package runtime
