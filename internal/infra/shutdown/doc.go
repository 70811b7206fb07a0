// Package shutdown coordinates graceful process termination.
//
// Components register hooks with OnShutdown. Wait blocks until SIGINT,
// SIGTERM or the cancellation of its context, then runs the hooks in
// reverse registration order under a shared timeout:
//
//	h := shutdown.NewHandler(30 * time.Second)
//	h.OnShutdown("listener", srv.Shutdown)
//	err := h.Wait(ctx)
package shutdown
