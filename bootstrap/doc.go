// Package bootstrap assembles the job board service and owns its lifecycle.
// It extracts the initialization logic from main.go into testable, composable components.
//
// Usage:
//
//	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
//	defer stop()
//
//	app, err := bootstrap.NewApp(ctx, bootstrap.Options{ConfigPath: path})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if _, err := app.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// Run ends the process through Options.Exit: 0 after a signal, 1 after a
// fault. A panic recovered while serving a request drains in-flight
// requests first; a panic in background work exits at once.
package bootstrap
