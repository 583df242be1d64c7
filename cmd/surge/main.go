package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"surge"
	"surge/internal/check"
	"surge/internal/config"
	"surge/internal/engine"
	"surge/internal/session"
)

const (
	ExitSuccess = 0
	ExitError   = 2
)

func main() {
	configPath := flag.String("config", "", "path to YAML run config (required)")
	users := flag.Int("users", 0, "override configured user count")
	flag.Parse()

	if *configPath == "" {
		fmt.Fprintln(os.Stderr, "error: --config is required")
		flag.Usage()
		os.Exit(ExitError)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(ExitError)
	}
	if *users > 0 {
		cfg.Users = *users
	}

	log, err := surge.NewLogger(os.Stderr, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(ExitError)
	}

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\nReceived interrupt signal, shutting down...")
		cancel()
	}()

	if _, err := surge.Run(ctx, cfg, sampleScenario(cfg.Scenario), log); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(ExitError)
	}
	os.Exit(ExitSuccess)
}

// sampleScenario exercises the full control-flow surface with simulated
// work: a login group with payload extraction, a flaky step under bounded
// retry, and a paced browse loop.
func sampleScenario(name string) engine.Scenario {
	loginPayload := []byte(`{"auth": {"token": "tok-1234", "expires": 3600}}`)

	return engine.Scenario{
		Name: name,
		Actions: []engine.Action{
			engine.Group("login",
				engine.Exec("authenticate", func(_ context.Context, s session.Session) (session.Session, error) {
					return check.Save(s, loginPayload, map[string]string{
						"token": "$.auth.token",
					})
				}),
			),
			engine.TryMax("checkout", 3,
				engine.Exec("submit", func(_ context.Context, s session.Session) (session.Session, error) {
					if rand.Intn(4) == 0 {
						return s, fmt.Errorf("simulated transient failure")
					}
					return s, nil
				}),
			),
			engine.Loop("pages", 3,
				engine.Exec("browse", func(_ context.Context, s session.Session) (session.Session, error) {
					if _, err := session.Attribute[string](s, "token"); err != nil {
						return s, err
					}
					return s, nil
				}),
				engine.Pause(100*time.Millisecond),
			),
		},
	}
}
