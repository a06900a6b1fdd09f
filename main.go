package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/go-monolith/mono"

	"github.com/example/secure-room-chat/modules/audit"
	"github.com/example/secure-room-chat/modules/auth"
	"github.com/example/secure-room-chat/modules/chat"
	"github.com/example/secure-room-chat/modules/crypto"
	"github.com/example/secure-room-chat/modules/fanout"
	"github.com/example/secure-room-chat/modules/gateway"
	"github.com/example/secure-room-chat/modules/session"
)

const shutdownTimeout = 30 * time.Second

// appConfig aggregates per-module configuration from the environment.
type appConfig struct {
	Chat    chat.Config
	Auth    auth.Config
	Crypto  crypto.Config
	Fanout  fanout.Config
	Gateway gateway.Config
}

func main() {
	log.Println("=== Secure Room Chat - WebSocket Messaging Service ===")

	var cfg appConfig
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	app, err := mono.NewMonoApplication(
		mono.WithShutdownTimeout(shutdownTimeout),
		mono.WithLogLevel(mono.LogLevelInfo),
		mono.WithLogFormat(mono.LogFormatText),
	)
	if err != nil {
		log.Fatalf("Failed to create application: %v", err)
	}

	// The registry is process-wide state shared by every session; it is
	// built here and injected rather than reached through a singleton.
	registry := session.NewConnectionRegistry()

	cryptoModule := crypto.NewModule(cfg.Crypto)
	chatModule := chat.NewModule(cfg.Chat)
	fanoutModule := fanout.NewModule(cfg.Fanout)
	authModule := auth.NewModule(cfg.Auth, chatModule)
	auditModule := audit.NewModule()
	gatewayModule := gateway.NewModule(
		cfg.Gateway,
		authModule,
		chatModule,
		cryptoModule,
		fanoutModule,
		registry,
	)

	// Order: leaves first, driving adapter last. Crypto starts first so a
	// missing or unreachable key service aborts before anything listens.
	app.Register(cryptoModule)
	app.Register(chatModule)
	app.Register(fanoutModule)
	app.Register(authModule)
	app.Register(auditModule)
	app.Register(gatewayModule)

	if err := app.Start(context.Background()); err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}

	printStartupInfo(cfg)

	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		shutdownTimeout,
		map[string]gfshutdown.Operation{
			"mono-app": func(ctx context.Context) error {
				log.Println("Graceful shutdown initiated...")
				return app.Stop(ctx)
			},
		},
	)

	exitCode := <-wait
	log.Printf("Application exited with code: %d", exitCode)
	os.Exit(exitCode)
}

func printStartupInfo(cfg appConfig) {
	log.Println("")
	log.Println("Application started successfully!")
	log.Println("")
	log.Printf("WebSocket endpoint (ws://localhost:%s/ws):", cfg.Gateway.Port)
	log.Println("  Connect with: ws://localhost:" + cfg.Gateway.Port + "/ws?token=<jwt>")
	log.Println("  Command: {\"type\": \"create.message\", \"payload\": {\"message\": {...}}}")
	log.Println("")
	log.Printf("Health endpoint: http://localhost:%s/health", cfg.Gateway.Port)
	if cfg.Fanout.RedisURL != "" {
		log.Printf("Fanout: redis (%s)", cfg.Fanout.RedisURL)
	} else {
		log.Println("Fanout: local (single instance)")
	}
	log.Println("")
	log.Println("Press Ctrl+C to shutdown gracefully")
}
