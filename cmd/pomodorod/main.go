package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"pomodoro/daemon/internal/config"
	"pomodoro/daemon/internal/db"
	"pomodoro/daemon/internal/handler"
	"pomodoro/daemon/internal/lease"
	"pomodoro/daemon/internal/notify"
	"pomodoro/daemon/internal/repository"
	"pomodoro/daemon/internal/router"
	"pomodoro/daemon/internal/service"
	"pomodoro/daemon/internal/snapshot"
	"pomodoro/daemon/internal/timer"
)

func main() {
	cfg := config.Load()

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer database.Close()

	if err := db.Migrate(database); err != nil {
		log.Fatalf("run migrations: %v", err)
	}

	var grantor lease.Grantor = lease.NewLogindGrantor("pomodorod", "timer phase running")
	if !lease.LogindAvailable() {
		log.Println("no system bus, running without sleep inhibition")
		grantor = lease.NoopGrantor{}
	}

	pub := snapshot.NewPublisher(cfg.SnapshotPath, nil, cfg.RefreshDeltaSeconds)
	core := timer.New(timer.Options{
		Phases:   config.LoadCycle(cfg.CyclePath),
		Lease:    lease.NewManager(grantor, cfg.LeaseSettle, cfg.LeaseConfirm),
		Pub:      pub,
		Alerts:   notify.NewDesktop("Pomodoro"),
		States:   repository.NewStateRepository(database),
		Sessions: repository.NewSessionRepository(database),
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go core.Run(ctx)

	userRepo := repository.NewUserRepository(database)
	authService := service.NewAuthService(userRepo, cfg.JWTSecret, cfg.TokenTTL)
	authHandler := handler.NewAuthHandler(authService)
	timerHandler := handler.NewTimerHandler(core, pub, cfg.SnapshotPath)

	engine := router.New(authService, authHandler, timerHandler, cfg.CORSOrigins)
	server := &http.Server{Addr: ":" + cfg.Port, Handler: engine}

	go func() {
		log.Printf("pomodorod listening on :%s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("run server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("server shutdown: %v", err)
	}

	// The coordinator pauses and persists any active run on the way out;
	// exiting before that finishes would lose the remaining time.
	<-core.Done()
}
