package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/docsentinel-backend/internal/app"
	"github.com/yungbote/docsentinel-backend/internal/pkg/logger"
	"github.com/yungbote/docsentinel-backend/internal/services"
)

func main() {
	mintFor := flag.String("mint-token", "", "print a bearer token for the given user id and exit")
	mintTTL := flag.Duration("token-ttl", 24*time.Hour, "lifetime of a minted token")
	flag.Parse()

	if *mintFor != "" {
		if err := mintToken(*mintFor, *mintTTL); err != nil {
			fmt.Fprintf(os.Stderr, "mint token: %v\n", err)
			os.Exit(1)
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to init app: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	if err := a.Run(ctx); err != nil {
		a.Log.Error("Server stopped with error", "error", err)
		a.Close()
		os.Exit(1)
	}
	a.Log.Info("Server stopped")
}

func mintToken(rawUserID string, ttl time.Duration) error {
	userID, err := uuid.Parse(rawUserID)
	if err != nil {
		return fmt.Errorf("user id: %w", err)
	}
	cfg, err := app.LoadConfig()
	if err != nil {
		return err
	}
	auth, err := services.NewAuthService(logger.NewNop(), cfg.JWTSecretKey, cfg.JWTIssuer)
	if err != nil {
		return err
	}
	token, err := auth.IssueToken(userID, ttl)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}
