package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"partsmarket/database"
	routes "partsmarket/internal/app/http"
	"partsmarket/internal/app/http/middleware"
)

func serveCmd() *cobra.Command {
	var (
		migrate  bool
		noOutbox bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API and the outbox dispatcher",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := buildApp()
			if err != nil {
				return err
			}
			defer a.close()

			if migrate {
				if err := database.Migrate(a.db); err != nil {
					return err
				}
				a.log.Info("database migrated")
			}

			if a.cfg.AppEnv == "production" {
				gin.SetMode(gin.ReleaseMode)
			}
			r := gin.New()
			r.Use(gin.Recovery(), requestLogger(a))
			r.Use(cors.New(cors.Config{
				AllowOrigins:     []string{a.cfg.CORSOrigin},
				AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
				AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
				ExposeHeaders:    []string{"Content-Length"},
				AllowCredentials: true,
				MaxAge:           12 * time.Hour,
			}))

			routes.RegisterRoutes(r, routes.Deps{
				DB:               a.db,
				Log:              a.log,
				Auth:             middleware.NewAuthenticator(ctx, a.cfg),
				Initializer:      a.initializer(),
				Verifier:         a.verifier(),
				Settler:          a.settler,
				Sender:           a.sender,
				PaystackSecret:   a.cfg.PaystackSecret,
				StripeWebhookKey: a.cfg.StripeWebhookKey,
			})

			var wg sync.WaitGroup
			if !noOutbox {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_ = a.dispatcher.Run(ctx)
				}()
			}

			srv := &http.Server{
				Addr:              ":" + a.cfg.Port,
				Handler:           r,
				ReadHeaderTimeout: 10 * time.Second,
			}
			errCh := make(chan error, 1)
			go func() {
				a.log.Info("http server listening", "addr", srv.Addr, "provider", a.gateway.Name())
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				stop()
				wg.Wait()
				return err
			case <-ctx.Done():
			}

			a.log.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			err = srv.Shutdown(shutdownCtx)
			wg.Wait()
			return err
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", false, "run database migrations before serving")
	cmd.Flags().BoolVar(&noOutbox, "no-outbox", false, "do not run the outbox dispatcher in this process")
	return cmd
}

func requestLogger(a *app) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		a.log.Info("request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
		)
	}
}
