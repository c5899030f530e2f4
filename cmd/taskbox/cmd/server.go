package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"github.com/jmcleod/taskbox/api"
	"github.com/jmcleod/taskbox/auth"
	"github.com/jmcleod/taskbox/store"
	bboltstore "github.com/jmcleod/taskbox/store/bbolt"
	pgstore "github.com/jmcleod/taskbox/store/postgres"
)

// secretEnv names the environment variable holding the token-signing
// secret. Rotating it invalidates every outstanding session.
const secretEnv = "TASKBOX_SECRET"

var (
	port        int
	dataDir     string
	databaseDSN string
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the task-tracking server",
	RunE: func(cmd *cobra.Command, args []string) error {
		secret := os.Getenv(secretEnv)
		if secret == "" {
			return fmt.Errorf("%s must be set", secretEnv)
		}

		logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))

		var (
			users store.Users
			todos store.Todos
		)
		if databaseDSN != "" {
			st, err := pgstore.NewStoreFromDSN(cmd.Context(), databaseDSN)
			if err != nil {
				return fmt.Errorf("failed to open postgres storage: %w", err)
			}
			defer st.Close()
			users, todos = st.Users(), st.Todos()
		} else {
			if err := os.MkdirAll(dataDir, 0o700); err != nil {
				return fmt.Errorf("failed to create data directory: %w", err)
			}
			st, err := bboltstore.NewStoreFromFile(dataDir+"/taskbox.db", nil)
			if err != nil {
				return fmt.Errorf("failed to open task storage: %w", err)
			}
			defer st.Close()
			users, todos = st.Users(), st.Todos()
		}

		sessions := auth.NewManager(users,
			auth.NewHasher(auth.DefaultHashParams()),
			auth.NewCodec([]byte(secret)))
		a := api.New(users, todos, sessions, api.WithLogger(logger))

		r := chi.NewRouter()
		r.Use(middleware.Logger)
		r.Use(middleware.Recoverer)
		r.Use(api.SecurityHeaders)

		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("OK"))
		})

		r.Mount("/", a.Router())

		server := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		}

		// Graceful shutdown on SIGINT/SIGTERM.
		done := make(chan error, 1)
		go func() {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				done <- fmt.Errorf("server failed: %w", err)
				return
			}
			done <- nil
		}()

		logger.Info("server started", "port", port)

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			logger.Info("shutting down", "signal", sig.String())
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := server.Shutdown(ctx); err != nil {
				return fmt.Errorf("server shutdown failed: %w", err)
			}
			return nil
		case err := <-done:
			return err
		}
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
	serverCmd.Flags().IntVarP(&port, "port", "p", 3000, "Port to listen on")
	serverCmd.Flags().StringVar(&dataDir, "data-dir", "./data", "Directory for persistent data (bbolt backend)")
	serverCmd.Flags().StringVar(&databaseDSN, "database-dsn", "", "PostgreSQL DSN; when set, replaces the bbolt backend")
}
