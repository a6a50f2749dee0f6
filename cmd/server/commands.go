package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kumamontessori/kuma/app"
	"github.com/kumamontessori/kuma/internal/db"
	"github.com/kumamontessori/kuma/internal/db/migrations"
	"github.com/kumamontessori/kuma/internal/services"
	"github.com/kumamontessori/kuma/server"
)

const commandTimeout = 2 * time.Minute

func init() {
	// Serve
	var serveMigrate bool
	var serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server and the background jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(serveMigrate)
		},
	}
	serveCmd.Flags().BoolVar(&serveMigrate, "migrate", false, "Apply pending migrations before serving")
	rootCmd.AddCommand(serveCmd)

	// Migrate
	var migrateCmd = &cobra.Command{
		Use:   "migrate [up|down|status]",
		Short: "Database migration management",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			action := "up"
			if len(args) > 0 {
				action = args[0]
			}
			return withBase(cmd.Context(), func(ctx context.Context, base *app.Base) error {
				sqlDB := db.OpenStdlib(base.DB)
				defer sqlDB.Close()

				switch action {
				case "up":
					return migrations.Up(sqlDB)
				case "down":
					return migrations.Down(sqlDB)
				case "status":
					return migrations.Status(sqlDB)
				default:
					return fmt.Errorf("unknown migrate action %q", action)
				}
			})
		},
	}
	rootCmd.AddCommand(migrateCmd)

	// Admin
	var adminName, adminEmail, adminPassword string
	var adminCmd = &cobra.Command{
		Use:   "admin",
		Short: "Admin user management",
	}
	var adminCreateCmd = &cobra.Command{
		Use:   "create",
		Short: "Create an admin user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBase(cmd.Context(), func(ctx context.Context, base *app.Base) error {
				auth := services.NewAuthService(db.NewUserStore(base.DB), base.Logger)
				user, err := auth.CreateAdmin(ctx, adminName, adminEmail, adminPassword)
				if err != nil {
					if message, ok := services.UserMessage(err); ok {
						return errors.New(message)
					}
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Admin %s created (%s)\n", user.Email, user.ID)
				return nil
			})
		},
	}
	adminCreateCmd.Flags().StringVar(&adminName, "name", "", "Display name")
	adminCreateCmd.Flags().StringVar(&adminEmail, "email", "", "Login email")
	adminCreateCmd.Flags().StringVar(&adminPassword, "password", "", "Password, at least 8 characters")
	_ = adminCreateCmd.MarkFlagRequired("email")
	_ = adminCreateCmd.MarkFlagRequired("password")
	adminCmd.AddCommand(adminCreateCmd)
	rootCmd.AddCommand(adminCmd)

	// Seed
	var seedCmd = &cobra.Command{
		Use:   "seed",
		Short: "Load the bundled catalog, refreshing rows that already exist",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBase(cmd.Context(), func(ctx context.Context, base *app.Base) error {
				catalogService := services.NewCatalogService(db.NewCategoryStore(base.DB), db.NewProductStore(base.DB), nil, base.Logger)
				result, err := catalogService.SeedDefaultCatalog(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d categories and %d products\n", result.Categories, result.Products)
				return nil
			})
		},
	}
	rootCmd.AddCommand(seedCmd)
}

// withBase runs fn with configuration, logging and the database, for the
// one-shot commands.
func withBase(parent context.Context, fn func(ctx context.Context, base *app.Base) error) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithTimeout(parent, commandTimeout)
	defer cancel()

	base, err := app.NewBase(ctx)
	if err != nil {
		return err
	}
	defer base.Close()
	return fn(ctx, base)
}

func runServe(migrate bool) error {
	application, err := app.New()
	if err != nil {
		return fmt.Errorf("failed to initialize app: %w", err)
	}
	defer application.Close()

	if migrate {
		sqlDB := db.OpenStdlib(application.DB)
		err := migrations.Up(sqlDB)
		_ = sqlDB.Close()
		if err != nil {
			return fmt.Errorf("failed to apply migrations: %w", err)
		}
	}

	srv, err := server.New(application.Config, application.Logger, application.Handlers, server.Options{
		Metrics:   application.Metrics,
		UploadDir: application.UploadDir,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize server: %w", err)
	}
	application.Start()

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.Run()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serverErr:
		if err != nil {
			application.Logger.Error("server failed", "error", err)
		}
		return err
	case <-quit:
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Close(ctx); err != nil {
		application.Logger.Error("server forced to shutdown", "error", err)
		return err
	}
	return nil
}
