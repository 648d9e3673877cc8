package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"arborplan/internal/config"
	"arborplan/internal/db"
	"arborplan/internal/domain"
	"arborplan/internal/engine"
	"arborplan/internal/migrate"
	"arborplan/internal/planner"
	"arborplan/internal/repo"
	"arborplan/internal/seed"
	"arborplan/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "arbor",
	Short: "ArborPlan CLI",
	Long: `ArborPlan turns service leads into executable plans: a priced quote, a
scheduled job, a subcontractor assignment, and a customer notification.
Plans come from an external completion model, validated against a strict
schema, repaired or replaced by deterministic heuristics, and reconciled
against pricing and availability guardrails before anything is committed.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("ARBORPLAN")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func registerCommands() {
	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(seedCmd())
	rootCmd.AddCommand(leadCmd())
	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(timelineCmd())
	rootCmd.AddCommand(demoCmd())
	rootCmd.AddCommand(serveCmd())
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write default arborplan.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			path := config.Path(workspace)
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			fmt.Println("wrote", path)
			return nil
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			fmt.Println("migrated", db.Path(workspace))
			return nil
		},
	}
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Populate demo data",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				if err := seed.Populate(ctx, r, time.Now); err != nil {
					return err
				}
				fmt.Println("seeded")
				return nil
			})
		},
	}
}

func leadCmd() *cobra.Command {
	lead := &cobra.Command{Use: "lead", Short: "Manage leads"}
	lead.AddCommand(leadListCmd())
	lead.AddCommand(leadCreateCmd())
	lead.AddCommand(leadShowCmd())
	return lead
}

func leadListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List leads",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				leads, err := r.ListLeads(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(leads)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Service", "Urgency", "Status"})
				for _, l := range leads {
					tw.AppendRow(table.Row{l.ID, l.FullName, l.ServiceRequested, l.UrgencyHint, l.Status})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func leadCreateCmd() *cobra.Command {
	var l domain.Lead
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create lead",
		RunE: func(cmd *cobra.Command, args []string) error {
			if l.FullName == "" || l.AddressLine1 == "" || l.City == "" || l.State == "" || l.PostalCode == "" || l.ServiceRequested == "" {
				return fmt.Errorf("--name, --address, --city, --state, --postal-code and --service are required")
			}
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				ts := time.Now().UTC().Format(time.RFC3339)
				l.ID = uuid.New().String()
				l.Status = domain.LeadNew
				l.CreatedAt = ts
				l.UpdatedAt = ts
				if err := r.InsertLead(ctx, l); err != nil {
					return err
				}
				return printJSON(l)
			})
		},
	}
	cmd.Flags().StringVar(&l.FullName, "name", "", "full name")
	cmd.Flags().StringVar(&l.Email, "email", "", "email")
	cmd.Flags().StringVar(&l.Phone, "phone", "", "phone")
	cmd.Flags().StringVar(&l.AddressLine1, "address", "", "address line 1")
	cmd.Flags().StringVar(&l.AddressLine2, "address2", "", "address line 2")
	cmd.Flags().StringVar(&l.City, "city", "", "city")
	cmd.Flags().StringVar(&l.State, "state", "", "state")
	cmd.Flags().StringVar(&l.PostalCode, "postal-code", "", "postal code")
	cmd.Flags().StringVar(&l.ServiceRequested, "service", "", "service requested")
	cmd.Flags().StringVar(&l.Notes, "notes", "", "notes")
	cmd.Flags().StringVar(&l.UrgencyHint, "urgency", "", "urgency hint")
	return cmd
}

func leadShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <lead-id>",
		Short: "Show lead",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				lead, err := r.GetLead(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(lead)
			})
		},
	}
}

func runCmd() *cobra.Command {
	var planOnly bool
	cmd := &cobra.Command{
		Use:   "run <lead-id>",
		Short: "Run the plan pipeline for a lead",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				mode := engine.ModeExecute
				if planOnly {
					mode = engine.ModePlanOnly
				}
				outcome, err := e.RunPlan(ctx, args[0], mode)
				if err != nil {
					return err
				}
				return printJSON(outcome)
			})
		},
	}
	cmd.Flags().BoolVar(&planOnly, "plan-only", false, "stop after producing a validated plan")
	return cmd
}

func timelineCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "timeline <lead-id>",
		Short: "Show the merged audit timeline for a lead",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				entries, err := r.Timeline(ctx, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(entries)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Time", "Type", "Action", "Status", "Error"})
				for _, entry := range entries {
					tw.AppendRow(table.Row{entry.CreatedAt, entry.Type, entry.ActionType, entry.Status, entry.ErrorMessage})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func demoCmd() *cobra.Command {
	demo := &cobra.Command{Use: "demo", Short: "Manage demo data"}
	demo.AddCommand(&cobra.Command{
		Use:   "reset",
		Short: "Delete all pipeline and reference data",
		RunE: func(cmd *cobra.Command, args []string) error {
			if viper.GetString("env") == "production" {
				return fmt.Errorf("demo reset is disabled in production")
			}
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				if err := r.ResetDemoData(ctx); err != nil {
					return err
				}
				fmt.Println("reset")
				return nil
			})
		},
	})
	return demo
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			cfg, err := config.LoadOptional(workspace)
			if err != nil {
				return err
			}
			if addr == "" {
				addr = cfg.Server.Addr
			}
			authCfg := server.AuthConfig{JWTSecret: os.Getenv("ARBORPLAN_JWT_SECRET")}
			if authCfg.JWTSecret == "" {
				return fmt.Errorf("ARBORPLAN_JWT_SECRET is required for bearer auth")
			}
			e := engine.New(conn, cfg, newGenerator(cfg))
			handler, err := server.New(server.Config{
				Engine:   e,
				BasePath: basePath,
				Auth:     authCfg,
				Env:      viper.GetString("env"),
			})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			fmt.Printf("Serving ArborPlan API on http://%s%s\n", addr, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (defaults to config)")
	cmd.Flags().StringVar(&basePath, "base-path", "/api/v1", "API base path")
	return cmd
}

// --- helpers ---

func newGenerator(cfg *config.Config) *planner.Client {
	return planner.NewClient(planner.ClientConfig{
		BaseURL:        cfg.Completion.BaseURL,
		APIKey:         os.Getenv("ARBORPLAN_OPENAI_API_KEY"),
		Model:          cfg.Completion.Model,
		ConnectTimeout: cfg.ConnectTimeout(),
		ReadTimeout:    cfg.ReadTimeout(),
		Timezone:       cfg.Scheduling.Timezone,
	})
}

func withEngine(ctx context.Context, fn func(context.Context, *engine.Engine) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	cfg, err := config.LoadOptional(workspace)
	if err != nil {
		return err
	}
	e := engine.New(conn, cfg, newGenerator(cfg))
	return fn(ctx, e)
}

func withRepo(ctx context.Context, fn func(context.Context, repo.Repo) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	return fn(ctx, repo.Repo{DB: conn})
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
