package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/keywatch/keywatch/internal/config"
	"github.com/keywatch/keywatch/internal/database"
	"github.com/keywatch/keywatch/internal/engage"
	"github.com/keywatch/keywatch/internal/llm"
	"github.com/keywatch/keywatch/internal/platform"
	"github.com/keywatch/keywatch/internal/respond"
	"github.com/keywatch/keywatch/internal/scanner"
	"github.com/keywatch/keywatch/internal/scheduler"
	"github.com/keywatch/keywatch/internal/sentiment"
	"github.com/keywatch/keywatch/internal/server"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	cfg        *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "keywatch",
	Short:   "Keyword monitoring and engagement across social platforms",
	Long:    "keywatch scans social platforms for campaign keywords, scores matches, and posts AI-drafted replies.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			log.SetFlags(log.LstdFlags | log.Lshortfile)
		} else {
			log.SetFlags(log.LstdFlags)
		}

		// Tokens and API keys may live in a local .env
		_ = godotenv.Load()

		// Skip config loading for init and version
		if cmd.Name() == "init" || cmd.Name() == "version" {
			return nil
		}

		path, err := config.ResolveConfigPath(configPath)
		if err != nil {
			return err
		}
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(campaignCmd)
	rootCmd.AddCommand(accountCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(engageCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(serveCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("keywatch", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/keywatch/",
	RunE: func(cmd *cobra.Command, args []string) error {
		target := filepath.Join(config.ConfigDir(), "config.yaml")
		if _, err := os.Stat(target); err == nil {
			fmt.Printf("Config already exists: %s\n", target)
			return nil
		}

		if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}

		if err := os.WriteFile(target, config.DefaultConfigYAML, 0o644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Printf("Created config: %s\n", target)
		fmt.Println("Edit it to configure intervals, the LLM provider, and thresholds.")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show database and system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		stats, err := db.GetStats()
		if err != nil {
			return fmt.Errorf("getting stats: %w", err)
		}

		fmt.Println("Campaigns:")
		fmt.Printf("  Total: %d\n", stats.TotalCampaigns)
		fmt.Printf("  Active: %d\n", stats.ActiveCampaigns)
		fmt.Println("\nMatches:")
		fmt.Printf("  Total: %d\n", stats.TotalMatches)
		fmt.Printf("  Pending: %d\n", stats.PendingMatches)
		fmt.Printf("  Engaged: %d\n", stats.EngagedMatches)
		fmt.Println("\nEngagement:")
		fmt.Printf("  Replies posted: %d\n", stats.EngagementLogs)
		fmt.Printf("  Connected accounts: %d\n", stats.SocialAccounts)
		return nil
	},
}

// --- campaign command ---

var (
	campaignName        string
	campaignDescription string
	campaignKeywords    string
	campaignPlatforms   string
	campaignAutoEngage  bool
)

var campaignCmd = &cobra.Command{
	Use:   "campaign",
	Short: "Manage keyword campaigns",
}

var campaignAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Create a new campaign",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		platforms, err := parsePlatformList(campaignPlatforms)
		if err != nil {
			return err
		}

		c := &database.Campaign{
			UserID:              1,
			BusinessName:        campaignName,
			BusinessDescription: campaignDescription,
			Keywords:            splitList(campaignKeywords),
			Platforms:           platforms,
			IsActive:            true,
			AutoEngage:          campaignAutoEngage,
		}
		id, err := db.InsertCampaign(c)
		if err != nil {
			return err
		}
		fmt.Printf("Created campaign [%d]: %s\n", id, campaignName)
		return nil
	},
}

var campaignListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all campaigns",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		campaigns, err := db.GetAllCampaigns()
		if err != nil {
			return err
		}
		if len(campaigns) == 0 {
			fmt.Println("No campaigns. Create one with: keywatch campaign add")
			return nil
		}

		fmt.Println("Campaigns:")
		fmt.Println()
		for _, c := range campaigns {
			icon := " "
			if c.IsActive {
				icon = "*"
			}
			auto := ""
			if c.AutoEngage {
				auto = " [auto-engage]"
			}
			fmt.Printf("  [%d] %s %s%s\n", c.ID, icon, c.BusinessName, auto)
			fmt.Printf("        keywords: %s\n", strings.Join(c.Keywords, ", "))
			if c.LastScannedAt != nil {
				fmt.Printf("        last scanned: %s\n", c.LastScannedAt.Format("2006-01-02 15:04"))
			}
		}
		return nil
	},
}

var campaignActivateCmd = &cobra.Command{
	Use:   "activate [id]",
	Short: "Activate a campaign",
	Args:  cobra.ExactArgs(1),
	RunE:  setActiveCmd(true),
}

var campaignDeactivateCmd = &cobra.Command{
	Use:   "deactivate [id]",
	Short: "Deactivate a campaign",
	Args:  cobra.ExactArgs(1),
	RunE:  setActiveCmd(false),
}

func setActiveCmd(active bool) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		c, err := loadCampaignArg(db, args[0])
		if err != nil {
			return err
		}
		if err := db.SetCampaignActive(c.ID, active); err != nil {
			return err
		}
		state := "deactivated"
		if active {
			state = "activated"
		}
		fmt.Printf("Campaign [%d] %s: %s\n", c.ID, c.BusinessName, state)
		return nil
	}
}

var campaignRemoveCmd = &cobra.Command{
	Use:   "remove [id]",
	Short: "Remove a campaign and its matches",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		c, err := loadCampaignArg(db, args[0])
		if err != nil {
			return err
		}
		if err := db.DeleteCampaign(c.ID); err != nil {
			return err
		}
		fmt.Printf("Removed campaign [%d]: %s\n", c.ID, c.BusinessName)
		return nil
	},
}

func init() {
	campaignAddCmd.Flags().StringVar(&campaignName, "name", "", "Business name (required)")
	campaignAddCmd.Flags().StringVar(&campaignDescription, "description", "", "Business description")
	campaignAddCmd.Flags().StringVar(&campaignKeywords, "keywords", "", "Comma-separated keywords (required)")
	campaignAddCmd.Flags().StringVar(&campaignPlatforms, "platforms", "", "Comma-separated platforms (required)")
	campaignAddCmd.Flags().BoolVar(&campaignAutoEngage, "auto-engage", false, "Enable automatic engagement")

	campaignCmd.AddCommand(campaignAddCmd)
	campaignCmd.AddCommand(campaignListCmd)
	campaignCmd.AddCommand(campaignActivateCmd)
	campaignCmd.AddCommand(campaignDeactivateCmd)
	campaignCmd.AddCommand(campaignRemoveCmd)
}

// --- account command ---

var (
	accountName  string
	accountToken string
)

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Manage connected social accounts",
}

var accountConnectCmd = &cobra.Command{
	Use:   "connect [platform]",
	Short: "Connect a social account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		p, err := database.ParsePlatform(args[0])
		if err != nil {
			return err
		}
		token := accountToken
		if token == "" {
			token = os.Getenv(strings.ToUpper(string(p)) + "_ACCESS_TOKEN")
		}
		if token == "" {
			return fmt.Errorf("no access token; pass --token or set %s_ACCESS_TOKEN", strings.ToUpper(string(p)))
		}

		_, err = db.UpsertSocialAccount(&database.SocialAccount{
			UserID:      1,
			Platform:    p,
			AccountName: accountName,
			AccessToken: token,
			IsActive:    true,
		})
		if err != nil {
			return err
		}
		fmt.Printf("Connected %s account\n", p)
		return nil
	},
}

var accountListCmd = &cobra.Command{
	Use:   "list",
	Short: "List connected accounts",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		accounts, err := db.GetAccountsForUser(1)
		if err != nil {
			return err
		}
		if len(accounts) == 0 {
			fmt.Println("No accounts connected. Connect one with: keywatch account connect")
			return nil
		}

		fmt.Println("Connected accounts:")
		for _, a := range accounts {
			icon := " "
			if a.IsActive {
				icon = "*"
			}
			name := a.AccountName
			if name == "" {
				name = "(unnamed)"
			}
			fmt.Printf("  %s %s: %s\n", icon, a.Platform, name)
		}
		return nil
	},
}

func init() {
	accountConnectCmd.Flags().StringVar(&accountName, "name", "", "Account display name")
	accountConnectCmd.Flags().StringVar(&accountToken, "token", "", "Access token")

	accountCmd.AddCommand(accountConnectCmd)
	accountCmd.AddCommand(accountListCmd)
}

// --- scan command ---

var scanCmd = &cobra.Command{
	Use:   "scan [campaign-id]",
	Short: "Scan platforms for keyword matches",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		campaigns, err := resolveCampaigns(db, args)
		if err != nil {
			return err
		}

		sc := scanner.New(db, platform.DefaultRegistry(), cfg.Scan.MaxResults)
		ctx := context.Background()
		for i := range campaigns {
			c := &campaigns[i]
			fmt.Printf("Scanning campaign [%d] %s...\n", c.ID, c.BusinessName)
			r := sc.Scan(ctx, c)
			fmt.Printf("  Found: %d, new: %d, duplicates: %d\n", r.TotalFound, r.NewMatches, r.Duplicates)
			for p, err := range r.PlatformErrors {
				fmt.Printf("  %s failed: %v\n", p, err)
			}
		}
		return nil
	},
}

// --- engage command ---

var engageCmd = &cobra.Command{
	Use:   "engage [campaign-id]",
	Short: "Process pending matches and post replies",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		campaigns, err := resolveCampaigns(db, args)
		if err != nil {
			return err
		}

		en := buildEngager(db, platform.DefaultRegistry())
		ctx := context.Background()
		for i := range campaigns {
			c := &campaigns[i]
			fmt.Printf("Engaging campaign [%d] %s...\n", c.ID, c.BusinessName)
			r, err := en.ProcessCampaign(ctx, c)
			if err != nil {
				return err
			}
			fmt.Printf("  Processed: %d, engaged: %d, skipped: %d, failed: %d\n",
				r.Processed, r.Engaged, r.Skipped, r.Failed)
		}
		return nil
	},
}

// --- run command ---

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the scheduler and web server until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		registry := platform.DefaultRegistry()
		sc := scanner.New(db, registry, cfg.Scan.MaxResults)
		en := buildEngager(db, registry)
		sched := scheduler.New(db, sc, en,
			time.Duration(cfg.Scheduler.ScanIntervalMinutes)*time.Minute,
			time.Duration(cfg.Scheduler.EngageIntervalMinutes)*time.Minute)
		srv := server.New(db, sc, en)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		go func() {
			if err := srv.Serve(cfg.Server.Port); err != nil {
				log.Printf("http server: %v", err)
			}
		}()
		fmt.Printf("Running at http://localhost:%d (Ctrl+C to stop)\n", cfg.Server.Port)

		sched.Run(ctx)
		return nil
	},
}

// --- serve command ---

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server without the scheduler",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		registry := platform.DefaultRegistry()
		sc := scanner.New(db, registry, cfg.Scan.MaxResults)
		en := buildEngager(db, registry)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}
		fmt.Printf("Starting server at http://localhost:%d\n", port)
		fmt.Println("Press Ctrl+C to stop")
		return server.New(db, sc, en).Serve(port)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to run server on (overrides config)")
}

// --- helpers ---

func openDB() (*database.DB, error) {
	dataDir := cfg.GetDataDir()
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	dbPath := filepath.Join(dataDir, "keywatch.db")
	return database.Open(dbPath)
}

func buildEngager(db *database.DB, registry *platform.Registry) *engage.Engager {
	provider := llm.CreateProvider(cfg.LLM.Provider, cfg.LLM.Model, cfg.LLM.OllamaURL,
		cfg.LLM.OpenAIModel, cfg.LLM.APIKeyEnv)
	return engage.New(db, registry, sentiment.New(provider), respond.NewGenerator(provider), engage.Options{
		BatchSize:          cfg.Engagement.BatchSize,
		PostDelay:          time.Duration(cfg.Engagement.PostDelaySeconds) * time.Second,
		SentimentThreshold: cfg.Engagement.SentimentThreshold,
	})
}

// resolveCampaigns returns either the one campaign named by args or
// every active campaign.
func resolveCampaigns(db *database.DB, args []string) ([]database.Campaign, error) {
	if len(args) == 1 {
		c, err := loadCampaignArg(db, args[0])
		if err != nil {
			return nil, err
		}
		return []database.Campaign{*c}, nil
	}
	campaigns, err := db.GetActiveCampaigns()
	if err != nil {
		return nil, err
	}
	if len(campaigns) == 0 {
		return nil, fmt.Errorf("no active campaigns")
	}
	return campaigns, nil
}

func loadCampaignArg(db *database.DB, arg string) (*database.Campaign, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid campaign ID: %s", arg)
	}
	c, err := db.GetCampaign(id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, fmt.Errorf("campaign %d not found", id)
	}
	return c, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parsePlatformList(s string) ([]database.Platform, error) {
	var out []database.Platform
	for _, part := range splitList(s) {
		p, err := database.ParsePlatform(part)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}
