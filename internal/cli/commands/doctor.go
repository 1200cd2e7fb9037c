package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/askdb/internal/cache"
	"github.com/leapstack-labs/askdb/internal/cli/config"
	"github.com/leapstack-labs/askdb/internal/cli/output"
	"github.com/leapstack-labs/askdb/internal/history"
	"github.com/leapstack-labs/askdb/internal/registry"
)

// DoctorOptions holds options for the doctor command.
type DoctorOptions struct {
	Format string // Output format: text, json
}

// NewDoctorCommand creates the doctor command.
func NewDoctorCommand() *cobra.Command {
	opts := &DoctorOptions{}
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Run a comprehensive environment health check",
		Long: `Check everything askdb needs to answer questions:

- Configuration (config file, database settings, LLM settings)
- Database connectivity
- Schema snapshot cache
- Question history store

Each check reports pass, warn, or error, with a health score and
actionable recommendations at the end.

Output adapts to environment:
  - Terminal: Styled output with colors
  - Piped/Scripted: Markdown format
  - JSON: Machine-readable format`,
		Example: `  # Run health check
  askdb doctor

  # Output as JSON
  askdb doctor --format json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDoctor(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Format, "format", "f", "", "Output format: text, json")

	return cmd
}

// DoctorOutput is the JSON output for the doctor command.
type DoctorOutput struct {
	Summary         DoctorSummary `json:"summary"`
	HealthChecks    []HealthCheck `json:"health_checks"`
	Score           int           `json:"score"`
	Recommendations []string      `json:"recommendations"`
	IssueCount      int           `json:"issue_count"`
}

// DoctorSummary describes the environment under check.
type DoctorSummary struct {
	ConfigFile  string `json:"config_file,omitempty"`
	Dialect     string `json:"dialect,omitempty"`
	Model       string `json:"model,omitempty"`
	CacheDir    string `json:"cache_dir,omitempty"`
	HistoryPath string `json:"history_path,omitempty"`
	Tables      int    `json:"tables"`
}

// HealthCheck represents a single health check result.
type HealthCheck struct {
	Name   string `json:"name"`
	Group  string `json:"group"`
	Status string `json:"status"` // "pass", "warn", "error"
	Detail string `json:"detail,omitempty"`
}

func runDoctor(cmd *cobra.Command, opts *DoctorOptions) error {
	cmdCtx := NewCommandContextWithoutDB(cmd)
	r := cmdCtx.Renderer

	// Override renderer if format flag is set
	if opts.Format != "" {
		r = output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(opts.Format))
	}

	doctorOutput := buildDoctorOutput(cmd.Context(), cmdCtx.Cfg, cmdCtx.Logger)

	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(doctorOutput)
	case output.ModeMarkdown:
		return renderDoctorMarkdown(r, doctorOutput)
	default:
		return renderDoctorText(r, doctorOutput)
	}
}

func buildDoctorOutput(ctx context.Context, cfg *config.Config, logger *slog.Logger) *DoctorOutput {
	summary := DoctorSummary{
		ConfigFile:  config.GetConfigFileUsed(),
		Dialect:     cfg.Database.Dialect,
		Model:       cfg.LLM.Model,
		CacheDir:    cfg.Cache.Dir,
		HistoryPath: cfg.HistoryPath,
	}

	var checks []HealthCheck

	// Configuration
	if f := config.GetConfigFileUsed(); f != "" {
		checks = append(checks, pass("config file", "configuration", f))
	} else {
		checks = append(checks, warn("config file", "configuration", "no askdb.yaml found, using defaults and environment"))
	}
	if cfg.Database.Dialect != "" {
		checks = append(checks, pass("database settings", "configuration", cfg.Database.Dialect))
	} else {
		checks = append(checks, fail("database settings", "configuration", "no dialect configured"))
	}
	if cfg.LLM.APIKey != "" {
		checks = append(checks, pass("llm settings", "configuration", fmt.Sprintf("key set (model %s)", cfg.LLM.Model)))
	} else {
		checks = append(checks, fail("llm settings", "configuration", "no API key configured"))
	}

	// Database connectivity
	if cfg.Database.Dialect != "" {
		checks = append(checks, checkConnection(ctx, cfg, logger))
	}

	// Schema cache
	checks = append(checks, checkCacheStore(cfg))
	snapCheck, tables := checkSnapshot(ctx, cfg, logger)
	checks = append(checks, snapCheck)
	summary.Tables = tables

	// History
	checks = append(checks, checkHistory(cfg))

	issues := 0
	for _, c := range checks {
		if c.Status != "pass" {
			issues++
		}
	}

	return &DoctorOutput{
		Summary:         summary,
		HealthChecks:    checks,
		Score:           calculateHealthScore(checks),
		Recommendations: generateRecommendations(checks),
		IssueCount:      issues,
	}
}

func checkConnection(ctx context.Context, cfg *config.Config, logger *slog.Logger) HealthCheck {
	provider, err := connectProvider(ctx, cfg, logger)
	if err != nil {
		return fail("database connection", "database", err.Error())
	}
	defer func() { _ = provider.Close() }()

	if err := provider.Ping(ctx); err != nil {
		return fail("database connection", "database", fmt.Sprintf("ping failed: %v", err))
	}
	return pass("database connection", "database", fmt.Sprintf("connected (%s)", provider.Dialect()))
}

func checkCacheStore(cfg *config.Config) HealthCheck {
	if s3 := cfg.Cache.S3; s3 != nil {
		return pass("cache store", "schema cache", fmt.Sprintf("s3 bucket %s", s3.Bucket))
	}
	if err := probeDirWritable(cfg.Cache.Dir); err != nil {
		return fail("cache store", "schema cache", fmt.Sprintf("cache directory not writable: %v", err))
	}
	return pass("cache store", "schema cache", cfg.Cache.Dir)
}

func checkSnapshot(ctx context.Context, cfg *config.Config, logger *slog.Logger) (HealthCheck, int) {
	store, err := newCacheStore(cfg)
	if err != nil {
		return fail("schema snapshot", "schema cache", err.Error()), 0
	}

	reg := registry.New(store, schemaCacheKey, logger)
	if err := reg.Reload(ctx); err != nil {
		if errors.Is(err, cache.ErrNotFound) {
			return warn("schema snapshot", "schema cache", "not built yet"), 0
		}
		return warn("schema snapshot", "schema cache", fmt.Sprintf("unreadable, will rebuild on next use: %v", err)), 0
	}

	db := reg.Active()
	detail := fmt.Sprintf("%d tables (database %s)", len(db.Tables), db.Name)
	return pass("schema snapshot", "schema cache", detail), len(db.Tables)
}

func checkHistory(cfg *config.Config) HealthCheck {
	dir := filepath.Dir(cfg.HistoryPath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fail("history store", "history", fmt.Sprintf("cannot create directory: %v", err))
		}
	}
	hist, err := history.Open(cfg.HistoryPath)
	if err != nil {
		return fail("history store", "history", err.Error())
	}
	defer func() { _ = hist.Close() }()
	return pass("history store", "history", cfg.HistoryPath)
}

func probeDirWritable(dir string) error {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return err
	}
	probe := filepath.Join(dir, ".doctor-probe")
	if err := os.WriteFile(probe, []byte("ok"), 0600); err != nil {
		return err
	}
	return os.Remove(probe)
}

func pass(name, group, detail string) HealthCheck {
	return HealthCheck{Name: name, Group: group, Status: "pass", Detail: detail}
}

func warn(name, group, detail string) HealthCheck {
	return HealthCheck{Name: name, Group: group, Status: "warn", Detail: detail}
}

func fail(name, group, detail string) HealthCheck {
	return HealthCheck{Name: name, Group: group, Status: "error", Detail: detail}
}

// calculateHealthScore computes a health score from 0-100.
// Errors weigh more than warnings; a clean run scores 100.
func calculateHealthScore(checks []HealthCheck) int {
	score := 100
	for _, check := range checks {
		switch check.Status {
		case "error":
			score -= 25
		case "warn":
			score -= 10
		}
	}
	if score < 0 {
		score = 0
	}
	return score
}

// generateRecommendations creates actionable recommendations based on findings.
func generateRecommendations(checks []HealthCheck) []string {
	var recommendations []string
	seen := make(map[string]bool)

	for _, check := range checks {
		if check.Status == "pass" {
			continue
		}
		rec := getRecommendation(check.Name)
		if rec != "" && !seen[rec] {
			recommendations = append(recommendations, rec)
			seen[rec] = true
		}
	}

	// Limit to top 5 recommendations
	if len(recommendations) > 5 {
		recommendations = recommendations[:5]
	}

	return recommendations
}

// getRecommendation returns a recommendation for a specific check.
func getRecommendation(name string) string {
	switch name {
	case "config file":
		return "Create an askdb.yaml in the project root to persist settings"
	case "database settings":
		return "Set database.dialect (and connection settings) in askdb.yaml"
	case "llm settings":
		return "Set llm.api_key in askdb.yaml or export ASKDB_LLM__API_KEY"
	case "database connection":
		return "Check database host, port, user, and password in askdb.yaml"
	case "cache store":
		return "Check permissions on the cache directory, or point cache.dir elsewhere"
	case "schema snapshot":
		return "Run askdb schema build to introspect the database"
	case "history store":
		return "Check permissions on history_path, or point it elsewhere"
	default:
		return ""
	}
}

func renderDoctorText(r *output.Renderer, out *DoctorOutput) error {
	styles := r.Styles()

	// Header
	r.Println("")
	r.Println(styles.Header1.Render("askdb Health Report"))
	r.Println(styles.Muted.Render(strings.Repeat("=", 55)))
	r.Println("")

	// Environment summary
	r.Println(styles.Header2.Render("Environment"))
	dialect := out.Summary.Dialect
	if dialect == "" {
		dialect = "(none)"
	}
	r.Printf("   Dialect: %s | Model: %s | Tables: %d\n", dialect, out.Summary.Model, out.Summary.Tables)
	r.Printf("   Cache: %s | History: %s\n", out.Summary.CacheDir, out.Summary.HistoryPath)
	r.Println("")

	// Checks grouped by category
	r.Println(styles.Header2.Render("Checks"))
	r.Println("")

	currentGroup := ""
	titleCaser := cases.Title(language.English)
	for _, check := range out.HealthChecks {
		if check.Group != currentGroup {
			currentGroup = check.Group
			r.Println(styles.Bold.Render("   " + titleCaser.String(currentGroup)))
			r.Println(styles.Muted.Render("   " + strings.Repeat("-", 40)))
		}

		icon := styles.StatusSuccess.String()
		switch check.Status {
		case "warn":
			icon = styles.Warning.Render("!")
		case "error":
			icon = styles.StatusFailed.String()
		}

		line := fmt.Sprintf("%s %s", icon, titleCaser.String(check.Name))
		if check.Detail != "" {
			line += ": " + styles.Muted.Render(check.Detail)
		}
		r.Println("   " + line)
	}
	r.Println("")

	// Health Score
	r.Println(styles.Muted.Render(strings.Repeat("=", 55)))
	scoreStyle := styles.Success
	if out.Score < 70 {
		scoreStyle = styles.Warning
	}
	if out.Score < 50 {
		scoreStyle = styles.Error
	}
	r.Printf("   Health Score: %s\n", scoreStyle.Render(fmt.Sprintf("%d/100", out.Score)))
	r.Println("")

	// Recommendations
	if len(out.Recommendations) > 0 {
		r.Println(styles.Header2.Render("Recommendations"))
		for i, rec := range out.Recommendations {
			r.Printf("   %d. %s\n", i+1, rec)
		}
		r.Println("")
	}

	return nil
}

func renderDoctorMarkdown(r *output.Renderer, out *DoctorOutput) error {
	r.Println("# askdb Health Report")
	r.Println("")

	// Environment summary
	r.Println("## Environment")
	r.Println("")
	if out.Summary.ConfigFile != "" {
		r.Printf("- **Config**: %s\n", out.Summary.ConfigFile)
	}
	r.Printf("- **Dialect**: %s\n", out.Summary.Dialect)
	r.Printf("- **Model**: %s\n", out.Summary.Model)
	r.Printf("- **Cache**: %s\n", out.Summary.CacheDir)
	r.Printf("- **History**: %s\n", out.Summary.HistoryPath)
	r.Printf("- **Tables**: %d\n", out.Summary.Tables)
	r.Println("")

	// Checks
	r.Println("## Checks")
	r.Println("")

	currentGroup := ""
	titleCaser := cases.Title(language.English)
	for _, check := range out.HealthChecks {
		if check.Group != currentGroup {
			currentGroup = check.Group
			r.Println("### " + titleCaser.String(currentGroup))
			r.Println("")
		}

		status := "PASS"
		switch check.Status {
		case "warn":
			status = "WARN"
		case "error":
			status = "ERROR"
		}

		r.Printf("- **[%s]** %s", status, titleCaser.String(check.Name))
		if check.Detail != "" {
			r.Printf(": %s", check.Detail)
		}
		r.Println("")
	}
	r.Println("")

	// Health Score
	r.Println("## Health Score")
	r.Println("")
	r.Printf("**%d/100**\n", out.Score)
	r.Println("")

	// Recommendations
	if len(out.Recommendations) > 0 {
		r.Println("## Recommendations")
		r.Println("")
		for i, rec := range out.Recommendations {
			r.Printf("%d. %s\n", i+1, rec)
		}
		r.Println("")
	}

	return nil
}
