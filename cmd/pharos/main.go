package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/pharos-research/pharos"
	"github.com/pharos-research/pharos/internal/output"
	"github.com/pharos-research/pharos/internal/storage"
)

var (
	configPath   string
	cfg          *storage.Config
	outputFormat string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "pharos",
		Short: "Curate AI-generated research monitoring reports before publication",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return loadConfig()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path (default: ./config/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "format", "f", "human", "output format: json, text, human")

	rootCmd.AddCommand(importCmd())
	rootCmd.AddCommand(reportsCmd())
	rootCmd.AddCommand(viewCmd())
	rootCmd.AddCommand(excludeCmd())
	rootCmd.AddCommand(includeCmd())
	rootCmd.AddCommand(resetCmd())
	rootCmd.AddCommand(setCategoryCmd())
	rootCmd.AddCommand(notesCmd())
	rootCmd.AddCommand(editCmd())
	rootCmd.AddCommand(approveCmd())
	rootCmd.AddCommand(rejectCmd())
	rootCmd.AddCommand(regenerateCmd())
	rootCmd.AddCommand(initConfigCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig() error {
	if configPath == "" {
		configPath = "./config/config.yaml"
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg = storage.DefaultConfig()
		return nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}

	cfg = storage.DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}

	return nil
}

// openEngine opens the report database. Only the regenerate command needs
// the Ollama gateway; everything else skips it.
func openEngine(withGateway bool) (*pharos.Engine, error) {
	return pharos.NewEngine(pharos.EngineConfig{
		DBPath:         cfg.Database.Path,
		OllamaBaseURL:  cfg.Ollama.BaseURL,
		SummaryModel:   cfg.Ollama.SummaryModel,
		ExecutiveModel: cfg.Ollama.ExecutiveModel,
		DisableGateway: !withGateway,
	})
}

func parseID(arg, what string) (int64, error) {
	var id int64
	if _, err := fmt.Sscanf(arg, "%d", &id); err != nil {
		return 0, fmt.Errorf("invalid %s ID %q: %w", what, arg, err)
	}
	return id, nil
}

func importCmd() *cobra.Command {
	var runID string
	cmd := &cobra.Command{
		Use:   "import <run-document>",
		Short: "Import a pipeline run document as a new report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := openEngine(false)
			if err != nil {
				return err
			}
			defer engine.Close()

			reportID, err := engine.ImportRun(args[0], runID)
			if err != nil {
				return fmt.Errorf("failed to import run: %w", err)
			}

			fmt.Printf("Imported %s as report %d\n", args[0], reportID)
			return nil
		},
	}
	cmd.Flags().StringVar(&runID, "run-id", "", "pipeline run identifier (default: generated)")
	return cmd
}

func reportsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reports",
		Short: "List all reports",
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := output.NewFormatter(output.Format(outputFormat))
			engine, err := openEngine(false)
			if err != nil {
				return err
			}
			defer engine.Close()

			reports, err := engine.ListReports()
			if err != nil {
				return fmt.Errorf("failed to list reports: %w", err)
			}
			return formatter.OutputReportList(reports)
		},
	}
}

func viewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "view <report-id>",
		Short: "Show the curation view of a report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reportID, err := parseID(args[0], "report")
			if err != nil {
				return err
			}

			formatter := output.NewFormatter(output.Format(outputFormat))
			engine, err := openEngine(false)
			if err != nil {
				return err
			}
			defer engine.Close()

			view, err := engine.GetCurationView(reportID)
			if err != nil {
				return err
			}
			return formatter.OutputCurationView(view)
		},
	}
}

func excludeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "exclude <report-id> <article-id>",
		Short: "Remove an article from a report's inclusion list",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			reportID, err := parseID(args[0], "report")
			if err != nil {
				return err
			}
			articleID, err := parseID(args[1], "article")
			if err != nil {
				return err
			}

			formatter := output.NewFormatter(output.Format(outputFormat))
			engine, err := openEngine(false)
			if err != nil {
				return err
			}
			defer engine.Close()

			if _, err := engine.ExcludeArticle(reportID, articleID); err != nil {
				return err
			}
			return formatter.OutputResult("exclude", reportID, articleID, true,
				fmt.Sprintf("Excluded article %d from report %d", articleID, reportID))
		},
	}
}

func includeCmd() *cobra.Command {
	var category int64
	cmd := &cobra.Command{
		Use:   "include <report-id> <article-id>",
		Short: "Add a filtered-out article to a report's inclusion list",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			reportID, err := parseID(args[0], "report")
			if err != nil {
				return err
			}
			articleID, err := parseID(args[1], "article")
			if err != nil {
				return err
			}

			formatter := output.NewFormatter(output.Format(outputFormat))
			engine, err := openEngine(false)
			if err != nil {
				return err
			}
			defer engine.Close()

			var categoryID *int64
			if cmd.Flags().Changed("category") {
				categoryID = &category
			}
			if _, err := engine.IncludeArticle(reportID, articleID, categoryID); err != nil {
				return err
			}
			return formatter.OutputResult("include", reportID, articleID, true,
				fmt.Sprintf("Included article %d in report %d", articleID, reportID))
		},
	}
	cmd.Flags().Int64Var(&category, "category", 0, "category to place the article in")
	return cmd
}

func resetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset <report-id> <article-id>",
		Short: "Restore an article to its pipeline decision",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			reportID, err := parseID(args[0], "report")
			if err != nil {
				return err
			}
			articleID, err := parseID(args[1], "article")
			if err != nil {
				return err
			}

			formatter := output.NewFormatter(output.Format(outputFormat))
			engine, err := openEngine(false)
			if err != nil {
				return err
			}
			defer engine.Close()

			_, result, err := engine.ResetCuration(reportID, articleID)
			if err != nil {
				return err
			}
			return formatter.OutputResult("reset", reportID, articleID, result.Reset, result.Message)
		},
	}
}

func setCategoryCmd() *cobra.Command {
	var category int64
	var clear bool
	cmd := &cobra.Command{
		Use:   "set-category <report-id> <article-id>",
		Short: "Move an included article to a different category",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			reportID, err := parseID(args[0], "report")
			if err != nil {
				return err
			}
			articleID, err := parseID(args[1], "article")
			if err != nil {
				return err
			}
			if !clear && !cmd.Flags().Changed("category") {
				return fmt.Errorf("either --category or --clear is required")
			}

			formatter := output.NewFormatter(output.Format(outputFormat))
			engine, err := openEngine(false)
			if err != nil {
				return err
			}
			defer engine.Close()

			var categoryID *int64
			if !clear {
				categoryID = &category
			}
			if _, err := engine.SetArticleCategory(reportID, articleID, categoryID); err != nil {
				return err
			}
			return formatter.OutputResult("set-category", reportID, articleID, true,
				fmt.Sprintf("Updated category for article %d", articleID))
		},
	}
	cmd.Flags().Int64Var(&category, "category", 0, "target category ID")
	cmd.Flags().BoolVar(&clear, "clear", false, "make the article uncategorized")
	return cmd
}

func notesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "notes <report-id> <article-id> <text...>",
		Short: "Set the curator's notes on an article",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			reportID, err := parseID(args[0], "report")
			if err != nil {
				return err
			}
			articleID, err := parseID(args[1], "article")
			if err != nil {
				return err
			}
			notes := strings.Join(args[2:], " ")

			formatter := output.NewFormatter(output.Format(outputFormat))
			engine, err := openEngine(false)
			if err != nil {
				return err
			}
			defer engine.Close()

			if _, err := engine.UpdateCurationNotes(reportID, articleID, notes); err != nil {
				return err
			}
			return formatter.OutputResult("notes", reportID, articleID, true,
				fmt.Sprintf("Updated notes for article %d", articleID))
		},
	}
}

func editCmd() *cobra.Command {
	var name, summary string
	cmd := &cobra.Command{
		Use:   "edit <report-id>",
		Short: "Edit report-level content (name, executive summary)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reportID, err := parseID(args[0], "report")
			if err != nil {
				return err
			}

			engine, err := openEngine(false)
			if err != nil {
				return err
			}
			defer engine.Close()

			var update pharos.ReportContentUpdate
			if cmd.Flags().Changed("name") {
				update.Name = &name
			}
			if cmd.Flags().Changed("summary") {
				update.ExecutiveSummary = &summary
			}
			if update.Name == nil && update.ExecutiveSummary == nil {
				return fmt.Errorf("nothing to update: pass --name or --summary")
			}

			report, err := engine.UpdateReportContent(reportID, update)
			if err != nil {
				return err
			}
			fmt.Printf("Updated report %d (%s)\n", report.ID, report.Name)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "new report name")
	cmd.Flags().StringVar(&summary, "summary", "", "new executive summary")
	return cmd
}

func approveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "approve <report-id>",
		Short: "Approve a report (terminal)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reportID, err := parseID(args[0], "report")
			if err != nil {
				return err
			}

			engine, err := openEngine(false)
			if err != nil {
				return err
			}
			defer engine.Close()

			report, err := engine.ApproveReport(reportID)
			if err != nil {
				return err
			}
			fmt.Printf("Report %d approved (%s)\n", report.ID, report.Name)
			return nil
		},
	}
}

func rejectCmd() *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "reject <report-id>",
		Short: "Reject a report with a reason (terminal)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reportID, err := parseID(args[0], "report")
			if err != nil {
				return err
			}

			engine, err := openEngine(false)
			if err != nil {
				return err
			}
			defer engine.Close()

			report, err := engine.RejectReport(reportID, reason)
			if err != nil {
				return err
			}
			fmt.Printf("Report %d rejected: %s\n", report.ID, report.RejectionReason)
			return nil
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "why the report is rejected (required)")
	return cmd
}

func regenerateCmd() *cobra.Command {
	var categoryID, articleID int64
	cmd := &cobra.Command{
		Use:   "regenerate <report-id>",
		Short: "Regenerate AI summaries from the current inclusion list",
		Long: `Regenerate AI-written prose for a report. Without flags the executive
summary is rebuilt; --category rebuilds one section summary and --article
rebuilds one article summary.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reportID, err := parseID(args[0], "report")
			if err != nil {
				return err
			}

			engine, err := openEngine(true)
			if err != nil {
				return err
			}
			defer engine.Close()

			ctx := context.Background()
			switch {
			case cmd.Flags().Changed("category"):
				category, err := engine.RegenerateCategorySummary(ctx, reportID, categoryID)
				if err != nil {
					return err
				}
				fmt.Printf("Regenerated summary for category %q:\n\n%s\n", category.Name, category.Summary)
			case cmd.Flags().Changed("article"):
				article, err := engine.RegenerateArticleSummary(ctx, reportID, articleID)
				if err != nil {
					return err
				}
				fmt.Printf("Regenerated summary for %q:\n\n%s\n", article.Title, article.AISummary)
			default:
				report, err := engine.RegenerateExecutiveSummary(ctx, reportID)
				if err != nil {
					return err
				}
				fmt.Printf("Regenerated executive summary:\n\n%s\n", report.ExecutiveSummary)
			}
			return nil
		},
	}
	cmd.Flags().Int64Var(&categoryID, "category", 0, "regenerate one category summary")
	cmd.Flags().Int64Var(&articleID, "article", 0, "regenerate one article summary")
	return cmd
}

func initConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init-config",
		Short: "Create a default config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				configPath = "./config/config.yaml"
			}

			dir := filepath.Dir(configPath)
			if err := os.MkdirAll(dir, 0755); err != nil {
				return fmt.Errorf("failed to create config directory: %w", err)
			}

			if _, err := os.Stat(configPath); err == nil {
				return fmt.Errorf("config file already exists: %s", configPath)
			}

			cfg := storage.DefaultConfig()
			data, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("failed to marshal config: %w", err)
			}

			if err := os.WriteFile(configPath, data, 0644); err != nil {
				return fmt.Errorf("failed to write config: %w", err)
			}

			fmt.Printf("Created default config at %s\n", configPath)
			return nil
		},
	}
}
