package ai

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"
	"golang.org/x/sync/singleflight"

	"github.com/pharos-research/pharos/internal/storage"
)

// Gateway regenerates report prose through a local Ollama instance.
// Concurrent regeneration requests for the same scope are collapsed into one
// upstream call; callers share the result.
type Gateway struct {
	client         *api.Client
	summaryModel   string
	executiveModel string
	promptLoader   *PromptLoader
	group          singleflight.Group
}

// NewGateway creates a regeneration gateway
func NewGateway(cfg *storage.Config) (*Gateway, error) {
	client, err := api.ClientFromEnvironment()
	if err != nil {
		// If env-based client fails, create one with the base URL
		parsedURL, parseErr := url.Parse(cfg.Ollama.BaseURL)
		if parseErr != nil {
			return nil, fmt.Errorf("invalid base URL: %w", parseErr)
		}
		client = api.NewClient(parsedURL, nil)
	}

	return &Gateway{
		client:         client,
		summaryModel:   cfg.Ollama.SummaryModel,
		executiveModel: cfg.Ollama.ExecutiveModel,
		promptLoader:   NewPromptLoader(cfg),
	}, nil
}

// ExecutiveInput carries the report content an executive summary is built from.
type ExecutiveInput struct {
	ReportName string
	DateRange  string
	Sections   []SectionInput
}

type SectionInput struct {
	CategoryName string
	Articles     []ArticleInput
}

// ArticleInput is one article's contribution to a summary prompt.
type ArticleInput struct {
	Title    string
	Journal  string
	Authors  []string
	Abstract string
	Summary  string
}

// ExecutiveSummary regenerates a report's executive summary from its current
// included articles.
func (g *Gateway) ExecutiveSummary(ctx context.Context, reportID int64, input ExecutiveInput) (string, error) {
	key := fmt.Sprintf("executive:%d", reportID)
	return g.generateOnce(ctx, key, func() (string, error) {
		promptTemplate, err := g.promptLoader.GetPrompt(PromptTypeExecutive)
		if err != nil {
			return "", fmt.Errorf("failed to load executive prompt: %w", err)
		}

		var sections []string
		for _, sec := range input.Sections {
			var lines []string
			for _, art := range sec.Articles {
				line := "- " + art.Title
				if art.Summary != "" {
					line += ": " + truncateText(art.Summary, 300)
				}
				lines = append(lines, line)
			}
			sections = append(sections, fmt.Sprintf("## %s\n%s", sec.CategoryName, strings.Join(lines, "\n")))
		}

		prompt, err := ExecutePrompt(promptTemplate, map[string]interface{}{
			"ReportName": input.ReportName,
			"DateRange":  input.DateRange,
			"Sections":   strings.Join(sections, "\n\n"),
		})
		if err != nil {
			return "", fmt.Errorf("failed to render executive prompt: %w", err)
		}

		return g.generate(ctx, g.executiveModel, prompt, g.promptLoader.GetTemperature(PromptTypeExecutive))
	})
}

// CategorySummary regenerates the summary paragraph for one report section.
func (g *Gateway) CategorySummary(ctx context.Context, categoryID int64, categoryName string, articles []ArticleInput) (string, error) {
	key := fmt.Sprintf("category:%d", categoryID)
	return g.generateOnce(ctx, key, func() (string, error) {
		promptTemplate, err := g.promptLoader.GetPrompt(PromptTypeCategory)
		if err != nil {
			return "", fmt.Errorf("failed to load category prompt: %w", err)
		}

		var lines []string
		for _, art := range articles {
			line := "- " + art.Title
			if art.Summary != "" {
				line += ": " + truncateText(art.Summary, 300)
			}
			lines = append(lines, line)
		}

		prompt, err := ExecutePrompt(promptTemplate, map[string]interface{}{
			"CategoryName": categoryName,
			"Articles":     strings.Join(lines, "\n"),
		})
		if err != nil {
			return "", fmt.Errorf("failed to render category prompt: %w", err)
		}

		return g.generate(ctx, g.summaryModel, prompt, g.promptLoader.GetTemperature(PromptTypeCategory))
	})
}

// ArticleSummary regenerates the AI summary for one article.
func (g *Gateway) ArticleSummary(ctx context.Context, articleID int64, input ArticleInput) (string, error) {
	key := fmt.Sprintf("article:%d", articleID)
	return g.generateOnce(ctx, key, func() (string, error) {
		promptTemplate, err := g.promptLoader.GetPrompt(PromptTypeArticle)
		if err != nil {
			return "", fmt.Errorf("failed to load article prompt: %w", err)
		}

		prompt, err := ExecutePrompt(promptTemplate, map[string]interface{}{
			"Title":    input.Title,
			"Journal":  input.Journal,
			"Authors":  strings.Join(input.Authors, ", "),
			"Abstract": truncateText(input.Abstract, 3000),
		})
		if err != nil {
			return "", fmt.Errorf("failed to render article prompt: %w", err)
		}

		return g.generate(ctx, g.summaryModel, prompt, g.promptLoader.GetTemperature(PromptTypeArticle))
	})
}

func (g *Gateway) generateOnce(ctx context.Context, key string, fn func() (string, error)) (string, error) {
	result, err, _ := g.group.Do(key, func() (interface{}, error) {
		return fn()
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

func (g *Gateway) generate(ctx context.Context, model, prompt string, temperature float64) (string, error) {
	req := &api.GenerateRequest{
		Model:  model,
		Prompt: prompt,
		Stream: new(bool), // false
		Options: map[string]interface{}{
			"temperature": temperature,
		},
	}

	var fullResponse strings.Builder
	err := g.client.Generate(ctx, req, func(resp api.GenerateResponse) error {
		fullResponse.WriteString(resp.Response)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("ollama generation failed: %w", err)
	}

	text := strings.TrimSpace(fullResponse.String())
	if text == "" {
		return "", fmt.Errorf("ollama returned empty response")
	}
	return text, nil
}

// truncateText truncates text to maxLen characters
func truncateText(text string, maxLen int) string {
	if len(text) <= maxLen {
		return text
	}
	return text[:maxLen] + "..."
}
