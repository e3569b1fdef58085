package ai

import (
	_ "embed"
	"fmt"
	"strings"
	"text/template"

	"github.com/pharos-research/pharos/internal/storage"
)

// Embedded default prompts
//go:embed prompts/executive.txt
var defaultExecutivePrompt string

//go:embed prompts/category.txt
var defaultCategoryPrompt string

//go:embed prompts/article.txt
var defaultArticlePrompt string

// PromptType represents the type of AI prompt
type PromptType string

const (
	PromptTypeExecutive PromptType = "executive"
	PromptTypeCategory  PromptType = "category"
	PromptTypeArticle   PromptType = "article"
)

// PromptLoader handles 2-tier prompt loading: embedded -> config
type PromptLoader struct {
	config *storage.Config
	cache  map[PromptType]string
}

// NewPromptLoader creates a new prompt loader
func NewPromptLoader(config *storage.Config) *PromptLoader {
	return &PromptLoader{
		config: config,
		cache:  make(map[PromptType]string),
	}
}

// GetPrompt loads a prompt with fallback.
// Priority: config file -> embedded default
func (pl *PromptLoader) GetPrompt(promptType PromptType) (string, error) {
	if cached, ok := pl.cache[promptType]; ok {
		return cached, nil
	}

	var configPrompt string
	if pl.config != nil {
		switch promptType {
		case PromptTypeExecutive:
			configPrompt = pl.config.Prompts.Executive
		case PromptTypeCategory:
			configPrompt = pl.config.Prompts.Category
		case PromptTypeArticle:
			configPrompt = pl.config.Prompts.Article
		}
		if configPrompt != "" {
			pl.cache[promptType] = configPrompt
			return configPrompt, nil
		}
	}

	var defaultPrompt string
	switch promptType {
	case PromptTypeExecutive:
		defaultPrompt = defaultExecutivePrompt
	case PromptTypeCategory:
		defaultPrompt = defaultCategoryPrompt
	case PromptTypeArticle:
		defaultPrompt = defaultArticlePrompt
	default:
		return "", fmt.Errorf("unknown prompt type: %s", promptType)
	}

	pl.cache[promptType] = defaultPrompt
	return defaultPrompt, nil
}

// GetTemperature gets the temperature for a prompt type with fallback.
// Priority: config file -> default
func (pl *PromptLoader) GetTemperature(promptType PromptType) float64 {
	if pl.config != nil {
		var configTemp float64
		switch promptType {
		case PromptTypeExecutive:
			configTemp = pl.config.Temperatures.Executive
		case PromptTypeCategory:
			configTemp = pl.config.Temperatures.Category
		case PromptTypeArticle:
			configTemp = pl.config.Temperatures.Article
		}
		if configTemp > 0 {
			return configTemp
		}
	}

	switch promptType {
	case PromptTypeExecutive:
		return 0.5
	case PromptTypeCategory:
		return 0.5
	case PromptTypeArticle:
		return 0.3
	default:
		return 0.5
	}
}

// ExecutePrompt renders a prompt template with the given data
func ExecutePrompt(promptTemplate string, data interface{}) (string, error) {
	tmpl, err := template.New("prompt").Parse(promptTemplate)
	if err != nil {
		return "", fmt.Errorf("failed to parse prompt template: %w", err)
	}

	var buf strings.Builder
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute prompt template: %w", err)
	}

	return buf.String(), nil
}
