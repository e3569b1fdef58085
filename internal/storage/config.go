package storage

type Config struct {
	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`

	Ollama struct {
		BaseURL          string `yaml:"base_url"`
		SummaryModel     string `yaml:"summary_model"`
		ExecutiveModel   string `yaml:"executive_model"`
	} `yaml:"ollama"`

	Prompts struct {
		Executive string `yaml:"executive,omitempty"`
		Category  string `yaml:"category,omitempty"`
		Article   string `yaml:"article,omitempty"`
	} `yaml:"prompts,omitempty"`

	Temperatures struct {
		Executive float64 `yaml:"executive"`
		Category  float64 `yaml:"category"`
		Article   float64 `yaml:"article"`
	} `yaml:"temperatures,omitempty"`
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.Database.Path = "./pharos.db"
	cfg.Ollama.BaseURL = "http://localhost:11434"
	cfg.Ollama.SummaryModel = "llama3"
	cfg.Ollama.ExecutiveModel = "llama3"
	// Default temperatures (can be overridden in config)
	cfg.Temperatures.Executive = 0.5
	cfg.Temperatures.Category = 0.5
	cfg.Temperatures.Article = 0.3
	return cfg
}
