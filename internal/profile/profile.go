package profile

import (
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pkg/errors"
)

// Profile is configuration to start the main server.
type Profile struct {
	// Unified LLM configuration (OpenAI-compatible protocol)
	// All providers (openai, deepseek, zai, siliconflow, ollama) use the same config
	LLMProvider      string  // Provider identifier: openai, deepseek, zai, siliconflow, ollama
	LLMAPIKey        string  // LLM API key
	LLMBaseURL       string  // LLM base URL (optional, has default per provider)
	LLMModel         string  // Model name: gpt-4o-mini, deepseek-chat, etc.
	LLMTimeout       int     // LLM request timeout in seconds (default: 30)
	LLMMaxTokens     int     // Completion token cap per call (default: 2000)
	LLMTemperature   float64 // Sampling temperature (default: 0.2)
	LLMMaxConcurrent int     // Concurrent in-flight LLM calls (default: 5)
	LLMMaxRetries    int     // Retry attempts after the first call (default: 2)

	// Prompt bundle configuration
	PromptDir     string // Directory holding versioned prompt templates
	PromptVersion string // Active prompt bundle version, e.g. v1.0.0

	// Response version metadata
	APIVersion    string
	LogicVersion  string
	SchemaVersion string

	// Server configuration
	Mode    string
	Addr    string
	Port    int
	Version string
}

// Provider default configurations for LLM.
// Used when DECISIONFLOW_LLM_BASE_URL is not explicitly set.
var llmProviderDefaults = map[string]struct {
	BaseURL string
	Model   string
}{
	"openai": {
		BaseURL: "https://api.openai.com/v1",
		Model:   "gpt-4o-mini",
	},
	"deepseek": {
		BaseURL: "https://api.deepseek.com",
		Model:   "deepseek-chat",
	},
	"zai": {
		BaseURL: "https://open.bigmodel.cn/api/paas/v4",
		Model:   "glm-4.7",
	},
	"siliconflow": {
		BaseURL: "https://api.siliconflow.cn/v1",
		Model:   "Qwen/Qwen2.5-72B-Instruct",
	},
	"ollama": {
		BaseURL: "http://localhost:11434/v1",
		Model:   "llama3.1",
	},
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// getEnvOrDefault returns environment variable value or default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvOrDefaultInt returns environment variable value as int or default value.
func getEnvOrDefaultInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvOrDefaultFloat returns environment variable value as float64 or default value.
func getEnvOrDefaultFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

// FromEnv loads configuration from environment variables.
func (p *Profile) FromEnv() {
	p.LLMProvider = getEnvOrDefault("DECISIONFLOW_LLM_PROVIDER", "openai")
	p.LLMAPIKey = getEnvOrDefault("DECISIONFLOW_LLM_API_KEY", "")
	p.LLMBaseURL = getEnvOrDefault("DECISIONFLOW_LLM_BASE_URL", "")
	p.LLMModel = getEnvOrDefault("DECISIONFLOW_LLM_MODEL", "")
	p.LLMTimeout = getEnvOrDefaultInt("DECISIONFLOW_LLM_TIMEOUT_SECONDS", 30)
	p.LLMMaxTokens = getEnvOrDefaultInt("DECISIONFLOW_LLM_MAX_TOKENS", 2000)
	p.LLMTemperature = getEnvOrDefaultFloat("DECISIONFLOW_LLM_TEMPERATURE", 0.2)
	p.LLMMaxConcurrent = getEnvOrDefaultInt("DECISIONFLOW_LLM_MAX_CONCURRENT", 5)
	p.LLMMaxRetries = getEnvOrDefaultInt("DECISIONFLOW_LLM_MAX_RETRIES", 2)

	if p.LLMProvider != "" {
		if _, ok := llmProviderDefaults[p.LLMProvider]; !ok {
			slog.Warn("Unknown LLM provider, using default: openai", "provider", p.LLMProvider)
			p.LLMProvider = "openai"
		}
	}
	if p.LLMBaseURL == "" || p.LLMModel == "" {
		if defaults, ok := llmProviderDefaults[p.LLMProvider]; ok {
			if p.LLMBaseURL == "" {
				p.LLMBaseURL = defaults.BaseURL
			}
			if p.LLMModel == "" {
				p.LLMModel = defaults.Model
			}
		}
	}

	p.PromptDir = getEnvOrDefault("DECISIONFLOW_PROMPT_DIR", "prompts")
	p.PromptVersion = getEnvOrDefault("DECISIONFLOW_PROMPT_VERSION", "v1.0.0")

	p.APIVersion = getEnvOrDefault("DECISIONFLOW_API_VERSION", "1.0")
	p.LogicVersion = getEnvOrDefault("DECISIONFLOW_LOGIC_VERSION", "1.0.0")
	p.SchemaVersion = getEnvOrDefault("DECISIONFLOW_SCHEMA_VERSION", "1.0.0")
}

// Validate normalizes the profile and rejects values the server cannot
// start with.
func (p *Profile) Validate() error {
	if p.Mode != "demo" && p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "demo"
	}

	if p.Port <= 0 || p.Port > 65535 {
		return errors.Errorf("invalid port %d", p.Port)
	}
	if p.LLMTimeout <= 0 {
		p.LLMTimeout = 30
	}
	if p.LLMMaxTokens <= 0 {
		p.LLMMaxTokens = 2000
	}
	if p.LLMMaxConcurrent <= 0 {
		p.LLMMaxConcurrent = 5
	}
	if p.LLMMaxRetries < 0 {
		p.LLMMaxRetries = 2
	}
	if p.LLMTemperature < 0 || p.LLMTemperature > 2 {
		return errors.Errorf("temperature %v out of range [0, 2]", p.LLMTemperature)
	}

	// Convert to absolute path if relative path is supplied.
	if p.PromptDir != "" && !filepath.IsAbs(p.PromptDir) {
		absDir, err := filepath.Abs(p.PromptDir)
		if err != nil {
			return errors.Wrapf(err, "unable to resolve prompt folder %s", p.PromptDir)
		}
		p.PromptDir = absDir
	}
	if _, err := os.Stat(p.PromptDir); err != nil {
		return errors.Wrapf(err, "unable to access prompt folder %s", p.PromptDir)
	}

	return nil
}
