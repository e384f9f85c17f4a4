package profile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	p := &Profile{}
	p.FromEnv()

	assert.Equal(t, "openai", p.LLMProvider)
	assert.Equal(t, "https://api.openai.com/v1", p.LLMBaseURL)
	assert.Equal(t, "gpt-4o-mini", p.LLMModel)
	assert.Equal(t, 30, p.LLMTimeout)
	assert.Equal(t, 2000, p.LLMMaxTokens)
	assert.Equal(t, 5, p.LLMMaxConcurrent)
	assert.Equal(t, 2, p.LLMMaxRetries)
	assert.Equal(t, "v1.0.0", p.PromptVersion)
	assert.Equal(t, "1.0", p.APIVersion)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("DECISIONFLOW_LLM_PROVIDER", "deepseek")
	t.Setenv("DECISIONFLOW_LLM_API_KEY", "sk-test")
	t.Setenv("DECISIONFLOW_LLM_TIMEOUT_SECONDS", "45")
	t.Setenv("DECISIONFLOW_LLM_TEMPERATURE", "0.7")

	p := &Profile{}
	p.FromEnv()

	assert.Equal(t, "deepseek", p.LLMProvider)
	assert.Equal(t, "https://api.deepseek.com", p.LLMBaseURL)
	assert.Equal(t, "deepseek-chat", p.LLMModel)
	assert.Equal(t, "sk-test", p.LLMAPIKey)
	assert.Equal(t, 45, p.LLMTimeout)
	assert.InDelta(t, 0.7, p.LLMTemperature, 1e-9)
}

func TestFromEnvUnknownProviderFallsBack(t *testing.T) {
	t.Setenv("DECISIONFLOW_LLM_PROVIDER", "mystery")

	p := &Profile{}
	p.FromEnv()

	assert.Equal(t, "openai", p.LLMProvider)
	assert.Equal(t, "https://api.openai.com/v1", p.LLMBaseURL)
}

func TestFromEnvExplicitBaseURLWins(t *testing.T) {
	t.Setenv("DECISIONFLOW_LLM_PROVIDER", "openai")
	t.Setenv("DECISIONFLOW_LLM_BASE_URL", "http://localhost:8080/v1")

	p := &Profile{}
	p.FromEnv()

	assert.Equal(t, "http://localhost:8080/v1", p.LLMBaseURL)
}

func TestValidateNormalizesMode(t *testing.T) {
	p := &Profile{Mode: "bogus", Port: 28090, PromptDir: t.TempDir(), LLMTemperature: 0.2}
	require.NoError(t, p.Validate())
	assert.Equal(t, "demo", p.Mode)
}

func TestValidateRejectsBadPort(t *testing.T) {
	p := &Profile{Mode: "dev", Port: -1, PromptDir: t.TempDir()}
	assert.Error(t, p.Validate())

	p = &Profile{Mode: "dev", Port: 70000, PromptDir: t.TempDir()}
	assert.Error(t, p.Validate())
}

func TestValidateRejectsMissingPromptDir(t *testing.T) {
	p := &Profile{Mode: "dev", Port: 28090, PromptDir: "/does/not/exist"}
	err := p.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "prompt folder")
}

func TestValidateRejectsOutOfRangeTemperature(t *testing.T) {
	p := &Profile{Mode: "dev", Port: 28090, PromptDir: t.TempDir(), LLMTemperature: 2.5}
	assert.Error(t, p.Validate())
}
