// Package llm builds OpenAI clients for a credential and provider settings.
package llm

import (
	"strings"

	"github.com/sashabaranov/go-openai"
	"github.com/shawn/slack-gpt-tenancy/internal/config"
)

// Settings are the provider-level knobs shared by every tenant.
type Settings struct {
	APIType      string
	APIBase      string
	APIVersion   string
	DeploymentID string
}

// SettingsFrom extracts provider settings from the static config.
func SettingsFrom(cfg *config.Config) Settings {
	return Settings{
		APIType:      cfg.OpenAIAPIType,
		APIBase:      cfg.OpenAIAPIBase,
		APIVersion:   cfg.OpenAIAPIVersion,
		DeploymentID: cfg.OpenAIDeploymentID,
	}
}

// IsAzure reports whether the settings target Azure OpenAI.
func (s Settings) IsAzure() bool {
	t := strings.ToLower(s.APIType)
	return t == "azure" || t == "azure_ad"
}

// ClientConfig builds a go-openai config for credential.
func ClientConfig(s Settings, credential string) openai.ClientConfig {
	if s.IsAzure() {
		c := openai.DefaultAzureConfig(credential, s.APIBase)
		if s.APIVersion != "" {
			c.APIVersion = s.APIVersion
		}
		if s.DeploymentID != "" {
			deployment := s.DeploymentID
			c.AzureModelMapperFunc = func(string) string { return deployment }
		}
		return c
	}
	c := openai.DefaultConfig(credential)
	if s.APIBase != "" {
		c.BaseURL = s.APIBase
	}
	return c
}

// NewClient returns a client for credential with the given settings.
func NewClient(s Settings, credential string) *openai.Client {
	return openai.NewClientWithConfig(ClientConfig(s, credential))
}
