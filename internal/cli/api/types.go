package api

// TenantConfig is a tenant's stored model configuration as returned by the
// admin API. APIKey is redacted by the server.
type TenantConfig struct {
	TenantID    string   `json:"tenant_id"`
	APIKey      string   `json:"api_key"`
	Model       string   `json:"model,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
}

type SetConfigRequest struct {
	APIKey      string   `json:"api_key"`
	Model       string   `json:"model,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
}

// ValidationError is the body of a 422 response.
type ValidationError struct {
	Field string `json:"field"`
	Error string `json:"error"`
}
