package tenants

// Endpoints are the backend platform URLs used for a tenant. The JSON keys
// match the on-disk registry format ("api_url" is the update-record endpoint).
type Endpoints struct {
	RefreshURL     string `json:"refresh_url" yaml:"refresh_url"`
	UpdateURL      string `json:"api_url" yaml:"api_url"`
	FilterURL      string `json:"filter_url" yaml:"filter_url"`
	FindRecordsURL string `json:"find_records_url" yaml:"find_records_url"`
	BaseURL        string `json:"base_url" yaml:"base_url"`
}

// Tenant represents one registered backend environment.
type Tenant struct {
	ID                 string    `json:"-" yaml:"-"`
	BackendTenant      string    `json:"tenant_name" yaml:"tenant_name"` // tenant name inside the backend platform
	DisplayName        string    `json:"display_name" yaml:"display_name"`
	Description        string    `json:"description,omitempty" yaml:"description,omitempty"`
	ButtonClass        string    `json:"button_class,omitempty" yaml:"button_class,omitempty"`
	EnvTokenVar        string    `json:"env_token_var,omitempty" yaml:"env_token_var,omitempty"`
	StoredRefreshToken string    `json:"stored_refresh_token,omitempty" yaml:"stored_refresh_token,omitempty"`
	UseCustomURLs      bool      `json:"use_custom_urls" yaml:"use_custom_urls"`
	CustomURLs         Endpoints `json:"custom_urls,omitempty" yaml:"custom_urls,omitempty"`
}

// Resolved is a tenant with its effective endpoints and refresh secret filled
// in: custom URLs when enabled (default URLs otherwise), the stored secret
// when present (the env-sourced one otherwise).
type Resolved struct {
	Tenant
	Endpoints     Endpoints
	RefreshSecret string
}
