package tesla

import "fmt"

// Config holds the owner-api connection settings. Either an email/password
// pair or a pre-issued token pair must be supplied.
type Config struct {
	APIURL              string `json:"api_url"`
	Email               string `json:"email"`
	Password            string `json:"password"`
	AccessToken         string `json:"access_token"`
	RefreshToken        string `json:"refresh_token"`
	TimeoutSeconds      int    `json:"timeout_seconds"`
	WakeAttempts        int    `json:"wake_attempts"`
	WakeIntervalSeconds int    `json:"wake_interval_seconds"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.APIURL == "" {
		c.APIURL = DefaultAPIURL
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 5
	}
	if c.WakeAttempts <= 0 {
		c.WakeAttempts = 6
	}
	if c.WakeIntervalSeconds <= 0 {
		c.WakeIntervalSeconds = 5
	}
}

// Validate checks that one authentication method is configured.
func (c Config) Validate() error {
	if c.Email != "" && c.Password != "" {
		return nil
	}
	if c.AccessToken != "" && c.RefreshToken != "" {
		return nil
	}
	return fmt.Errorf("either email/password or access_token/refresh_token is required")
}
