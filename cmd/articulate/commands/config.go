package commands

import (
	"time"

	"autoclass-backend/internal/assist"
	"autoclass-backend/internal/automation"
	"autoclass-backend/pkg/configutil"
)

type AssistConfig struct {
	BaseUrl               string  `json:"base_url"`
	RequestTimeoutSeconds int     `json:"request_timeout_seconds"`
	RequestsPerSecond     float64 `json:"requests_per_second"`
}

type AutomationConfig struct {
	// ShowBrowser runs the browser with a visible window.
	ShowBrowser        bool   `json:"show_browser"`
	StepTimeoutSeconds int    `json:"step_timeout_seconds"`
	BrowserBin         string `json:"browser_bin"`
	NoSandbox          bool   `json:"no_sandbox"`
}

type Config struct {
	Assist     AssistConfig     `json:"assist"`
	Automation AutomationConfig `json:"automation"`
}

var defaultConfig = Config{
	Assist: AssistConfig{
		BaseUrl:               assist.DefaultBaseUrl,
		RequestTimeoutSeconds: 30,
		RequestsPerSecond:     2,
	},
	Automation: AutomationConfig{
		StepTimeoutSeconds: 15,
	},
}

func loadConfig(path string) (Config, error) {
	return configutil.ReadConfigWithDefaults(path, defaultConfig)
}

func (c Config) AssistOptions() assist.Options {
	opts := assist.Options{
		BaseUrl:           c.Assist.BaseUrl,
		RequestTimeout:    time.Duration(c.Assist.RequestTimeoutSeconds) * time.Second,
		RequestsPerSecond: c.Assist.RequestsPerSecond,
	}
	if exchanges != nil {
		opts.Exchanges = exchanges
	}
	return opts
}

func (c Config) AutomationOptions() automation.Options {
	return automation.Options{
		BaseUrl:     c.Assist.BaseUrl,
		StepTimeout: time.Duration(c.Automation.StepTimeoutSeconds) * time.Second,
		Headless:    !c.Automation.ShowBrowser,
		BrowserBin:  c.Automation.BrowserBin,
		NoSandbox:   c.Automation.NoSandbox,
	}
}
