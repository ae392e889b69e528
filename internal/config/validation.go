package config

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidationResult captures a single validation finding.
type ValidationResult struct {
	Level   string `json:"level"` // "error" or "warning"
	Message string `json:"message"`
}

// Validate checks the configuration for values the updater cannot work with.
func (c Config) Validate() []ValidationResult {
	var results []ValidationResult
	results = append(results, c.validateURLs()...)
	results = append(results, c.validateArchive()...)
	results = append(results, c.validateUpdate()...)
	results = append(results, c.validateLog()...)
	return results
}

// Errors returns only error-level findings.
func Errors(results []ValidationResult) []ValidationResult {
	var out []ValidationResult
	for _, r := range results {
		if r.Level == "error" {
			out = append(out, r)
		}
	}
	return out
}

func (c Config) validateURLs() []ValidationResult {
	var results []ValidationResult
	checks := map[string]string{
		"inventory.url":      c.Inventory.URL,
		"network.github_api": c.Network.GitHubAPI,
	}
	if c.Inventory.BlacklistURL != "" {
		checks["inventory.blacklist_url"] = c.Inventory.BlacklistURL
	}
	for _, field := range []string{"inventory.url", "inventory.blacklist_url", "network.github_api"} {
		value, ok := checks[field]
		if !ok {
			continue
		}
		if !isHTTPURL(value) {
			results = append(results, ValidationResult{
				Level:   "error",
				Message: fmt.Sprintf("%s %q is not an http(s) URL", field, value),
			})
		}
	}
	return results
}

func (c Config) validateArchive() []ValidationResult {
	var results []ValidationResult
	if !strings.Contains(c.Archive.URLTemplate, "{filename}") {
		results = append(results, ValidationResult{
			Level:   "error",
			Message: fmt.Sprintf("archive.url_template %q has no {filename} placeholder", c.Archive.URLTemplate),
		})
	}
	if !c.Archive.Custom.Enabled {
		return results
	}
	if !isHTTPURL(c.Archive.Custom.URL) {
		results = append(results, ValidationResult{
			Level:   "error",
			Message: "archive.custom.url must be an http(s) URL when the custom archive is enabled",
		})
	}
	if c.Archive.Custom.Index == "" {
		results = append(results, ValidationResult{
			Level:   "warning",
			Message: "archive.custom.index is empty; checksums come from the default archive metadata",
		})
	}
	return results
}

func (c Config) validateUpdate() []ValidationResult {
	var results []ValidationResult
	if c.Update.Workers > 8 {
		results = append(results, ValidationResult{
			Level:   "warning",
			Message: fmt.Sprintf("update.workers %d is high; the archive may throttle parallel downloads", c.Update.Workers),
		})
	}
	if c.RenameEnabled() && (c.Rename.Owner == "" || c.Rename.Repo == "") {
		results = append(results, ValidationResult{
			Level:   "error",
			Message: "rename.owner and rename.repo are required when platform rename is enabled",
		})
	}
	return results
}

func (c Config) validateLog() []ValidationResult {
	switch strings.ToLower(c.Log.Level) {
	case "trace", "debug", "info", "warn", "error":
		return nil
	}
	return []ValidationResult{{
		Level:   "error",
		Message: fmt.Sprintf("log.level %q is not one of trace, debug, info, warn, error", c.Log.Level),
	}}
}

func isHTTPURL(value string) bool {
	u, err := url.Parse(strings.TrimSpace(value))
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
