package config

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// ValidationResult captures a single validation finding.
type ValidationResult struct {
	Level   string `json:"level"` // "error" or "warning"
	Message string `json:"message"`
}

// Validate checks the configuration against the known component and profile
// names and returns structured results.
func (c Config) Validate(knownComponents, knownProfiles []string) []ValidationResult {
	var results []ValidationResult
	results = append(results, c.validateProfile(knownProfiles)...)
	results = append(results, c.validateComponentRefs(knownComponents)...)
	results = append(results, c.validateDownloads()...)
	results = append(results, c.validateTweaks()...)
	return results
}

// HasErrors reports whether any result is an error.
func HasErrors(results []ValidationResult) bool {
	for _, r := range results {
		if r.Level == "error" {
			return true
		}
	}
	return false
}

func (c Config) validateProfile(knownProfiles []string) []ValidationResult {
	if c.Profile == "" {
		return nil
	}
	for _, p := range knownProfiles {
		if p == c.Profile {
			return nil
		}
	}
	return []ValidationResult{{
		Level:   "error",
		Message: fmt.Sprintf("profile %q does not exist (known profiles: %s)", c.Profile, strings.Join(knownProfiles, ", ")),
	}}
}

func (c Config) validateComponentRefs(knownComponents []string) []ValidationResult {
	known := make(map[string]bool, len(knownComponents))
	for _, name := range knownComponents {
		known[name] = true
	}

	var results []ValidationResult
	check := func(field, name string, level string) {
		if known[name] {
			return
		}
		results = append(results, ValidationResult{
			Level:   level,
			Message: fmt.Sprintf("%s references unknown component %q", field, name),
		})
	}
	for _, name := range c.Components {
		check("components", name, "error")
	}
	for _, name := range c.Exclude {
		check("exclude", name, "warning")
	}
	for _, name := range sortedKeys(c.Versions) {
		check("versions", name, "warning")
	}
	for _, name := range sortedKeys(c.Minimums) {
		check("minimums", name, "warning")
	}
	return results
}

func (c Config) validateDownloads() []ValidationResult {
	var results []ValidationResult
	if c.Downloads.Connections > 16 {
		results = append(results, ValidationResult{
			Level:   "warning",
			Message: fmt.Sprintf("downloads.connections = %d; servers often throttle more than 16 connections", c.Downloads.Connections),
		})
	}
	if c.Downloads.Retries > 10 {
		results = append(results, ValidationResult{
			Level:   "warning",
			Message: fmt.Sprintf("downloads.retries = %d is unusually high", c.Downloads.Retries),
		})
	}
	if endpoint := strings.TrimSpace(c.Downloads.Mirror.Endpoint); endpoint != "" {
		if _, err := url.ParseRequestURI(endpoint); err != nil {
			results = append(results, ValidationResult{
				Level:   "error",
				Message: fmt.Sprintf("downloads.mirror.endpoint %q is not a valid URL", endpoint),
			})
		}
		if !c.Downloads.Mirror.Enabled() {
			results = append(results, ValidationResult{
				Level:   "warning",
				Message: "downloads.mirror.endpoint is set but no bucket is configured",
			})
		}
	}
	if (strings.TrimSpace(c.Downloads.Mirror.AccessKeyEnv) == "") != (strings.TrimSpace(c.Downloads.Mirror.SecretKeyEnv) == "") {
		results = append(results, ValidationResult{
			Level:   "warning",
			Message: "downloads.mirror needs both access_key_env and secret_key_env; using the default AWS credential chain",
		})
	}
	if u := strings.TrimSpace(c.ConnectivityURL); u != "" {
		if _, err := url.ParseRequestURI(u); err != nil {
			results = append(results, ValidationResult{
				Level:   "error",
				Message: fmt.Sprintf("connectivity_url %q is not a valid URL", u),
			})
		}
	}
	return results
}

func (c Config) validateTweaks() []ValidationResult {
	var results []ValidationResult
	if v := c.Tweaks.SwappinessValue(); v < 0 || v > 200 {
		results = append(results, ValidationResult{
			Level:   "error",
			Message: fmt.Sprintf("tweaks.swappiness must be between 0 and 200, got %d", v),
		})
	}
	for name := range c.Tweaks.ShellAliases {
		if strings.ContainsAny(name, " \t='\"") {
			results = append(results, ValidationResult{
				Level:   "error",
				Message: fmt.Sprintf("tweaks.shell_aliases: invalid alias name %q", name),
			})
		}
	}
	return results
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
