package config

import (
	"strings"
	"testing"
)

var (
	testComponents = []string{"git", "helm", "kubectl", "swappiness"}
	testProfiles   = []string{"minimal", "developer", "full"}
)

func errorsOf(results []ValidationResult) []ValidationResult {
	var out []ValidationResult
	for _, r := range results {
		if r.Level == "error" {
			out = append(out, r)
		}
	}
	return out
}

func TestValidateDefaultsClean(t *testing.T) {
	cfg := Default()
	results := cfg.Validate(testComponents, testProfiles)
	if HasErrors(results) {
		t.Fatalf("expected no errors, got %v", results)
	}
}

func TestValidateUnknownProfile(t *testing.T) {
	cfg := Default()
	cfg.Profile = "gamer"

	errs := errorsOf(cfg.Validate(testComponents, testProfiles))
	if len(errs) != 1 || !strings.Contains(errs[0].Message, `profile "gamer"`) {
		t.Fatalf("expected unknown profile error, got %v", errs)
	}
}

func TestValidateUnknownComponents(t *testing.T) {
	cfg := Default()
	cfg.Components = []string{"helm", "emacs"}
	cfg.Exclude = []string{"vim"}

	results := cfg.Validate(testComponents, testProfiles)
	errs := errorsOf(results)
	if len(errs) != 1 || !strings.Contains(errs[0].Message, `"emacs"`) {
		t.Fatalf("expected one error for emacs, got %v", errs)
	}

	var warnedVim bool
	for _, r := range results {
		if r.Level == "warning" && strings.Contains(r.Message, `"vim"`) {
			warnedVim = true
		}
	}
	if !warnedVim {
		t.Fatalf("expected warning for excluded unknown component, got %v", results)
	}
}

func TestValidateSwappinessRange(t *testing.T) {
	cfg := Default()
	cfg.Tweaks.Swappiness = intPtr(250)

	errs := errorsOf(cfg.Validate(testComponents, testProfiles))
	if len(errs) != 1 || !strings.Contains(errs[0].Message, "swappiness") {
		t.Fatalf("expected swappiness error, got %v", errs)
	}
}

func TestValidateMirrorEndpoint(t *testing.T) {
	cfg := Default()
	cfg.Downloads.Mirror.Endpoint = "not a url"

	results := cfg.Validate(testComponents, testProfiles)
	if len(errorsOf(results)) != 1 {
		t.Fatalf("expected endpoint error, got %v", results)
	}
}

func TestValidateMirrorCredentialPair(t *testing.T) {
	cfg := Default()
	cfg.Downloads.Mirror.Bucket = "artifacts"
	cfg.Downloads.Mirror.AccessKeyEnv = "MIRROR_KEY"

	results := cfg.Validate(testComponents, testProfiles)
	if HasErrors(results) {
		t.Fatalf("half a credential pair should only warn, got %v", results)
	}
	found := false
	for _, r := range results {
		if r.Level == "warning" && strings.Contains(r.Message, "secret_key_env") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected credential pair warning, got %v", results)
	}

	cfg.Downloads.Mirror.SecretKeyEnv = "MIRROR_SECRET"
	for _, r := range cfg.Validate(testComponents, testProfiles) {
		if strings.Contains(r.Message, "secret_key_env") {
			t.Fatalf("complete pair still warned: %v", r)
		}
	}
}

func TestValidateAliasNames(t *testing.T) {
	cfg := Default()
	cfg.Tweaks.ShellAliases = map[string]string{"bad name": "ls"}

	if !HasErrors(cfg.Validate(testComponents, testProfiles)) {
		t.Fatal("expected alias validation error")
	}
}
