// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads API keys from a directory of plain-text files.
// Each file in the directory represents one secret: the filename is the key
// name and the file contents (trimmed) are the value.
//
// Supported key files: gemini-api-key, openai-api-key, anthropic-api-key.
package secrets

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"k8s.io/klog/v2"

	"github.com/pdiddy/docflow/pkg/types"
)

// DefaultDir is the secrets directory used when none is configured.
const DefaultDir = ".secrets"

// keyFiles maps each provider to its secret file name and environment
// variable.
var keyFiles = map[types.Provider]struct{ file, env string }{
	types.ProviderGemini:    {"gemini-api-key", "GEMINI_API_KEY"},
	types.ProviderOpenAI:    {"openai-api-key", "OPENAI_API_KEY"},
	types.ProviderAnthropic: {"anthropic-api-key", "ANTHROPIC_API_KEY"},
}

// Load reads all files in dir and returns a map of filename to trimmed
// contents. A missing directory is not an error; Load returns an empty map.
// Unreadable files are logged and skipped.
func Load(dir string) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	secrets := make(map[string]string)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			klog.Warningf("could not read secret %s: %v", name, err)
			continue
		}
		if value := strings.TrimSpace(string(data)); value != "" {
			secrets[name] = value
		}
	}
	return secrets, nil
}

// APIKey returns the key for provider. The order is: configured, the
// provider's secret file, then its environment variable. An empty provider
// means gemini.
func APIKey(provider types.Provider, configured string, secrets map[string]string) string {
	if configured != "" {
		return configured
	}
	if provider == "" {
		provider = types.ProviderGemini
	}
	k, ok := keyFiles[provider]
	if !ok {
		return ""
	}
	if v := secrets[k.file]; v != "" {
		return v
	}
	return strings.TrimSpace(os.Getenv(k.env))
}
