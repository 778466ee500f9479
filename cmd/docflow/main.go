// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the docflow CLI. Each subcommand
// loads the active project from the local store, runs one workflow
// command, and saves the result.
package main

import (
	"flag"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"k8s.io/klog/v2"

	"github.com/pdiddy/docflow/internal/secrets"
	"github.com/pdiddy/docflow/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

const (
	defaultTimeout   = 120 * time.Second
	defaultUserAgent = "docflow/0.1"
)

// loadedSecrets holds API keys loaded from the secrets directory at startup.
var loadedSecrets map[string]string

// rootCmd is the base command for the docflow CLI.
var rootCmd = &cobra.Command{
	Use:   "docflow",
	Short: "Write long documents section by section with LLM agents",
	Long: `docflow drives a document from outline to finished text. An Outliner
agent drafts the outline, a Writer agent drafts each section with the
context you choose, and a Researcher agent finds sources for a section.

State lives in a local SQLite database. The active project, flow, and
section are remembered between invocations, so commands compose:

  docflow project new "Field Guide"
  docflow flow new "Sourdough"
  docflow outline chat "outline a beginner's guide to sourdough"
  docflow outline finalize
  docflow section select 1
  docflow section generate
  docflow section commit
  docflow export`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		s, err := secrets.Load(viper.GetString("secrets_dir"))
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			klog.V(1).Infof("loaded secrets: %v", keys)
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "config file (default: ./docflow.yaml or ~/.config/docflow/config.yaml)")
	pf.String("db", "", "project database (default .docflow/docflow.db)")
	pf.String("provider", "", "model provider: gemini, openai, or anthropic")
	pf.String("model", "", "model identifier")
	pf.String("secrets-dir", secrets.DefaultDir, "directory of API key files")

	_ = viper.BindPFlag("store.path", pf.Lookup("db"))
	_ = viper.BindPFlag("ai.provider", pf.Lookup("provider"))
	_ = viper.BindPFlag("ai.model", pf.Lookup("model"))
	_ = viper.BindPFlag("secrets_dir", pf.Lookup("secrets-dir"))

	viper.SetDefault("ai.timeout", defaultTimeout)
	viper.SetDefault("ai.max_tokens", 8192)
	viper.SetDefault("ai.rate_limit_retries", 5)
	viper.SetDefault("research.source", string(types.ResearchModel))
	viper.SetDefault("research.timeout", 30*time.Second)
	viper.SetDefault("draft_concurrency", 2)

	klogFlags := flag.NewFlagSet("klog", flag.ExitOnError)
	klog.InitFlags(klogFlags)
	pf.AddGoFlagSet(klogFlags)
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("docflow")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "docflow"))
		}
	}

	viper.SetEnvPrefix("DOCFLOW")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		klog.V(1).Infof("using config file: %s", viper.ConfigFileUsed())
	}
}

// appConfig assembles the typed configuration from flags, the config file,
// and the environment.
func appConfig() types.Config {
	userAgent := viper.GetString("user_agent")
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	provider := types.Provider(viper.GetString("ai.provider"))
	return types.Config{
		AI: types.AIConfig{
			HTTPConfig: types.HTTPConfig{
				Timeout:   viper.GetDuration("ai.timeout"),
				UserAgent: userAgent,
			},
			Provider:         provider,
			Model:            viper.GetString("ai.model"),
			APIKey:           secrets.APIKey(provider, viper.GetString("ai.api_key"), loadedSecrets),
			BaseURL:          viper.GetString("ai.base_url"),
			MaxTokens:        viper.GetInt("ai.max_tokens"),
			RateLimitRetries: viper.GetInt("ai.rate_limit_retries"),
		},
		Research: types.ResearchConfig{
			HTTPConfig: types.HTTPConfig{
				Timeout:   viper.GetDuration("research.timeout"),
				UserAgent: userAgent,
			},
			Source:         types.ResearchSource(viper.GetString("research.source")),
			PlaceholderURL: viper.GetString("research.placeholder_url"),
			DefaultSummary: viper.GetString("research.default_summary"),
		},
		Store: types.StoreConfig{Path: viper.GetString("store.path")},
		Convert: types.ConvertConfig{
			Markitdown: viper.GetBool("convert.markitdown"),
			Image:      viper.GetString("convert.image"),
		},
		DraftConcurrency: viper.GetInt("draft_concurrency"),
	}
}

func main() {
	defer klog.Flush()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
