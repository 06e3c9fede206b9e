package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/mlindner/mailsort/internal/category"
	"github.com/mlindner/mailsort/internal/classify"
	"github.com/mlindner/mailsort/internal/logging"
	"github.com/mlindner/mailsort/internal/pipeline"
	"github.com/mlindner/mailsort/internal/server"
)

// Configuration keys recognized in the config file and as MAILSORT_*
// environment variables.
const (
	cfgAccount         = "account"
	cfgModel           = "model"
	cfgCategories      = "categories"
	cfgLabelOverrides  = "label_overrides"
	cfgCustomPrompt    = "custom_prompt"
	cfgMaxTextBytes    = "max_text_bytes"
	cfgDefaultMaxCount = "default_max_count"
)

// initConfig loads the mailsort config file and environment variables.
// The config file is optional; defaults cover everything except credentials.
func initConfig() {
	viper.SetConfigName("mailsort")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		viper.AddConfigPath(filepath.Join(home, ".config", "mailsort"))
	}
	viper.SetEnvPrefix("mailsort")
	viper.AutomaticEnv()

	viper.SetDefault(cfgAccount, "default")
	viper.SetDefault(cfgMaxTextBytes, pipeline.DefaultMaxTextLength)
	viper.SetDefault(cfgDefaultMaxCount, pipeline.DefaultMaxCount)

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}

	logging.Configure()
}

// runConfigFromViper assembles the run configuration shared by all commands
// from the loaded config.
func runConfigFromViper() (server.RunConfig, error) {
	overrides, err := labelOverrides(viper.GetStringMapString(cfgLabelOverrides))
	if err != nil {
		return server.RunConfig{}, err
	}

	allowed, err := allowedCategories(viper.GetStringSlice(cfgCategories))
	if err != nil {
		return server.RunConfig{}, err
	}

	return server.RunConfig{
		MaxTextLength: viper.GetInt(cfgMaxTextBytes),
		LabelNames:    overrides,
		DefaultOptions: pipeline.Options{
			MaxCount:     viper.GetInt64(cfgDefaultMaxCount),
			Allowed:      allowed,
			Instructions: viper.GetString(cfgCustomPrompt),
		},
	}, nil
}

// labelOverrides converts the label_overrides config map into category keys.
// Unknown category names are rejected so typos surface at startup instead of
// leaving messages unlabeled at run time.
func labelOverrides(raw map[string]string) (map[category.Category]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	overrides := make(map[category.Category]string, len(raw))
	for name, label := range raw {
		cat, err := category.Parse(name)
		if err != nil {
			return nil, fmt.Errorf("invalid label_overrides entry: %w", err)
		}
		if strings.TrimSpace(label) == "" {
			return nil, fmt.Errorf("label_overrides entry for %s has an empty label name", cat)
		}
		overrides[cat] = label
	}
	return overrides, nil
}

// allowedCategories parses the categories config list. An empty list allows
// all stock categories.
func allowedCategories(names []string) ([]category.Category, error) {
	if len(names) == 0 {
		return nil, nil
	}

	cats, err := category.ParseList(strings.Join(names, ","))
	if err != nil {
		return nil, fmt.Errorf("invalid categories entry: %w", err)
	}
	return cats, nil
}

// newClassifier builds the shared classification client. Returns nil without
// error when OPENAI_API_KEY is not set; callers decide whether a classifier
// is required for their mode.
func newClassifier() (*classify.Client, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, nil
	}

	return classify.New(classify.Config{
		APIKey: apiKey,
		Model:  viper.GetString(cfgModel),
	})
}
