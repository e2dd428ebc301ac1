package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	// EnvPrefix prefixes every environment override.
	EnvPrefix = "WIKIRAG_"

	maxConfigFileSize = 1024 * 1024 // 1MB
)

// nestedSections lists sections whose env keys contain a second level.
// WIKIRAG_VECTORSTORE_CHROMEM_PATH maps to vectorstore.chromem.path.
var nestedSections = map[string][]string{
	"vectorstore": {"chromem", "qdrant"},
}

// Load builds the configuration from defaults, an optional YAML file and
// WIKIRAG_* environment variables, in increasing order of precedence.
//
// An empty configPath means ~/.config/wikirag/config.yaml. A missing file is
// not an error. An existing file must be 0600 or 0400 and at most 1MB.
//
// Environment variables drop the prefix, lowercase, and split the first
// underscore into a section:
//
//	WIKIRAG_CHUNKING_SIZE            -> chunking.size
//	WIKIRAG_EMBEDDINGS_BATCH_SIZE    -> embeddings.batch_size
//	WIKIRAG_VECTORSTORE_QDRANT_HOST  -> vectorstore.qdrant.host
//
// API keys fall back to COHERE_API_KEY (or CO_API_KEY) and OPENAI_API_KEY.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		configPath = p
	}

	if _, err := os.Stat(configPath); err == nil {
		content, err := readConfigFile(configPath)
		if err != nil {
			return nil, err
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyKeyFallbacks(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// DefaultPath returns ~/.config/wikirag/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".config", "wikirag", "config.yaml"), nil
}

// readConfigFile validates and reads the file through one descriptor.
func readConfigFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if err := validateConfigFileProperties(info); err != nil {
		return nil, fmt.Errorf("config file validation failed: %w", err)
	}

	content, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return content, nil
}

// validateConfigFileProperties checks file permissions and size.
func validateConfigFileProperties(info os.FileInfo) error {
	if runtime.GOOS != "windows" {
		perm := info.Mode().Perm()
		if perm != 0600 && perm != 0400 {
			return fmt.Errorf("insecure config file permissions: %v (expected 0600 or 0400)", perm)
		}
	}
	if info.Size() > maxConfigFileSize {
		return fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
	}
	return nil
}

// envKey maps WIKIRAG_SECTION_FIELD_NAME to section.field_name.
func envKey(s string) string {
	lower := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	section, field, ok := strings.Cut(lower, "_")
	if !ok {
		return lower
	}
	for _, sub := range nestedSections[section] {
		if rest, found := strings.CutPrefix(field, sub+"_"); found {
			return section + "." + sub + "." + rest
		}
	}
	return section + "." + field
}

func applyKeyFallbacks(cfg *Config) {
	if !cfg.Cohere.APIKey.IsSet() {
		for _, name := range []string{"COHERE_API_KEY", "CO_API_KEY"} {
			if v := os.Getenv(name); v != "" {
				cfg.Cohere.APIKey = Secret(v)
				break
			}
		}
	}
	if !cfg.OpenAI.APIKey.IsSet() {
		cfg.OpenAI.APIKey = Secret(os.Getenv("OPENAI_API_KEY"))
	}
}
