// Package config loads the YAML configuration file and applies
// environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

type HTTPConfig struct {
	Addr      string `yaml:"addr"`
	AuthToken string `yaml:"auth_token,omitempty"`
	RPM       int    `yaml:"rpm,omitempty"`
}

type OllamaConfig struct {
	Host       string `yaml:"host"`
	ChatModel  string `yaml:"chat_model"`
	EmbedModel string `yaml:"embed_model"`
}

// Duration parses YAML values like "15m" or "1h30m".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

type AgentsConfig struct {
	CalendarInterval Duration `yaml:"calendar_interval"`
	EmailInterval    Duration `yaml:"email_interval"`
	EmailBatchSize   int      `yaml:"email_batch_size"`
}

type GoogleConfig struct {
	CredentialsPath string `yaml:"credentials_path"`
	TokenPath       string `yaml:"token_path"`
}

type CollectorConfig struct {
	InboxDir string `yaml:"inbox_dir"`
	APIURL   string `yaml:"api_url"`
}

type Config struct {
	DataDir   string          `yaml:"data_dir"`
	HTTP      HTTPConfig      `yaml:"http"`
	Ollama    OllamaConfig    `yaml:"ollama"`
	Agents    AgentsConfig    `yaml:"agents"`
	Google    GoogleConfig    `yaml:"google"`
	Collector CollectorConfig `yaml:"collector"`
}

func Default() *Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	dataDir := filepath.Join(home, ".engram")
	return &Config{
		DataDir: dataDir,
		HTTP: HTTPConfig{
			Addr: ":8000",
		},
		Ollama: OllamaConfig{
			Host:       "http://localhost:11434",
			ChatModel:  "llama3.1:latest",
			EmbedModel: "nomic-embed-text:latest",
		},
		Agents: AgentsConfig{
			CalendarInterval: Duration(15 * time.Minute),
			EmailInterval:    Duration(time.Hour),
			EmailBatchSize:   5,
		},
		Google: GoogleConfig{
			CredentialsPath: filepath.Join(dataDir, "credentials.json"),
			TokenPath:       filepath.Join(dataDir, "token.json"),
		},
		Collector: CollectorConfig{
			InboxDir: filepath.Join(dataDir, "inbox"),
			APIURL:   "http://localhost:8000",
		},
	}
}

// Load reads the config file at path, falling back to defaults when
// the file does not exist, then applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// Defaults only.
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("ENGRAM_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("OLLAMA_HOST"); v != "" {
		c.Ollama.Host = v
	}
	if v := os.Getenv("ENGRAM_AUTH_TOKEN"); v != "" {
		c.HTTP.AuthToken = v
	}
	if v := os.Getenv("ENGRAM_API_URL"); v != "" {
		c.Collector.APIURL = v
	}
}

// MemoryDBPath is the location of the vector memory database.
func (c *Config) MemoryDBPath() string {
	return filepath.Join(c.DataDir, "memories.db")
}

// AgentDBPath is the location of the agent ledger and activity log.
func (c *Config) AgentDBPath() string {
	return filepath.Join(c.DataDir, "agents.db")
}

// IdentityPath is the location of the persisted user identity.
func (c *Config) IdentityPath() string {
	return filepath.Join(c.DataDir, "identity.json")
}
