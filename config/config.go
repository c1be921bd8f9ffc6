package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Log        LogConfig        `yaml:"log"`
	Auth       AuthConfig       `yaml:"auth"`
	Users      []User           `yaml:"users"`
	Store      StoreConfig      `yaml:"store"`
	Storage    StorageConfig    `yaml:"storage"`
	Calculator CalculatorConfig `yaml:"calculator"`
	Analysis   AnalysisConfig   `yaml:"analysis"`
	History    HistoryConfig    `yaml:"history"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type AuthConfig struct {
	JWTSecret        string `yaml:"jwt_secret"`
	TokenExpireHours int    `yaml:"token_expire_hours"`
}

type User struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Tenant   string `yaml:"tenant"`
}

type StoreConfig struct {
	MaxJobs int `yaml:"max_jobs"`
}

// StorageConfig selects where uploaded structures and result
// artifacts live: "local" (disk, default) or "minio".
type StorageConfig struct {
	Backend string             `yaml:"backend"`
	Local   LocalStorageConfig `yaml:"local"`
	Minio   MinioConfig        `yaml:"minio"`
}

type LocalStorageConfig struct {
	Root string `yaml:"root"`
}

type MinioConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// CalculatorConfig points at the external ML-potential inference
// service. An empty endpoint means no calculator: analysis runs in
// degraded mode with placeholder energetics.
type CalculatorConfig struct {
	Endpoint       string `yaml:"endpoint"`
	APIToken       string `yaml:"api_token"`
	Model          string `yaml:"model"`
	Device         string `yaml:"device"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// AnalysisConfig carries the server-side defaults for a run;
// per-request settings override them field by field.
type AnalysisConfig struct {
	Fmax         float64 `yaml:"fmax"`
	MaxSteps     int     `yaml:"max_steps"`
	Separation   float64 `yaml:"separation"`
	Method       string  `yaml:"method"`
	Basis        string  `yaml:"basis"`
	Charge       int     `yaml:"charge"`
	Multiplicity int     `yaml:"multiplicity"`
}

// HistoryConfig configures the sqlite job-history archive. An empty
// path disables archiving.
type HistoryConfig struct {
	Path string `yaml:"path"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	// Set defaults
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Auth.TokenExpireHours == 0 {
		cfg.Auth.TokenExpireHours = 24
	}
	if cfg.Store.MaxJobs == 0 {
		cfg.Store.MaxJobs = 100
	}
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = "local"
	}
	if cfg.Storage.Local.Root == "" {
		cfg.Storage.Local.Root = "data"
	}
	if cfg.Calculator.Model == "" {
		cfg.Calculator.Model = "gemnet_oc"
	}
	if cfg.Calculator.Device == "" {
		cfg.Calculator.Device = "cpu"
	}
	if cfg.Calculator.TimeoutSeconds == 0 {
		cfg.Calculator.TimeoutSeconds = 60
	}
	if cfg.Analysis.Fmax == 0 {
		cfg.Analysis.Fmax = 0.05
	}
	if cfg.Analysis.MaxSteps == 0 {
		cfg.Analysis.MaxSteps = 200
	}
	if cfg.Analysis.Separation == 0 {
		cfg.Analysis.Separation = 3.0
	}
	if cfg.Analysis.Method == "" {
		cfg.Analysis.Method = "B3LYP"
	}
	if cfg.Analysis.Basis == "" {
		cfg.Analysis.Basis = "6-31G(d)"
	}
	if cfg.Analysis.Multiplicity == 0 {
		cfg.Analysis.Multiplicity = 1
	}

	return &cfg, nil
}

// FindUser finds a user by username
func (c *Config) FindUser(username string) *User {
	for i := range c.Users {
		if c.Users[i].Username == username {
			return &c.Users[i]
		}
	}
	return nil
}
