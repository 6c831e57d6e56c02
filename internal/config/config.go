package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "MANIFESTGEN"

type Config struct {
	LogLevel  string
	LogFormat string

	// Generation
	Format       string
	OutputDir    string
	AttributeKey string
	Concurrency  int
	// Roles adds grouping rules on top of the defaults, as
	// "role=group[+group...]" entries.
	Roles []string

	// MetricsTextfile, when set, receives the run's metrics in Prometheus
	// text format after each generate run.
	MetricsTextfile string

	// S3 output; used instead of OutputDir when S3Bucket is set.
	S3Endpoint  string
	S3Region    string
	S3Bucket    string
	S3Prefix    string
	S3AccessKey string
	S3SecretKey string

	// HTTP service
	ListenAddr  string
	MetricsAddr string
	TLSCert     string
	TLSKey      string
	TLSClientCA string

	// Deployment driver
	DeployUser string
	InstallDir string
	ChefDir    string
	BundleDir  string
	RepoURL    string
	Platform   string
	Package    string
}

var defaults = map[string]any{
	"log-level":        "info",
	"log-format":       "json",
	"format":           "json",
	"output-dir":       ".",
	"attribute-key":    "cluster",
	"concurrency":      1,
	"role":             []string{},
	"metrics-textfile": "",
	"s3-endpoint":      "",
	"s3-region":        "us-east-1",
	"s3-bucket":        "",
	"s3-prefix":        "",
	"s3-access-key":    "",
	"s3-secret-key":    "",
	"listen-addr":      ":8400",
	"metrics-addr":     "",
	"tls-cert":         "",
	"tls-key":          "",
	"tls-client-ca":    "",
	"deploy-user":      "root",
	"install-dir":      "/opt/install_cluster",
	"chef-dir":         "",
	"bundle-dir":       "chef",
	"repo-url":         "http://package.mapr.com/releases",
	"platform":         "redhat",
	"package":          "mapr",
}

// Load resolves configuration from defaults, MANIFESTGEN_* environment
// variables and, when flags is non-nil, any flag the user set explicitly.
// Flag names double as keys: --log-level maps to MANIFESTGEN_LOG_LEVEL.
func Load(flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	cfg := &Config{
		LogLevel:        v.GetString("log-level"),
		LogFormat:       v.GetString("log-format"),
		Format:          v.GetString("format"),
		OutputDir:       v.GetString("output-dir"),
		AttributeKey:    v.GetString("attribute-key"),
		Concurrency:     v.GetInt("concurrency"),
		Roles:           v.GetStringSlice("role"),
		MetricsTextfile: v.GetString("metrics-textfile"),
		S3Endpoint:      v.GetString("s3-endpoint"),
		S3Region:        v.GetString("s3-region"),
		S3Bucket:        v.GetString("s3-bucket"),
		S3Prefix:        v.GetString("s3-prefix"),
		S3AccessKey:     v.GetString("s3-access-key"),
		S3SecretKey:     v.GetString("s3-secret-key"),
		ListenAddr:      v.GetString("listen-addr"),
		MetricsAddr:     v.GetString("metrics-addr"),
		TLSCert:         v.GetString("tls-cert"),
		TLSKey:          v.GetString("tls-key"),
		TLSClientCA:     v.GetString("tls-client-ca"),
		DeployUser:      v.GetString("deploy-user"),
		InstallDir:      v.GetString("install-dir"),
		ChefDir:         v.GetString("chef-dir"),
		BundleDir:       v.GetString("bundle-dir"),
		RepoURL:         v.GetString("repo-url"),
		Platform:        v.GetString("platform"),
		Package:         v.GetString("package"),
	}

	if cfg.Concurrency < 1 {
		return nil, fmt.Errorf("concurrency must be at least 1, got %d", cfg.Concurrency)
	}
	if cfg.AttributeKey == "" || cfg.AttributeKey == "run_list" {
		return nil, fmt.Errorf("attribute key %q is reserved or empty", cfg.AttributeKey)
	}

	return cfg, nil
}
