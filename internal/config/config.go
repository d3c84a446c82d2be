package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rflorenc/apim-template-extractor/internal/extract"
	"github.com/rflorenc/apim-template-extractor/internal/logging"
	"github.com/rflorenc/apim-template-extractor/internal/models"
	"github.com/rflorenc/apim-template-extractor/internal/platform"
)

// Defaults applied to anything still unset after flags and the config file.
const (
	DefaultListen     = ":8080"
	DefaultMaxRetries = 4
	DefaultTimeout    = 60 * time.Second
)

// Config holds all configuration (CLI flags + config file). The yaml and
// json names match the extractor's command-line flags.
type Config struct {
	SourceService                 string `yaml:"sourceApimName" json:"sourceApimName"`
	DestinationService            string `yaml:"destinationApimName" json:"destinationApimName"`
	ResourceGroup                 string `yaml:"resourceGroup" json:"resourceGroup"`
	SubscriptionID                string `yaml:"subscriptionId" json:"subscriptionId"`
	FileFolder                    string `yaml:"fileFolder" json:"fileFolder"`
	APIName                       string `yaml:"apiName" json:"apiName,omitempty"`
	LinkedTemplatesBaseURL        string `yaml:"linkedTemplatesBaseUrl" json:"linkedTemplatesBaseUrl,omitempty"`
	LinkedTemplatesURLQueryString string `yaml:"linkedTemplatesUrlQueryString" json:"linkedTemplatesUrlQueryString,omitempty"`
	PolicyXMLBaseURL              string `yaml:"policyXMLBaseUrl" json:"policyXMLBaseUrl,omitempty"`

	// Management API access
	Endpoint   string        `yaml:"endpoint" json:"endpoint,omitempty"`
	Token      string        `yaml:"token" json:"-"`
	APIVersion string        `yaml:"apiVersion" json:"apiVersion,omitempty"`
	Workers    int           `yaml:"workers" json:"workers,omitempty"`
	MaxRetries int           `yaml:"maxRetries" json:"maxRetries,omitempty"`
	Timeout    time.Duration `yaml:"timeout" json:"timeout,omitempty"`

	LogLevel  string `yaml:"logLevel" json:"-"`
	LogFormat string `yaml:"logFormat" json:"-"`
	Listen    string `yaml:"listen" json:"-"`
}

// LoadFile reads a YAML config file. Values from the file are only applied
// where the corresponding flag was not set.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	var file Config
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	c.Fill(file)
	return nil
}

// Fill copies every field of d that is unset in c.
func (c *Config) Fill(d Config) {
	fillString(&c.SourceService, d.SourceService)
	fillString(&c.DestinationService, d.DestinationService)
	fillString(&c.ResourceGroup, d.ResourceGroup)
	fillString(&c.SubscriptionID, d.SubscriptionID)
	fillString(&c.FileFolder, d.FileFolder)
	fillString(&c.APIName, d.APIName)
	fillString(&c.LinkedTemplatesBaseURL, d.LinkedTemplatesBaseURL)
	fillString(&c.LinkedTemplatesURLQueryString, d.LinkedTemplatesURLQueryString)
	fillString(&c.PolicyXMLBaseURL, d.PolicyXMLBaseURL)
	fillString(&c.Endpoint, d.Endpoint)
	fillString(&c.Token, d.Token)
	fillString(&c.APIVersion, d.APIVersion)
	fillString(&c.LogLevel, d.LogLevel)
	fillString(&c.LogFormat, d.LogFormat)
	fillString(&c.Listen, d.Listen)
	if c.Workers == 0 {
		c.Workers = d.Workers
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = d.MaxRetries
	}
	if c.Timeout == 0 {
		c.Timeout = d.Timeout
	}
}

func fillString(dst *string, v string) {
	if *dst == "" {
		*dst = v
	}
}

// ApplyDefaults sets anything still unset.
func (c *Config) ApplyDefaults() {
	c.Fill(Config{
		Endpoint:   models.DefaultManagementEndpoint,
		APIVersion: models.APIManagementAPIVersion,
		Workers:    extract.DefaultWorkers,
		MaxRetries: DefaultMaxRetries,
		Timeout:    DefaultTimeout,
		LogLevel:   "info",
		LogFormat:  string(logging.FormatText),
		Listen:     DefaultListen,
	})
}

// Validate reports every missing required parameter at once.
func (c *Config) Validate() error {
	var errs []error
	required := []struct {
		name, value string
	}{
		{"sourceApimName", c.SourceService},
		{"destinationApimName", c.DestinationService},
		{"resourceGroup", c.ResourceGroup},
		{"subscriptionId", c.SubscriptionID},
		{"fileFolder", c.FileFolder},
	}
	for _, r := range required {
		if r.value == "" {
			errs = append(errs, models.MissingParameter(r.name))
		}
	}
	if !platform.VersionAtLeast(c.APIVersion, platform.MinAPIVersion) {
		errs = append(errs, fmt.Errorf("apiVersion %s is older than %s", c.APIVersion, platform.MinAPIVersion))
	}
	if c.Workers < 0 {
		errs = append(errs, fmt.Errorf("workers must not be negative, got %d", c.Workers))
	}
	return errors.Join(errs...)
}

// Service returns the source service the readers connect to.
func (c *Config) Service() *models.Service {
	return &models.Service{
		Endpoint:       c.Endpoint,
		SubscriptionID: c.SubscriptionID,
		ResourceGroup:  c.ResourceGroup,
		Name:           c.SourceService,
		Token:          c.Token,
	}
}

// ClientOptions returns the platform client settings.
func (c *Config) ClientOptions() []platform.Option {
	opts := []platform.Option{platform.WithTimeout(c.Timeout)}
	if c.APIVersion != "" {
		opts = append(opts, platform.WithAPIVersion(c.APIVersion))
	}
	if c.MaxRetries > 0 {
		opts = append(opts, platform.WithRetry(uint64(c.MaxRetries), 0, 0))
	}
	return opts
}

// ExtractOptions returns the pipeline options of a run.
func (c *Config) ExtractOptions() extract.Options {
	return extract.Options{
		SourceService:                 c.SourceService,
		DestinationService:            c.DestinationService,
		API:                           c.APIName,
		LinkedTemplatesBaseURL:        c.LinkedTemplatesBaseURL,
		LinkedTemplatesURLQueryString: c.LinkedTemplatesURLQueryString,
		PolicyXMLBaseURL:              c.PolicyXMLBaseURL,
		Workers:                       c.Workers,
	}
}

// Logging returns the logger configuration.
func (c *Config) Logging() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = logging.ParseLevel(c.LogLevel)
	cfg.Format = logging.ParseFormat(c.LogFormat)
	return cfg
}
