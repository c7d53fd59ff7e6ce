package relay

import (
	"fmt"
	"os"
	"time"

	"github.com/umodzirx/auth-relay/pkg/idp"
	"gopkg.in/yaml.v3"
)

type PatientVerifyConfig struct {
	// RedirectURI registered at the identity provider for the
	// verification leg.
	RedirectURI string `yaml:"redirect-uri"`
	// DashboardURL of the staff view receiving the verified patient.
	DashboardURL string `yaml:"dashboard-url"`
}

type Config struct {
	Provider            idp.Config          `yaml:"provider"`
	FrontendCallbackURL string              `yaml:"frontend-callback-url"`
	ErrorURL            string              `yaml:"error-url"`
	PatientVerify       PatientVerifyConfig `yaml:"patient-verify"`
	CodeTTL             time.Duration       `yaml:"code-ttl"`
	TokenTTL            time.Duration       `yaml:"token-ttl"`
}

func LoadConfig(path string) (*Config, error) {
	yamlData, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}
	yamlData = []byte(os.ExpandEnv(string(yamlData)))

	var config Config
	err = yaml.Unmarshal(yamlData, &config)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal config file '%s': %w", path, err)
	}
	return &config, nil
}
