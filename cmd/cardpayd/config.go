package main

import (
	"encoding/json"
	"io/ioutil"
	"os"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

type config struct {
	ListenAddress         string `json:"listen_address"`
	GatewayBaseUrl        string `json:"gateway_base_url"`
	PublicBaseUrl         string `json:"public_base_url"`
	ApiKey                string `json:"api_key,omitempty"`
	TokenSecret           string `json:"token_secret,omitempty"`
	DefaultCurrency       string `json:"default_currency,omitempty"`
	RedisUrl              string `json:"redis_url,omitempty"`
	JournalTtlHours       int    `json:"journal_ttl_hours,omitempty"`
	ChallengeTtlMinutes   int    `json:"challenge_ttl_minutes,omitempty"`
	GatewayTimeoutSeconds int    `json:"gateway_timeout_seconds,omitempty"`
	LogLevel              string `json:"log_level,omitempty"`
}

func ReadConfig(source string) (c *config, err error) {
	var raw []byte
	raw, err = ioutil.ReadFile(source)
	if err != nil {
		eMsg := "error reading config from file"
		log.WithError(err).Error(eMsg)
		err = errors.Wrap(err, eMsg)
		return
	}
	err = json.Unmarshal(raw, &c)
	if err != nil {
		eMsg := "error parsing config from json"
		log.WithError(err).Error(eMsg)
		err = errors.Wrap(err, eMsg)
		c = nil
		return
	}
	c.applyEnv()
	c.applyDefaults()
	err = c.Validate()
	if err != nil {
		c = nil
	}
	return
}

// secrets may be kept out of the config file
func (c *config) applyEnv() {
	if v := os.Getenv("CARDPAY_API_KEY"); v != "" {
		c.ApiKey = v
	}
	if v := os.Getenv("CARDPAY_TOKEN_SECRET"); v != "" {
		c.TokenSecret = v
	}
	if v := os.Getenv("CARDPAY_REDIS_URL"); v != "" {
		c.RedisUrl = v
	}
}

func (c *config) applyDefaults() {
	if c.ListenAddress == "" {
		c.ListenAddress = ":8080"
	}
	if c.DefaultCurrency == "" {
		c.DefaultCurrency = "SAR"
	}
	if c.JournalTtlHours <= 0 {
		c.JournalTtlHours = 72
	}
	if c.ChallengeTtlMinutes <= 0 {
		c.ChallengeTtlMinutes = 30
	}
	if c.GatewayTimeoutSeconds <= 0 {
		c.GatewayTimeoutSeconds = 60
	}
}

func (c *config) Validate() error {
	if c.GatewayBaseUrl == "" {
		return errors.New("gateway_base_url is required")
	}
	if c.PublicBaseUrl == "" {
		return errors.New("public_base_url is required")
	}
	if c.ApiKey == "" {
		return errors.New("api_key is required")
	}
	if len(c.TokenSecret) < 16 {
		return errors.New("token_secret must be at least 16 characters")
	}
	return nil
}

func (c *config) JournalTTL() time.Duration {
	return time.Duration(c.JournalTtlHours) * time.Hour
}

// ChallengeTTL bounds both the return token and the pending challenge.
func (c *config) ChallengeTTL() time.Duration {
	return time.Duration(c.ChallengeTtlMinutes) * time.Minute
}

func (c *config) GatewayTimeout() time.Duration {
	return time.Duration(c.GatewayTimeoutSeconds) * time.Second
}
