package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(body), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestReadConfigDefaults(t *testing.T) {
	t.Setenv("CARDPAY_API_KEY", "")
	t.Setenv("CARDPAY_TOKEN_SECRET", "")
	t.Setenv("CARDPAY_REDIS_URL", "")

	path := writeConfig(t, `{
		"gateway_base_url": "https://api.gateway.example",
		"public_base_url": "https://pay.example",
		"api_key": "sk_test",
		"token_secret": "0123456789abcdef"
	}`)
	c, err := ReadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if c.ListenAddress != ":8080" || c.DefaultCurrency != "SAR" {
		t.Errorf("unexpected defaults %+v", c)
	}
	if c.JournalTTL() != 72*time.Hour || c.GatewayTimeout() != 60*time.Second || c.ChallengeTTL() != 30*time.Minute {
		t.Errorf("unexpected durations %v %v %v", c.JournalTTL(), c.GatewayTimeout(), c.ChallengeTTL())
	}
}

func TestReadConfigEnvOverrides(t *testing.T) {
	t.Setenv("CARDPAY_API_KEY", "sk_from_env")
	t.Setenv("CARDPAY_TOKEN_SECRET", "fedcba9876543210")
	t.Setenv("CARDPAY_REDIS_URL", "redis://localhost:6379/2")

	path := writeConfig(t, `{
		"gateway_base_url": "https://api.gateway.example",
		"public_base_url": "https://pay.example"
	}`)
	c, err := ReadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if c.ApiKey != "sk_from_env" || c.TokenSecret != "fedcba9876543210" || c.RedisUrl != "redis://localhost:6379/2" {
		t.Errorf("env not applied %+v", c)
	}
}

func TestReadConfigInvalid(t *testing.T) {
	t.Setenv("CARDPAY_API_KEY", "")
	t.Setenv("CARDPAY_TOKEN_SECRET", "")
	t.Setenv("CARDPAY_REDIS_URL", "")

	tests := map[string]string{
		"not json":      `listen_address = ":80"`,
		"no gateway":    `{"public_base_url":"https://pay.example","api_key":"k","token_secret":"0123456789abcdef"}`,
		"no public url": `{"gateway_base_url":"https://g.example","api_key":"k","token_secret":"0123456789abcdef"}`,
		"no api key":    `{"gateway_base_url":"https://g.example","public_base_url":"https://pay.example","token_secret":"0123456789abcdef"}`,
		"short secret":  `{"gateway_base_url":"https://g.example","public_base_url":"https://pay.example","api_key":"k","token_secret":"short"}`,
	}
	for name, body := range tests {
		c, err := ReadConfig(writeConfig(t, body))
		if err == nil || c != nil {
			t.Errorf("%s: expected error, got %+v", name, c)
		}
	}
	if _, err := ReadConfig(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("Expected error for a missing file")
	}
}
