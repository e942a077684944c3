package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const testSecret = "test-secret-key-0123456789"

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("写入配置文件失败: %v", err)
	}
	return path
}

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{Port: 8080},
		Auth:   AuthConfig{JWTSecret: testSecret},
		Club:   ClubConfig{Timezone: "Asia/Almaty"},
		Dispatcher: DispatcherConfig{
			CronSpec:       "0 * * * * *",
			RenewalLeadDay: 5,
			MealTimes:      map[string]string{"lunch": "12:00"},
		},
	}
}

func TestLoad_DefaultsAndFile(t *testing.T) {
	path := writeConfigFile(t, `
auth:
  jwt_secret: "`+testSecret+`"
dispatcher:
  renewal_lead_days: 3
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load 应成功: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("期望默认端口 8080，实际: %d", cfg.Server.Port)
	}
	if cfg.Dispatcher.RenewalLeadDay != 3 {
		t.Errorf("期望 renewal_lead_days=3，实际: %d", cfg.Dispatcher.RenewalLeadDay)
	}
	if cfg.Dispatcher.LockTTL != 2*time.Minute {
		t.Errorf("期望默认 lock_ttl 2m，实际: %v", cfg.Dispatcher.LockTTL)
	}
	if cfg.Dispatcher.MealTimes["breakfast"] != "09:00" {
		t.Errorf("期望默认早餐时间 09:00，实际: %q", cfg.Dispatcher.MealTimes["breakfast"])
	}
	if cfg.Club.Timezone != "Asia/Almaty" {
		t.Errorf("期望默认时区 Asia/Almaty，实际: %s", cfg.Club.Timezone)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfigFile(t, "server:\n  port: 9000\n")
	t.Setenv("FITCLUB_AUTH_JWT_SECRET", testSecret)
	t.Setenv("FITCLUB_SERVER_PORT", "9100")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load 应成功: %v", err)
	}
	if cfg.Auth.JWTSecret != testSecret {
		t.Error("期望 jwt_secret 来自环境变量")
	}
	if cfg.Server.Port != 9100 {
		t.Errorf("期望环境变量覆盖配置文件端口，实际: %d", cfg.Server.Port)
	}
}

func TestLoad_MissingSecret(t *testing.T) {
	path := writeConfigFile(t, "log:\n  level: debug\n")

	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "jwt_secret") {
		t.Errorf("期望 jwt_secret 校验错误，实际: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		want   string
	}{
		{"valid", func(c *Config) {}, ""},
		{"short secret", func(c *Config) { c.Auth.JWTSecret = "short" }, "jwt_secret"},
		{"bad port", func(c *Config) { c.Server.Port = 70000 }, "server.port"},
		{"bad timezone", func(c *Config) { c.Club.Timezone = "Mars/Olympus" }, "club.timezone"},
		{"bad cron", func(c *Config) { c.Dispatcher.CronSpec = "every minute" }, "cron_spec"},
		{"bad meal time", func(c *Config) { c.Dispatcher.MealTimes["dinner"] = "7pm" }, "meal_times.dinner"},
		{"zero lead days", func(c *Config) { c.Dispatcher.RenewalLeadDay = 0 }, "renewal_lead_days"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.want == "" {
				if err != nil {
					t.Errorf("期望校验通过，实际: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("期望包含 %q 的错误，实际: %v", tt.want, err)
			}
		})
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	c := DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", Name: "fitclub", SSLMode: "disable", Timezone: "Asia/Almaty"}
	want := "host=db port=5432 user=u password=p dbname=fitclub sslmode=disable TimeZone=Asia/Almaty"
	if got := c.DSN(); got != want {
		t.Errorf("DSN 不符:\n got  %s\n want %s", got, want)
	}
}
