package config

import (
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("DEPT_HEAD_ID", "1001")
	t.Setenv("TREASURY_ID", "1002")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Store.Driver != StoreDriverPostgres {
		t.Errorf("store driver = %q", cfg.Store.Driver)
	}
	if cfg.Workflow.PollSchedule != "@every 60s" {
		t.Errorf("poll schedule = %q", cfg.Workflow.PollSchedule)
	}
	if cfg.Workflow.PollOverlap() != 5*time.Second {
		t.Errorf("poll overlap = %v", cfg.Workflow.PollOverlap())
	}
	if cfg.Workflow.ConversationTTL() != 10*time.Minute {
		t.Errorf("conversation ttl = %v", cfg.Workflow.ConversationTTL())
	}
	if cfg.App.Addr() != "0.0.0.0:8080" {
		t.Errorf("addr = %q", cfg.App.Addr())
	}
	if cfg.Roles.DeptHeadID != "1001" || cfg.Roles.TreasuryID != "1002" {
		t.Errorf("roles = %+v", cfg.Roles)
	}
}

func TestLoadOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("STORE_DRIVER", "SQLite")
	t.Setenv("SQLITE_PATH", "/tmp/x.db")
	t.Setenv("RECONCILE_SCHEDULE", "@every 5s")
	t.Setenv("CONVERSATION_TTL_MINUTES", "3")
	t.Setenv("REDIS_ENABLED", "false")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Store.Driver != StoreDriverSQLite {
		t.Errorf("store driver = %q", cfg.Store.Driver)
	}
	if cfg.SQLite.Path != "/tmp/x.db" {
		t.Errorf("sqlite path = %q", cfg.SQLite.Path)
	}
	if cfg.Workflow.ConversationTTL() != 3*time.Minute {
		t.Errorf("ttl = %v", cfg.Workflow.ConversationTTL())
	}
	if cfg.Redis.Enabled {
		t.Error("expected redis disabled")
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	cases := map[string]map[string]string{
		"missing roles": {"DEPT_HEAD_ID": "", "TREASURY_ID": ""},
		"same identity": {"DEPT_HEAD_ID": "42", "TREASURY_ID": "42"},
		"bad driver":    {"DEPT_HEAD_ID": "1", "TREASURY_ID": "2", "STORE_DRIVER": "sheets"},
		"bad redis db":  {"DEPT_HEAD_ID": "1", "TREASURY_ID": "2", "REDIS_DB": "x"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			for k, v := range env {
				t.Setenv(k, v)
			}
			if _, err := Load(); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestInvalidNumbersFallBack(t *testing.T) {
	t.Setenv("SOME_INT", "nope")
	if got := getEnvAsInt("SOME_INT", 7); got != 7 {
		t.Errorf("getEnvAsInt = %d", got)
	}
	t.Setenv("SOME_BOOL", "maybe")
	if got := getEnvAsBool("SOME_BOOL", true); !got {
		t.Error("getEnvAsBool should fall back")
	}
}
