package cfg

import (
	"testing"
)

func TestGetVersion(t *testing.T) {
	if GetVersion() == "" {
		t.Error("GetVersion should never return empty string")
	}
}

func TestConfigFields(t *testing.T) {
	cfg := &Cfg{
		DBPath:             "./test.db",
		Port:               "8080",
		JWTSecret:          "secret",
		SchedulerInterval:  300,
		FetchTimeout:       20,
		ExtractMinLength:   300,
		UserAgent:          "Test Agent",
		AIAPIURL:           "https://example.com/v1/chat/completions",
		AIModel:            "test-model",
		AICooldown:         2,
		AIMaxCalls:         10,
		AIMinContentLength: 400,
		AIMaxPromptLength:  4000,
		NotifyTimeout:      5,
		Debug:              true,
	}

	if cfg.Port != "8080" {
		t.Errorf("Expected port '8080', got '%s'", cfg.Port)
	}
	if cfg.SchedulerInterval != 300 {
		t.Errorf("Expected scheduler interval 300, got %d", cfg.SchedulerInterval)
	}
	if cfg.AIMaxCalls != 10 {
		t.Errorf("Expected AI max calls 10, got %d", cfg.AIMaxCalls)
	}
	if cfg.AICooldown != 2 {
		t.Errorf("Expected AI cooldown 2, got %d", cfg.AICooldown)
	}
	if !cfg.Debug {
		t.Error("Expected debug to be enabled")
	}
}

func TestGetPanicsWhenUnloaded(t *testing.T) {
	saved := globalCfg
	globalCfg = nil
	defer func() {
		globalCfg = saved
		if r := recover(); r == nil {
			t.Error("Get should panic when configuration is not loaded")
		}
	}()
	Get()
}
