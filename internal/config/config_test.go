package config

import (
	"testing"
	"time"
)

func TestValidateRejectsEmptyAddr(t *testing.T) {
	c := &Config{MaxConnections: 1, BackoffStart: 1, BackoffCeiling: 2, CommandRateRPS: 1, CommandBurst: 1, LogLevel: "info"}
	if err := c.Validate(); err == nil {
		t.Fatal("expected error for empty Addr")
	}
}

func TestValidateRejectsBackoffCeilingBelowStart(t *testing.T) {
	c := &Config{Addr: ":0", MaxConnections: 1, BackoffStart: 2, BackoffCeiling: 1, CommandRateRPS: 1, CommandBurst: 1, LogLevel: "info"}
	if err := c.Validate(); err == nil {
		t.Fatal("expected error when ceiling < start")
	}
}

func TestValidateRejectsUnknownLogLevel(t *testing.T) {
	c := &Config{Addr: ":0", MaxConnections: 1, BackoffStart: 1, BackoffCeiling: 2, CommandRateRPS: 1, CommandBurst: 1, LogLevel: "verbose"}
	if err := c.Validate(); err == nil {
		t.Fatal("expected error for unknown log level")
	}
}

func TestValidateAcceptsDefaults(t *testing.T) {
	c := &Config{
		Addr:           ":6380",
		MaxConnections: 250,
		BackoffStart:   time.Second,
		BackoffCeiling: 64 * time.Second,
		CommandRateRPS: 10000,
		CommandBurst:   20000,
		LogLevel:       "info",
	}
	if err := c.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
