package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "test-token")
	t.Setenv("COMMAND_PREFIX", "")
	t.Setenv("DEFAULT_VOLUME", "")
	t.Setenv("MAX_STATUS_WAITERS", "")
	t.Setenv("FFMPEG_PATH", "")
	t.Setenv("LOG_LEVEL", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.DiscordToken != "test-token" {
		t.Errorf("token not loaded: %q", cfg.DiscordToken)
	}
	if cfg.CommandPrefix != "!" {
		t.Errorf("expected default prefix !, got %q", cfg.CommandPrefix)
	}
	if cfg.DefaultVolume != 1.0 {
		t.Errorf("expected default volume 1.0, got %v", cfg.DefaultVolume)
	}
	if cfg.MaxStatusWaiters != 8 {
		t.Errorf("expected default waiter cap 8, got %d", cfg.MaxStatusWaiters)
	}
	if cfg.FFmpegPath != "ffmpeg" {
		t.Errorf("expected default ffmpeg path, got %q", cfg.FFmpegPath)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("expected default log level info, got %q", cfg.LogLevel)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "test-token")
	t.Setenv("COMMAND_PREFIX", "?")
	t.Setenv("DEFAULT_VOLUME", "0.5")
	t.Setenv("MAX_STATUS_WAITERS", "2")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.CommandPrefix != "?" {
		t.Errorf("prefix override not applied: %q", cfg.CommandPrefix)
	}
	if cfg.DefaultVolume != 0.5 {
		t.Errorf("volume override not applied: %v", cfg.DefaultVolume)
	}
	if cfg.MaxStatusWaiters != 2 {
		t.Errorf("waiter cap override not applied: %d", cfg.MaxStatusWaiters)
	}
}

func TestLoadRequiresToken(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for missing token")
	}
}

func TestLoadRejectsVolumeOutOfRange(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "test-token")
	t.Setenv("DEFAULT_VOLUME", "3")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for out of range volume")
	}
}
