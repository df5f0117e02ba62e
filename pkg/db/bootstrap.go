package db

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
)

// Bootstrap creates a default active house and API config on first run.
func (db *DB) Bootstrap(ctx context.Context) error {
	needed, err := db.NeedsBootstrap(ctx)
	if err != nil {
		return fmt.Errorf("failed to check houses: %w", err)
	}
	if !needed {
		return nil
	}

	h := &House{Name: "default", Timezone: detectTimezone(), IsActive: true}
	if err := db.Houses().Create(ctx, h); err != nil {
		return fmt.Errorf("failed to create default house: %w", err)
	}

	if err := db.APIServers().Upsert(ctx, &APIServer{HouseID: h.ID, Host: "0.0.0.0", Port: 8080}); err != nil {
		return fmt.Errorf("failed to create default API server: %w", err)
	}

	return nil
}

// NeedsBootstrap reports whether no house exists yet.
func (db *DB) NeedsBootstrap(ctx context.Context) (bool, error) {
	var count int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM houses`).Scan(&count); err != nil {
		return false, err
	}
	return count == 0, nil
}

// detectTimezone returns the system IANA zone name, or UTC.
func detectTimezone() string {
	if tz := os.Getenv("TZ"); tz != "" {
		return tz
	}

	switch runtime.GOOS {
	case "darwin":
		out, err := exec.Command("systemsetup", "-gettimezone").Output()
		if err == nil {
			if _, zone, ok := strings.Cut(string(out), ": "); ok {
				return strings.TrimSpace(zone)
			}
		}
	case "linux":
		out, err := exec.Command("timedatectl", "show", "--property=Timezone", "--value").Output()
		if err == nil && len(strings.TrimSpace(string(out))) > 0 {
			return strings.TrimSpace(string(out))
		}
		if data, err := os.ReadFile("/etc/timezone"); err == nil {
			return strings.TrimSpace(string(data))
		}
	}

	if link, err := os.Readlink("/etc/localtime"); err == nil {
		if _, zone, ok := strings.Cut(link, "zoneinfo/"); ok {
			return zone
		}
	}

	return "UTC"
}
