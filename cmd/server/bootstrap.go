package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/nuan-odoo/wrapperAI/internal/config"
	"github.com/nuan-odoo/wrapperAI/internal/domain"
	"github.com/nuan-odoo/wrapperAI/internal/session"
)

// starter is the part of the session controller used at boot.
type starter interface {
	Start(ctx context.Context, target string, creds session.Credentials) error
}

// bootstrapSession sets up the target named in the environment, so a
// single-target deployment needs no call to POST /setup.
func bootstrapSession(ctx context.Context, ctrl starter, bc config.BootstrapConfig) error {
	creds := session.Credentials{
		Email:    bc.Email,
		Password: bc.Password,
	}
	if bc.CookiesFile != "" {
		cookies, err := loadCookiesFile(bc.CookiesFile)
		if err != nil {
			return err
		}
		creds.Cookies = cookies
	}

	slog.Info("Setting up target from environment", "target", bc.Target)
	return ctrl.Start(ctx, bc.Target, creds)
}

// loadCookiesFile reads a browser-extension cookie export: a JSON array of
// cookie objects.
func loadCookiesFile(path string) ([]domain.RawCookie, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read cookies file: %w", err)
	}
	var cookies []domain.RawCookie
	if err := json.Unmarshal(data, &cookies); err != nil {
		return nil, fmt.Errorf("parse cookies file %s: %w", path, err)
	}
	return cookies, nil
}
