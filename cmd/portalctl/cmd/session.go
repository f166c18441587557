// Copyright (c) 2026 WashPass. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package cmd

import (
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/pterm/pterm"

	"github.com/taibuivan/washpass/internal/identity"
	"github.com/taibuivan/washpass/internal/platform/sec"
	"github.com/taibuivan/washpass/internal/platform/validate"
	"github.com/taibuivan/washpass/internal/portal"
	"github.com/taibuivan/washpass/internal/session"
	"github.com/taibuivan/washpass/internal/session/store"
)

// cliOrigin scopes the CLI's portal. The whole credential file is one origin.
const cliOrigin = "cli"

// settings is the CLI environment.
type settings struct {
	IdentityURL      string        `env:"WASHPASS_IDENTITY_URL"       envDefault:"http://localhost:8080"`
	CustomerAuthPath string        `env:"WASHPASS_CUSTOMER_AUTH_PATH" envDefault:"/api/v1/auth"`
	PartnerAuthPath  string        `env:"WASHPASS_PARTNER_AUTH_PATH"  envDefault:"/api/v1/partner/auth"`
	Timeout          time.Duration `env:"WASHPASS_TIMEOUT"            envDefault:"10s"`

	// StorePath defaults to ~/.washpass/credentials.json.
	StorePath string `env:"WASHPASS_STORE_PATH"`

	// StoreKey seals the credential file when set (64 hex characters).
	StoreKey string `env:"WASHPASS_STORE_KEY"`
}

func loadSettings() (settings, error) {
	var s settings
	if err := env.Parse(&s); err != nil {
		return s, fmt.Errorf("failed to parse environment: %w", err)
	}
	return s, nil
}

func (s settings) storeKey() (*[32]byte, error) {
	if s.StoreKey == "" {
		return nil, nil
	}
	raw, err := hex.DecodeString(s.StoreKey)
	if err != nil || len(raw) != 32 {
		return nil, errors.New("WASHPASS_STORE_KEY must be 64 hex characters")
	}
	var key [32]byte
	copy(key[:], raw)
	return &key, nil
}

// openPortal mounts nothing yet: it builds the portal over the credential
// file so each command decides whether a restore is needed.
func openPortal(opts *options) (*portal.Portal, error) {
	cfg, err := loadSettings()
	if err != nil {
		return nil, err
	}
	if opts.server != "" {
		cfg.IdentityURL = opts.server
	}

	key, err := cfg.storeKey()
	if err != nil {
		return nil, err
	}

	path := cfg.StorePath
	if path == "" {
		if path, err = store.DefaultFilePath(); err != nil {
			return nil, err
		}
	}

	fileStore, err := store.NewFileStore(path, key)
	if err != nil {
		return nil, fmt.Errorf("failed to create credential store: %w", err)
	}

	return portal.New(cliOrigin, portal.Options{
		Stores: func(string) store.Store { return fileStore },
		Identities: portal.Identities{
			Customer: identity.New(cfg.IdentityURL, cfg.CustomerAuthPath,
				identity.WithTimeout(cfg.Timeout),
			),
			Partner: identity.New(cfg.IdentityURL, cfg.PartnerAuthPath,
				identity.WithTimeout(cfg.Timeout),
				identity.WithDefaultRole(sec.RolePartner),
			),
		},
		Logger: newLogger(opts.verbose),
	}), nil
}

// machine returns the machine of the --domain flag.
func (opts *options) machine(p *portal.Portal) (*session.Machine, error) {
	domain := strings.ToLower(opts.domain)
	v := &validate.Validator{}
	v.OneOf("domain", domain, session.CustomerDomain.Name, session.PartnerDomain.Name)
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("unknown domain %q: %w", opts.domain, err)
	}

	if domain == session.PartnerDomain.Name {
		return p.Partner, nil
	}
	return p.Customer, nil
}

func newLogger(verbose bool) *slog.Logger {
	logger := pterm.DefaultLogger.WithWriter(os.Stderr).WithLevel(pterm.LogLevelWarn)
	if verbose {
		logger = logger.WithLevel(pterm.LogLevelDebug)
	}
	return slog.New(pterm.NewSlogHandler(logger))
}

// release closes the portal and waits for background identity calls.
func release(p *portal.Portal) {
	p.Close()
	p.Wait()
}
