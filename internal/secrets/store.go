// Package secrets stores broker credentials in HashiCorp Vault with an
// in-memory cache and an environment fallback for development.
package secrets

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/hashicorp/vault/api"
)

// Credentials are the broker API credentials for one broker
type Credentials struct {
	Broker    string `json:"broker"`
	APIKey    string `json:"api_key"`
	APISecret string `json:"api_secret"`
	ClientID  string `json:"client_id"`
}

// Config holds the Vault connection settings. With Enabled false the
// store works purely from cache and environment variables.
type Config struct {
	Enabled    bool
	Address    string
	Token      string
	MountPath  string
	SecretPath string
	CACert     string
}

// Store wraps the Vault client
type Store struct {
	client *api.Client
	config Config

	mu    sync.RWMutex
	cache map[string]*Credentials
}

// NewStore creates a credential store
func NewStore(cfg Config) (*Store, error) {
	s := &Store{
		config: cfg,
		cache:  make(map[string]*Credentials),
	}
	if !cfg.Enabled {
		return s, nil
	}

	vaultConfig := api.DefaultConfig()
	vaultConfig.Address = cfg.Address

	if cfg.CACert != "" {
		if err := vaultConfig.ConfigureTLS(&api.TLSConfig{CACert: cfg.CACert}); err != nil {
			return nil, fmt.Errorf("configuring vault TLS: %w", err)
		}
	}

	client, err := api.NewClient(vaultConfig)
	if err != nil {
		return nil, fmt.Errorf("creating vault client: %w", err)
	}
	client.SetToken(cfg.Token)
	s.client = client
	return s, nil
}

// Put stores credentials for a broker
func (s *Store) Put(ctx context.Context, creds Credentials) error {
	if creds.Broker == "" {
		return fmt.Errorf("broker name is required")
	}

	if s.config.Enabled {
		payload := map[string]any{
			"data": map[string]any{
				"api_key":    creds.APIKey,
				"api_secret": creds.APISecret,
				"client_id":  creds.ClientID,
			},
		}
		if _, err := s.client.Logical().WriteWithContext(ctx, s.secretPath(creds.Broker), payload); err != nil {
			return fmt.Errorf("storing credentials in vault: %w", err)
		}
	}

	s.mu.Lock()
	s.cache[creds.Broker] = &creds
	s.mu.Unlock()
	return nil
}

// Get returns credentials for a broker: cache first, then Vault, then
// <BROKER>_API_KEY / <BROKER>_API_SECRET / <BROKER>_CLIENT_ID env vars.
func (s *Store) Get(ctx context.Context, broker string) (*Credentials, error) {
	s.mu.RLock()
	if cached, ok := s.cache[broker]; ok {
		s.mu.RUnlock()
		return cached, nil
	}
	s.mu.RUnlock()

	if s.config.Enabled {
		secret, err := s.client.Logical().ReadWithContext(ctx, s.secretPath(broker))
		if err != nil {
			return nil, fmt.Errorf("reading credentials from vault: %w", err)
		}
		if secret != nil && secret.Data != nil {
			if data, ok := secret.Data["data"].(map[string]any); ok {
				creds := &Credentials{
					Broker:    broker,
					APIKey:    getString(data, "api_key"),
					APISecret: getString(data, "api_secret"),
					ClientID:  getString(data, "client_id"),
				}
				s.mu.Lock()
				s.cache[broker] = creds
				s.mu.Unlock()
				return creds, nil
			}
		}
	}

	if creds := fromEnv(broker); creds != nil {
		s.mu.Lock()
		s.cache[broker] = creds
		s.mu.Unlock()
		return creds, nil
	}
	return nil, fmt.Errorf("credentials not found for broker %s", broker)
}

// Delete removes credentials for a broker
func (s *Store) Delete(ctx context.Context, broker string) error {
	s.mu.Lock()
	delete(s.cache, broker)
	s.mu.Unlock()

	if !s.config.Enabled {
		return nil
	}
	if _, err := s.client.Logical().DeleteWithContext(ctx, s.metadataPath(broker)); err != nil {
		return fmt.Errorf("deleting credentials from vault: %w", err)
	}
	return nil
}

// ClearCache drops the in-memory cache
func (s *Store) ClearCache() {
	s.mu.Lock()
	s.cache = make(map[string]*Credentials)
	s.mu.Unlock()
}

// Health checks the Vault connection. A disabled store is always healthy.
func (s *Store) Health(ctx context.Context) error {
	if !s.config.Enabled {
		return nil
	}
	health, err := s.client.Sys().HealthWithContext(ctx)
	if err != nil {
		return fmt.Errorf("vault health check failed: %w", err)
	}
	if health.Sealed {
		return fmt.Errorf("vault is sealed")
	}
	return nil
}

func (s *Store) secretPath(broker string) string {
	return fmt.Sprintf("%s/data/%s/%s", s.config.MountPath, s.config.SecretPath, broker)
}

func (s *Store) metadataPath(broker string) string {
	return fmt.Sprintf("%s/metadata/%s/%s", s.config.MountPath, s.config.SecretPath, broker)
}

func fromEnv(broker string) *Credentials {
	prefix := strings.ToUpper(broker)
	key := os.Getenv(prefix + "_API_KEY")
	secret := os.Getenv(prefix + "_API_SECRET")
	if key == "" && secret == "" {
		return nil
	}
	return &Credentials{
		Broker:    broker,
		APIKey:    key,
		APISecret: secret,
		ClientID:  os.Getenv(prefix + "_CLIENT_ID"),
	}
}

func getString(data map[string]any, key string) string {
	if val, ok := data[key].(string); ok {
		return val
	}
	return ""
}
