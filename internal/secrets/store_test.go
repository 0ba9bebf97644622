package secrets

import (
	"context"
	"testing"
)

func TestDisabledStoreUsesCache(t *testing.T) {
	s, err := NewStore(Config{})
	if err != nil {
		t.Fatal(err)
	}

	creds := Credentials{Broker: "fyers", APIKey: "key", APISecret: "secret", ClientID: "client"}
	if err := s.Put(context.Background(), creds); err != nil {
		t.Fatal(err)
	}

	got, err := s.Get(context.Background(), "fyers")
	if err != nil {
		t.Fatal(err)
	}
	if got.APIKey != "key" || got.ClientID != "client" {
		t.Errorf("unexpected credentials: %+v", got)
	}

	if err := s.Delete(context.Background(), "fyers"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Get(context.Background(), "fyers"); err == nil {
		t.Error("deleted credentials should not resolve")
	}
}

func TestEnvFallback(t *testing.T) {
	t.Setenv("FYERS_API_KEY", "env-key")
	t.Setenv("FYERS_API_SECRET", "env-secret")
	t.Setenv("FYERS_CLIENT_ID", "env-client")

	s, err := NewStore(Config{})
	if err != nil {
		t.Fatal(err)
	}

	got, err := s.Get(context.Background(), "fyers")
	if err != nil {
		t.Fatal(err)
	}
	if got.APIKey != "env-key" || got.APISecret != "env-secret" || got.ClientID != "env-client" {
		t.Errorf("env fallback wrong: %+v", got)
	}
}

func TestPutRequiresBroker(t *testing.T) {
	s, _ := NewStore(Config{})
	if err := s.Put(context.Background(), Credentials{APIKey: "key"}); err == nil {
		t.Error("empty broker name should be rejected")
	}
}

func TestDisabledHealthAlwaysOK(t *testing.T) {
	s, _ := NewStore(Config{})
	if err := s.Health(context.Background()); err != nil {
		t.Errorf("disabled store should be healthy: %v", err)
	}
}
