package credentials

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"mueck/internal/domain"
	"mueck/internal/infra"
	"mueck/internal/sqlinline"
)

// Store keeps vendor API keys in the integration_tokens table so they can be rotated
// without redeploying.
type Store struct {
	sql infra.SQLExecutor
}

func NewStore(sql infra.SQLExecutor) *Store {
	return &Store{sql: sql}
}

// VendorAPIKey returns the stored key for vendor, or "" when none is stored.
func (s *Store) VendorAPIKey(ctx context.Context, vendor domain.VendorKind) (string, error) {
	row := s.sql.QueryRow(ctx, sqlinline.QSelectIntegrationToken, string(vendor))
	var token string
	if err := row.Scan(&token); err != nil {
		if infra.IsNoRows(err) {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(token), nil
}

// SetVendorAPIKey stores or replaces the key for vendor.
func (s *Store) SetVendorAPIKey(ctx context.Context, vendor domain.VendorKind, key string) error {
	if !vendor.Valid() {
		return fmt.Errorf("unknown vendor %q", vendor)
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("%s api key is required", vendor)
	}
	return s.upsert(ctx, string(vendor), key, map[string]any{"vendor": string(vendor)})
}

// Resolve prefers the configured key and falls back to the stored one.
func (s *Store) Resolve(ctx context.Context, vendor domain.VendorKind, configured string) (string, error) {
	if key := strings.TrimSpace(configured); key != "" {
		return key, nil
	}
	if s == nil || s.sql == nil {
		return "", nil
	}
	return s.VendorAPIKey(ctx, vendor)
}

func (s *Store) upsert(ctx context.Context, provider, token string, props map[string]any) error {
	payload := props
	if payload == nil {
		payload = map[string]any{}
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = s.sql.Exec(ctx, sqlinline.QUpsertIntegrationToken, provider, token, raw)
	return err
}
