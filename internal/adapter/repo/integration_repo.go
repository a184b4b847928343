package repo

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"mueck/internal/domain"
	"mueck/internal/infra"
	"mueck/internal/sqlinline"
)

// IntegrationRepositoryPG implements domain.IntegrationStore.
type IntegrationRepositoryPG struct {
	sql infra.SQLExecutor
}

func NewIntegrationRepository(sql infra.SQLExecutor) *IntegrationRepositoryPG {
	return &IntegrationRepositoryPG{sql: sql}
}

func (r *IntegrationRepositoryPG) Get(ctx context.Context, id int64) (*domain.Integration, error) {
	return r.one(ctx, sqlinline.QSelectIntegration, id)
}

func (r *IntegrationRepositoryPG) GetByAppID(ctx context.Context, appID string) (*domain.Integration, error) {
	return r.one(ctx, sqlinline.QSelectIntegrationByAppID, appID)
}

func (r *IntegrationRepositoryPG) one(ctx context.Context, query string, arg any) (*domain.Integration, error) {
	integration, err := scanIntegration(r.sql.QueryRow(ctx, query, arg))
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("select integration: %w", err)
	}
	return integration, nil
}

func scanIntegration(row pgx.Row) (*domain.Integration, error) {
	var in domain.Integration
	if err := row.Scan(&in.ID, &in.AppID, &in.TeamID, &in.TeamName, &in.BotUserID, &in.AccessToken, &in.SigningSecret); err != nil {
		return nil, err
	}
	return &in, nil
}

var _ domain.IntegrationStore = (*IntegrationRepositoryPG)(nil)
