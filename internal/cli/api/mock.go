package api

import (
	"context"
)

// MockClient for testing
type MockClient struct {
	GetConfigFunc    func(ctx context.Context, tenantID string) (*TenantConfig, error)
	SetConfigFunc    func(ctx context.Context, tenantID string, req *SetConfigRequest) (*TenantConfig, error)
	DeleteConfigFunc func(ctx context.Context, tenantID string) error
}

func (m *MockClient) GetConfig(ctx context.Context, tenantID string) (*TenantConfig, error) {
	if m.GetConfigFunc != nil {
		return m.GetConfigFunc(ctx, tenantID)
	}
	return nil, nil
}

func (m *MockClient) SetConfig(ctx context.Context, tenantID string, req *SetConfigRequest) (*TenantConfig, error) {
	if m.SetConfigFunc != nil {
		return m.SetConfigFunc(ctx, tenantID, req)
	}
	return nil, nil
}

func (m *MockClient) DeleteConfig(ctx context.Context, tenantID string) error {
	if m.DeleteConfigFunc != nil {
		return m.DeleteConfigFunc(ctx, tenantID)
	}
	return nil
}
