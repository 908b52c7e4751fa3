package testutil

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/hupe1980/agentshim/core"
)

// MockHooks is a testify mock of core.Hooks.
type MockHooks struct {
	mock.Mock
}

func (m *MockHooks) OnStartup(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockHooks) OnShutdown(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

var _ core.Hooks = (*MockHooks)(nil)
