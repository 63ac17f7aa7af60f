package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/GIL794/algorand-ai-contract-creator/internal/models"
	"github.com/GIL794/algorand-ai-contract-creator/internal/provider"
)

// ProviderClient is a mock type for the provider.Client type
type ProviderClient struct {
	mock.Mock
	name models.Provider
}

// Name returns the provider the mock stands in for.
func (_m *ProviderClient) Name() models.Provider {
	return _m.name
}

// Complete provides a mock function with given fields: ctx, req
func (_m *ProviderClient) Complete(ctx context.Context, req provider.CompletionRequest) (provider.Completion, error) {
	ret := _m.Called(ctx, req)

	var r0 provider.Completion
	if rf, ok := ret.Get(0).(func(context.Context, provider.CompletionRequest) provider.Completion); ok {
		r0 = rf(ctx, req)
	} else if ret.Get(0) != nil {
		r0 = ret.Get(0).(provider.Completion)
	}

	var r1 error
	if rf, ok := ret.Get(1).(func(context.Context, provider.CompletionRequest) error); ok {
		r1 = rf(ctx, req)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// NewProviderClient creates a new instance of ProviderClient. It also registers a testing interface on the mock and a cleanup function to assert the mocks expectations.
func NewProviderClient(t interface {
	mock.TestingT
	Cleanup(func())
}, name models.Provider) *ProviderClient {
	m := &ProviderClient{name: name}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

var _ provider.Client = (*ProviderClient)(nil)
