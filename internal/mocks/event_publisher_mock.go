package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/GIL794/algorand-ai-contract-creator/internal/messaging"
	"github.com/GIL794/algorand-ai-contract-creator/internal/models"
)

// EventPublisher is a mock type for the messaging.EventPublisher type
type EventPublisher struct {
	mock.Mock
}

// PublishDeployment provides a mock function with given fields: ctx, event
func (_m *EventPublisher) PublishDeployment(ctx context.Context, event models.DeploymentEvent) error {
	ret := _m.Called(ctx, event)

	var r0 error
	if rf, ok := ret.Get(0).(func(context.Context, models.DeploymentEvent) error); ok {
		r0 = rf(ctx, event)
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

// NewEventPublisher creates a new instance of EventPublisher. It also registers a testing interface on the mock and a cleanup function to assert the mocks expectations.
func NewEventPublisher(t interface {
	mock.TestingT
	Cleanup(func())
}) *EventPublisher {
	m := &EventPublisher{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

var _ messaging.EventPublisher = (*EventPublisher)(nil)
