package mocks

import (
	"context"

	"github.com/algorand/go-algorand-sdk/v2/types"
	"github.com/stretchr/testify/mock"

	"github.com/GIL794/algorand-ai-contract-creator/internal/ledger"
)

// Node is a mock type for the ledger.Node type
type Node struct {
	mock.Mock
}

// Compile provides a mock function with given fields: ctx, source
func (_m *Node) Compile(ctx context.Context, source string) (ledger.CompileResult, error) {
	ret := _m.Called(ctx, source)

	var r0 ledger.CompileResult
	if rf, ok := ret.Get(0).(func(context.Context, string) ledger.CompileResult); ok {
		r0 = rf(ctx, source)
	} else if ret.Get(0) != nil {
		r0 = ret.Get(0).(ledger.CompileResult)
	}

	return r0, ret.Error(1)
}

// SuggestedParams provides a mock function with given fields: ctx
func (_m *Node) SuggestedParams(ctx context.Context) (types.SuggestedParams, error) {
	ret := _m.Called(ctx)

	var r0 types.SuggestedParams
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(types.SuggestedParams)
	}

	return r0, ret.Error(1)
}

// SendRawTransaction provides a mock function with given fields: ctx, signedTxn
func (_m *Node) SendRawTransaction(ctx context.Context, signedTxn []byte) (string, error) {
	ret := _m.Called(ctx, signedTxn)
	return ret.String(0), ret.Error(1)
}

// PendingTransaction provides a mock function with given fields: ctx, txID
func (_m *Node) PendingTransaction(ctx context.Context, txID string) (ledger.PendingInfo, error) {
	ret := _m.Called(ctx, txID)

	var r0 ledger.PendingInfo
	if rf, ok := ret.Get(0).(func(context.Context, string) ledger.PendingInfo); ok {
		r0 = rf(ctx, txID)
	} else if ret.Get(0) != nil {
		r0 = ret.Get(0).(ledger.PendingInfo)
	}

	return r0, ret.Error(1)
}

// Status provides a mock function with given fields: ctx
func (_m *Node) Status(ctx context.Context) (uint64, error) {
	ret := _m.Called(ctx)
	return ret.Get(0).(uint64), ret.Error(1)
}

// StatusAfterBlock provides a mock function with given fields: ctx, round
func (_m *Node) StatusAfterBlock(ctx context.Context, round uint64) (uint64, error) {
	ret := _m.Called(ctx, round)

	var r0 uint64
	if rf, ok := ret.Get(0).(func(context.Context, uint64) uint64); ok {
		r0 = rf(ctx, round)
	} else {
		r0 = ret.Get(0).(uint64)
	}

	return r0, ret.Error(1)
}

// AccountBalance provides a mock function with given fields: ctx, address
func (_m *Node) AccountBalance(ctx context.Context, address string) (uint64, error) {
	ret := _m.Called(ctx, address)
	return ret.Get(0).(uint64), ret.Error(1)
}

// NewNode creates a new instance of Node. It also registers a testing interface on the mock and a cleanup function to assert the mocks expectations.
func NewNode(t interface {
	mock.TestingT
	Cleanup(func())
}) *Node {
	m := &Node{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

var _ ledger.Node = (*Node)(nil)
