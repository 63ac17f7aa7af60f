package deployer_test

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/algorand/go-algorand-sdk/v2/crypto"
	"github.com/algorand/go-algorand-sdk/v2/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/GIL794/algorand-ai-contract-creator/internal/audit"
	"github.com/GIL794/algorand-ai-contract-creator/internal/compiler"
	"github.com/GIL794/algorand-ai-contract-creator/internal/deployer"
	"github.com/GIL794/algorand-ai-contract-creator/internal/ledger"
	"github.com/GIL794/algorand-ai-contract-creator/internal/mocks"
	"github.com/GIL794/algorand-ai-contract-creator/internal/models"
	"github.com/GIL794/algorand-ai-contract-creator/internal/teal"
	"github.com/GIL794/algorand-ai-contract-creator/internal/validator"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const (
	source          = "approval_program: [{global_put: [count, 1]}, approve]\n"
	signatureSource = "approval_program: approve\n"
)

var (
	approvalResult = ledger.CompileResult{Hash: "APPROVALHASH", Bytecode: []byte{8, 0x80, 5, 'c', 'o', 'u', 'n', 't', 0x81, 1, 0x67, 0x81, 1, 0x43}}
	clearResult    = ledger.CompileResult{Hash: "CLEARHASH", Bytecode: []byte{8, 0x81, 1, 0x43}}
	testKey        = ed25519.NewKeyFromSeed(bytes.Repeat([]byte{7}, ed25519.SeedSize))
)

type recorder struct {
	mu      sync.Mutex
	records []audit.Record
}

func (r *recorder) Record(_ context.Context, rec audit.Record) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
}

func compileArtifacts(t *testing.T, src string, mode teal.Mode) (*compiler.Artifact, *compiler.Artifact) {
	t.Helper()
	writesState := func(s string) bool { return strings.Contains(s, "app_global_put") }
	node := mocks.NewNode(t)
	node.On("Compile", mock.Anything, mock.MatchedBy(writesState)).Return(approvalResult, nil).Maybe()
	node.On("Compile", mock.Anything, mock.MatchedBy(func(s string) bool { return !writesState(s) })).Return(clearResult, nil).Maybe()
	svc := compiler.New(node, validator.Default(), nil, nil, nil, zap.NewNop(), compiler.Config{})

	approval, err := svc.Compile(context.Background(), src, mode)
	require.NoError(t, err)
	clear, err := svc.CompileClear(context.Background(), src)
	require.NoError(t, err)
	return approval, clear
}

func suggestedParams() types.SuggestedParams {
	return types.SuggestedParams{
		Fee:             0,
		GenesisID:       "testnet-v1.0",
		GenesisHash:     bytes.Repeat([]byte{1}, 32),
		FirstRoundValid: 1000,
		LastRoundValid:  2000,
		MinFee:          1000,
	}
}

type fixture struct {
	svc       *deployer.Service
	node      *mocks.Node
	publisher *mocks.EventPublisher
	audit     *recorder
	request   deployer.Request
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	approval, clear := compileArtifacts(t, source, teal.ModeApplication)
	f := &fixture{
		node:      mocks.NewNode(t),
		publisher: mocks.NewEventPublisher(t),
		audit:     &recorder{},
		request: deployer.Request{
			Approval:     approval,
			Clear:        clear,
			Key:          testKey,
			GlobalSchema: models.StateSchema{NumUints: 4, NumByteSlices: 4},
			LocalSchema:  models.StateSchema{NumUints: 2, NumByteSlices: 2},
		},
	}
	f.svc = deployer.New(f.node, f.publisher, f.audit, nil, zap.NewNop(), deployer.Config{
		WaitRounds: 4,
		Explorer:   ledger.Explorer{BaseURL: "https://testnet.explorer.perawallet.app"},
	})
	return f
}

// expectSubmission sets up every call up to and including a successful send.
func (f *fixture) expectSubmission() {
	f.node.On("Compile", mock.Anything, f.request.Approval.TEAL).Return(approvalResult, nil).Once()
	f.node.On("Compile", mock.Anything, f.request.Clear.TEAL).Return(clearResult, nil).Once()
	f.node.On("SuggestedParams", mock.Anything).Return(suggestedParams(), nil).Once()
	f.node.On("SendRawTransaction", mock.Anything, mock.Anything).Return("ignored", nil).Once()
	f.node.On("Status", mock.Anything).Return(uint64(1000), nil).Once()
}

func senderAddress(t *testing.T) string {
	t.Helper()
	account, err := crypto.AccountFromPrivateKey(testKey)
	require.NoError(t, err)
	return account.Address.String()
}

func TestDeploy_Confirmed(t *testing.T) {
	f := newFixture(t)
	f.expectSubmission()
	f.node.On("PendingTransaction", mock.Anything, mock.Anything).Return(ledger.PendingInfo{}, nil).Once()
	f.node.On("StatusAfterBlock", mock.Anything, uint64(1000)).Return(uint64(1001), nil).Once()
	f.node.On("PendingTransaction", mock.Anything, mock.Anything).
		Return(ledger.PendingInfo{ConfirmedRound: 1001, ApplicationIndex: 123456}, nil).Once()
	f.publisher.On("PublishDeployment", mock.Anything, mock.MatchedBy(func(e models.DeploymentEvent) bool {
		return e.Status == "confirmed" && e.ProgramID == 123456 && e.TransactionID != "" && e.Error == ""
	})).Return(nil).Once()

	record, err := f.svc.Deploy(context.Background(), f.request)
	require.NoError(t, err)

	assert.Equal(t, uint64(123456), record.ProgramID)
	assert.Equal(t, uint64(1001), record.ConfirmedRound)
	assert.Equal(t, crypto.GetApplicationAddress(123456).String(), record.ProgramAddress)
	assert.Equal(t, senderAddress(t), record.Sender)
	assert.Len(t, record.TransactionID, 52)
	assert.Equal(t, "https://testnet.explorer.perawallet.app/application/123456", record.ExplorerURL)
	assert.False(t, record.DeployedAt.IsZero())

	require.Len(t, f.audit.records, 2)
	assert.Equal(t, audit.OutcomeSubmitted, f.audit.records[0].Outcome)
	assert.Equal(t, record.TransactionID, f.audit.records[0].TxID)
	assert.Equal(t, audit.OutcomeSuccess, f.audit.records[1].Outcome)
	assert.Equal(t, uint64(123456), f.audit.records[1].ProgramID)
}

// A node that never confirms ends in a timeout that names the transaction,
// after exactly WaitRounds rounds, and produces no record.
func TestDeploy_TimesOut(t *testing.T) {
	f := newFixture(t)
	f.expectSubmission()
	f.node.On("PendingTransaction", mock.Anything, mock.Anything).Return(ledger.PendingInfo{}, nil).Times(5)
	f.node.On("StatusAfterBlock", mock.Anything, mock.Anything).
		Return(func(_ context.Context, round uint64) uint64 { return round + 1 }, nil).Times(4)
	f.publisher.On("PublishDeployment", mock.Anything, mock.MatchedBy(func(e models.DeploymentEvent) bool {
		return e.Status == "timed_out" && e.TransactionID != ""
	})).Return(nil).Once()

	record, err := f.svc.Deploy(context.Background(), f.request)
	assert.Nil(t, record)
	require.Error(t, err)

	var de *deployer.Error
	require.ErrorAs(t, err, &de)
	assert.Equal(t, deployer.KindTimeout, de.Kind)
	assert.Equal(t, deployer.StageTimedOut, de.Stage)
	assert.Len(t, de.TxID, 52)
	assert.Contains(t, err.Error(), de.TxID)
	f.node.AssertNumberOfCalls(t, "SendRawTransaction", 1)
}

func TestDeploy_RejectsUnverifiedArtifacts(t *testing.T) {
	f := newFixture(t)
	forged := *f.request.Approval
	req := f.request

	req.Approval = &compiler.Artifact{Mode: teal.ModeApplication, TEAL: forged.TEAL, Bytecode: forged.Bytecode, ContentHash: forged.ContentHash}
	_, err := f.svc.Deploy(context.Background(), req)
	assert.Equal(t, deployer.KindBuild, deployer.KindOf(err))
	assert.Contains(t, err.Error(), "not produced by the compiler")

	req.Approval = nil
	_, err = f.svc.Deploy(context.Background(), req)
	assert.Equal(t, deployer.KindBuild, deployer.KindOf(err))
}

func TestDeploy_RejectsTamperedArtifact(t *testing.T) {
	f := newFixture(t)
	tampered := *f.request.Approval
	tampered.TEAL = "#pragma version 8\nint 0\nreturn\n"
	req := f.request
	req.Approval = &tampered

	f.node.On("Compile", mock.Anything, tampered.TEAL).Return(clearResult, nil).Once()

	_, err := f.svc.Deploy(context.Background(), req)
	assert.Equal(t, deployer.KindBuild, deployer.KindOf(err))
	assert.Contains(t, err.Error(), "hash mismatch")
	f.node.AssertNotCalled(t, "SendRawTransaction", mock.Anything, mock.Anything)
}

func TestDeploy_InputChecks(t *testing.T) {
	sigApproval, sigClear := compileArtifacts(t, signatureSource, teal.ModeSignature)

	tests := []struct {
		name   string
		mutate func(*deployer.Request)
		msg    string
	}{
		{"short key", func(r *deployer.Request) { r.Key = testKey[:32] }, "signing key must be 64 bytes"},
		{"global schema", func(r *deployer.Request) { r.GlobalSchema = models.StateSchema{NumUints: 60, NumByteSlices: 5} }, "global schema requests 65 entries"},
		{"local schema", func(r *deployer.Request) { r.LocalSchema = models.StateSchema{NumUints: 17} }, "local schema requests 17 entries"},
		{"signature mode", func(r *deployer.Request) { r.Approval, r.Clear = sigApproval, sigClear }, "compiled for signature mode"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			req := f.request
			tt.mutate(&req)

			_, err := f.svc.Deploy(context.Background(), req)
			require.Error(t, err)
			assert.Equal(t, deployer.KindBuild, deployer.KindOf(err))
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestDeploy_NodeUnreachableDuringVerification(t *testing.T) {
	f := newFixture(t)
	f.node.On("Compile", mock.Anything, mock.Anything).
		Return(ledger.CompileResult{}, fmt.Errorf("compile: %w: connection refused", ledger.ErrUnavailable)).Once()

	_, err := f.svc.Deploy(context.Background(), f.request)
	assert.Equal(t, deployer.KindNetwork, deployer.KindOf(err))
}

func TestDeploy_SubmissionRejected(t *testing.T) {
	f := newFixture(t)
	f.node.On("Compile", mock.Anything, f.request.Approval.TEAL).Return(approvalResult, nil).Once()
	f.node.On("Compile", mock.Anything, f.request.Clear.TEAL).Return(clearResult, nil).Once()
	f.node.On("SuggestedParams", mock.Anything).Return(suggestedParams(), nil).Once()
	f.node.On("SendRawTransaction", mock.Anything, mock.Anything).
		Return("", fmt.Errorf("send transaction: %w: HTTP 400: overspend", ledger.ErrBadRequest)).Once()
	f.publisher.On("PublishDeployment", mock.Anything, mock.MatchedBy(func(e models.DeploymentEvent) bool {
		return e.Status == "rejected"
	})).Return(nil).Once()

	_, err := f.svc.Deploy(context.Background(), f.request)
	var de *deployer.Error
	require.ErrorAs(t, err, &de)
	assert.Equal(t, deployer.KindRejected, de.Kind)
	assert.NotEmpty(t, de.TxID)
	assert.Contains(t, err.Error(), "overspend")
}

func TestDeploy_PoolError(t *testing.T) {
	f := newFixture(t)
	f.expectSubmission()
	f.node.On("PendingTransaction", mock.Anything, mock.Anything).
		Return(ledger.PendingInfo{PoolError: "transaction already in ledger"}, nil).Once()
	f.publisher.On("PublishDeployment", mock.Anything, mock.Anything).Return(fmt.Errorf("broker down")).Once()

	_, err := f.svc.Deploy(context.Background(), f.request)
	assert.Equal(t, deployer.KindRejected, deployer.KindOf(err))
	assert.Contains(t, err.Error(), "already in ledger")
}

func TestDeploy_PendingNotFoundKeepsPolling(t *testing.T) {
	f := newFixture(t)
	f.expectSubmission()
	f.node.On("PendingTransaction", mock.Anything, mock.Anything).
		Return(ledger.PendingInfo{}, fmt.Errorf("pending transaction: %w", ledger.ErrNotFound)).Once()
	f.node.On("StatusAfterBlock", mock.Anything, uint64(1000)).Return(uint64(1001), nil).Once()
	f.node.On("PendingTransaction", mock.Anything, mock.Anything).
		Return(ledger.PendingInfo{ConfirmedRound: 1001, ApplicationIndex: 9}, nil).Once()
	f.publisher.On("PublishDeployment", mock.Anything, mock.Anything).Return(nil).Once()

	record, err := f.svc.Deploy(context.Background(), f.request)
	require.NoError(t, err)
	assert.Equal(t, uint64(9), record.ProgramID)
}

func TestDeploy_ConfirmedWithoutApplicationID(t *testing.T) {
	f := newFixture(t)
	f.expectSubmission()
	f.node.On("PendingTransaction", mock.Anything, mock.Anything).
		Return(ledger.PendingInfo{ConfirmedRound: 1001}, nil).Once()
	f.publisher.On("PublishDeployment", mock.Anything, mock.MatchedBy(func(e models.DeploymentEvent) bool {
		return e.ProgramID == 0 && e.Error != ""
	})).Return(nil).Once()

	record, err := f.svc.Deploy(context.Background(), f.request)
	require.Error(t, err)
	assert.Nil(t, record)

	var de *deployer.Error
	require.ErrorAs(t, err, &de)
	assert.Equal(t, deployer.KindNetwork, de.Kind)
	assert.Equal(t, deployer.StageConfirmed, de.Stage)
	assert.NotEmpty(t, de.TxID)
	assert.Contains(t, err.Error(), "without an application id")

	require.Len(t, f.audit.records, 2)
	assert.Equal(t, audit.OutcomeFailure, f.audit.records[1].Outcome)
	assert.Zero(t, f.audit.records[1].ProgramID)
}

func TestDeploy_CancelledWhileWaiting(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f.expectSubmission()
	f.node.On("PendingTransaction", mock.Anything, mock.Anything).Return(ledger.PendingInfo{}, nil).Once()
	f.node.On("StatusAfterBlock", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { cancel() }).
		Return(uint64(0), fmt.Errorf("status after block: %w: %w", ledger.ErrUnavailable, context.Canceled)).Once()
	f.publisher.On("PublishDeployment", mock.Anything, mock.MatchedBy(func(e models.DeploymentEvent) bool {
		return e.Status == "timed_out"
	})).Return(nil).Once()

	start := time.Now()
	_, err := f.svc.Deploy(ctx, f.request)
	assert.Equal(t, deployer.KindTimeout, deployer.KindOf(err))
	assert.Less(t, time.Since(start), 5*time.Second)
}
