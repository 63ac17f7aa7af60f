// Package deployer submits application-create transactions and waits for
// their confirmation.
package deployer

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"time"

	"github.com/algorand/go-algorand-sdk/v2/crypto"
	"github.com/algorand/go-algorand-sdk/v2/transaction"
	"github.com/algorand/go-algorand-sdk/v2/types"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/GIL794/algorand-ai-contract-creator/internal/audit"
	"github.com/GIL794/algorand-ai-contract-creator/internal/compiler"
	"github.com/GIL794/algorand-ai-contract-creator/internal/ledger"
	"github.com/GIL794/algorand-ai-contract-creator/internal/messaging"
	"github.com/GIL794/algorand-ai-contract-creator/internal/metrics"
	"github.com/GIL794/algorand-ai-contract-creator/internal/models"
	"github.com/GIL794/algorand-ai-contract-creator/internal/teal"
)

const DefaultWaitRounds = 4

// Request is consumed by a single Deploy call. The key is used to sign and
// is not kept afterwards.
type Request struct {
	Approval     *compiler.Artifact
	Clear        *compiler.Artifact
	Key          ed25519.PrivateKey
	GlobalSchema models.StateSchema
	LocalSchema  models.StateSchema
	Note         []byte
}

type Config struct {
	WaitRounds uint64
	Explorer   ledger.Explorer
}

type Service struct {
	node      ledger.Node
	publisher messaging.EventPublisher
	audit     audit.Recorder
	metrics   *metrics.Metrics
	logger    *zap.Logger
	cfg       Config
	now       func() time.Time
}

// New returns a Service; publisher and rec may be nil.
func New(node ledger.Node, publisher messaging.EventPublisher, rec audit.Recorder, m *metrics.Metrics, logger *zap.Logger, cfg Config) *Service {
	if publisher == nil {
		publisher = messaging.Nop{}
	}
	if rec == nil {
		rec = audit.Nop{}
	}
	if cfg.WaitRounds == 0 {
		cfg.WaitRounds = DefaultWaitRounds
	}
	return &Service{
		node:      node,
		publisher: publisher,
		audit:     rec,
		metrics:   m,
		logger:    logger.Named("deployer"),
		cfg:       cfg,
		now:       time.Now,
	}
}

// deployment tracks one Deploy call through its states.
type deployment struct {
	stage Stage
	txID  string
}

func (d *deployment) fail(kind Kind, err error) *Error {
	return &Error{Kind: kind, Stage: d.stage, TxID: d.txID, Err: err}
}

// Deploy creates the application and returns once the ledger confirms it.
// It submits at most one transaction and never retries.
func (s *Service) Deploy(ctx context.Context, req Request) (*models.DeploymentRecord, error) {
	d := &deployment{stage: StageInit}
	record, err := s.deploy(ctx, d, req)
	s.finish(ctx, d, record, err)
	if err != nil {
		return nil, err
	}
	return record, nil
}

func (s *Service) deploy(ctx context.Context, d *deployment, req Request) (*models.DeploymentRecord, error) {
	if err := checkRequest(req); err != nil {
		return nil, d.fail(KindBuild, err)
	}

	account, err := crypto.AccountFromPrivateKey(req.Key)
	if err != nil {
		return nil, d.fail(KindBuild, fmt.Errorf("invalid signing key: %w", err))
	}
	sender := account.Address.String()
	log := s.logger.With(zap.String("sender", sender))

	for _, art := range []*compiler.Artifact{req.Approval, req.Clear} {
		if err := s.reverify(ctx, art); err != nil {
			if errors.Is(err, ledger.ErrUnavailable) {
				return nil, d.fail(KindNetwork, err)
			}
			return nil, d.fail(KindBuild, err)
		}
	}

	params, err := s.node.SuggestedParams(ctx)
	if err != nil {
		return nil, d.fail(KindNetwork, err)
	}

	tx, err := transaction.MakeApplicationCreateTx(
		false,
		req.Approval.Bytecode,
		req.Clear.Bytecode,
		types.StateSchema{NumUint: req.GlobalSchema.NumUints, NumByteSlice: req.GlobalSchema.NumByteSlices},
		types.StateSchema{NumUint: req.LocalSchema.NumUints, NumByteSlice: req.LocalSchema.NumByteSlices},
		nil, nil, nil, nil,
		params,
		account.Address,
		req.Note,
		types.Digest{},
		[32]byte{},
		types.Address{},
	)
	if err != nil {
		return nil, d.fail(KindBuild, fmt.Errorf("failed to build application create transaction: %w", err))
	}
	d.stage = StageBuilt

	txID, signed, err := crypto.SignTransaction(req.Key, tx)
	if err != nil {
		return nil, d.fail(KindBuild, fmt.Errorf("failed to sign transaction: %w", err))
	}
	d.stage, d.txID = StageSigned, txID

	if _, err := s.node.SendRawTransaction(ctx, signed); err != nil {
		if errors.Is(err, ledger.ErrBadRequest) {
			d.stage = StageRejected
			return nil, d.fail(KindRejected, err)
		}
		return nil, d.fail(KindNetwork, err)
	}
	d.stage = StageSubmitted
	log.Info("Application create transaction submitted", zap.String("tx_id", txID))
	s.audit.Record(ctx, audit.Record{
		Stage:   audit.StageDeployment,
		Summary: "application create submitted",
		Outcome: audit.OutcomeSubmitted,
		TxID:    txID,
	})

	info, rounds, err := s.waitForConfirmation(ctx, d)
	if err != nil {
		return nil, err
	}
	d.stage = StageConfirmed
	s.metrics.Deploy(string(StageConfirmed), rounds)

	return &models.DeploymentRecord{
		ProgramID:      info.ApplicationIndex,
		TransactionID:  txID,
		ProgramAddress: crypto.GetApplicationAddress(info.ApplicationIndex).String(),
		Sender:         sender,
		ConfirmedRound: info.ConfirmedRound,
		ExplorerURL:    s.cfg.Explorer.ApplicationURL(info.ApplicationIndex),
		DeployedAt:     s.now().UTC(),
	}, nil
}

func checkRequest(req Request) error {
	programs := []struct {
		name string
		art  *compiler.Artifact
	}{{"approval", req.Approval}, {"clear", req.Clear}}
	for _, p := range programs {
		if !p.art.Verified() {
			return fmt.Errorf("%s program was not produced by the compiler", p.name)
		}
		if p.art.Mode != teal.ModeApplication {
			return fmt.Errorf("%s program was compiled for %s mode", p.name, p.art.Mode)
		}
	}
	if len(req.Key) != ed25519.PrivateKeySize {
		return fmt.Errorf("signing key must be %d bytes, got %d", ed25519.PrivateKeySize, len(req.Key))
	}
	if err := req.GlobalSchema.CheckLimit("global", models.MaxGlobalStateEntries); err != nil {
		return err
	}
	return req.LocalSchema.CheckLimit("local", models.MaxLocalStateEntries)
}

// reverify recompiles the artifact's TEAL and requires the node to produce
// the same program.
func (s *Service) reverify(ctx context.Context, art *compiler.Artifact) error {
	res, err := s.node.Compile(ctx, art.TEAL)
	if err != nil {
		return fmt.Errorf("failed to re-verify program %s: %w", art.ContentHash, err)
	}
	if res.Hash != art.ContentHash || !bytes.Equal(res.Bytecode, art.Bytecode) {
		return fmt.Errorf("program hash mismatch: artifact %s, node %s", art.ContentHash, res.Hash)
	}
	return nil
}

// waitForConfirmation polls once per round for at most WaitRounds rounds.
func (s *Service) waitForConfirmation(ctx context.Context, d *deployment) (ledger.PendingInfo, uint64, error) {
	round, err := s.node.Status(ctx)
	if err != nil {
		return ledger.PendingInfo{}, 0, s.waitError(ctx, d, err)
	}

	for waited := uint64(0); ; waited++ {
		info, err := s.node.PendingTransaction(ctx, d.txID)
		switch {
		case errors.Is(err, ledger.ErrNotFound):
			// Not visible yet.
		case err != nil:
			return ledger.PendingInfo{}, waited, s.waitError(ctx, d, err)
		case info.PoolError != "":
			d.stage = StageRejected
			return ledger.PendingInfo{}, waited, d.fail(KindRejected, fmt.Errorf("transaction rejected by pool: %s", info.PoolError))
		case info.Confirmed() && info.ApplicationIndex == 0:
			d.stage = StageConfirmed
			return ledger.PendingInfo{}, waited, d.fail(KindNetwork,
				fmt.Errorf("%w: confirmed in round %d without an application id", ledger.ErrUnavailable, info.ConfirmedRound))
		case info.Confirmed():
			return info, waited, nil
		}

		if waited >= s.cfg.WaitRounds {
			d.stage = StageTimedOut
			return ledger.PendingInfo{}, waited, d.fail(KindTimeout, fmt.Errorf("not confirmed after %d rounds", s.cfg.WaitRounds))
		}

		round, err = s.node.StatusAfterBlock(ctx, round)
		if err != nil {
			return ledger.PendingInfo{}, waited, s.waitError(ctx, d, err)
		}
	}
}

// waitError turns a failure while waiting into a timeout when the caller
// gave up, and a network error otherwise.
func (s *Service) waitError(ctx context.Context, d *deployment, err error) *Error {
	if ctx.Err() != nil {
		d.stage = StageTimedOut
		return d.fail(KindTimeout, err)
	}
	return d.fail(KindNetwork, err)
}

func (s *Service) finish(ctx context.Context, d *deployment, record *models.DeploymentRecord, err error) {
	rec := audit.Record{Stage: audit.StageDeployment, TxID: d.txID}
	event := models.DeploymentEvent{
		EventID:       uuid.NewString(),
		Status:        string(d.stage),
		TransactionID: d.txID,
		OccurredAt:    s.now().UTC(),
	}

	if err != nil {
		kind := KindOf(err)
		s.logger.Warn("Deployment failed",
			zap.String("kind", string(kind)),
			zap.String("stage", string(d.stage)),
			zap.String("tx_id", d.txID),
			zap.Error(err),
		)
		if kind != KindTimeout {
			s.metrics.Deploy(string(kind), 0)
		} else {
			s.metrics.Deploy(string(kind), s.cfg.WaitRounds)
		}
		rec.Summary = fmt.Sprintf("deployment %s at %s", kind, d.stage)
		rec.Outcome, rec.Error = audit.OutcomeFailure, err.Error()
		event.Error = err.Error()
	} else {
		s.logger.Info("Application deployed",
			zap.Uint64("program_id", record.ProgramID),
			zap.String("tx_id", record.TransactionID),
			zap.Uint64("confirmed_round", record.ConfirmedRound),
		)
		rec.Summary = fmt.Sprintf("application %d deployed", record.ProgramID)
		rec.Outcome, rec.ProgramID = audit.OutcomeSuccess, record.ProgramID
		event.ProgramID = record.ProgramID
		event.ProgramAddress = record.ProgramAddress
		event.ConfirmedRound = record.ConfirmedRound
	}
	s.audit.Record(ctx, rec)

	// Nothing happened on the ledger before submission.
	if d.txID == "" || d.stage == StageSigned {
		return
	}
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.publisher.PublishDeployment(pubCtx, event); err != nil {
		s.logger.Warn("Failed to publish deployment event", zap.String("tx_id", d.txID), zap.Error(err))
	}
}
