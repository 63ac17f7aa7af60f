package compiler_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/GIL794/algorand-ai-contract-creator/internal/audit"
	"github.com/GIL794/algorand-ai-contract-creator/internal/compiler"
	"github.com/GIL794/algorand-ai-contract-creator/internal/ledger"
	"github.com/GIL794/algorand-ai-contract-creator/internal/mocks"
	"github.com/GIL794/algorand-ai-contract-creator/internal/program"
	"github.com/GIL794/algorand-ai-contract-creator/internal/teal"
	"github.com/GIL794/algorand-ai-contract-creator/internal/validator"
)

const counterSource = `name: counter
global_schema: {num_uints: 1, num_byte_slices: 0}
approval_program:
  cond:
    - [{eq: [{txn: application_id}, 0]}, [{global_put: [count, 0]}, approve]]
    - [{eq: [{txn: on_completion}, {int: NoOp}]}, [{global_put: [count, {add: [{global_get: count}, 1]}]}, approve]]
clear_program: approve
`

type memoryCache struct {
	mu      sync.Mutex
	entries map[string]ledger.CompileResult
	fail    bool
}

func (c *memoryCache) Get(_ context.Context, key string) (ledger.CompileResult, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return ledger.CompileResult{}, false, errors.New("cache down")
	}
	res, ok := c.entries[key]
	return res, ok, nil
}

func (c *memoryCache) Set(_ context.Context, key string, res ledger.CompileResult) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return errors.New("cache down")
	}
	if c.entries == nil {
		c.entries = map[string]ledger.CompileResult{}
	}
	c.entries[key] = res
	return nil
}

type recorder struct {
	mu      sync.Mutex
	records []audit.Record
}

func (r *recorder) Record(_ context.Context, rec audit.Record) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
}

func newService(t *testing.T, cache compiler.Cache) (*compiler.Service, *mocks.Node, *recorder) {
	t.Helper()
	node := mocks.NewNode(t)
	rec := &recorder{}
	return compiler.New(node, validator.Default(), cache, rec, nil, zap.NewNop(), compiler.Config{}), node, rec
}

func isTEAL(prefix string) any {
	return mock.MatchedBy(func(src string) bool { return strings.HasPrefix(src, prefix) })
}

func TestCompile_Success(t *testing.T) {
	svc, node, rec := newService(t, nil)
	node.On("Compile", mock.Anything, isTEAL("#pragma version 8\ntxn ApplicationID")).
		Return(ledger.CompileResult{Hash: "PROGRAMHASH", Bytecode: []byte{0x08, 0x31}}, nil).Once()

	art, err := svc.Compile(context.Background(), counterSource, teal.ModeApplication)
	require.NoError(t, err)

	assert.True(t, art.Verified())
	assert.Equal(t, "counter", art.Name)
	assert.Equal(t, "PROGRAMHASH", art.ContentHash)
	assert.Equal(t, []byte{0x08, 0x31}, art.Bytecode)
	assert.Len(t, art.SourceHash, 64)
	assert.False(t, art.CompiledAt.IsZero())
	require.NotNil(t, art.GlobalSchema)
	assert.EqualValues(t, 1, art.GlobalSchema.NumUints)
	assert.True(t, strings.HasSuffix(art.TEAL, "\n"))

	require.Len(t, rec.records, 1)
	assert.Equal(t, audit.StageCompilation, rec.records[0].Stage)
	assert.Equal(t, audit.OutcomeSuccess, rec.records[0].Outcome)
	assert.Equal(t, "PROGRAMHASH", rec.records[0].ContentHash)
}

func TestCompile_UsesCache(t *testing.T) {
	cache := &memoryCache{}
	svc, node, _ := newService(t, cache)
	node.On("Compile", mock.Anything, mock.Anything).
		Return(ledger.CompileResult{Hash: "H", Bytecode: []byte{1}}, nil).Once()

	first, err := svc.Compile(context.Background(), counterSource, teal.ModeApplication)
	require.NoError(t, err)
	second, err := svc.Compile(context.Background(), counterSource, teal.ModeApplication)
	require.NoError(t, err)

	assert.Equal(t, first.ContentHash, second.ContentHash)
	assert.True(t, second.Verified())
	assert.Len(t, cache.entries, 1)
}

func TestCompile_CacheFailureFallsBackToNode(t *testing.T) {
	svc, node, _ := newService(t, &memoryCache{fail: true})
	node.On("Compile", mock.Anything, mock.Anything).
		Return(ledger.CompileResult{Hash: "H", Bytecode: []byte{1}}, nil).Once()

	art, err := svc.Compile(context.Background(), counterSource, teal.ModeApplication)
	require.NoError(t, err)
	assert.Equal(t, "H", art.ContentHash)
}

func TestCompile_ErrorKinds(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   compiler.Kind
		is     error
	}{
		{"empty", "  ", compiler.KindValidation, nil},
		{"no entry marker", "main: approve", compiler.KindValidation, nil},
		{"self alias", "approval_program: &a [*a]", compiler.KindSyntax, program.ErrSyntax},
		{"deny list", "approval_program: approve\nnote: subprocess", compiler.KindValidation, nil},
		{"yaml syntax", "approval_program: [approve", compiler.KindSyntax, program.ErrSyntax},
		{"no program", "name: x\ndescription: approval_program goes here\n", compiler.KindSyntax, program.ErrNoProgram},
		{"unknown op", "approval_program: {exec: [x]}", compiler.KindSyntax, program.ErrSyntax},
		{"bytes result", "approval_program: {bytes: hi}", compiler.KindLowering, teal.ErrLowering},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _, rec := newService(t, nil)

			art, err := svc.Compile(context.Background(), tt.source, teal.ModeApplication)
			require.Error(t, err)
			assert.Nil(t, art)
			assert.Equal(t, tt.want, compiler.KindOf(err))
			if tt.is != nil {
				assert.ErrorIs(t, err, tt.is)
			}
			require.Len(t, rec.records, 1)
			assert.Equal(t, audit.OutcomeFailure, rec.records[0].Outcome)
		})
	}
}

func TestCompile_SignatureModeRejectsState(t *testing.T) {
	svc, _, _ := newService(t, nil)
	_, err := svc.Compile(context.Background(), "approval_program: [{global_put: [k, 1]}, approve]", teal.ModeSignature)
	assert.Equal(t, compiler.KindLowering, compiler.KindOf(err))
}

func TestCompile_NodeRejectsProgram(t *testing.T) {
	svc, node, _ := newService(t, nil)
	node.On("Compile", mock.Anything, mock.Anything).
		Return(ledger.CompileResult{}, fmt.Errorf("compile: %w: HTTP 400: bad opcode", ledger.ErrBadRequest)).Once()

	_, err := svc.Compile(context.Background(), counterSource, teal.ModeApplication)
	assert.Equal(t, compiler.KindLowering, compiler.KindOf(err))
	assert.ErrorIs(t, err, ledger.ErrBadRequest)
}

// A node that cannot be reached yields a network error and no artifact.
func TestCompile_NodeUnavailable(t *testing.T) {
	svc, node, rec := newService(t, nil)
	node.On("Compile", mock.Anything, mock.Anything).
		Return(ledger.CompileResult{}, fmt.Errorf("compile: %w: dial tcp: connection refused", ledger.ErrUnavailable)).Once()

	art, err := svc.Compile(context.Background(), counterSource, teal.ModeApplication)
	assert.Nil(t, art)
	assert.Equal(t, compiler.KindNetwork, compiler.KindOf(err))
	assert.Contains(t, err.Error(), "connection refused")
	require.Len(t, rec.records, 1)
	assert.Equal(t, audit.OutcomeFailure, rec.records[0].Outcome)
}

func TestCompileClear(t *testing.T) {
	t.Run("document clear program", func(t *testing.T) {
		svc, node, _ := newService(t, nil)
		node.On("Compile", mock.Anything, "#pragma version 8\nint 1\nreturn\n").
			Return(ledger.CompileResult{Hash: "CLEAR", Bytecode: []byte{8, 0x81, 1, 0x43}}, nil).Once()

		art, err := svc.CompileClear(context.Background(), counterSource)
		require.NoError(t, err)
		assert.Equal(t, "CLEAR", art.ContentHash)
		assert.Equal(t, teal.ModeApplication, art.Mode)
	})

	t.Run("default when absent", func(t *testing.T) {
		svc, node, _ := newService(t, nil)
		node.On("Compile", mock.Anything, "#pragma version 8\nint 1\nreturn\n").
			Return(ledger.CompileResult{Hash: "DEFAULT"}, nil).Once()

		art, err := svc.CompileClear(context.Background(), "approval_program: reject")
		require.NoError(t, err)
		assert.Equal(t, "DEFAULT", art.ContentHash)
	})

	t.Run("rejecting clear program", func(t *testing.T) {
		svc, node, _ := newService(t, nil)
		node.On("Compile", mock.Anything, "#pragma version 8\nint 0\nreturn\n").
			Return(ledger.CompileResult{Hash: "REJECT"}, nil).Once()

		art, err := svc.CompileClear(context.Background(), "approval_program: approve\nclear_program: reject\n")
		require.NoError(t, err)
		assert.Equal(t, "REJECT", art.ContentHash)
	})
}

func TestArtifact_Verified(t *testing.T) {
	var nilArtifact *compiler.Artifact
	assert.False(t, nilArtifact.Verified())
	assert.False(t, (&compiler.Artifact{TEAL: "#pragma version 8\nint 1\nreturn\n", ContentHash: "H"}).Verified())
}
