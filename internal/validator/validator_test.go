package validator_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GIL794/algorand-ai-contract-creator/internal/validator"
)

const okSource = `approval_program:
  seq:
    - assert: [{eq: [{txn: Sender}, {global: CreatorAddress}]}]
    - approve: []
`

func TestValidate(t *testing.T) {
	v := validator.Default()

	tests := []struct {
		name       string
		source     string
		wantValid  bool
		wantReason string
	}{
		{name: "valid", source: okSource, wantValid: true},
		{name: "empty", source: "", wantReason: validator.ReasonEmpty},
		{name: "whitespace only", source: " \n\t ", wantReason: validator.ReasonEmpty},
		{name: "router entry point", source: "router:\n  approve: []\n", wantValid: true},
		{name: "app entry point", source: "name: demo\napp: {approve: []}\n", wantValid: true},
		{name: "no entry point", source: "main:\n  approve: []\n", wantReason: validator.ReasonMissingEntryPoint},
		{name: "exec call", source: okSource + "# exec(open('x').read())\n", wantReason: `forbidden pattern "exec(" found`},
		{name: "mnemonic word", source: okSource + "# mnemonic goes here\n", wantReason: `forbidden pattern "mnemonic" found`},
		{name: "openai key", source: okSource + "# sk-abcdefghijklmnopqrstuvwxyz012345\n", wantReason: `forbidden pattern "\\bsk-[A-Za-z0-9]{20,}" found`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := v.Validate(tt.source)
			assert.Equal(t, tt.wantValid, got.Valid)
			assert.Equal(t, tt.wantReason, got.Reason)
		})
	}
}

func TestValidate_EntryPointCheckedBeforeDenyList(t *testing.T) {
	got := validator.Default().Validate("eval(1)")

	assert.False(t, got.Valid)
	assert.Equal(t, validator.ReasonMissingEntryPoint, got.Reason)
}

func TestValidate_MnemonicPhrase(t *testing.T) {
	words := make([]string, 25)
	for i := range words {
		words[i] = "abandon"
	}
	source := okSource + "# " + strings.Join(words, " ") + "\n"

	got := validator.Default().Validate(source)

	assert.False(t, got.Valid)
	assert.Contains(t, got.Reason, "forbidden pattern")
}

func TestValidate_Idempotent(t *testing.T) {
	v := validator.Default()
	for _, src := range []string{okSource, "", "eval(", okSource + "subprocess"} {
		assert.Equal(t, v.Validate(src), v.Validate(src))
	}
}

func TestNew_CustomRules(t *testing.T) {
	v, err := validator.New(validator.Config{
		EntryMarkers: []string{"router"},
		DenyPatterns: []string{"forbidden_op"},
		DenyRegexps:  []string{`box_\w+`},
	})
	require.NoError(t, err)

	assert.True(t, v.Validate("router:\n  approve: []").Valid)
	assert.Equal(t, validator.ReasonMissingEntryPoint, v.Validate(okSource).Reason)
	assert.Equal(t, `forbidden pattern "forbidden_op" found`, v.Validate("router: {forbidden_op: []}").Reason)
	assert.Equal(t, "forbidden pattern \"box_\\\\w+\" found", v.Validate("router: {box_put: []}").Reason)
}

func TestNew_BadRegexp(t *testing.T) {
	_, err := validator.New(validator.Config{DenyRegexps: []string{"("}})
	assert.Error(t, err)
}
