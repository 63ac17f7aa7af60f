package teal

import "strings"

type field struct {
	name    string
	typ     Type
	appOnly bool
}

var txnFields = fieldTable(
	field{name: "Sender", typ: TypeBytes},
	field{name: "Fee", typ: TypeUint64},
	field{name: "FirstValid", typ: TypeUint64},
	field{name: "LastValid", typ: TypeUint64},
	field{name: "Note", typ: TypeBytes},
	field{name: "Lease", typ: TypeBytes},
	field{name: "Receiver", typ: TypeBytes},
	field{name: "Amount", typ: TypeUint64},
	field{name: "CloseRemainderTo", typ: TypeBytes},
	field{name: "Type", typ: TypeBytes},
	field{name: "TypeEnum", typ: TypeUint64},
	field{name: "XferAsset", typ: TypeUint64},
	field{name: "AssetAmount", typ: TypeUint64},
	field{name: "AssetSender", typ: TypeBytes},
	field{name: "AssetReceiver", typ: TypeBytes},
	field{name: "AssetCloseTo", typ: TypeBytes},
	field{name: "GroupIndex", typ: TypeUint64},
	field{name: "TxID", typ: TypeBytes},
	field{name: "ApplicationID", typ: TypeUint64},
	field{name: "OnCompletion", typ: TypeUint64},
	field{name: "NumAppArgs", typ: TypeUint64},
	field{name: "NumAccounts", typ: TypeUint64},
	field{name: "RekeyTo", typ: TypeBytes},
)

var globalFields = fieldTable(
	field{name: "MinTxnFee", typ: TypeUint64},
	field{name: "MinBalance", typ: TypeUint64},
	field{name: "MaxTxnLife", typ: TypeUint64},
	field{name: "ZeroAddress", typ: TypeBytes},
	field{name: "GroupSize", typ: TypeUint64},
	field{name: "LogicSigVersion", typ: TypeUint64},
	field{name: "Round", typ: TypeUint64, appOnly: true},
	field{name: "LatestTimestamp", typ: TypeUint64, appOnly: true},
	field{name: "CurrentApplicationID", typ: TypeUint64, appOnly: true},
	field{name: "CreatorAddress", typ: TypeBytes, appOnly: true},
	field{name: "CurrentApplicationAddress", typ: TypeBytes, appOnly: true},
	field{name: "GroupID", typ: TypeBytes},
	field{name: "OpcodeBudget", typ: TypeUint64},
)

var arrayFields = fieldTable(
	field{name: "ApplicationArgs", typ: TypeBytes},
	field{name: "Accounts", typ: TypeBytes},
	field{name: "Applications", typ: TypeUint64},
	field{name: "Assets", typ: TypeUint64},
)

var fieldAliases = map[string]string{
	"appid":   "applicationid",
	"appargs": "applicationargs",
	"args":    "applicationargs",
	"creator": "creatoraddress",
	"now":     "latesttimestamp",
}

// Named integer constants: on-completion actions and transaction types.
var namedInts = map[string]uint64{
	"noop":              0,
	"optin":             1,
	"closeout":          2,
	"clearstate":        3,
	"updateapplication": 4,
	"deleteapplication": 5,

	"payment":         1,
	"pay":             1,
	"keyregistration": 2,
	"keyreg":          2,
	"assetconfig":     3,
	"acfg":            3,
	"assettransfer":   4,
	"axfer":           4,
	"assetfreeze":     5,
	"afrz":            5,
	"applicationcall": 6,
	"appl":            6,
}

func fieldTable(fields ...field) map[string]field {
	m := make(map[string]field, len(fields))
	for _, f := range fields {
		m[normalize(f.name)] = f
	}
	return m
}

// normalize lets ApplicationID, application_id and applicationId match.
func normalize(name string) string {
	n := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(name), "_", ""))
	if a, ok := fieldAliases[n]; ok {
		return a
	}
	return n
}

func lookupField(table map[string]field, name string) (field, bool) {
	f, ok := table[normalize(name)]
	return f, ok
}
