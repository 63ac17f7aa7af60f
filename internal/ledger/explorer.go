package ledger

import (
	"fmt"
	"strings"
)

// Explorer builds links to a block explorer.
type Explorer struct {
	BaseURL string
}

func (e Explorer) TransactionURL(txID string) string {
	if e.BaseURL == "" || txID == "" {
		return ""
	}
	return fmt.Sprintf("%s/tx/%s", strings.TrimRight(e.BaseURL, "/"), txID)
}

func (e Explorer) ApplicationURL(appID uint64) string {
	if e.BaseURL == "" || appID == 0 {
		return ""
	}
	return fmt.Sprintf("%s/application/%d", strings.TrimRight(e.BaseURL, "/"), appID)
}

// MicroAlgosToAlgos formats a balance for display.
func MicroAlgosToAlgos(micro uint64) string {
	return fmt.Sprintf("%d.%06d", micro/1_000_000, micro%1_000_000)
}
