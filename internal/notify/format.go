package notify

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/params"

	"juiceWatch/internal/model"
)

var weiPerEther = new(big.Int).SetUint64(params.Ether)

// FormatEther renders a wei amount as an exact decimal ether value with
// trailing zeros removed.
func FormatEther(wei string) (string, bool) {
	v, ok := new(big.Int).SetString(strings.TrimSpace(wei), 10)
	if !ok {
		return "", false
	}

	abs := new(big.Int).Abs(v)
	quo, rem := new(big.Int).QuoRem(abs, weiPerEther, new(big.Int))

	out := quo.String()
	if rem.Sign() != 0 {
		frac := rem.String()
		frac = strings.Repeat("0", 18-len(frac)) + frac
		out += "." + strings.TrimRight(frac, "0")
	}
	if v.Sign() < 0 {
		out = "-" + out
	}
	return out, true
}

// ProjectLabel is the metadata name, or "v<pv> project <id>" when the
// metadata has none.
func ProjectLabel(h model.EventHeader, meta model.ProjectMetadata) string {
	if name := strings.TrimSpace(meta.Name); name != "" {
		return name
	}
	return fmt.Sprintf("v%s project %d", h.PV, h.ProjectID)
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
