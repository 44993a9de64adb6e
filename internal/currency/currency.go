// Package currency converts between the wallet denominations and the compact
// amount strings used in commands, e.g. "50c", "2s", "1g 5s".
package currency

import (
	"fmt"
	"strconv"
	"strings"

	"storekeeper/internal/storage"
)

// Rates gives the copper value of one silver and one gold. Copper is always
// worth one.
type Rates struct {
	Silver int64
	Gold   int64
}

func DefaultRates() Rates {
	return Rates{Silver: 100, Gold: 10000}
}

// ToCopper flattens a balance to its total copper value.
func (r Rates) ToCopper(b storage.Balance) int64 {
	return b.Copper + b.Silver*r.Silver + b.Gold*r.Gold
}

// FromCopper splits a copper total greedily into the largest denominations.
func (r Rates) FromCopper(total int64) storage.Balance {
	if total <= 0 {
		return storage.Balance{}
	}
	b := storage.Balance{}
	b.Gold = total / r.Gold
	total -= b.Gold * r.Gold
	b.Silver = total / r.Silver
	total -= b.Silver * r.Silver
	b.Copper = total
	return b
}

// ParseAmount reads an amount like "50", "2s", "1g 5s 20c". A bare number is
// copper. Units may repeat; repeated units add up.
func ParseAmount(raw string) (storage.BalanceDelta, error) {
	compact := strings.ToLower(strings.Join(strings.Fields(raw), ""))
	if compact == "" {
		return storage.BalanceDelta{}, fmt.Errorf("empty amount")
	}

	var delta storage.BalanceDelta
	i := 0
	for i < len(compact) {
		j := i
		for j < len(compact) && compact[j] >= '0' && compact[j] <= '9' {
			j++
		}
		if j == i {
			return storage.BalanceDelta{}, fmt.Errorf("invalid amount %q", raw)
		}
		value, err := strconv.ParseInt(compact[i:j], 10, 64)
		if err != nil {
			return storage.BalanceDelta{}, fmt.Errorf("invalid amount %q: %w", raw, err)
		}

		if j == len(compact) {
			// Trailing bare number counts as copper, so "50" and "1g50" work.
			delta.Copper += value
			break
		}
		switch compact[j] {
		case 'c':
			delta.Copper += value
		case 's':
			delta.Silver += value
		case 'g':
			delta.Gold += value
		default:
			return storage.BalanceDelta{}, fmt.Errorf("unknown unit %q in amount %q", string(compact[j]), raw)
		}
		i = j + 1
	}
	return delta, nil
}

// Format renders a balance like "1g 5s 20c", dropping zero denominations. A
// zero balance renders as "0c".
func Format(b storage.Balance) string {
	var parts []string
	if b.Gold > 0 {
		parts = append(parts, fmt.Sprintf("%dg", b.Gold))
	}
	if b.Silver > 0 {
		parts = append(parts, fmt.Sprintf("%ds", b.Silver))
	}
	if b.Copper > 0 {
		parts = append(parts, fmt.Sprintf("%dc", b.Copper))
	}
	if len(parts) == 0 {
		return "0c"
	}
	return strings.Join(parts, " ")
}

// FormatDelta renders a delta the same way Format renders a balance,
// prefixing the sign shared by its denominations.
func FormatDelta(d storage.BalanceDelta) string {
	negative := d.Copper < 0 || d.Silver < 0 || d.Gold < 0
	abs := storage.Balance{Copper: absInt64(d.Copper), Silver: absInt64(d.Silver), Gold: absInt64(d.Gold)}
	if negative {
		return "-" + Format(abs)
	}
	return Format(abs)
}

func FormatCopper(total int64) string {
	return fmt.Sprintf("%dc", total)
}

func absInt64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
