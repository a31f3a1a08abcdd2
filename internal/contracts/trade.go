package contracts

import "time"

// Trade is a closed or open ledger entry. The discipline engine only
// reads account, close time (open time as fallback) and net P&L.
type Trade struct {
	ID         int64      `json:"id"`
	UserID     int64      `json:"user_id"`
	AccountID  *int64     `json:"account_id,omitempty"`
	Symbol     string     `json:"symbol"`
	Side       string     `json:"side"` // Buy | Sell
	QtyUnits   *float64   `json:"qty_units,omitempty"`
	EntryPrice *float64   `json:"entry_price,omitempty"`
	ExitPrice  *float64   `json:"exit_price,omitempty"`
	OpenTime   time.Time  `json:"open_time_utc"`
	CloseTime  *time.Time `json:"close_time_utc,omitempty"`
	GrossPnL   *float64   `json:"gross_pnl,omitempty"`
	Fees       *float64   `json:"fees,omitempty"`
	NetPnL     *float64   `json:"net_pnl,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// SequenceTime is the time used to order trades within a day: close
// time, falling back to open time for unclosed trades.
func (t *Trade) SequenceTime() time.Time {
	if t.CloseTime != nil {
		return *t.CloseTime
	}
	return t.OpenTime
}

// IsLoss reports whether the trade has a realized negative net P&L
func (t *Trade) IsLoss() bool {
	return t.NetPnL != nil && *t.NetPnL < 0
}

// IsClosedLoss reports whether the trade is closed with a realized
// negative net P&L. Only such trades are enforcement-gated.
func (t *Trade) IsClosedLoss() bool {
	return t.CloseTime != nil && t.IsLoss()
}

// Account is a read-only input to the risk cap resolver; the engine
// uses only AccountMaxRiskPct.
type Account struct {
	ID                int64    `json:"id"`
	UserID            int64    `json:"user_id"`
	Name              string   `json:"name"`
	BrokerLabel       string   `json:"broker_label,omitempty"`
	BaseCcy           string   `json:"base_ccy,omitempty"`
	Status            string   `json:"status"` // active | closed
	AccountMaxRiskPct *float64 `json:"account_max_risk_pct,omitempty"`
}
