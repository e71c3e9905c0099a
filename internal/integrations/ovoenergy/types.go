package ovoenergy

import (
	"encoding/json"
	"strconv"
	"time"
)

// Interval is the period a reading covers. The portal sends local times
// without a zone.
type Interval struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Cost is a monetary amount as the portal sends it.
type Cost struct {
	Amount       string `json:"amount"`
	CurrencyUnit string `json:"currencyUnit"`
}

// Value parses the amount.
func (c *Cost) Value() (float64, bool) {
	if c == nil || c.Amount == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(c.Amount, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Reading is one usage interval.
type Reading struct {
	Consumption *float64 `json:"consumption"`
	Interval    Interval `json:"interval"`
	Unit        string   `json:"unit,omitempty"`
	Cost        *Cost    `json:"cost,omitempty"`
}

// Series is the readings of one fuel.
type Series struct {
	Data []Reading `json:"data"`
}

// Last returns the most recent reading with a consumption value.
func (s *Series) Last() (Reading, bool) {
	if s == nil {
		return Reading{}, false
	}
	for i := len(s.Data) - 1; i >= 0; i-- {
		if s.Data[i].Consumption != nil {
			return s.Data[i], true
		}
	}
	return Reading{}, false
}

// Usage is the response of the daily and half-hourly endpoints.
type Usage struct {
	Electricity *Series `json:"electricity"`
	Gas         *Series `json:"gas"`
}

// accountIDs is the response of the account lookup. Ids arrive as
// numbers or numeric strings.
type accountIDs struct {
	CustomerID string        `json:"customerId"`
	AccountIDs []json.Number `json:"accountIds"`
}

// Snapshot is one poll of an account.
type Snapshot struct {
	Daily      *Usage
	HalfHourly *Usage
	Fetched    time.Time
}
