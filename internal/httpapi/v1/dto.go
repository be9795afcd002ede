package v1

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/openhms/ledger/internal/date"
)

// upsertBalanceRequest is shared by the three ledger kinds; the key field
// relevant to the kind is picked by its resource.
type upsertBalanceRequest struct {
	Date        date.Date        `json:"date"`
	Amount      *decimal.Decimal `json:"amount"`
	AccountCode string           `json:"account_code,omitempty"`
	DrugCode    string           `json:"drug_code,omitempty"`
}

type balanceResponse struct {
	Date date.Date `json:"date"`
	// AccountCode carries the bank account or drug code; omitted for cash.
	AccountCode string          `json:"account_code,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
	// AmountDisplay renders monetary balances in the configured currency.
	AmountDisplay string `json:"amount_display,omitempty"`
	Year          int    `json:"year"`
	Month         int    `json:"month"`
}

// assertResponse reports the outcome of one assertion: how many dates the
// cascade touched and an echo of the asserted record.
type assertResponse struct {
	OpID         uuid.UUID       `json:"op_id"`
	DatesTouched int             `json:"dates_touched"`
	Cascaded     bool            `json:"cascaded"`
	Record       balanceResponse `json:"record"`
}

type listBalancesResponse struct {
	Items []balanceResponse `json:"items"`
}
