package model

import (
	"time"

	"github.com/google/uuid"
)

// TransactionKind classifies a ledger movement in the audit log.
type TransactionKind string

const (
	TxSet           TransactionKind = "set"
	TxAdd           TransactionKind = "add"
	TxRemove        TransactionKind = "remove"
	TxPay           TransactionKind = "pay"
	TxDaily         TransactionKind = "daily"
	TxPvP           TransactionKind = "pvp"
	TxPurchase      TransactionKind = "purchase"
	TxFulfill       TransactionKind = "fulfill"
	TxServerSell    TransactionKind = "server_sell"
	TxServerBuy     TransactionKind = "server_buy"
	TxPlayerRemoved TransactionKind = "player_removed"
)

// Transaction is an append-only audit entry. Counterparty is uuid.Nil when
// the movement involves the server only.
type Transaction struct {
	ID           string          `json:"id"`
	Kind         TransactionKind `json:"kind"`
	Player       uuid.UUID       `json:"player"`
	Counterparty uuid.UUID       `json:"counterparty"`
	Amount       int64           `json:"amount"`
	Tax          int64           `json:"tax,omitempty"`
	Reference    string          `json:"reference,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// Involves reports whether the transaction touches the player.
func (t Transaction) Involves(player uuid.UUID) bool {
	return t.Player == player || (t.Counterparty != uuid.Nil && t.Counterparty == player)
}
