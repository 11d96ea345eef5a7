// Package remote implements the authenticated client for the hosted PayClaw
// service and adapts it to the ledger contract. The remote side owns balance
// and intent state; this package only converts amounts and normalizes errors.
package remote
