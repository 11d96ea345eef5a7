// Package ledger defines the balance and intent bookkeeping contract shared
// by both execution modes, plus the in-process implementation used when no
// remote service is configured.
package ledger
