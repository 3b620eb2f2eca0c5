// Command papertrader runs a paper trading account: it books signals into a
// SQLite ledger behind a drawdown breaker and protects open positions with
// ratcheting stops.
//
// Usage:
//
//	papertrader run --config config.yaml
//	papertrader run --once
//	papertrader status
//	papertrader trades --limit 20
//	papertrader snapshots
package main

import (
	"os"

	"github.com/vadiminshakov/papertrader/cmd/papertrader/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
