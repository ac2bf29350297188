package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/aqlanhadi/kisht/extractor/common"
	"github.com/aqlanhadi/kisht/store"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		log.WithError(err).Error("failed to write output")
	}
}

func newTable() *tabwriter.Writer {
	return tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
}

func money(d decimal.Decimal) string {
	return common.FormatMoney(d)
}

func day(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02")
}

var (
	// cleanups release what commands opened when they exit early
	cleanups []func()
	osExit   = os.Exit
)

func onExit(f func()) {
	cleanups = append(cleanups, f)
}

// exit runs the cleanups, newest first, and ends the process
func exit(code int) {
	for i := len(cleanups) - 1; i >= 0; i-- {
		cleanups[i]()
	}
	cleanups = nil
	osExit(code)
}

// fail prints the operator-facing message for err and exits
func fail(err error, action string) {
	fmt.Fprintln(os.Stderr, store.UserMessage(err, action))
	exit(1)
}
