package metrics

import (
	"os"
	"time"

	"github.com/getsentry/sentry-go"
)

// InitSentry enables crash reporting. An empty dsn falls back to SENTRY_DSN,
// and reporting stays off when neither is set.
func InitSentry(dsn string) error {
	if dsn == "" {
		dsn = os.Getenv("SENTRY_DSN")
	}
	if dsn == "" {
		return nil
	}
	return sentry.Init(sentry.ClientOptions{Dsn: dsn, TracesSampleRate: 0.6})
}

// RecoverAndRepanic reports a panic to sentry before letting it continue to
// crash the process.
func RecoverAndRepanic() {
	if err := recover(); err != nil {
		sentry.CurrentHub().Recover(err)
		sentry.Flush(time.Second * 2)
		panic(err)
	}
}
