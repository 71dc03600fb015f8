package sentry

import (
	"context"
	"time"

	sentry "github.com/getsentry/sentry-go"
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"albumvibe/config"
)

// Init configures the global Sentry client. Without a DSN reporting stays
// disabled and every helper below is a no-op.
func Init(cfg config.SentryConfig) error {
	if !cfg.IsEnabled() {
		log.Debug("Sentry disabled, no DSN configured")
		return nil
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Release:          cfg.Release,
		EnableTracing:    true,
		TracesSampleRate: 1.0,
	})
	if err != nil {
		return err
	}
	log.Infof("Sentry enabled (release %q)", cfg.Release)
	return nil
}

func Middleware() gin.HandlerFunc {
	return sentrygin.New(sentrygin.Options{Repanic: true})
}

// StartLookupTransaction opens a transaction for work that does not arrive
// through the router, on a cloned hub so scope and breadcrumbs stay isolated.
func StartLookupTransaction(ctx context.Context, name, query string) (context.Context, *sentry.Span) {
	hub := sentry.CurrentHub().Clone()
	ctx = sentry.SetHubOnContext(ctx, hub)

	transaction := sentry.StartTransaction(ctx, name,
		sentry.WithOpName("enrich.lookup"),
		sentry.WithTransactionSource(sentry.SourceCustom),
	)
	transaction.SetTag("query", query)
	hub.Scope().SetSpan(transaction)

	return transaction.Context(), transaction
}

// HubFromContext returns the request's hub, falling back to the global one.
func HubFromContext(ctx context.Context) *sentry.Hub {
	if ctx != nil {
		if hub := sentry.GetHubFromContext(ctx); hub != nil {
			return hub
		}
	}
	return sentry.CurrentHub()
}

func ReportError(ctx context.Context, err error) {
	HubFromContext(ctx).CaptureException(err)
}

func AddBreadcrumb(ctx context.Context, category, message string, data map[string]interface{}) {
	HubFromContext(ctx).AddBreadcrumb(&sentry.Breadcrumb{
		Category: category,
		Message:  message,
		Data:     data,
		Level:    sentry.LevelInfo,
	}, nil)
}

// Flush waits for buffered events before the process exits.
func Flush(timeout time.Duration) {
	sentry.Flush(timeout)
}
