// Package logging wraps Zap with the correlation and redaction rules the
// daemon relies on.
//
// Every entry can carry the active trace, the store slug, the Telegram
// chat id, and the HTTP request id; the level methods pull these from
// the context so call sites never thread them by hand:
//
//	ctx := logging.WithStore(ctx, "acme-pets")
//	ctx = logging.WithChatID(ctx, 441234567)
//	logger.Info(ctx, "update handled", zap.Duration("duration", d))
//
// emits
//
//	{
//	  "ts": "2026-03-11T10:15:30Z",
//	  "level": "info",
//	  "msg": "update handled",
//	  "trace_id": "abc123",
//	  "store.slug": "acme-pets",
//	  "chat.id": 441234567,
//	  "duration": "45ms"
//	}
//
// A Trace level below Debug exists for wire-level detail, parsed from
// the string "trace" in config. Output goes to stdout, to an OTLP
// collector through the otelzap bridge, or both:
//
//	logger, err := logging.NewLogger(cfg, otelProvider)
//	if err != nil {
//	    return err
//	}
//	defer logger.Sync()
//
// # Redaction
//
// Bot tokens and API keys are kept out of stdout at three layers: the
// config.Secret type logs as its length, the encoder blanks fields with
// credential-like names, and the encoder scrubs values shaped like a
// Telegram token or bearer header. For plain strings use the helper:
//
//	logger.Info(ctx, "admin request",
//	    logging.RedactedString("authorization", authHeader))
//
// # Sampling
//
// Identical entries at Warn and below are sampled per tick so a single
// chatty store cannot flood the log. Error and above always write.
// Set cfg.Sampling.Enabled = false when chasing a bug.
//
// # Testing
//
// TestLogger records entries in memory:
//
//	tl := logging.NewTestLogger()
//	tl.Info(ctx, "reply sent", zap.String("store", "acme-pets"))
//	tl.AssertLogged(t, zapcore.InfoLevel, "reply sent")
//	tl.AssertField(t, "reply sent", "store", "acme-pets")
//	tl.AssertNoSecrets(t)
//
// Logger is safe for concurrent use. Children made with With or Named
// are independent of the parent and of each other.
package logging
