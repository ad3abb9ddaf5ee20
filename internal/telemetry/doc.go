// Package telemetry wires the OpenTelemetry SDK into storefrontd.
//
// One Telemetry instance backs the whole daemon. The webhook handler
// opens the root span for each Telegram update, and the search pipeline
// (embed, vector query, threshold, LLM fallback) hangs child spans off
// it, all tagged with the store slug. Export goes to an OTLP collector
// over gRPC or HTTP/protobuf.
//
// Setup happens once at daemon start:
//
//	tel, err := telemetry.New(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(ctx)
//
//	tracer := tel.Tracer("storefrontd/telegram")
//	ctx, span := tracer.Start(ctx, "webhook.update")
//	defer span.End()
//
// The matching config section, all keys optional:
//
//	telemetry:
//	  enabled: true
//	  endpoint: "localhost:4317"
//	  sampling:
//	    rate: 0.1          # keep every trace in dev, sample in prod
//	    always_on_errors: true
//	  metrics:
//	    enabled: true
//	    export_interval: "15s"
//
// A collector outage never takes the bots down: initialization errors
// mark the instance degraded and every accessor falls back to the
// global no-op providers.
//
// Tests assert on spans through the in-memory TestTelemetry:
//
//	tt := telemetry.NewTestTelemetry()
//	_, span := tt.Tracer("storefrontd/retrieval").Start(ctx, "search.query")
//	span.End()
//	tt.AssertSpanExists(t, "search.query")
package telemetry
