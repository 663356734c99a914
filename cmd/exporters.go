package cmd

import (
	"context"
	"log/slog"

	"github.com/ynaoto/very-simple-mcp-OpenAI-Agents-sample/internal/config"
	"github.com/ynaoto/very-simple-mcp-OpenAI-Agents-sample/internal/tracing"
	"github.com/ynaoto/very-simple-mcp-OpenAI-Agents-sample/internal/tracing/openaiexport"
	"github.com/ynaoto/very-simple-mcp-OpenAI-Agents-sample/internal/tracing/otelexport"
)

// traceExporters builds the exporters for the collector: the OpenAI traces
// dashboard whenever an OpenAI key is present, plus OTLP when telemetry is
// enabled. Exporter failures disable that exporter only.
func traceExporters(ctx context.Context, cfg *config.Config) []tracing.SpanExporter {
	var out []tracing.SpanExporter

	if key := cfg.Providers.OpenAI.APIKey; key != "" {
		exp, err := openaiexport.New(openaiexport.Config{
			APIKey:  key,
			BaseURL: cfg.TracesBaseURL(),
		})
		if err != nil {
			slog.Warn("failed to create OpenAI trace exporter", "error", err)
		} else {
			out = append(out, exp)
		}
	} else {
		slog.Debug("OpenAI trace export skipped (no OPENAI_API_KEY)")
	}

	if exp := initOTelExporter(ctx, cfg); exp != nil {
		out = append(out, exp)
	}
	return out
}

// initOTelExporter creates the OpenTelemetry OTLP exporter when the
// telemetry config is enabled.
func initOTelExporter(ctx context.Context, cfg *config.Config) tracing.SpanExporter {
	if !cfg.Telemetry.Enabled || cfg.Telemetry.Endpoint == "" {
		slog.Debug("OTel export available but not enabled (set telemetry.enabled + telemetry.endpoint)")
		return nil
	}

	otelExp, err := otelexport.New(ctx, otelexport.Config{
		Endpoint:    cfg.Telemetry.Endpoint,
		Protocol:    cfg.Telemetry.Protocol,
		Insecure:    cfg.Telemetry.Insecure,
		ServiceName: cfg.Telemetry.ServiceName,
		Headers:     cfg.Telemetry.Headers,
	})
	if err != nil {
		slog.Warn("failed to create OTel exporter", "error", err)
		return nil
	}

	slog.Info("OpenTelemetry OTLP export enabled",
		"endpoint", cfg.Telemetry.Endpoint,
		"protocol", cfg.Telemetry.Protocol,
	)
	return otelExp
}
