// cmd/reconciler/main.go
package main

import (
	"context"
	"log"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.uber.org/zap"

	"github.com/indigetal/tutorpress-pmpro-sub006/internal/clients"
	"github.com/indigetal/tutorpress-pmpro-sub006/internal/reconcile"
)

func main() {
	godotenv.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	ctx := context.Background()
	shutdownTracing, err := setupTracing(ctx)
	if err != nil {
		logger.Fatal("Failed to set up tracing", zap.Error(err))
	}
	defer shutdownTracing(ctx)

	billingClient := clients.NewBillingClient(getEnv("BILLING_SERVICE_URL", "http://localhost:8083"))
	catalogClient := clients.NewCatalogClient(getEnv("CATALOG_SERVICE_URL", "http://localhost:8081"))

	caps := reconcile.StaticCapabilities{
		Catalog: getEnv("CATALOG_ENABLED", "true") == "true",
		Bundles: getEnv("BUNDLES_ENABLED", "true") == "true",
	}
	cfg := reconcile.Config{
		MembersOnly: getEnv("MEMBERS_ONLY", "false") == "true",
	}

	engine := reconcile.NewEngine(billingClient, catalogClient, caps, cfg, logger)
	handler := reconcile.NewHandler(engine, logger)

	router := chi.NewRouter()
	router.Group(handler.Routes)

	port := getEnv("PORT", "8082")
	logger.Info("Starting reconciliation service", zap.String("port", port))
	if err := http.ListenAndServe(":"+port, router); err != nil {
		logger.Fatal("Server stopped", zap.Error(err))
	}
}

func setupTracing(ctx context.Context) (func(context.Context) error, error) {
	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(getEnv("OTLP_ENDPOINT", "localhost:4318")),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName("reconciler"),
		)),
	)
	otel.SetTracerProvider(provider)
	return provider.Shutdown, nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
