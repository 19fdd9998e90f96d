// cmd/api/main.go
package main

import (
	"log"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"

	"github.com/joho/godotenv"
)

func main() {
	godotenv.Load()

	catalogURL, _ := url.Parse(getEnv("CATALOG_SERVICE_URL", "http://localhost:8081"))
	reconcilerURL, _ := url.Parse(getEnv("RECONCILER_SERVICE_URL", "http://localhost:8082"))
	billingURL, _ := url.Parse(getEnv("BILLING_SERVICE_URL", "http://localhost:8083"))

	catalogProxy := httputil.NewSingleHostReverseProxy(catalogURL)
	reconcilerProxy := httputil.NewSingleHostReverseProxy(reconcilerURL)
	billingProxy := httputil.NewSingleHostReverseProxy(billingURL)

	http.Handle("/api/v1/catalog/", http.StripPrefix("/api/v1/catalog", catalogProxy))
	http.Handle("/api/v1/reconciler/", http.StripPrefix("/api/v1/reconciler", reconcilerProxy))
	http.Handle("/api/v1/billing/", http.StripPrefix("/api/v1/billing", billingProxy))

	port := getEnv("PORT", "8080")
	log.Printf("API Gateway listening on port %s", port)
	log.Fatal(http.ListenAndServe(":"+port, nil))
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
