package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/yourorg/commute-feed/internal/env"
	"github.com/yourorg/commute-feed/internal/logger"
	"github.com/yourorg/commute-feed/internal/metrics"
	"github.com/yourorg/commute-feed/internal/store"
)

func main() {
	port := env.GetInt("PORT", 4002)
	dsn := env.Must("PG_DSN")
	exportPath := env.Get("EXPORT_PATH", "data/real_estate_ads.json")

	st, err := store.Open(dsn)
	if err != nil {
		log.Fatalf("store open error: %v", err)
	}
	defer st.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := st.Ping(ctx); err != nil {
		cancel()
		log.Fatalf("postgres ping error: %v", err)
	}
	if err := st.Migrate(ctx); err != nil {
		cancel()
		log.Fatalf("postgres migrate error: %v", err)
	}
	cancel()

	metrics.RegisterDBGauges(st.DB, log.Default())

	router := BuildRouter(st, exportPath)

	log.Printf("commute-feed api listening on :%d", port)
	if err := http.ListenAndServe(fmt.Sprintf(":%d", port), logger.Middleware(router)); err != nil {
		log.Fatal(err)
	}
}
