package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"

	"github.com/vhoang/storefront/internal/adapter/handler"
	"github.com/vhoang/storefront/internal/adapter/storage"
	"github.com/vhoang/storefront/internal/core/service"
)

const (
	defaultHTTPAddr  = ":8080"
	defaultMySQLDSN  = "root:root@tcp(localhost:3306)/storefront?parseTime=true&multiStatements=true"
	defaultRedisAddr = "localhost:6379"
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize MySQL
	db, err := sql.Open("mysql", envOr("MYSQL_DSN", defaultMySQLDSN))
	if err != nil {
		log.Fatalf("failed to connect mysql: %v", err)
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		log.Fatalf("failed to ping mysql: %v", err)
	}
	log.Println("connected to mysql")

	if err := storage.RunMigrations(db); err != nil {
		log.Fatalf("failed to run migrations: %v", err)
	}
	log.Println("schema up to date")

	// Initialize Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     envOr("REDIS_ADDR", defaultRedisAddr),
		PoolSize: 100,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("failed to connect redis: %v", err)
	}
	log.Println("connected to redis")

	// Initialize adapters
	mysqlAdapter := storage.NewMySQLAdapter(db)
	redisAdapter := storage.NewRedisAdapter(rdb)

	// Prime the stock gate from the authoritative ledger
	stock, err := mysqlAdapter.ListStock(ctx)
	if err != nil {
		log.Fatalf("failed to read stock: %v", err)
	}
	for productID, quantity := range stock {
		if err := redisAdapter.SetStock(ctx, productID, quantity); err != nil {
			log.Fatalf("failed to set stock for product %d: %v", productID, err)
		}
	}
	log.Printf("primed stock gate for %d products", len(stock))

	// Initialize services
	cartService := service.NewCartService(mysqlAdapter, mysqlAdapter)
	checkoutService := service.NewCheckoutService(mysqlAdapter, mysqlAdapter, mysqlAdapter, redisAdapter)
	orderService := service.NewOrderService(mysqlAdapter, mysqlAdapter, redisAdapter)

	// Initialize HTTP server
	httpHandler := handler.NewHTTPHandler(cartService, checkoutService, orderService)
	httpServer := &http.Server{
		Addr:    envOr("HTTP_ADDR", defaultHTTPAddr),
		Handler: httpHandler.Routes(),
	}

	go func() {
		log.Printf("HTTP server listening on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("HTTP server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	httpServer.Shutdown(shutdownCtx)
	log.Println("HTTP server stopped")

	rdb.Close()
	db.Close()
	log.Println("connections closed")
}
