// Command serve exposes the runs recorded in a database over HTTP, with
// debug pages under /debug/. With -migrate it manages the schema instead.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/banshee-data/sensorbelief/internal/api"
	"github.com/banshee-data/sensorbelief/internal/db"
	"github.com/banshee-data/sensorbelief/internal/version"
)

var (
	listen      = flag.String("listen", "localhost:8080", "HTTP listen address")
	dbPath      = flag.String("db", "sensorbelief.db", "SQLite database written by the constraints and suppress commands")
	migrateCmd  = flag.String("migrate", "", "Run a schema migration action ("+db.MigrateActions+") and exit")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String("serve"))
		return
	}
	if *migrateCmd != "" {
		if err := db.RunMigrateCommand(*migrateCmd, *dbPath, os.Stdout); err != nil {
			log.Fatalf("migrate %s: %v", *migrateCmd, err)
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := db.NewDB(*dbPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer store.Close()

	handler, err := newHandler(store)
	if err != nil {
		log.Fatalf("failed to set up routes: %v", err)
	}
	server := &http.Server{
		Addr:              *listen,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("listening on %s", *listen)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}
}

// newHandler mounts the run API under /api and the admin pages under /debug.
func newHandler(store *db.DB) (http.Handler, error) {
	mux := http.NewServeMux()
	if err := store.AttachAdminRoutes(mux); err != nil {
		return nil, err
	}
	mux.Handle("/api/", http.StripPrefix("/api", api.NewServer(store).ServeMux()))
	return api.LoggingMiddleware(mux), nil
}
