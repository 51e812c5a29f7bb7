package main

import (
	"flag"
	"log"
	"os"
	"strings"

	"github.com/andywang514/violin-coach/pkg/coach"
)

var (
	port           int
	dbPath         string
	referencePitch float64
	allowedOrigins string
)

func init() {
	flag.IntVar(&port, "port", 8080, "HTTP server port")
	flag.StringVar(&dbPath, "db", getEnvOrDefault("COACH_DB_PATH", "coach.sqlite3"), "Path to SQLite database")
	flag.Float64Var(&referencePitch, "a4", coach.DefaultReferencePitch, "Reference pitch for A4 in Hz")
	flag.StringVar(&allowedOrigins, "origins", "*", "Comma-separated list of allowed CORS origins (use * for all)")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	flag.Parse()

	var origins []string
	if allowedOrigins == "*" {
		origins = []string{"*"}
	} else {
		origins = strings.Split(allowedOrigins, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
	}

	service, err := coach.NewService(
		coach.WithDBPath(dbPath),
		coach.WithReferencePitch(referencePitch),
	)
	if err != nil {
		log.Fatalf("Failed to create service: %v", err)
	}
	defer service.Close()

	config := &ServerConfig{
		Port:           port,
		DBPath:         dbPath,
		ReferencePitch: referencePitch,
		AllowedOrigins: origins,
	}

	server := NewServer(service, config)
	if err := server.Start(); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
