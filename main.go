// main.go wires the store, access control and routes, then serves
package main

import (
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/cors"
)

func init() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	store, err := OpenStore(getenv("DB_PATH", "portfolio.db"))
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}

	access := NewAccessController(store, []byte(getenv("JWT_SECRET", "your-secret-key")))
	a := newApp(store, access)
	mux := a.routes()

	frontendURL := os.Getenv("FRONTEND_URL")
	frontendURL2 := os.Getenv("FRONTEND_URL2")

	// CORS
	c := cors.New(cors.Options{
		AllowedOrigins: []string{frontendURL, frontendURL2},
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	})
	handler := c.Handler(mux)

	port := getenv("PORT", "8081")
	fmt.Println("Portfolio backend running on port " + port)
	log.Fatal(http.ListenAndServe(":"+port, handler))
}
