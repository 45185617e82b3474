package gateway

import (
	"log"
	"os"
)

type Config struct {
	ListenAddr string
	AuthURL    string
	CatalogURL string
	OrderURL   string
	AdminURL   string
	JWTSecret  []byte
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func must(v, name string) string {
	if v == "" {
		log.Fatalf("missing required env %s", name)
	}
	return v
}

func LoadConfig() *Config {
	return &Config{
		ListenAddr: getenv("GATEWAY_ADDR", ":8000"),
		AuthURL:    must(os.Getenv("AUTH_URL"), "AUTH_URL"),
		CatalogURL: must(os.Getenv("CATALOG_URL"), "CATALOG_URL"),
		OrderURL:   must(os.Getenv("ORDER_URL"), "ORDER_URL"),
		AdminURL:   must(os.Getenv("ADMIN_URL"), "ADMIN_URL"),
		JWTSecret:  []byte(must(os.Getenv("JWT_SECRET"), "JWT_SECRET")),
	}
}
