package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		log.Fatalf("Failed to open DB: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping DB: %v", err)
	}

	seedConfiguredTaxes(db)
	seedSuppliers(db)
	seedWebhookEndpoint(db)

	log.Println("Seeding completed successfully!")
}

func seedConfiguredTaxes(db *sql.DB) {
	taxes := []struct {
		Code        string
		Kind        string
		Description string
		Rate        string
	}{
		{"perc-iibb-tuc", "Percepcion", "Percepcion IIBB Tucuman", "0.03"},
		{"perc-iibb-ba", "Percepcion", "Percepcion IIBB Buenos Aires", "0.025"},
		{"perc-iva", "Percepcion", "Percepcion IVA RG 3337", "0.03"},
		{"ret-ganancias", "Retencion", "Retencion Impuesto a las Ganancias", "0.02"},
		{"ret-iibb", "Retencion", "Retencion IIBB agente local", "0.015"},
		{"imp-interno", "Otro", "Impuestos internos", "0.04"},
		{"tasa-municipal", "Otro", "Tasa de seguridad e higiene", "0.005"},
	}

	fmt.Println("Seeding configured taxes...")
	for _, t := range taxes {
		_, err := db.Exec(`
			INSERT INTO configured_taxes (code, kind, description, rate_fraction, active)
			VALUES ($1, $2, $3, $4::numeric, true)
			ON CONFLICT (code) DO UPDATE SET
				kind = EXCLUDED.kind,
				description = EXCLUDED.description,
				rate_fraction = EXCLUDED.rate_fraction;
		`, t.Code, t.Kind, t.Description, t.Rate)
		if err != nil {
			log.Printf("Failed to seed tax %s: %v", t.Code, err)
		}
	}
}

func seedSuppliers(db *sql.DB) {
	suppliers := []struct {
		Name  string
		CUIT  string
		Email string
		City  string
	}{
		{"Distribuidora Norte SRL", "30-71234567-8", "ventas@disnorte.com.ar", "San Miguel de Tucuman"},
		{"Alimentos del Centro SA", "30-69876543-2", "pedidos@alicentro.com.ar", "Cordoba"},
		{"Mayorista La Banda", "30-70555111-9", "compras@labanda.com.ar", "Santiago del Estero"},
		{"Bebidas Cuyo SRL", "30-68123456-0", "administracion@bebidascuyo.com.ar", "Mendoza"},
		{"Limpieza Integral SA", "30-71999888-7", "ventas@limpiezaintegral.com.ar", "Buenos Aires"},
	}

	fmt.Println("Seeding suppliers...")
	for _, s := range suppliers {
		_, err := db.Exec(`
			INSERT INTO suppliers (name, cuit, email, address, active)
			VALUES ($1, $2, $3, $4, true)
			ON CONFLICT (cuit) DO UPDATE SET
				name = EXCLUDED.name,
				email = EXCLUDED.email,
				address = EXCLUDED.address;
		`, s.Name, s.CUIT, s.Email, s.City)
		if err != nil {
			log.Printf("Failed to seed supplier %s: %v", s.Name, err)
		}
	}
}

func seedWebhookEndpoint(db *sql.DB) {
	secret := os.Getenv("SEED_WEBHOOK_SECRET")
	if secret == "" {
		log.Println("SEED_WEBHOOK_SECRET not set, skipping webhook endpoint seed")
		return
	}
	url := os.Getenv("SEED_WEBHOOK_URL")
	if url == "" {
		url = "https://example.com/hooks/compras"
	}

	fmt.Println("Seeding webhook endpoint...")
	_, err := db.Exec(`
		INSERT INTO webhook_endpoints (name, url, secret, topics, active)
		VALUES ('erp-sync', $1, $2, ARRAY['purchase.created','purchase.updated'], true)
		ON CONFLICT DO NOTHING;
	`, url, secret)
	if err != nil {
		log.Printf("Failed to seed webhook endpoint: %v", err)
	}
}
