package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"golang.org/x/crypto/bcrypt"
)

// Seeds the first admin account and a starter coupon code. Intended for
// fresh environments; existing rows are left untouched.
func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Build connection string
	dbHost := os.Getenv("DB_HOST")
	dbPort := os.Getenv("DB_PORT")
	dbUser := os.Getenv("DB_USER")
	dbPassword := os.Getenv("DB_PASSWORD")
	dbName := os.Getenv("DB_NAME")

	connStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		dbHost, dbPort, dbUser, dbPassword, dbName)

	// Connect to database
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}

	log.Println("Connected to database successfully")

	adminEmail := os.Getenv("SEED_ADMIN_EMAIL")
	adminPassword := os.Getenv("SEED_ADMIN_PASSWORD")
	if adminEmail == "" || adminPassword == "" {
		log.Fatal("SEED_ADMIN_EMAIL and SEED_ADMIN_PASSWORD are required")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(adminPassword), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("Failed to hash admin password: %v", err)
	}

	result, err := db.Exec(`
		INSERT INTO users (id, email, password_hash, full_name, is_admin, created_at, updated_at)
		VALUES ($1, $2, $3, 'Site Admin', TRUE, NOW(), NOW())
		ON CONFLICT (email) DO NOTHING`,
		uuid.New(), adminEmail, string(hash))
	if err != nil {
		log.Fatalf("Failed to seed admin user: %v", err)
	}
	if n, _ := result.RowsAffected(); n > 0 {
		log.Printf("Created admin user %s", adminEmail)
	} else {
		log.Printf("Admin user %s already exists, skipping", adminEmail)
	}

	couponCode := os.Getenv("SEED_COUPON_CODE")
	if couponCode != "" {
		result, err = db.Exec(`
			INSERT INTO coupon_codes (id, code, is_active, max_uses, current_uses, created_at, updated_at)
			VALUES ($1, $2, TRUE, NULL, 0, NOW(), NOW())
			ON CONFLICT (code) DO NOTHING`,
			uuid.New(), couponCode)
		if err != nil {
			log.Fatalf("Failed to seed coupon code: %v", err)
		}
		if n, _ := result.RowsAffected(); n > 0 {
			log.Printf("Created coupon code %s", couponCode)
		} else {
			log.Printf("Coupon code %s already exists, skipping", couponCode)
		}
	}

	log.Println("Seed complete")
}
