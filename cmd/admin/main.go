package main

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"syllabusai/internal/auth"
	"syllabusai/internal/config"
	"syllabusai/internal/database"
)

func main() {
	var (
		username = flag.String("username", "", "admin username (required)")
		dbDriver = flag.String("db-driver", "", "database driver, sqlite or postgres (default DATABASE_DRIVER)")
		dbPath   = flag.String("db-path", "", "sqlite file (default DATABASE_PATH)")
	)
	flag.Parse()

	u := strings.TrimSpace(*username)
	if u == "" {
		log.Fatal("missing required flag: --username")
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("load .env: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	dbCfg := cfg.Database
	if d := strings.ToLower(strings.TrimSpace(*dbDriver)); d != "" {
		dbCfg.Driver = d
	}
	if p := strings.TrimSpace(*dbPath); p != "" {
		dbCfg.Path = p
	}

	db, err := database.InitDatabase(dbCfg)
	if err != nil {
		log.Fatalf("init database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("auto migrate: %v", err)
	}

	password, err := generateRandomPassword(24)
	if err != nil {
		log.Fatalf("generate password: %v", err)
	}

	hashed, err := auth.HashPassword(password)
	if err != nil {
		log.Fatalf("hash password: %v", err)
	}

	if _, err := database.CreateUser(context.Background(), db, u, hashed, database.RoleAdmin); err != nil {
		if errors.Is(err, database.ErrUsernameTaken) {
			log.Fatalf("user %q already exists", u)
		}
		log.Fatalf("create user: %v", err)
	}

	fmt.Printf("created admin account\n")
	fmt.Printf("username: %s\n", u)
	fmt.Printf("password: %s\n", password)
	fmt.Printf("the password is shown only once; store it now.\n")
}

func generateRandomPassword(bytesLen int) (string, error) {
	if bytesLen <= 0 {
		bytesLen = 24
	}
	buf := make([]byte, bytesLen)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
