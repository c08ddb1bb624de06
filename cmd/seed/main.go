// seed inserts demo accounts for local development: one farmer and one
// buyer, both with the password below. Idempotent; reruns are skipped.
package main

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"frootex/backend/internal/config"
	"frootex/backend/internal/db"
	"frootex/backend/internal/docstore"
	identitydomain "frootex/backend/internal/identity/domain"
	identityrepo "frootex/backend/internal/identity/repository"
	"frootex/backend/internal/profile"
	profiledomain "frootex/backend/internal/profile/domain"
	"frootex/backend/internal/security"
)

const (
	farmerEmail  = "farmer@example.com"
	buyerEmail   = "buyer@example.com"
	demoPassword = "frootex-dev"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()

	ctx := context.Background()
	accounts := identityrepo.NewPostgresRepository(conn)
	profiles := profile.NewStore(docstore.NewPostgresStore(conn))

	existing, err := accounts.GetByEmail(ctx, farmerEmail)
	if err != nil {
		log.Fatalf("seed check: %v", err)
	}
	if existing != nil {
		log.Printf("Seed already applied (%s exists). Skipping.", farmerEmail)
		return
	}

	hasher := security.NewHasher(cfg.BcryptCost)
	passwordHash, err := hasher.Hash([]byte(demoPassword))
	if err != nil {
		log.Fatalf("hash password: %v", err)
	}

	seedUser(ctx, accounts, profiles, passwordHash, "Demo Farmer", farmerEmail, profiledomain.RoleFarmer)
	seedUser(ctx, accounts, profiles, passwordHash, "Demo Buyer", buyerEmail, profiledomain.RoleBuyer)

	log.Printf("Seeded %s and %s with password %q", farmerEmail, buyerEmail, demoPassword)
}

func seedUser(ctx context.Context, accounts identityrepo.Repository, profiles *profile.Store, passwordHash, name, email string, role profiledomain.Role) {
	a := &identitydomain.Account{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}
	if err := accounts.Create(ctx, a); err != nil {
		log.Fatalf("create account %s: %v", email, err)
	}
	p := &profiledomain.Profile{
		ID:           a.ID,
		Name:         name,
		Email:        email,
		Role:         role,
		SignupMethod: profiledomain.SignupEmail,
	}
	if err := profiles.Create(ctx, p); err != nil {
		log.Fatalf("create profile %s: %v", email, err)
	}
}
