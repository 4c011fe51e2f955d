//go:build ignore
// +build ignore

// Seed provisions a branch, a handful of books, and a super-admin scope token
// so the circulation API can be exercised by hand or by the stress script.
//
// Usage:
//
//	DATABASE_URL=postgres://... REDIS_ADDR=localhost:6379 go run ./scripts/seed.go
//
// Prints the branch id, the book ids, and the scope token to pass in the
// X-Scope-Token header.
package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"schoolhub/internal/config"
	"schoolhub/internal/models"
	"schoolhub/internal/repositories"
	"schoolhub/internal/scope"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{})
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	if err := repositories.Migrate(db); err != nil {
		log.Fatalf("failed to migrate schema: %v", err)
	}

	branchRepo := repositories.NewBranchRepository(db)
	bookRepo := repositories.NewBookRepository(db)

	branch, err := branchRepo.GetByCode(nil, "MAIN")
	if errors.Is(err, gorm.ErrRecordNotFound) {
		branch = &models.Branch{Name: "Main Campus", Code: "MAIN"}
		if err := branchRepo.Create(nil, branch); err != nil {
			log.Fatalf("failed to create branch: %v", err)
		}
	} else if err != nil {
		log.Fatalf("failed to look up branch: %v", err)
	}
	fmt.Printf("branch %s (%s)\n", branch.Code, branch.ID)

	seedBooks := []models.Book{
		{Title: "The Go Programming Language", Author: "Donovan & Kernighan", ISBN: "978-0134190440", TotalCopies: 3},
		{Title: "Designing Data-Intensive Applications", Author: "Martin Kleppmann", ISBN: "978-1449373320", TotalCopies: 1},
		{Title: "A Philosophy of Software Design", Author: "John Ousterhout", ISBN: "978-1732102200", TotalCopies: 2},
	}
	for _, b := range seedBooks {
		b.BranchID = branch.ID
		b.AvailableCopies = b.TotalCopies
		b.Status = models.BookStatusActive
		if err := bookRepo.Create(nil, &b); err != nil {
			log.Fatalf("failed to create book %q: %v", b.Title, err)
		}
		fmt.Printf("book  %s  %q (%d copies)\n", b.ID, b.Title, b.TotalCopies)
	}

	branches, err := branchRepo.List(nil)
	if err != nil {
		log.Fatalf("failed to list branches: %v", err)
	}
	fmt.Printf("%d branch(es) total\n", len(branches))

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	buf := make([]byte, 16)
	rand.Read(buf)
	token := hex.EncodeToString(buf)

	store := scope.NewStore(rdb, cfg.ScopeTTL)
	sc := scope.Scope{ActorID: uuid.New(), Role: scope.RoleSuperAdmin, BranchID: branch.ID}
	if err := store.Put(context.Background(), token, sc); err != nil {
		log.Fatalf("failed to store scope token: %v", err)
	}
	fmt.Printf("scope token: %s\n", token)
}
