package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"schoolhub/internal/config"
	"schoolhub/internal/handlers"
	"schoolhub/internal/repositories"
	"schoolhub/internal/scope"
	"schoolhub/internal/services"
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

	sqlDB, err := db.DB()
	if err != nil {
		log.Fatalf("failed to get generic DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := repositories.Migrate(db); err != nil {
		log.Fatalf("failed to migrate schema: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		log.Fatalf("failed to connect redis: %v", err)
	}

	scopeStore := scope.NewStore(rdb, cfg.ScopeTTL)

	bookRepo := repositories.NewBookRepository(db)
	loanRepo := repositories.NewLoanRepository(db)
	fineRepo := repositories.NewFineRepository(db)

	circulation := services.NewCirculationService(db, bookRepo, loanRepo, fineRepo, services.DefaultPolicy())

	router := gin.Default()
	if len(cfg.CORSOrigins) > 0 {
		corsCfg := cors.DefaultConfig()
		corsCfg.AllowOrigins = cfg.CORSOrigins
		corsCfg.AllowHeaders = append(corsCfg.AllowHeaders, scope.HeaderToken)
		router.Use(cors.New(corsCfg))
	}

	handlers.RegisterRoutes(router, circulation, scopeStore)

	bootstrapScope(cfg, scopeStore)

	srv := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	log.Printf("Starting server on %s", cfg.ServerAddr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server error: %v", err)
	}
}

// bootstrapScope mints a super-admin scope token for the configured actor so a
// fresh deployment can be exercised before the auth layer issues real tokens.
func bootstrapScope(cfg config.Config, store *scope.Store) {
	if cfg.BootstrapActor == "" {
		return
	}
	actorID, err := uuid.Parse(cfg.BootstrapActor)
	if err != nil {
		log.Printf("[WARN] bootstrap: SCOPE_BOOTSTRAP_ACTOR is not a uuid, skipping")
		return
	}

	buf := make([]byte, 16)
	rand.Read(buf)
	token := hex.EncodeToString(buf)

	sc := scope.Scope{ActorID: actorID, Role: scope.RoleSuperAdmin}
	if err := store.Put(context.Background(), token, sc); err != nil {
		log.Printf("[ERROR] bootstrap: failed to store scope token: %v", err)
		return
	}
	log.Printf("[BOOTSTRAP] super-admin scope token for %s: %s", actorID, token)
}
