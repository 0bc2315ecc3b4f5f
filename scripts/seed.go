// Seed script for creating a demo ledger in Mirror.
// Run with: go run ./scripts/seed.go
package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/selfmodel/mirror/internal/domain"
	"github.com/selfmodel/mirror/internal/ledger"
	"github.com/selfmodel/mirror/internal/selfmodel"
	"github.com/selfmodel/mirror/internal/service"
	"github.com/selfmodel/mirror/internal/store"
	"go.uber.org/zap"
)

var seedStatements = []string{
	"IDENTITY: I am an append-only self-model service",
	"BELIEF: I am deterministic",
	"VALUE: I value replay determinism",
	"TENDENCY: I prioritize stability over speed",
	"CLAIM: {\"type\":\"TENDENCY\",\"predicate\":\"support_aware\",\"strength\":0.6}",
	"BELIEF: my latency budget is unknown",
}

func main() {
	envFile := os.Getenv("MIRROR_ENV")
	if envFile == "" {
		envFile = ".env"
	}
	_ = godotenv.Load(envFile)
	_ = godotenv.Load(envFile + ".secret")

	path := os.Getenv("LEDGER_PATH")
	if path == "" {
		path = "data/mirror.db"
	}

	ctx := context.Background()
	logger := zap.NewNop()

	st, err := store.OpenSQLite(path)
	if err != nil {
		log.Fatalf("Failed to open ledger database: %v", err)
	}
	defer st.Close()

	led, err := ledger.New(ctx, st, logger)
	if err != nil {
		log.Fatalf("Failed to open ledger: %v", err)
	}

	registrar := service.NewRegistrarService(led, logger)
	model := service.NewModelService(led, selfmodel.NewProjection(), logger)
	statements := service.NewStatementService(led, registrar, model, logger)

	if err := model.Rebuild(ctx); err != nil {
		log.Fatalf("Failed to rebuild self-model: %v", err)
	}

	total := 0
	for _, content := range seedStatements {
		_, claims, err := statements.Record(ctx, domain.KindAssistantMessage, content, map[string]string{"source": "seed"})
		if err != nil {
			log.Fatalf("Failed to record statement: %v", err)
		}
		total += len(claims)
	}

	emitted, err := model.Checkpoint(ctx)
	if err != nil {
		log.Fatalf("Failed to emit checkpoint: %v", err)
	}

	snap := model.Snapshot()
	fmt.Printf("Seeded %d statements, %d claims registered\n", len(seedStatements), total)
	fmt.Printf("Checkpoint emitted: %v\n", emitted)
	fmt.Printf("Active claims: %d, knowledge gaps: %v\n", snap.ActiveClaimCount, snap.KnowledgeGaps)
	fmt.Printf("Ledger: %s\n", path)
}
