package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/uuid"

	"github.com/studystreak/studystreak-backend/internal/app"
	"github.com/studystreak/studystreak-backend/internal/domain"
	"github.com/studystreak/studystreak-backend/internal/platform/dbctx"
)

// One-shot retention sweep, for cron jobs and manual cleanup. Without
// flags it purges every (material, type) pair down to RETENTION_KEEP_N.
func main() {
	var materialFlag string
	var typeFlag string
	var keepN int
	flag.StringVar(&materialFlag, "material", "", "material id to purge (default: all)")
	flag.StringVar(&typeFlag, "type", "", "artifact type to purge (requires -material)")
	flag.IntVar(&keepN, "keep", 0, "versions to keep per pair (default: RETENTION_KEEP_N)")
	flag.Parse()

	application, err := app.New()
	if err != nil {
		fmt.Printf("init app: %v\n", err)
		os.Exit(1)
	}
	defer application.Close()

	ctx := context.Background()

	if materialFlag == "" {
		purged, err := application.Services.Retention.Sweep(ctx)
		if err != nil {
			fmt.Printf("retention sweep: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("purged %d versions\n", purged)
		return
	}

	materialID, err := uuid.Parse(materialFlag)
	if err != nil {
		fmt.Printf("invalid material id %q: %v\n", materialFlag, err)
		os.Exit(1)
	}
	if keepN < 1 {
		keepN = application.Cfg.RetentionKeepN
	}

	types := domain.ArtifactTypes()
	if typeFlag != "" {
		artifactType := domain.ArtifactType(typeFlag)
		if !artifactType.Valid() {
			fmt.Printf("invalid artifact type %q\n", typeFlag)
			os.Exit(1)
		}
		types = []domain.ArtifactType{artifactType}
	}

	dbc := dbctx.Context{Ctx: ctx}
	var purged int64
	for _, artifactType := range types {
		n, err := application.Repos.Versions.PurgeOld(dbc, materialID, artifactType, keepN)
		if err != nil {
			fmt.Printf("purge %s: %v\n", artifactType, err)
			os.Exit(1)
		}
		purged += n
	}
	fmt.Printf("purged %d versions\n", purged)
}
