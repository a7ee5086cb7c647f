// cmd/server/main.go
package main

import (
	"fmt"
	"os"

	"github.com/Annany2002/nebula-cms/api"
	"github.com/Annany2002/nebula-cms/config"
	"github.com/Annany2002/nebula-cms/internal/cmsconfig"
	"github.com/Annany2002/nebula-cms/internal/form"
	"github.com/Annany2002/nebula-cms/internal/logger"
	"github.com/Annany2002/nebula-cms/internal/storage"
)

var (
	customLog = logger.NewLogger()
)

func main() {
	customLog.Println("Starting Nebula CMS server...")

	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		customLog.Fatalf("Failed to load configuration: %v", err)
		os.Exit(1)
	}

	// 2. Load the CMS document and compile every table once up front
	doc, err := cmsconfig.Load(cfg.CMSConfigPath)
	if err != nil {
		customLog.Fatalf("Failed to load CMS document: %v", err)
		os.Exit(1)
	}
	compiler := form.NewCompiler(doc)
	for table, err := range compiler.CheckAll() {
		customLog.Warnf("Table '%s' cannot be rendered: %v", table, err)
	}

	if err := os.MkdirAll(cfg.UploadDir, 0o755); err != nil {
		customLog.Fatalf("Failed to create upload directory '%s': %v", cfg.UploadDir, err)
	}

	// 3. Initialize Metadata Database Connection
	metaDB, err := storage.ConnectMetadataDB(cfg)
	if err != nil {
		customLog.Fatalf("Failed to initialize metadata database: %v", err)
		os.Exit(1)
	}
	defer func() {
		customLog.Println("Closing metadata database connection...")
		if err := metaDB.Close(); err != nil {
			customLog.Printf("Error closing metadata database: %v", err)
		}
	}()

	// 4. Setup Router
	router := api.SetupRouter(metaDB, cfg, compiler)

	// 5. Start Server
	customLog.Printf("Server listening on port %s", cfg.ServerPort)
	if err := router.Run(fmt.Sprintf(":%s", cfg.ServerPort)); err != nil {
		customLog.Fatalf("Failed to start server: %v", err)
	}
}
