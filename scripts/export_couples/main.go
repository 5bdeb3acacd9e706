package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/mroshb/couple_journal/internal/config"
	"github.com/mroshb/couple_journal/internal/database"
	"github.com/mroshb/couple_journal/internal/models"
	"github.com/mroshb/couple_journal/internal/repositories"
	"github.com/mroshb/couple_journal/pkg/logger"
	"github.com/xuri/excelize/v2"
)

// Writes every couple, active and disconnected, to an xlsx workbook.
func main() {
	out := flag.String("out", "couples.xlsx", "output workbook path")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger.Init(cfg.LogLevel, cfg.AppEnv)
	defer logger.Sync()

	db, err := database.Connect(cfg)
	if err != nil {
		logger.Fatal("Failed to connect to database", err)
	}
	store := repositories.NewStore(db)

	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Couples"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		logger.Fatal("Failed to prepare sheet", err)
	}

	header := []interface{}{
		"Couple ID", "User 1", "User 1 Name", "User 2", "User 2 Name",
		"Status", "Auto Share", "Created At", "Disconnected At", "Disconnected By",
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		logger.Fatal("Failed to write header", err)
	}

	row := 2
	err = store.Couples.FindAllInBatches(500, func(batch []models.Couple) error {
		for _, c := range batch {
			disconnectedAt := ""
			if c.DisconnectedAt != nil {
				disconnectedAt = c.DisconnectedAt.Format(time.RFC3339)
			}
			values := []interface{}{
				c.ID, c.User1ID, c.User1Name, c.User2ID, c.User2Name,
				string(c.Status), c.Settings.AutoShareNewMemories,
				c.CreatedAt.Format(time.RFC3339), disconnectedAt, c.DisconnectedBy,
			}

			cell, err := excelize.CoordinatesToCellName(1, row)
			if err != nil {
				return err
			}
			if err := f.SetSheetRow(sheet, cell, &values); err != nil {
				return err
			}
			row++
		}
		return nil
	})
	if err != nil {
		logger.Fatal("Failed to export couples", err)
	}

	if err := f.SaveAs(*out); err != nil {
		logger.Fatal("Failed to save workbook", err)
	}
	fmt.Printf("Exported %d couples to %s\n", row-2, *out)
}
