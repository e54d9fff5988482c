package main

import (
	"encoding/json"
	"flag"
	"log"
	"os"

	"github.com/yourusername/exam-api/internal/config"
	"github.com/yourusername/exam-api/internal/domain/entity"
	pgRepo "github.com/yourusername/exam-api/internal/repository/postgres"
	"github.com/yourusername/exam-api/internal/service"
	"github.com/yourusername/exam-api/pkg/database"
)

// Утилита для первичного наполнения банка заданий из JSON-файла.
// Формат файла: массив объектов entity.Item (включая correct_option и IRT-параметры).
//
//	go run ./cmd/seed -file items.json -approve
func main() {
	filePath := flag.String("file", "items.json", "путь к JSON-файлу с вопросами")
	approve := flag.Bool("approve", false, "сразу помечать импортированные вопросы как approved")
	flag.Parse()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := database.NewPostgresDB(cfg.Database.PostgresConnectionString())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	if err := database.MigrateDB(db); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	data, err := os.ReadFile(*filePath)
	if err != nil {
		log.Fatalf("Failed to read %s: %v", *filePath, err)
	}

	// correct_option скрыт от клиентов (json:"-"), поэтому при импорте
	// читаем его через вспомогательную структуру
	var raw []struct {
		entity.Item
		CorrectOption int `json:"correct_option"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		log.Fatalf("Failed to parse %s: %v", *filePath, err)
	}

	items := make([]entity.Item, 0, len(raw))
	for _, r := range raw {
		item := r.Item
		item.CorrectOption = r.CorrectOption
		if *approve {
			item.ReviewStatus = entity.ReviewStatusApproved
		}
		items = append(items, item)
	}

	itemService := service.NewItemService(pgRepo.NewItemRepo(db))
	if err := itemService.CreateBatch(items); err != nil {
		log.Fatalf("Import failed: %v", err)
	}

	log.Printf("Импортировано %d вопросов из %s", len(items), *filePath)
}
