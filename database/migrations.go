package database

import (
	"fmt"
	"log"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"quid/models"
)

// DefaultCategories are inserted on every start; existing names are left alone.
var DefaultCategories = []string{
	"aujourd’hui",
	"politique",
	"sport",
	"théories",
	"divulgacheur",
	"ce jour-là dans l'histoire",
}

type examplePrologue struct {
	title    string
	content  string
	category string
}

var examplePrologues = []examplePrologue{
	{"ce jour-là, l’arrestation de marcel petiot", "rappel des faits et débat sur le climat moral de l’après-guerre", "ce jour-là dans l'histoire"},
	{"faut-il un service civique universel ?", "points de vue croisés : civisme, liberté, cohésion", "politique"},
	{"le sport est-il encore populaire ?", "prix des billets, médiatisation, clubs amateurs", "sport"},
}

func RunMigrations(db *gorm.DB) error {
	log.Println("Running database migrations...")

	err := db.AutoMigrate(
		&models.Category{},
		&models.Prologue{},
		&models.Reply{},
		&models.InterestEmail{},
		&models.AliasIP{},
	)

	if err != nil {
		log.Printf("Error running migrations: %v", err)
		return err
	}

	log.Println("Migrations completed successfully")
	return nil
}

// SeedCategories inserts the default categories, ignoring names that already exist.
func SeedCategories(db *gorm.DB) error {
	for _, name := range DefaultCategories {
		cat := models.Category{Name: name}
		if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&cat).Error; err != nil {
			return fmt.Errorf("seeding category %q: %w", name, err)
		}
	}
	return nil
}

// SeedExamples adds a few example prologues when the board is empty.
func SeedExamples(db *gorm.DB) error {
	var count int64
	if err := db.Model(&models.Prologue{}).Count(&count).Error; err != nil {
		return fmt.Errorf("counting prologues: %w", err)
	}
	if count > 0 {
		return nil
	}

	var cats []models.Category
	if err := db.Find(&cats).Error; err != nil {
		return fmt.Errorf("loading categories: %w", err)
	}
	ids := make(map[string]uint, len(cats))
	for _, c := range cats {
		ids[c.Name] = c.ID
	}

	for _, ex := range examplePrologues {
		p := models.Prologue{Title: ex.title, Content: ex.content}
		if id, ok := ids[ex.category]; ok {
			p.CategoryID = &id
		}
		if err := db.Create(&p).Error; err != nil {
			return fmt.Errorf("seeding prologue %q: %w", ex.title, err)
		}
	}
	log.Printf("Seeded %d example prologues", len(examplePrologues))
	return nil
}

// Setup migrates the schema and seeds defaults.
func Setup(db *gorm.DB) error {
	if err := RunMigrations(db); err != nil {
		return err
	}
	if err := SeedCategories(db); err != nil {
		return err
	}
	return SeedExamples(db)
}
