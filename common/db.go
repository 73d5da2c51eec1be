package common

import (
	"log"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func ConnectDb(dbFile string) *gorm.DB {
	log.Println("attemptConnectDb: quid_db:", dbFile)
	if dbFile == "" {
		log.Println("quid_db not set")
		return nil
	}

	db, err := gorm.Open(sqlite.Open(dbFile), &gorm.Config{
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		log.Println("Error opening sqlite db: " + err.Error())
		return nil
	}

	// sqlite allows a single writer at a time.
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(1)
	}

	log.Println("opened sqlite db at:", dbFile)
	return db
}
