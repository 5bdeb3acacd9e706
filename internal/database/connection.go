package database

import (
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/mroshb/couple_journal/internal/config"
	"github.com/mroshb/couple_journal/internal/models"
	"github.com/mroshb/couple_journal/pkg/logger"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

func Connect(cfg *config.Config) (*gorm.DB, error) {
	var logLevel gormlogger.LogLevel
	if cfg.AppEnv == "development" {
		logLevel = gormlogger.Info
	} else {
		logLevel = gormlogger.Error
	}

	if cfg.DBDriver == config.DBDriverSQLite {
		db, err := OpenSQLite(cfg.SQLitePath, cfg.CollectionPrefix, logLevel)
		if err != nil {
			return nil, err
		}
		logger.Info("Database connected", "driver", config.DBDriverSQLite, "path", cfg.SQLitePath)
		return db, nil
	}

	db, err := open(postgres.Open(cfg.GetDSN()), cfg.CollectionPrefix, logLevel)
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxIdleConns(20)
	sqlDB.SetMaxOpenConns(200)
	sqlDB.SetConnMaxLifetime(time.Hour)
	sqlDB.SetConnMaxIdleTime(10 * time.Minute)

	logger.Info("Database connected", "driver", config.DBDriverPostgres, "host", cfg.DBHost)
	return db, nil
}

// OpenSQLite opens a file-backed SQLite store. A single connection serializes
// every transaction, which is the isolation the pairing operations rely on
// when there is no row-level locking.
func OpenSQLite(path, prefix string, logLevel gormlogger.LogLevel) (*gorm.DB, error) {
	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	db, err := open(sqlite.Open(dsn), prefix, logLevel)
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	return db, nil
}

func open(dialector gorm.Dialector, prefix string, logLevel gormlogger.LogLevel) (*gorm.DB, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(logLevel),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
		NamingStrategy: schema.NamingStrategy{
			TablePrefix: prefix,
		},
		SkipDefaultTransaction: true,
		PrepareStmt:            true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

func AutoMigrate(db *gorm.DB) error {
	logger.Info("Running database migrations...")

	err := db.AutoMigrate(
		&models.User{},
		&models.CoupleInvitation{},
		&models.Couple{},
		&models.Memory{},
		&models.SharedMemory{},
	)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	if db.Dialector.Name() == "postgres" {
		if err := createPendingPairIndex(db); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	logger.Info("Database migrations completed successfully")
	return nil
}

// createPendingPairIndex backs the one-pending-invitation-per-pair rule with
// an expression index over the unordered pair.
func createPendingPairIndex(db *gorm.DB) error {
	stmt := &gorm.Statement{DB: db}
	if err := stmt.Parse(&models.CoupleInvitation{}); err != nil {
		return err
	}
	table := stmt.Schema.Table

	return db.Exec(fmt.Sprintf(
		`CREATE UNIQUE INDEX IF NOT EXISTS %s ON %s (LEAST(sender_id, receiver_id), GREATEST(sender_id, receiver_id)) WHERE status = 'pending'`,
		table+"_pending_pair", table,
	)).Error
}
