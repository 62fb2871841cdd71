package storage

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"tg-vaultbot/internal/config"
	"tg-vaultbot/internal/logger"
	"tg-vaultbot/internal/models"
)

// Dialector builds the gorm dialector for the configured driver.
func Dialector(dbCfg config.DatabaseConfig) (gorm.Dialector, error) {
	switch dbCfg.Driver {
	case "", "sqlite":
		return sqlite.Open(sqliteDSN(dbCfg.Path)), nil
	case "mysql":
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=True&loc=Local",
			dbCfg.Username,
			dbCfg.Password,
			dbCfg.Host,
			dbCfg.Port,
			dbCfg.DBName,
			dbCfg.Charset,
		)
		return mysql.Open(dsn), nil
	case "postgres":
		dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=%s",
			dbCfg.Host,
			dbCfg.Username,
			dbCfg.Password,
			dbCfg.DBName,
			dbCfg.Port,
			dbCfg.SSLMode,
		)
		return postgres.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", dbCfg.Driver)
	}
}

func sqliteDSN(path string) string {
	if strings.Contains(path, "?") {
		return path
	}
	return path + "?_busy_timeout=5000&_journal_mode=WAL"
}

// Open connects to the configured database and migrates the schema.
func Open(cfg *config.Config) (*gorm.DB, error) {
	db, err := Connect(cfg)
	if err != nil {
		return nil, err
	}

	if err := Migrate(db); err != nil {
		Close(db)
		return nil, err
	}
	return db, nil
}

// Connect opens the configured database and sizes the connection pool.
func Connect(cfg *config.Config) (*gorm.DB, error) {
	dialector, err := Dialector(cfg.Database)
	if err != nil {
		return nil, err
	}

	if cfg.Database.Driver == "" || cfg.Database.Driver == "sqlite" {
		logger.Infof("Opening sqlite database: %s", cfg.Database.Path)
	} else {
		logger.Infof("Connecting to %s database: %s:%d/%s", cfg.Database.Driver, cfg.Database.Host, cfg.Database.Port, cfg.Database.DBName)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         NewCustomGormLogger(cfg.Logger.Level),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get SQL DB: %w", err)
	}

	if dialector.Name() == "sqlite" {
		// one writer at a time; concurrent handlers queue on the pool instead of failing with SQLITE_BUSY
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetMaxOpenConns(100)
	}
	sqlDB.SetConnMaxLifetime(time.Hour)

	logger.Infof("Database connection established successfully")
	return db, nil
}

// Migrate creates or extends the videos and users tables. Migrations are additive only.
func Migrate(db *gorm.DB) error {
	if err := NewVideoRepository(db).MigrateTable(); err != nil {
		return fmt.Errorf("failed to migrate videos table: %w", err)
	}
	if err := NewUserRepository(db).MigrateTable(); err != nil {
		return fmt.Errorf("failed to migrate users table: %w", err)
	}
	return nil
}

// Tables lists the models owned by this package, in creation order.
func Tables() []any {
	return []any{&models.Video{}, &models.User{}}
}

// Close releases the underlying connection pool.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
