package repo

import (
	"database/sql"
	"errors"
	"strings"
	"time"

	"ShareDrop/config"
	"ShareDrop/internal/logger"
	"ShareDrop/model"

	mysqlDriver "github.com/go-sql-driver/mysql"
	gormMysql "gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// autoMigrateAll migrates all database models.
func autoMigrateAll(db *gorm.DB) {
	db.AutoMigrate(&model.Upload{})
	db.AutoMigrate(&model.File{})
}

// OpenMysql opens the main MySQL connection and runs migrations.
func OpenMysql(cfg *config.Config) (*gorm.DB, error) {
	return openMysql(cfg, cfg.DBName)
}

// OpenMysqlTest opens the test MySQL connection, creating the database
// when it does not exist yet.
func OpenMysqlTest(cfg *config.Config) (*gorm.DB, error) {
	dsn := cfg.DSN(cfg.DBNameTest)
	db, err := gorm.Open(gormMysql.Open(dsn), &gorm.Config{})
	if err != nil && isUnknownDatabaseError(err) {
		if createErr := ensureMySQLDatabase(cfg, cfg.DBNameTest); createErr != nil {
			return nil, createErr
		}
		db, err = gorm.Open(gormMysql.Open(dsn), &gorm.Config{})
	}
	if err != nil {
		return nil, err
	}

	autoMigrateAll(db)
	return db, nil
}

func openMysql(cfg *config.Config, dbName string) (*gorm.DB, error) {
	db, err := gorm.Open(gormMysql.Open(cfg.DSN(dbName)), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	autoMigrateAll(db)
	logger.Info("init mysql success")
	return db, nil
}

func isUnknownDatabaseError(err error) bool {
	var mysqlErr *mysqlDriver.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1049
	}
	return strings.Contains(strings.ToLower(err.Error()), "unknown database")
}

func ensureMySQLDatabase(cfg *config.Config, dbName string) error {
	dbName = strings.TrimSpace(dbName)
	if dbName == "" {
		return errors.New("empty database name")
	}

	serverDSN := cfg.DSN("")

	serverDB, err := sql.Open("mysql", serverDSN)
	if err != nil {
		return err
	}
	defer serverDB.Close()

	if err = serverDB.Ping(); err != nil {
		return err
	}

	_, err = serverDB.Exec(
		"CREATE DATABASE IF NOT EXISTS " + quoteMySQLIdentifier(dbName) + " CHARACTER SET utf8mb4 COLLATE utf8mb4_general_ci",
	)
	return err
}

func quoteMySQLIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}
