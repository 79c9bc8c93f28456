package repo

import (
	"MediaVault/config"
	"MediaVault/internal/logger"
	"MediaVault/model"
	"database/sql"
	"errors"
	"fmt"
	mysqlDriver "github.com/go-sql-driver/mysql"
	gormMysql "gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"strings"
	"time"
)

var Db *gorm.DB

// AutoMigrate migrates all database models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.User{},
		&model.StorageLedger{},
		&model.Folder{},
		&model.Asset{},
		&model.AssetFolder{},
		&model.ImportTask{},
	)
}

// InitDB opens the main database selected by DB_DRIVER.
func InitDB() {
	log := logger.L().With("component", "db", "driver", config.AppConfig.DBDriver)

	var (
		db  *gorm.DB
		err error
	)
	switch strings.ToLower(config.AppConfig.DBDriver) {
	case "postgres", "postgresql":
		db, err = gorm.Open(postgres.Open(postgresDSN()), gormConfig())
	default:
		dsn := mysqlDSN(config.AppConfig.DBName)
		db, err = gorm.Open(gormMysql.Open(dsn), gormConfig())
		if err != nil && isUnknownDatabaseError(err) {
			if createErr := ensureMySQLDatabase(config.AppConfig.DBName); createErr != nil {
				log.Fatal("create mysql database fail", "error", createErr)
			}
			db, err = gorm.Open(gormMysql.Open(dsn), gormConfig())
		}
	}
	if err != nil {
		log.Fatal("init db fail", "error", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Fatal("get sql db fail", "error", err)
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := AutoMigrate(db); err != nil {
		log.Fatal("auto migrate fail", "error", err)
	}
	log.Info("init db success")
	Db = db
}

func gormConfig() *gorm.Config {
	return &gorm.Config{TranslateError: true}
}

func mysqlDSN(dbName string) string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		config.AppConfig.DBUser,
		config.AppConfig.DBPass,
		config.AppConfig.DBHost,
		config.AppConfig.DBPort,
		dbName,
	)
}

func postgresDSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable TimeZone=UTC",
		config.AppConfig.DBHost,
		config.AppConfig.DBPort,
		config.AppConfig.DBUser,
		config.AppConfig.DBPass,
		config.AppConfig.DBName,
	)
}

func isUnknownDatabaseError(err error) bool {
	var mysqlErr *mysqlDriver.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1049
	}
	return strings.Contains(strings.ToLower(err.Error()), "unknown database")
}

func ensureMySQLDatabase(dbName string) error {
	dbName = strings.TrimSpace(dbName)
	if dbName == "" {
		return errors.New("empty database name")
	}

	serverDB, err := sql.Open("mysql", mysqlDSN(""))
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
