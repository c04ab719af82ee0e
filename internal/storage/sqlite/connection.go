package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"risk-review-system/config"
)

// SQLiteStorage представляет хранилище SQLite
type SQLiteStorage struct {
	DB     *sql.DB
	logger *zap.Logger

	maxRetries int
	retryDelay time.Duration
}

// NewConnection создает новое соединение с SQLite по конфигурации
func NewConnection(cfg *config.Config, logger *zap.Logger) (*SQLiteStorage, error) {
	dbPath := cfg.DB.DBPath
	if dbPath == "" {
		dbPath = "./data/risk_review.db"
	}
	return Open(dbPath, logger)
}

// Open открывает файл БД и применяет схему
func Open(dbPath string, logger *zap.Logger) (*SQLiteStorage, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	// Создаем директорию, если её нет
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)", dbPath)
	logger.Info("connecting to SQLite", zap.String("path", dbPath))

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// SQLite поддерживает только одно соединение для записи
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	storage := &SQLiteStorage{
		DB:         db,
		logger:     logger,
		maxRetries: 3,
		retryDelay: 50 * time.Millisecond,
	}
	if err := storage.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite connection established")
	return storage, nil
}

// Close закрывает соединение с БД
func (s *SQLiteStorage) Close() error {
	return s.DB.Close()
}

// Ping проверка доступности для health-check
func (s *SQLiteStorage) Ping() error {
	return s.DB.Ping()
}
