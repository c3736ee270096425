package db

import (
	"database/sql"
	"fmt"
	"path/filepath"

	"github.com/hbagdi/tracepulse/pkg/util"
	_ "github.com/mattn/go-sqlite3" // sqlite driver
	"go.uber.org/zap"
)

const dbFilename = "tracepulse-traces.db"

type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %v", err)
	}
	return nil
}

type StoreOpts struct {
	Logger *zap.Logger
	// FilePath overrides the database location; the default lives in the
	// user cache directory.
	FilePath string
}

func defaultDBFilePath() (string, error) {
	cacheDir, err := util.CacheDir()
	if err != nil {
		return "", fmt.Errorf("failed to find cache dir: %v", err)
	}
	return filepath.Join(cacheDir, dbFilename), nil
}

func genDSN(fileName string) string {
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=500", fileName)
	return dsn
}

func NewStore(opts StoreOpts) (*Store, error) {
	if opts.Logger == nil {
		return nil, fmt.Errorf("no logger")
	}
	filePath := opts.FilePath
	if filePath == "" {
		var err error
		filePath, err = defaultDBFilePath()
		if err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite3", genDSN(filePath))
	if err != nil {
		return nil, fmt.Errorf("failed to open db file: %v", err)
	}
	err = migrate(db)
	if err != nil {
		return nil, err
	}
	return &Store{
		db:     db,
		logger: opts.Logger,
	}, nil
}
