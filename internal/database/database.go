package database

import (
	"fmt"
	"time"

	"github.com/zfogg/paddock/internal/logger"
	"github.com/zfogg/paddock/internal/models"
	"github.com/zfogg/paddock/internal/telemetry"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// DB holds the database connection
var DB *gorm.DB

// Options selects the driver and DSN
type Options struct {
	Driver  string // postgres or sqlite
	URL     string
	Verbose bool // log every statement
	Tracing bool // emit a span per statement
}

// Open connects without touching the package-level DB.
// SQLite is pinned to one connection so in-memory databases are shared
// across goroutines.
func Open(opts Options) (*gorm.DB, error) {
	gormLog := gormlogger.Default.LogMode(gormlogger.Warn)
	if opts.Verbose {
		gormLog = gormlogger.Default.LogMode(gormlogger.Info)
	}

	var dialector gorm.Dialector
	system := "postgresql"
	switch opts.Driver {
	case "postgres", "":
		if opts.URL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required for postgres")
		}
		dialector = postgres.Open(opts.URL)
	case "sqlite":
		dsn := opts.URL
		if dsn == "" {
			dsn = "file:paddock.db?_foreign_keys=on"
		}
		dialector = sqlite.Open(dsn)
		system = "sqlite"
	default:
		return nil, fmt.Errorf("unsupported database driver %q", opts.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormLog,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if opts.Tracing {
		if err := db.Use(telemetry.GORMTracingPlugin(system)); err != nil {
			return nil, fmt.Errorf("failed to register tracing plugin: %w", err)
		}
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	if opts.Driver == "sqlite" {
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetMaxOpenConns(100)
		sqlDB.SetConnMaxLifetime(time.Hour)
	}

	return db, nil
}

// Initialize opens the connection and stores it in DB
func Initialize(opts Options) error {
	db, err := Open(opts)
	if err != nil {
		return err
	}
	DB = db
	logger.Log.Info("Database connected", zap.String("driver", opts.Driver))
	return nil
}

// AllModels lists every table the service owns, in dependency order
func AllModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.PasswordReset{},
		&models.Follow{},
		&models.Block{},
		&models.Team{},
		&models.Driver{},
		&models.Track{},
		&models.Post{},
		&models.Like{},
		&models.Comment{},
		&models.CommentMention{},
		&models.Poll{},
		&models.PollOption{},
		&models.PollVote{},
		&models.Grid{},
		&models.GridEntry{},
		&models.Notification{},
		&models.NotificationPreferences{},
		&models.Report{},
		&models.ContactMessage{},
		&models.ChatMessage{},
		&models.ChatSettings{},
	}
}

// Migrate runs auto-migration for all models on DB
func Migrate() error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}
	if err := MigrateDB(DB); err != nil {
		return err
	}
	logger.Log.Info("Database migrations completed")
	return nil
}

// MigrateDB migrates an explicit handle; tests use it against SQLite
func MigrateDB(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	createIndexes(db)
	return nil
}

// createIndexes adds indexes struct tags cannot express. Every statement
// here must run on both postgres and sqlite.
func createIndexes(db *gorm.DB) {
	statements := []string{
		// Case-insensitive lookups
		"CREATE INDEX IF NOT EXISTS idx_users_email_lower ON users (LOWER(email))",
		"CREATE INDEX IF NOT EXISTS idx_users_username_lower ON users (LOWER(username))",

		// Feed and profile queries
		"CREATE INDEX IF NOT EXISTS idx_posts_user_created ON posts (user_id, created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_polls_user_created ON polls (user_id, created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_grids_user_created ON grids (user_id, created_at DESC)",

		// Comment threads
		"CREATE INDEX IF NOT EXISTS idx_comments_parent ON comments (parent_id) WHERE parent_id IS NOT NULL",

		// Poll closer scans
		"CREATE INDEX IF NOT EXISTS idx_polls_open_closes ON polls (closes_at) WHERE closed_at IS NULL",

		// One open report per reporter and target
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_reports_open_unique ON reports (reporter_id, target_type, target_id) WHERE status = 'open'",

		// Unread badge
		"CREATE INDEX IF NOT EXISTS idx_notifications_unread ON notifications (recipient_id) WHERE read_at IS NULL",
	}

	for _, stmt := range statements {
		if err := db.Exec(stmt).Error; err != nil {
			logger.Log.Warn("Could not create index", zap.String("statement", stmt), zap.Error(err))
		}
	}
}

// Close closes the database connection
func Close() error {
	if DB == nil {
		return nil
	}

	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}

	return sqlDB.Close()
}

// Health checks database connectivity
func Health() error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}

	return sqlDB.Ping()
}
