package config // package config loads server configuration from environment variables

import (
	"errors"   // errors builds validation failures
	"fmt"      // fmt formats validation messages
	"os"       // os provides access to environment variables
	"strings"  // strings normalizes enumerated values
	"time"     // time parses durations

	"github.com/joho/godotenv" // godotenv loads a local .env file when present
)

// Default values for the seat server.  DefaultPort matches the port the
// reference client dials when no -p flag is given.
const (
	DefaultPort     = 4444
	MinPort         = 1024
	MaxPort         = 65535
	MinGridSide     = 1
	MaxGridSide     = 100
	PasswordPlain   = "plain"
	PasswordBcrypt  = "bcrypt"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable; Port may additionally be overridden by the -p
// command line flag in cmd/server.
type Config struct {
	Env              string        // application environment (e.g. "dev", "prod")
	Port             int           // TCP port the seat protocol listens on
	DataDir          string        // directory holding cinema_struct, booking_struct and accounts
	GridRows         int           // rows used for a fresh grid when stdin is not a terminal
	GridCols         int           // columns used for a fresh grid when stdin is not a terminal
	RecvTimeout      time.Duration // per-read deadline; long enough for a human at the keyboard
	SendTimeout      time.Duration // per-write deadline
	LockPollInterval time.Duration // busy signal period while waiting for the booking lock
	ShutdownGrace    time.Duration // how long shutdown waits for sessions to unwind
	PasswordHashing  string        // "plain" (verbatim, default) or "bcrypt"
	BcryptCost       int           // bcrypt cost when PasswordHashing is bcrypt
	AdminAddr        string        // listen address of the admin HTTP API; empty disables it
	JWTSecret        string        // secret used to sign and verify admin tokens
	AccessTTLMin     int           // admin token time-to-live in minutes
	MirrorMySQL      bool          // mirror every flush into MySQL
	DBUser           string        // database username
	DBPass           string        // database password (optional)
	DBHost           string        // database host address
	DBPort           string        // database port number
	DBName           string        // database name
	RabbitURL        string        // AMQP URL for booking events; empty disables publishing
	LogLevel         string        // debug, info, warn, error or off
}

// Load reads configuration values from the environment (after loading an
// optional .env file) and validates them.
func Load() (Config, error) {
	// A missing .env file is the normal case in production.
	_ = godotenv.Load()

	cfg := Config{
		Env:              envStr("APP_ENV", "dev"),
		Port:             envInt("APP_PORT", DefaultPort),
		DataDir:          envStr("DATA_DIR", "."),
		GridRows:         envInt("GRID_ROWS", 10),
		GridCols:         envInt("GRID_COLS", 10),
		RecvTimeout:      envDur("RECV_TIMEOUT", 120*time.Second),
		SendTimeout:      envDur("SEND_TIMEOUT", 5*time.Second),
		LockPollInterval: envDur("BOOKING_LOCK_POLL", time.Second),
		ShutdownGrace:    envDur("SHUTDOWN_GRACE", 5*time.Second),
		PasswordHashing:  strings.ToLower(envStr("PASSWORD_HASHING", PasswordPlain)),
		BcryptCost:       envInt("BCRYPT_COST", 10),
		AdminAddr:        os.Getenv("ADMIN_ADDR"),
		JWTSecret:        os.Getenv("JWT_SECRET"),
		AccessTTLMin:     envInt("ACCESS_TOKEN_TTL_MIN", 60),
		MirrorMySQL:      envBool("STORE_MIRROR_MYSQL", false),
		DBUser:           envStr("DB_USER", "root"),
		DBPass:           os.Getenv("DB_PASS"),
		DBHost:           envStr("DB_HOST", "127.0.0.1"),
		DBPort:           envStr("DB_PORT", "3306"),
		DBName:           envStr("DB_NAME", "cinema"),
		RabbitURL:        rabbitURL(),
		LogLevel:         strings.ToLower(envStr("LOG_LEVEL", "info")),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks ranges and combinations that would otherwise fail late.
func (c Config) Validate() error {
	if err := ValidatePort(c.Port); err != nil {
		return err
	}
	if err := ValidateGridSide(c.GridRows); err != nil {
		return fmt.Errorf("GRID_ROWS: %w", err)
	}
	if err := ValidateGridSide(c.GridCols); err != nil {
		return fmt.Errorf("GRID_COLS: %w", err)
	}
	if c.RecvTimeout <= 0 || c.SendTimeout <= 0 {
		return errors.New("RECV_TIMEOUT and SEND_TIMEOUT must be positive")
	}
	if c.LockPollInterval <= 0 {
		return errors.New("BOOKING_LOCK_POLL must be positive")
	}
	if c.PasswordHashing != PasswordPlain && c.PasswordHashing != PasswordBcrypt {
		return fmt.Errorf("PASSWORD_HASHING must be %q or %q", PasswordPlain, PasswordBcrypt)
	}
	if c.AdminAddr != "" && c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required when ADMIN_ADDR is set")
	}
	return nil
}

// ValidatePort enforces the non-privileged port range.
func ValidatePort(p int) error {
	if p < MinPort || p > MaxPort {
		return fmt.Errorf("port %d outside %d-%d", p, MinPort, MaxPort)
	}
	return nil
}

// ValidateGridSide enforces the 1..100 bound on each grid dimension.
func ValidateGridSide(n int) error {
	if n < MinGridSide || n > MaxGridSide {
		return fmt.Errorf("grid side %d outside %d-%d", n, MinGridSide, MaxGridSide)
	}
	return nil
}

// Addr returns the listen address of the seat protocol.
func (c Config) Addr() string { return fmt.Sprintf(":%d", c.Port) }

// DSN returns the MySQL connection parameters in the order database.Open expects.
func (c Config) DSN() (user, pass, host, port, name string) {
	return c.DBUser, c.DBPass, c.DBHost, c.DBPort, c.DBName
}

func rabbitURL() string {
	if v := os.Getenv("RABBITMQ_URL"); v != "" {
		return v
	}
	return os.Getenv("AMQP_URL")
}
