package config // package config loads application configuration from environment variables

import (
	"log"     // log is used to report configuration errors and halt execution
	"os"      // os provides access to environment variables
	"strconv" // strconv converts strings to other types
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  Required values use must() and abort startup
// when missing; policy knobs fall back to documented defaults so a bare
// deployment still behaves sensibly.
type Config struct {
	Env            string // application environment (e.g. "dev", "prod")
	Port           string // HTTP port to listen on
	DBUser         string // database username
	DBPass         string // database password (optional)
	DBHost         string // database host address
	DBPort         string // database port number
	DBName         string // database name
	JWTSecret      string // secret used to sign JWTs
	AccessTTLMin   int    // access token time-to-live in minutes
	RefreshTTLDays int    // refresh token time-to-live in days
	BcryptCost     int    // bcrypt cost for password hashing

	LockTTLMin        int  // reservation lock time-to-live in minutes (default 15)
	UploadTokenTTLMin int  // upload token time-to-live in minutes (default 15)
	CancelWindowHours int  // guest-initiated cancellation window in hours (default 24)
	RequireLock       bool // whether booking creation requires a live lock (default true)
	MaxProofBytes     int  // ceiling on uploaded payment proof size (default 10 MiB)

	VerifierEnabled bool    // whether the external slip verifier is called at all
	VerifierBaseURL string  // base URL of the slip verifier API
	VerifierAPIKey  string  // API key for the slip verifier (required when enabled)
	AmountTolerance float64 // accepted difference between claimed and verified amount (default 1.0)
	RecencyHours    int     // verified payment must be at most this old in hours (default 24)
}

// Load reads configuration values from environment variables and returns a
// Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.
func Load() Config {
	cfg := Config{
		Env:            must("APP_ENV"),
		Port:           must("APP_PORT"),
		DBUser:         must("DB_USER"),
		DBPass:         os.Getenv("DB_PASS"), // empty password allowed
		DBHost:         must("DB_HOST"),
		DBPort:         must("DB_PORT"),
		DBName:         must("DB_NAME"),
		JWTSecret:      must("JWT_SECRET"),
		AccessTTLMin:   mustInt("ACCESS_TOKEN_TTL_MIN"),
		RefreshTTLDays: mustInt("REFRESH_TOKEN_TTL_DAYS"),
		BcryptCost:     mustInt("BCRYPT_COST"),

		LockTTLMin:        defInt("LOCK_TTL_MIN", 15),
		UploadTokenTTLMin: defInt("UPLOAD_TOKEN_TTL_MIN", 15),
		CancelWindowHours: defInt("CANCEL_WINDOW_HOURS", 24),
		RequireLock:       defBool("REQUIRE_LOCK", true),
		MaxProofBytes:     defInt("MAX_PROOF_BYTES", 10<<20),

		VerifierEnabled: defBool("SLIP_VERIFIER_ENABLED", false),
		VerifierBaseURL: os.Getenv("SLIP_VERIFIER_URL"),
		VerifierAPIKey:  os.Getenv("SLIP_VERIFIER_API_KEY"),
		AmountTolerance: defFloat("AMOUNT_TOLERANCE", 1.0),
		RecencyHours:    defInt("RECENCY_HOURS", 24),
	}
	if cfg.VerifierEnabled && cfg.VerifierAPIKey == "" {
		log.Fatal("SLIP_VERIFIER_ENABLED is set but SLIP_VERIFIER_API_KEY is missing")
	}
	return cfg
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// mustInt is like must() but converts the retrieved string into an integer.
// If conversion fails, the application logs a fatal error and exits.
func mustInt(key string) int {
	s := must(key)
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}

// defInt reads an optional integer variable, returning the default when the
// variable is unset or malformed.
func defInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, v)
	}
	return n
}

// defFloat reads an optional float variable with a default.
func defFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Fatalf("invalid float for %s: %q", key, v)
	}
	return f
}

// defBool reads an optional boolean variable with a default.  Accepted
// truthy values are "1" and "true" in any case.
func defBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	switch v {
	case "1", "true", "TRUE", "True":
		return true
	case "0", "false", "FALSE", "False":
		return false
	}
	log.Fatalf("invalid bool for %s: %q", key, v)
	return def
}
