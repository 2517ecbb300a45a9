package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config carries every tunable the sync jobs need. It is built once by Load
// at process start and passed by reference; no package reads it through a
// global.
type Config struct {
	APIBaseURL         string
	APIKey             string
	HTTPTimeout        time.Duration
	MaxRetries         int
	RetryDelay         time.Duration
	InsecureSkipVerify bool

	DBUser     string
	DBPassword string
	DBHost     string
	DBPort     int
	DBName     string
	// Ordered connection strategies, tried until one pings.
	DBAuthPlugins []string

	// School roster used by the full assessment backfill.
	BackfillSchools []string
	// School roster used by the everyday update job.
	UpdateSchools []string

	// Combined taxonomy for the backfill; the update job runs the two
	// category-specific lists separately.
	AssessmentTypes      []string
	StandardizedTypes    []string
	NonStandardizedTypes []string

	BackfillStartYear int
	// Month at which the "YYYY-YYYY" academic year label rolls over.
	// The legacy jobs disagreed on this (May vs June); June is the default
	// for every pipeline here.
	CutoverMonth     time.Month
	UpdateWindowDays int
	RequestPause     time.Duration

	ListenAddr string
	JobTimeout time.Duration
	LogFile    string
}

var defaultBackfillSchools = []string{
	"ABMPS", "ANWEMS", "BNMCEMS", "BNPS", "BOPEMS", "CSMEMS",
	"DNMPS", "KCTVN", "LAPMEMS", "LBBNMCEMS", "LBBNPS", "LDRKEMS",
	"LGMNPS", "LGRMNMCEMS", "LNMPS", "MEMS", "MLMPS", "MPMMPS",
	"NMMC93", "NNMPS", "PKGEMS", "RDNMCEMS", "RDNPS",
	"RMNMCEMS", "RMNPS",
}

var defaultUpdateSchools = []string{
	"ABMPS", "ANWEMS", "BNMCEMS", "BOPEMS", "CSMEMS",
	"DNMPS", "KCTVN", "LAPMEMS", "LBBNMCEMS", "LDRKEMS",
	"LGRMNMCEMS", "LNMPS", "MEMS", "MLMPS", "MPMMPS",
	"NMMC93", "NNMPS", "PKGEMS", "RDNMCEMS",
	"RMNMCEMS", "SMCMPS", "SMPS", "WBMPS", "SBP", "SBPMO", "RNMCEMS",
}

var defaultStandardizedTypes = []string{"BOY", "MOY", "EOY"}

// The source system is not consistent about how unit assessments are
// labelled, so every observed spelling is queried.
var defaultNonStandardizedTypes = []string{
	"UNIT 1", "UNIT 2", "UNIT 3", "UNIT 4", "UNIT 5",
	"Unit 1A", "Unit 2A", "Unit 3A", "Unit 4A", "Unit 5A",
	"unit 1 A", "unit 2 A", "unit 3 A", "unit 4 A", "unit 5 A",
	"unit 1 B", "unit 2 B", "unit 3 B", "unit 4 B", "unit 5 B",
	"Unit 1B", "Unit 2B", "Unit 3B", "Unit 4B", "Unit 5B",
	"Weekly 1", "Weekly 2", "Weekly 3", "Weekly 4", "Weekly 5",
	"Prelim 1", "Prelim 2", "Prelim 3", "Prelim 4", "Prelim 5",
}

// Load reads .env (if present) plus the process environment and returns a
// fully populated Config. It fails when a credential the run cannot proceed
// without is missing.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		APIBaseURL:         strings.TrimRight(envString("API_BASE_URL", "https://akanksha.edustems.com"), "/"),
		APIKey:             envString("API_KEY", ""),
		HTTPTimeout:        envDuration("HTTP_TIMEOUT", 600*time.Second),
		MaxRetries:         envInt("HTTP_MAX_RETRIES", 3),
		RetryDelay:         envDuration("HTTP_RETRY_DELAY", 2*time.Second),
		InsecureSkipVerify: envBool("API_INSECURE_SKIP_VERIFY", true),

		DBUser:        envString("MYSQL_USER", ""),
		DBPassword:    envString("MYSQL_PASSWORD", ""),
		DBHost:        envString("MYSQL_HOST", "127.0.0.1"),
		DBPort:        envInt("MYSQL_PORT", 3306),
		DBName:        envString("MYSQL_DATABASE", ""),
		DBAuthPlugins: envList("MYSQL_AUTH_PLUGINS", []string{"native"}),

		BackfillSchools: envList("BACKFILL_SCHOOLS", defaultBackfillSchools),
		UpdateSchools:   envList("UPDATE_SCHOOLS", defaultUpdateSchools),

		StandardizedTypes:    defaultStandardizedTypes,
		NonStandardizedTypes: defaultNonStandardizedTypes,

		BackfillStartYear: envInt("BACKFILL_START_YEAR", 2022),
		CutoverMonth:      time.Month(envInt("ACADEMIC_YEAR_CUTOVER_MONTH", 6)),
		UpdateWindowDays:  envInt("UPDATE_WINDOW_DAYS", 60),
		RequestPause:      envDuration("REQUEST_PAUSE", time.Second),

		ListenAddr: envString("LISTEN_ADDR", ":3000"),
		JobTimeout: envDuration("JOB_TIMEOUT", 30*time.Minute),
		LogFile:    envString("LOG_FILE", "edustems_sync.log"),
	}

	cfg.AssessmentTypes = append(append([]string{}, cfg.StandardizedTypes...), cfg.NonStandardizedTypes...)

	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API_KEY is not set")
	}
	if cfg.DBUser == "" || cfg.DBName == "" {
		return nil, fmt.Errorf("MYSQL_USER and MYSQL_DATABASE must be set")
	}
	if cfg.CutoverMonth < time.January || cfg.CutoverMonth > time.December {
		return nil, fmt.Errorf("ACADEMIC_YEAR_CUTOVER_MONTH must be 1-12, got %d", cfg.CutoverMonth)
	}

	return cfg, nil
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func envList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
