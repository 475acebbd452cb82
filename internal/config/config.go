package config

import (
	"fmt"     // Error formatting
	"math"    // Stake bounds
	"os"      // For environment variables
	"strconv" // For string to int conversion
	"strings" // For list parsing
	"time"    // Durations and time zones

	"lottery_system/internal/domain" // Group codes

	"github.com/joho/godotenv" // For loading .env files
)

// Config holds the application configuration
type Config struct {
	AppPort         string  // Application port
	DBUser          string  // Database user
	DBPassword      string  // Database password
	DBHost          string  // Database host
	DBPort          string  // Database port
	DBName          string  // Database name
	JWTSecret       string  // JWT secret key
	RedisAddr       string  // Redis server address
	RedisPass       string  // Redis password
	RedisDB         int     // Redis database number
	IsProd          bool    // Is production environment
	SchedulerSecret string  // Shared secret the external scheduler trigger sends
	Lottery         Lottery // Draw and payout rules
}

// SlotTime is a civil time of day in the lottery time zone
type SlotTime struct {
	Hour   int
	Minute int
}

func (s SlotTime) String() string { return fmt.Sprintf("%02d:%02d", s.Hour, s.Minute) }

// ParseSlotTime parses "HH:MM"
func ParseSlotTime(v string) (SlotTime, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(v))
	if err != nil {
		return SlotTime{}, fmt.Errorf("invalid slot time %q: %w", v, err)
	}
	return SlotTime{Hour: t.Hour(), Minute: t.Minute()}, nil
}

// Lottery holds the rules handed to the draw machine, payout executor and scheduler
type Lottery struct {
	Multiplier        int64                     // Payout ratio applied to a winning stake
	LeadWindow        time.Duration             // Betting closes this long before the slot
	ExecutionLag      time.Duration             // Delay between close and execution
	OpenWindow        time.Duration             // A scheduled draw opens this long before the slot
	Location          *time.Location            // Civil time zone the slots are expressed in
	Slots             map[domain.Group]SlotTime // One daily slot per group
	AdminIDs          []uint                    // Users treated as admins regardless of role
	MaxExecutePerTick int                       // Bound on draws executed by one scheduler tick
	MaxBetsPerBatch   int                       // Bound on wagers in one place-bet call
	PayoutWorkers     int                       // Parallel winner credits, 1 means sequential
	ForcedFigure      int                       // Test override for the winning figure, 0 disables
}

// DefaultLottery returns the production defaults
func DefaultLottery() Lottery {
	return Lottery{
		Multiplier:   33,
		LeadWindow:   time.Minute,
		ExecutionLag: 15 * time.Minute,
		OpenWindow:   24 * time.Hour,
		Location:     time.UTC,
		Slots: map[domain.Group]SlotTime{
			domain.GroupA: {Hour: 10},
			domain.GroupB: {Hour: 14},
			domain.GroupC: {Hour: 18},
			domain.GroupD: {Hour: 22},
		},
		MaxExecutePerTick: 10,
		MaxBetsPerBatch:   20,
		PayoutWorkers:     1,
	}
}

// MaxStake is the largest stake whose payout still fits in an int64
func (l Lottery) MaxStake() int64 {
	if l.Multiplier <= 0 {
		return math.MaxInt64
	}
	return math.MaxInt64 / l.Multiplier
}

// IsAdminID reports whether id is listed in ADMIN_IDS
func (l Lottery) IsAdminID(id uint) bool {
	for _, a := range l.AdminIDs {
		if a == id {
			return true
		}
	}
	return false
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	_ = godotenv.Load() // Load .env file if present
	redisDB, _ := strconv.Atoi(os.Getenv("REDIS_DB"))
	cfg := &Config{
		AppPort:         envOr("APP_PORT", "8080"),      // Application port
		DBUser:          os.Getenv("DB_USER"),           // Database user
		DBPassword:      os.Getenv("DB_PASSWORD"),       // Database password
		DBHost:          os.Getenv("DB_HOST"),           // Database host
		DBPort:          os.Getenv("DB_PORT"),           // Database port
		DBName:          os.Getenv("DB_NAME"),           // Database name
		JWTSecret:       os.Getenv("JWT_SECRET"),        // JWT secret key
		RedisAddr:       os.Getenv("REDIS_ADDR"),        // Redis server address
		RedisPass:       os.Getenv("REDIS_PASS"),        // Redis password
		RedisDB:         redisDB,                        // Redis database number
		IsProd:          os.Getenv("IS_PROD") == "true", // Is production environment
		SchedulerSecret: os.Getenv("SCHEDULER_SECRET"),  // Scheduler trigger secret
	}
	lottery, err := loadLottery(cfg.IsProd)
	if err != nil {
		return nil, err
	}
	cfg.Lottery = lottery
	return cfg, nil
}

// DSN builds the MySQL data source name
func (c *Config) DSN() string {
	return c.DBUser + ":" + c.DBPassword + "@tcp(" + c.DBHost + ":" + c.DBPort + ")/" + c.DBName + "?parseTime=true&loc=UTC"
}

func loadLottery(isProd bool) (Lottery, error) {
	l := DefaultLottery()
	var err error
	if v := os.Getenv("LOTTERY_TZ"); v != "" {
		if l.Location, err = time.LoadLocation(v); err != nil {
			return l, fmt.Errorf("LOTTERY_TZ: %w", err)
		}
	}
	for _, g := range domain.Groups {
		if v := os.Getenv("SLOT_" + string(g)); v != "" {
			if l.Slots[g], err = ParseSlotTime(v); err != nil {
				return l, fmt.Errorf("SLOT_%s: %w", g, err)
			}
		}
	}
	if l.Multiplier, err = envInt64("PAYOUT_MULTIPLIER", l.Multiplier); err != nil {
		return l, err
	}
	if l.LeadWindow, err = envDuration("LEAD_WINDOW", l.LeadWindow); err != nil {
		return l, err
	}
	if l.ExecutionLag, err = envDuration("EXECUTION_LAG", l.ExecutionLag); err != nil {
		return l, err
	}
	if l.OpenWindow, err = envDuration("OPEN_WINDOW", l.OpenWindow); err != nil {
		return l, err
	}
	if l.MaxExecutePerTick, err = envInt("MAX_EXECUTE_PER_TICK", l.MaxExecutePerTick); err != nil {
		return l, err
	}
	if l.MaxBetsPerBatch, err = envInt("MAX_BETS_PER_BATCH", l.MaxBetsPerBatch); err != nil {
		return l, err
	}
	if l.PayoutWorkers, err = envInt("PAYOUT_WORKERS", l.PayoutWorkers); err != nil {
		return l, err
	}
	if l.AdminIDs, err = parseIDs(os.Getenv("ADMIN_IDS")); err != nil {
		return l, fmt.Errorf("ADMIN_IDS: %w", err)
	}
	// Forced figures are a testing aid and never honoured in production
	if !isProd {
		if l.ForcedFigure, err = envInt("FORCED_WINNING_FIGURE", 0); err != nil {
			return l, err
		}
		if l.ForcedFigure != 0 && !domain.ValidFigure(l.ForcedFigure) {
			return l, fmt.Errorf("FORCED_WINNING_FIGURE: %w", domain.ErrInvalidFigure)
		}
	}
	if l.Multiplier <= 0 {
		return l, fmt.Errorf("PAYOUT_MULTIPLIER must be positive")
	}
	return l, nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func envInt64(key string, def int64) (int64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func parseIDs(v string) ([]uint, error) {
	var ids []uint
	for _, part := range strings.Split(v, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.ParseUint(part, 10, 64)
		if err != nil {
			return nil, err
		}
		ids = append(ids, uint(n))
	}
	return ids, nil
}
