package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/alejandrodnm/propbet/internal/domain"
)

// Config es la configuración completa del servicio.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Odds    OddsConfig    `yaml:"odds"`
	Events  EventsConfig  `yaml:"events"`
	Sweeper SweeperConfig `yaml:"sweeper"`
	Log     LogConfig     `yaml:"log"`
	Tiers   []TierConfig  `yaml:"tiers"` // vacío = catálogo publicado
}

// ServerConfig controla los listeners HTTP.
type ServerConfig struct {
	HTTPAddr    string `yaml:"http_addr"`
	MetricsAddr string `yaml:"metrics_addr"` // vacío = sin servidor de métricas

	// OperatorToken protege POST /v1/bets/{id}/settle. Vacío = ruta cerrada.
	OperatorToken string `yaml:"operator_token"`
}

// StorageConfig controla dónde se persisten los datos.
type StorageConfig struct {
	Driver string `yaml:"driver"` // sqlite | postgres
	DSN    string `yaml:"dsn"`    // ruta SQLite, ":memory:", o URL de Postgres
}

// OddsConfig configura el proveedor de cuotas y su caché.
type OddsConfig struct {
	BaseURL         string   `yaml:"base_url"`
	APIKey          string   `yaml:"api_key"`
	Sports          []string `yaml:"sports"`
	Regions         string   `yaml:"regions"`
	CacheTTLSeconds int      `yaml:"cache_ttl_seconds"`
	RequestsPerSec  float64  `yaml:"requests_per_sec"`
	Cache           string   `yaml:"cache"` // memory | redis
	RedisAddr       string   `yaml:"redis_addr"`
}

// EventsConfig controla la publicación de eventos.
type EventsConfig struct {
	KafkaBrokers string `yaml:"kafka_brokers"` // vacío = eventos al log
	Topic        string `yaml:"topic"`
}

// SweeperConfig controla la evaluación periódica.
type SweeperConfig struct {
	IntervalSeconds int `yaml:"interval_seconds"`
	Workers         int `yaml:"workers"` // 0 = runtime.NumCPU()
}

// LogConfig controla el formato y nivel de logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// TierConfig redefine un tier del catálogo. Los importes van en la moneda
// de la cuenta y se redondean a céntimos.
type TierConfig struct {
	ID                 string  `yaml:"id"`
	Name               string  `yaml:"name"`
	Price              float64 `yaml:"price"`
	InitialBalance     float64 `yaml:"initial_balance"`
	TargetProfitPhase1 float64 `yaml:"target_profit_phase1"`
	TargetProfitPhase2 float64 `yaml:"target_profit_phase2"` // 0 = una sola fase
	MaxDailyLoss       float64 `yaml:"max_daily_loss"`
	MaxTotalLoss       float64 `yaml:"max_total_loss"`
	MaxDailyGain       float64 `yaml:"max_daily_gain"`
	MinPicks           int     `yaml:"min_picks"`
	MinActiveDays      int     `yaml:"min_active_days"`
	PhaseDurationDays  int     `yaml:"phase_duration_days"`
	IsDemo             bool    `yaml:"is_demo"`
	PromoOnSuccess     bool    `yaml:"promo_on_success"`
}

// Load carga la configuración desde el archivo YAML y el archivo .env si existe.
// Las variables de entorno sobreescriben los valores del YAML.
func Load(path string) (*Config, error) {
	// Cargar .env si existe (silencia error si no hay archivo)
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}
	return Parse(data)
}

// Parse decodifica un documento YAML y aplica overrides de entorno y defaults.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	return &cfg, nil
}

// SweepInterval devuelve el intervalo del sweeper como time.Duration.
func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.Sweeper.IntervalSeconds) * time.Second
}

// CacheTTL devuelve cuánto tiempo se consideran frescas las cuotas.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Odds.CacheTTLSeconds) * time.Second
}

// Catalog construye el catálogo de tiers, o el publicado si no hay tiers
// configurados.
func (c *Config) Catalog() (*domain.Catalog, error) {
	if len(c.Tiers) == 0 {
		return domain.DefaultCatalog(), nil
	}
	tiers := make([]domain.Tier, 0, len(c.Tiers))
	for _, t := range c.Tiers {
		tiers = append(tiers, t.toDomain())
	}
	catalog, err := domain.NewCatalog(tiers)
	if err != nil {
		return nil, fmt.Errorf("config.Catalog: %w", err)
	}
	return catalog, nil
}

func (t TierConfig) toDomain() domain.Tier {
	return domain.Tier{
		ID:                 t.ID,
		Name:               t.Name,
		Price:              money(t.Price),
		InitialBalance:     money(t.InitialBalance),
		TargetProfitPhase1: money(t.TargetProfitPhase1),
		TargetProfitPhase2: money(t.TargetProfitPhase2),
		MaxDailyLoss:       money(t.MaxDailyLoss),
		MaxTotalLoss:       money(t.MaxTotalLoss),
		MaxDailyGain:       money(t.MaxDailyGain),
		MinPicks:           t.MinPicks,
		MinActiveDays:      t.MinActiveDays,
		PhaseDurationDays:  t.PhaseDurationDays,
		IsDemo:             t.IsDemo,
		PromoOnSuccess:     t.PromoOnSuccess,
	}
}

func money(f float64) decimal.Decimal {
	return domain.RoundMoney(decimal.NewFromFloat(f))
}

// applyEnvOverrides sobreescribe valores con variables de entorno si están presentes.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("ODDS_API_KEY"); v != "" {
		cfg.Odds.APIKey = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Storage.Driver = "postgres"
		cfg.Storage.DSN = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Odds.Cache = "redis"
		cfg.Odds.RedisAddr = v
	}
	if v := os.Getenv("OPERATOR_TOKEN"); v != "" {
		cfg.Server.OperatorToken = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		cfg.Events.KafkaBrokers = v
	}
}

// setDefaults asegura que los valores requeridos tengan valores sensatos.
func setDefaults(cfg *Config) {
	if cfg.Server.HTTPAddr == "" {
		cfg.Server.HTTPAddr = ":8080"
	}
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = "sqlite"
	}
	if cfg.Storage.DSN == "" && cfg.Storage.Driver == "sqlite" {
		cfg.Storage.DSN = "propbet.db"
	}
	if cfg.Odds.BaseURL == "" {
		cfg.Odds.BaseURL = "https://api.the-odds-api.com"
	}
	if len(cfg.Odds.Sports) == 0 {
		cfg.Odds.Sports = []string{"soccer_epl"}
	}
	if cfg.Odds.Regions == "" {
		cfg.Odds.Regions = "eu"
	}
	if cfg.Odds.CacheTTLSeconds <= 0 {
		cfg.Odds.CacheTTLSeconds = 300
	}
	if cfg.Odds.RequestsPerSec <= 0 {
		cfg.Odds.RequestsPerSec = 1
	}
	if cfg.Odds.Cache == "" {
		cfg.Odds.Cache = "memory"
	}
	if cfg.Events.Topic == "" {
		cfg.Events.Topic = "challenge-events"
	}
	if cfg.Sweeper.IntervalSeconds <= 0 {
		cfg.Sweeper.IntervalSeconds = 60
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}

func (c *Config) validate() error {
	switch c.Storage.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("storage.driver %q: want sqlite or postgres", c.Storage.Driver)
	}
	if c.Storage.DSN == "" {
		return fmt.Errorf("storage.dsn is required for %s", c.Storage.Driver)
	}
	switch strings.ToLower(c.Odds.Cache) {
	case "memory":
	case "redis":
		if c.Odds.RedisAddr == "" {
			return fmt.Errorf("odds.redis_addr is required when odds.cache is redis")
		}
	default:
		return fmt.Errorf("odds.cache %q: want memory or redis", c.Odds.Cache)
	}
	return nil
}
