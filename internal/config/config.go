package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// EnvConfigFile names an optional TOML file. Values from the environment
// override values from the file.
const EnvConfigFile = "KIOSK_CONFIG_FILE"

type Gateway struct {
	HTTPAddr string `toml:"http_addr"`
	GRPCAddr string `toml:"grpc_addr"` // empty disables the gRPC mirror

	Env    string `toml:"env"`     // "dev" | "prod"
	Store  string `toml:"store"`   // "sqlite" | "memory"
	DBPath string `toml:"db_path"` // e.g. "./data/kiosk.db"

	AdminTagUIDs  []string `toml:"admin_tag_uids"`
	TestUIDPrefix string   `toml:"test_uid_prefix"`

	LivenessIntervalMS int      `toml:"liveness_interval_ms"`
	WSAllowedOrigins   []string `toml:"ws_allowed_origins"`

	IngestRate  float64 `toml:"ingest_rate"` // per device per second; 0 disables
	IngestBurst int     `toml:"ingest_burst"`
}

func (g Gateway) Production() bool { return g.Env == "prod" }

func (g Gateway) LivenessInterval() time.Duration {
	return time.Duration(g.LivenessIntervalMS) * time.Millisecond
}

type Bridge struct {
	GatewayURL string `toml:"gateway_url"`
	PostPath   string `toml:"post_path"`
	DeviceID   string `toml:"device_id"`
	Source     string `toml:"source"`

	DebounceMS          int `toml:"debounce_ms"`
	HeartbeatIntervalMS int `toml:"heartbeat_interval_ms"`

	ReaderPath string `toml:"reader_path"` // "-" reads stdin
	Wire       string `toml:"wire"`        // "json" | "protobuf"
}

func (b Bridge) Debounce() time.Duration {
	return time.Duration(b.DebounceMS) * time.Millisecond
}

func (b Bridge) HeartbeatInterval() time.Duration {
	return time.Duration(b.HeartbeatIntervalMS) * time.Millisecond
}

type Client struct {
	WSURL      string `toml:"ws_url"`
	APIURL     string `toml:"api_url"`
	SourceName string `toml:"source_name"`
	DeviceID   string `toml:"device_id"`
}

type file struct {
	Gateway *Gateway `toml:"gateway"`
	Bridge  *Bridge  `toml:"bridge"`
	Client  *Client  `toml:"client"`
}

func GatewayFromEnv() (Gateway, error) {
	cfg := Gateway{
		HTTPAddr:           ":3000",
		Env:                "dev",
		Store:              "sqlite",
		DBPath:             "./data/kiosk.db",
		TestUIDPrefix:      "test-",
		LivenessIntervalMS: 30000,
	}
	if err := loadFile(&file{Gateway: &cfg}); err != nil {
		return cfg, err
	}

	cfg.HTTPAddr = getenvDefault("KIOSK_HTTP_ADDR", cfg.HTTPAddr)
	cfg.GRPCAddr = getenvDefault("KIOSK_GRPC_ADDR", cfg.GRPCAddr)

	cfg.Env = strings.ToLower(getenvDefault("KIOSK_ENV", cfg.Env))
	switch cfg.Env {
	case "prod", "production":
		cfg.Env = "prod"
	default:
		// fail-soft: treat unknown as dev
		cfg.Env = "dev"
	}

	cfg.Store = strings.ToLower(getenvDefault("KIOSK_STORE", cfg.Store))
	if cfg.Store != "sqlite" && cfg.Store != "memory" {
		return cfg, fmt.Errorf("KIOSK_STORE must be sqlite or memory, got %q", cfg.Store)
	}
	cfg.DBPath = getenvDefault("KIOSK_DB_PATH", cfg.DBPath)

	if v, ok := os.LookupEnv("KIOSK_ADMIN_TAG_UIDS"); ok {
		cfg.AdminTagUIDs = splitCSV(v)
	}
	if v, ok := os.LookupEnv("KIOSK_TEST_UID_PREFIX"); ok {
		cfg.TestUIDPrefix = strings.TrimSpace(v)
	}
	cfg.LivenessIntervalMS = getenvInt("KIOSK_LIVENESS_INTERVAL_MS", cfg.LivenessIntervalMS)
	if cfg.LivenessIntervalMS <= 0 {
		cfg.LivenessIntervalMS = 30000
	}
	if v, ok := os.LookupEnv("KIOSK_WS_ALLOWED_ORIGINS"); ok {
		cfg.WSAllowedOrigins = splitCSV(v)
	}
	if v, ok := os.LookupEnv("KIOSK_INGEST_RATE"); ok {
		r, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return cfg, fmt.Errorf("KIOSK_INGEST_RATE: %w", err)
		}
		cfg.IngestRate = r
	}
	cfg.IngestBurst = getenvInt("KIOSK_INGEST_BURST", cfg.IngestBurst)

	return cfg, nil
}

func BridgeFromEnv() (Bridge, error) {
	cfg := Bridge{
		GatewayURL:          "http://localhost:3000",
		PostPath:            "/api/auth/tag",
		DeviceID:            "kiosk-01",
		Source:              "acr122u",
		DebounceMS:          800,
		HeartbeatIntervalMS: 15000,
		ReaderPath:          "-",
		Wire:                "json",
	}
	if err := loadFile(&file{Bridge: &cfg}); err != nil {
		return cfg, err
	}

	cfg.GatewayURL = strings.TrimRight(getenvDefault("KIOSK_GATEWAY_URL", cfg.GatewayURL), "/")
	cfg.PostPath = getenvDefault("KIOSK_POST_PATH", cfg.PostPath)
	if !strings.HasPrefix(cfg.PostPath, "/") {
		cfg.PostPath = "/" + cfg.PostPath
	}
	cfg.DeviceID = getenvDefault("KIOSK_DEVICE_ID", cfg.DeviceID)
	cfg.Source = getenvDefault("KIOSK_SOURCE", cfg.Source)
	cfg.DebounceMS = getenvInt("KIOSK_DEBOUNCE_MS", cfg.DebounceMS)
	cfg.HeartbeatIntervalMS = getenvInt("KIOSK_HEARTBEAT_INTERVAL_MS", cfg.HeartbeatIntervalMS)
	if cfg.HeartbeatIntervalMS <= 0 {
		cfg.HeartbeatIntervalMS = 15000
	}
	cfg.ReaderPath = getenvDefault("KIOSK_READER_PATH", cfg.ReaderPath)

	cfg.Wire = strings.ToLower(getenvDefault("KIOSK_WIRE", cfg.Wire))
	if cfg.Wire != "json" && cfg.Wire != "protobuf" {
		return cfg, fmt.Errorf("KIOSK_WIRE must be json or protobuf, got %q", cfg.Wire)
	}

	return cfg, nil
}

func ClientFromEnv() (Client, error) {
	cfg := Client{
		WSURL:      "ws://localhost:3000/ws/auth",
		APIURL:     "http://localhost:3000",
		SourceName: "Control",
	}
	if err := loadFile(&file{Client: &cfg}); err != nil {
		return cfg, err
	}

	cfg.WSURL = getenvDefault("KIOSK_WS_URL", cfg.WSURL)
	cfg.APIURL = strings.TrimRight(getenvDefault("KIOSK_API_URL", cfg.APIURL), "/")
	cfg.SourceName = getenvDefault("KIOSK_SOURCE_NAME", cfg.SourceName)
	cfg.DeviceID = getenvDefault("KIOSK_DEVICE_ID", cfg.DeviceID)

	return cfg, nil
}

// loadFile decodes the file named by KIOSK_CONFIG_FILE into the sections
// f points at. Sections absent from the file keep their defaults.
func loadFile(f *file) error {
	path := strings.TrimSpace(os.Getenv(EnvConfigFile))
	if path == "" {
		return nil
	}
	if _, err := toml.DecodeFile(path, f); err != nil {
		return fmt.Errorf("config file %s: %w", path, err)
	}
	return nil
}

func getenvDefault(key, def string) string {
	v := os.Getenv(key)
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func getenvInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func splitCSV(v string) []string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
