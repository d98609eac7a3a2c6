package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DefaultAPIKeyPath = "/run/secrets/api_keys/openrouter"
	APIKeyPathEnvVar  = "OPENROUTER_API_KEY_FILE"
	EnvFileEnvVar     = "BUBBLE_OVERLAY_ENV"

	OCRBackendOpenRouter = "openrouter"
	OCRBackendTesseract  = "tesseract"

	TranslatorOpenRouter = "openrouter"
	TranslatorGemini     = "gemini"
	TranslatorNone       = "none"
)

var (
	ErrInvalidDelay      = errors.New("frame delay must be positive")
	ErrInvalidFontBounds = errors.New("font size bounds are invalid")
	ErrInvalidPadding    = errors.New("text padding must not be negative")
	ErrInvalidMinScore   = errors.New("detector minimum score must be within 0..1")
)

type LoadOptions struct {
	APIKeyPathOverride string
	EnvPathOverride    string
	RegionOverride     string
	DelayOverride      time.Duration
}

// Chords holds the raw chord definitions, e.g. "Shift+E".
type Chords struct {
	Start   string
	Stop    string
	StopAlt string
	Snip    string
}

// Layout mirrors the text layout knobs.
type Layout struct {
	Padding     int
	MaxFontSize int
	MinFontSize int
	FontStep    int
	FontPath    string
}

// Display controls what a one-shot snip reports.
type Display struct {
	Original   bool
	Translated bool
	Image      bool
}

type Config struct {
	APIKey            string
	APIKeyPath        string
	Model             string
	TranslateModel    string
	Providers         []string
	GeminiAPIKey      string
	GeminiModel       string
	SourceLanguage    string
	TargetLanguage    string
	OCRBackend        string
	Translator        string
	DetectorURL       string
	DetectorMinScore  float64
	RequestTimeoutSec int

	EnableFileLogging bool
	LogLevel          string

	Chords     Chords
	FrameDelay time.Duration
	Layout     Layout
	Region     string

	ReuseSimilarFrames   bool
	SimilarFrameDistance int
	FrameOutputDir       string

	Display             Display
	CopySnipToClipboard bool
}

func Load() (*Config, error) {
	return LoadWithOptions(LoadOptions{})
}

func LoadWithOptions(opts LoadOptions) (*Config, error) {
	// Load configuration from sources in priority order:
	// 1) explicit --env path
	// 2) .env in the application (executable) directory
	// 3) BUBBLE_OVERLAY_ENV as a path to a config file
	envPath := resolveEnvPath(opts.EnvPathOverride)
	dotenvValues := readDotenvValues(envPath)
	if envPath != "" {
		_ = godotenv.Load(envPath)
	}

	var providers []string
	if providersStr := os.Getenv("PROVIDERS"); providersStr != "" {
		for _, provider := range strings.Split(providersStr, ",") {
			if trimmed := strings.TrimSpace(provider); trimmed != "" {
				providers = append(providers, trimmed)
			}
		}
	}

	apiKeyPath := resolveAPIKeyPath(opts, dotenvValues)

	cfg := &Config{
		APIKey:            resolveAPIKey(apiKeyPath),
		APIKeyPath:        apiKeyPath,
		Model:             os.Getenv("MODEL"),
		TranslateModel:    getEnvWithDefault("TRANSLATE_MODEL", os.Getenv("MODEL")),
		Providers:         providers,
		GeminiAPIKey:      os.Getenv("GEMINI_API_KEY"),
		GeminiModel:       getEnvWithDefault("GEMINI_MODEL", "gemini-2.5-flash"),
		SourceLanguage:    getEnvWithDefault("SOURCE_LANGUAGE", "Japanese"),
		TargetLanguage:    getEnvWithDefault("TARGET_LANGUAGE", "English"),
		OCRBackend:        resolveChoice(os.Getenv("OCR_BACKEND"), OCRBackendOpenRouter, OCRBackendOpenRouter, OCRBackendTesseract),
		Translator:        resolveChoice(os.Getenv("TRANSLATOR"), TranslatorOpenRouter, TranslatorOpenRouter, TranslatorGemini, TranslatorNone),
		DetectorURL:       strings.TrimSpace(os.Getenv("DETECTOR_URL")),
		DetectorMinScore:  getEnvFloat("DETECTOR_MIN_SCORE", 0.4),
		RequestTimeoutSec: getEnvInt("REQUEST_TIMEOUT_SEC", 45),

		EnableFileLogging: getEnvBool("ENABLE_FILE_LOGGING", false),
		LogLevel:          getEnvWithDefault("LOG_LEVEL", "info"),

		Chords: Chords{
			Start:   getEnvWithDefault("START_CHORD", "Shift+E"),
			Stop:    getEnvWithDefault("STOP_CHORD", "Shift+S"),
			StopAlt: getEnvWithDefault("STOP_ALT_CHORD", "Escape"),
			Snip:    getEnvWithDefault("SNIP_CHORD", "Shift+Q"),
		},
		FrameDelay: time.Duration(getEnvInt("FRAME_DELAY_MS", 100)) * time.Millisecond,
		Layout: Layout{
			Padding:     getEnvInt("TEXT_PADDING", 3),
			MaxFontSize: getEnvInt("FONT_SIZE_MAX", 14),
			MinFontSize: getEnvInt("FONT_SIZE_MIN", 8),
			FontStep:    getEnvInt("FONT_SIZE_STEP", 2),
			FontPath:    strings.TrimSpace(os.Getenv("FONT_PATH")),
		},
		Region: strings.TrimSpace(os.Getenv("REGION")),

		ReuseSimilarFrames:   getEnvBool("REUSE_SIMILAR_FRAMES", false),
		SimilarFrameDistance: getEnvInt("SIMILAR_FRAME_DISTANCE", 0),
		FrameOutputDir:       strings.TrimSpace(os.Getenv("FRAME_OUTPUT_DIR")),

		Display: Display{
			Original:   getEnvBool("DISPLAY_ORIGINAL", true),
			Translated: getEnvBool("DISPLAY_TRANSLATED", true),
			Image:      getEnvBool("DISPLAY_IMAGE", true),
		},
		CopySnipToClipboard: getEnvBool("COPY_SNIP_TO_CLIPBOARD", false),
	}

	if r := strings.TrimSpace(opts.RegionOverride); r != "" {
		cfg.Region = r
	}
	if opts.DelayOverride > 0 {
		cfg.FrameDelay = opts.DelayOverride
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the numeric knobs. Chords are validated by the hotkey package.
func (c *Config) Validate() error {
	if c.FrameDelay <= 0 {
		return ErrInvalidDelay
	}
	l := c.Layout
	if l.MinFontSize < 1 || l.MaxFontSize < l.MinFontSize || l.FontStep < 1 {
		return fmt.Errorf("%w: max=%d min=%d step=%d", ErrInvalidFontBounds, l.MaxFontSize, l.MinFontSize, l.FontStep)
	}
	if l.Padding < 0 {
		return ErrInvalidPadding
	}
	if c.DetectorMinScore < 0 || c.DetectorMinScore > 1 {
		return fmt.Errorf("%w: %g", ErrInvalidMinScore, c.DetectorMinScore)
	}
	return nil
}

func resolveEnvPath(override string) string {
	if p := strings.TrimSpace(override); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	if execPath, err := os.Executable(); err == nil {
		exeEnv := filepath.Join(filepath.Dir(execPath), ".env")
		if _, err := os.Stat(exeEnv); err == nil {
			return exeEnv
		}
	}

	if alt := os.Getenv(EnvFileEnvVar); alt != "" {
		if _, err := os.Stat(alt); err == nil {
			return alt
		}
	}

	return ""
}

func readDotenvValues(envPath string) map[string]string {
	if envPath == "" {
		return map[string]string{}
	}

	values, err := godotenv.Read(envPath)
	if err != nil {
		return map[string]string{}
	}

	return values
}

func resolveAPIKeyPath(opts LoadOptions, dotenvValues map[string]string) string {
	keyPath := DefaultAPIKeyPath

	if envPath := strings.TrimSpace(os.Getenv(APIKeyPathEnvVar)); envPath != "" {
		keyPath = envPath
	}

	if dotenvPath := strings.TrimSpace(dotenvValues[APIKeyPathEnvVar]); dotenvPath != "" {
		keyPath = dotenvPath
	}

	if overridePath := strings.TrimSpace(opts.APIKeyPathOverride); overridePath != "" {
		keyPath = overridePath
	}

	return keyPath
}

func resolveAPIKey(keyPath string) string {
	if data, err := os.ReadFile(keyPath); err == nil {
		if fileKey := strings.TrimSpace(string(data)); fileKey != "" {
			return fileKey
		}
	}

	return os.Getenv("OPENROUTER_API_KEY")
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultValue
	}
	return b
}

// resolveChoice lower-cases value and returns it when allowed, otherwise def.
func resolveChoice(value, def string, allowed ...string) string {
	v := strings.ToLower(strings.TrimSpace(value))
	for _, a := range allowed {
		if v == a {
			return v
		}
	}
	return def
}
