package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/samber/lo"

	"mediabatch/internal/runstore"
)

const (
	DefaultFileName = "mediabatch.json"
	EnvPrefix       = "MEDIABATCH_"

	DefaultWorkers      = 5
	DefaultChunkWorkers = 1
	DefaultChunkMS      = 60000
	DefaultFragments    = 10
	DefaultProvider     = "openai"
	DefaultQuality      = "best"
	DefaultSubLangs     = "en"
	DefaultMode         = "video"
	DefaultCallTimeout  = "2m"
	DefaultProxyMode    = "off"
)

// Settings are the persisted defaults for every command. Flags override
// them, the environment overrides the file. API keys only come from the
// environment.
type Settings struct {
	Workers            int      `json:"workers,omitempty"`
	Delay              string   `json:"delay,omitempty"`
	Order              string   `json:"order,omitempty"`
	Mode               string   `json:"mode,omitempty"`
	Quality            string   `json:"quality,omitempty"`
	SubLangs           string   `json:"sub_langs,omitempty"`
	Fragments          int      `json:"fragments,omitempty"`
	DownloadLimitMBps  float64  `json:"download_limit_mb_s,omitempty"`
	ProxyMode          string   `json:"proxy_mode,omitempty"`
	Proxies            []string `json:"proxies,omitempty"`
	CookiesPath        string   `json:"cookies,omitempty"`
	CookiesFromBrowser string   `json:"cookies_from_browser,omitempty"`

	ChunkWorkers  int    `json:"chunk_workers,omitempty"`
	ChunkMS       int64  `json:"chunk_ms,omitempty"`
	Provider      string `json:"provider,omitempty"`
	CallTimeout   string `json:"call_timeout,omitempty"`
	Language      string `json:"language,omitempty"`
	OpenAIModel   string `json:"openai_model,omitempty"`
	OpenAIBaseURL string `json:"openai_base_url,omitempty"`
	DeepgramModel string `json:"deepgram_model,omitempty"`
	DeepgramURL   string `json:"deepgram_url,omitempty"`

	OpenAIAPIKey   string `json:"-"`
	DeepgramAPIKey string `json:"-"`
}

func Defaults() Settings {
	return Settings{
		Workers:      DefaultWorkers,
		Order:        "manifest",
		Mode:         DefaultMode,
		Quality:      DefaultQuality,
		SubLangs:     DefaultSubLangs,
		Fragments:    DefaultFragments,
		ProxyMode:    DefaultProxyMode,
		Proxies:      []string{},
		ChunkWorkers: DefaultChunkWorkers,
		ChunkMS:      DefaultChunkMS,
		Provider:     DefaultProvider,
		CallTimeout:  DefaultCallTimeout,
	}
}

// Path resolves the settings file: explicit path, then MEDIABATCH_CONFIG,
// then mediabatch.json in the working directory.
func Path(explicit string) string {
	if p := strings.TrimSpace(explicit); p != "" {
		return p
	}
	if p := strings.TrimSpace(os.Getenv(EnvPrefix + "CONFIG")); p != "" {
		return p
	}
	return DefaultFileName
}

// LoadDotEnv loads .env style files into the process environment without
// overriding variables that are already set. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	existing := lo.Filter(paths, func(p string, _ int) bool {
		_, err := os.Stat(p)
		return err == nil
	})
	if len(existing) == 0 {
		return nil
	}
	return godotenv.Load(existing...)
}

// Load returns defaults overlaid with the settings file (when present) and
// then the environment.
func Load(path string) (Settings, error) {
	s := Defaults()
	var file Settings
	err := runstore.ReadJSON(path, &file)
	switch {
	case err == nil:
		s = merge(s, file)
	case errors.Is(err, os.ErrNotExist):
	default:
		return Settings{}, err
	}
	if err := applyEnv(&s); err != nil {
		return Settings{}, err
	}
	return s, s.Validate()
}

// ReadFile returns only what the settings file holds, for editing.
func ReadFile(path string) (Settings, error) {
	var s Settings
	if err := runstore.ReadJSON(path, &s); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Settings{}, err
	}
	return s, nil
}

func Save(path string, s Settings) error {
	if err := s.validateValues(); err != nil {
		return err
	}
	return runstore.WriteJSON(path, s)
}

func merge(base, over Settings) Settings {
	for _, f := range fields {
		if v := f.get(over); v != "" {
			_ = f.set(&base, v)
		}
	}
	return base
}

func applyEnv(s *Settings) error {
	for _, f := range fields {
		v, ok := os.LookupEnv(EnvPrefix + strings.ToUpper(f.key))
		if !ok || strings.TrimSpace(v) == "" {
			continue
		}
		if err := f.set(s, v); err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, strings.ToUpper(f.key), err)
		}
	}
	if v := strings.TrimSpace(os.Getenv("OPENAI_API_KEY")); v != "" {
		s.OpenAIAPIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("DEEPGRAM_API_KEY")); v != "" {
		s.DeepgramAPIKey = v
	}
	return nil
}

// Set updates one key from its string form, as used by "config set".
func Set(s *Settings, key, value string) error {
	f, ok := lo.Find(fields, func(f field) bool { return f.key == key })
	if !ok {
		return fmt.Errorf("unknown setting %q (known: %s)", key, strings.Join(Keys(), ", "))
	}
	return f.set(s, value)
}

func Keys() []string {
	return lo.Map(fields, func(f field, _ int) string { return f.key })
}

// Values renders every setting as key/value strings, in key order.
func (s Settings) Values() [][2]string {
	out := make([][2]string, 0, len(fields))
	for _, f := range fields {
		out = append(out, [2]string{f.key, f.get(s)})
	}
	return out
}

func (s Settings) Validate() error {
	if err := s.validateValues(); err != nil {
		return err
	}
	if s.ProxyMode == "per_worker" {
		if len(s.Proxies) == 0 {
			return fmt.Errorf("proxy mode %q requires at least one proxy", s.ProxyMode)
		}
		if s.Workers > len(s.Proxies) {
			return fmt.Errorf("proxy mode %q requires at least %d proxies for %d workers", s.ProxyMode, s.Workers, s.Workers)
		}
	}
	return nil
}

func (s Settings) validateValues() error {
	if s.Workers < 0 || s.ChunkWorkers < 0 || s.Fragments < 0 {
		return errors.New("worker and fragment counts must be >= 0")
	}
	if s.ChunkMS < 0 {
		return errors.New("chunk_ms must be >= 0")
	}
	if s.DownloadLimitMBps < 0 {
		return errors.New("download limit must be >= 0 MB/s")
	}
	if s.Provider != "" && !slices.Contains([]string{"openai", "deepgram"}, s.Provider) {
		return fmt.Errorf("invalid provider %q (expected openai or deepgram)", s.Provider)
	}
	if _, err := s.DelayDuration(); err != nil {
		return err
	}
	if _, err := s.CallTimeoutDuration(); err != nil {
		return err
	}
	return nil
}

func (s Settings) DelayDuration() (time.Duration, error) {
	return parseDuration("delay", s.Delay)
}

func (s Settings) CallTimeoutDuration() (time.Duration, error) {
	return parseDuration("call_timeout", s.CallTimeout)
}

func (s Settings) ChunkLength() time.Duration {
	return time.Duration(s.ChunkMS) * time.Millisecond
}

func parseDuration(key, raw string) (time.Duration, error) {
	if strings.TrimSpace(raw) == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil || d < 0 {
		return 0, fmt.Errorf("invalid %s %q (expected a duration like 1s or 2m)", key, raw)
	}
	return d, nil
}

type field struct {
	key string
	get func(Settings) string
	set func(*Settings, string) error
}

func stringField(key string, ptr func(*Settings) *string) field {
	return field{
		key: key,
		get: func(s Settings) string { return *ptr(&s) },
		set: func(s *Settings, v string) error {
			*ptr(s) = strings.TrimSpace(v)
			return nil
		},
	}
}

func intField(key string, ptr func(*Settings) *int) field {
	return field{
		key: key,
		get: func(s Settings) string {
			if v := *ptr(&s); v != 0 {
				return strconv.Itoa(v)
			}
			return ""
		},
		set: func(s *Settings, v string) error {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil || n < 0 {
				return fmt.Errorf("%s must be a non-negative integer, got %q", key, v)
			}
			*ptr(s) = n
			return nil
		},
	}
}

var fields = []field{
	intField("workers", func(s *Settings) *int { return &s.Workers }),
	stringField("delay", func(s *Settings) *string { return &s.Delay }),
	stringField("order", func(s *Settings) *string { return &s.Order }),
	stringField("mode", func(s *Settings) *string { return &s.Mode }),
	stringField("quality", func(s *Settings) *string { return &s.Quality }),
	stringField("sub_langs", func(s *Settings) *string { return &s.SubLangs }),
	intField("fragments", func(s *Settings) *int { return &s.Fragments }),
	{
		key: "download_limit_mb_s",
		get: func(s Settings) string {
			if s.DownloadLimitMBps == 0 {
				return ""
			}
			return strconv.FormatFloat(s.DownloadLimitMBps, 'g', -1, 64)
		},
		set: func(s *Settings, v string) error {
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil || f < 0 {
				return fmt.Errorf("download_limit_mb_s must be >= 0, got %q", v)
			}
			s.DownloadLimitMBps = f
			return nil
		},
	},
	stringField("proxy_mode", func(s *Settings) *string { return &s.ProxyMode }),
	{
		key: "proxies",
		get: func(s Settings) string { return strings.Join(s.Proxies, ",") },
		set: func(s *Settings, v string) error {
			s.Proxies = lo.Compact(lo.Map(strings.Split(v, ","), func(p string, _ int) string {
				return strings.TrimSpace(p)
			}))
			return nil
		},
	},
	stringField("cookies", func(s *Settings) *string { return &s.CookiesPath }),
	stringField("cookies_from_browser", func(s *Settings) *string { return &s.CookiesFromBrowser }),
	intField("chunk_workers", func(s *Settings) *int { return &s.ChunkWorkers }),
	{
		key: "chunk_ms",
		get: func(s Settings) string {
			if s.ChunkMS == 0 {
				return ""
			}
			return strconv.FormatInt(s.ChunkMS, 10)
		},
		set: func(s *Settings, v string) error {
			n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
			if err != nil || n <= 0 {
				return fmt.Errorf("chunk_ms must be a positive integer, got %q", v)
			}
			s.ChunkMS = n
			return nil
		},
	},
	stringField("provider", func(s *Settings) *string { return &s.Provider }),
	stringField("call_timeout", func(s *Settings) *string { return &s.CallTimeout }),
	stringField("language", func(s *Settings) *string { return &s.Language }),
	stringField("openai_model", func(s *Settings) *string { return &s.OpenAIModel }),
	stringField("openai_base_url", func(s *Settings) *string { return &s.OpenAIBaseURL }),
	stringField("deepgram_model", func(s *Settings) *string { return &s.DeepgramModel }),
	stringField("deepgram_url", func(s *Settings) *string { return &s.DeepgramURL }),
}
