package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/example/go-outetts/internal/audio"
)

type Config struct {
	Paths    PathsConfig   `mapstructure:"paths"`
	Model    ModelConfig   `mapstructure:"model"`
	Runtime  RuntimeConfig `mapstructure:"runtime"`
	Output   OutputConfig  `mapstructure:"output"`
	LogLevel string        `mapstructure:"log_level"`
}

type PathsConfig struct {
	TokenizerJSON   string `mapstructure:"tokenizer_json"`
	TokenizerModel  string `mapstructure:"tokenizer_model"`
	DecoderModel    string `mapstructure:"decoder_model"`
	SpeakerManifest string `mapstructure:"speaker_manifest"`
	ModelsDir       string `mapstructure:"models_dir"`
}

type ModelConfig struct {
	Version      string `mapstructure:"version"`
	Language     string `mapstructure:"language"`
	MaxSeqLength int    `mapstructure:"max_seq_length"`
}

type RuntimeConfig struct {
	ORTLibraryPath string `mapstructure:"ort_library_path"`
	ORTAPIVersion  uint32 `mapstructure:"ort_api_version"`
	ProbeWorkers   int    `mapstructure:"probe_workers"`
}

type OutputConfig struct {
	Format string `mapstructure:"format"`
	Dir    string `mapstructure:"dir"`
}

type LoadOptions struct {
	Cmd        flagBinder
	ConfigFile string
	Defaults   Config
}

type flagBinder interface {
	Flags() *pflag.FlagSet
}

func DefaultConfig() Config {
	return Config{
		Paths: PathsConfig{
			TokenizerJSON: "models/OuteTTS-0.2-500M/tokenizer.json",
			DecoderModel:  "models/WavTokenizer-large-speech-75token_decode/onnx/model.onnx",
			ModelsDir:     "models",
		},
		Model: ModelConfig{
			Version:      "0.2",
			Language:     "en",
			MaxSeqLength: 4096,
		},
		Runtime: RuntimeConfig{
			ORTAPIVersion: 23,
		},
		Output: OutputConfig{
			Format: string(audio.FormatFloat32),
			Dir:    ".",
		},
		LogLevel: "info",
	}
}

// flagKeys maps each command-line flag to its config key.
var flagKeys = []struct{ flag, key string }{
	{"tokenizer-json", "paths.tokenizer_json"},
	{"tokenizer-model", "paths.tokenizer_model"},
	{"decoder-model", "paths.decoder_model"},
	{"speaker-manifest", "paths.speaker_manifest"},
	{"models-dir", "paths.models_dir"},
	{"model-version", "model.version"},
	{"language", "model.language"},
	{"max-seq-length", "model.max_seq_length"},
	{"ort-lib", "runtime.ort_library_path"},
	{"ort-api-version", "runtime.ort_api_version"},
	{"probe-workers", "runtime.probe_workers"},
	{"format", "output.format"},
	{"out-dir", "output.dir"},
	{"log-level", "log_level"},
}

func RegisterFlags(fs *pflag.FlagSet, defaults Config) {
	fs.String("tokenizer-json", defaults.Paths.TokenizerJSON, "Path to the Hugging Face tokenizer.json")
	fs.String("tokenizer-model", defaults.Paths.TokenizerModel, "Optional SentencePiece model used for plain text when tokenizer.json has an unsupported model")
	fs.String("decoder-model", defaults.Paths.DecoderModel, "Path to the WavTokenizer decoder ONNX graph")
	fs.String("speaker-manifest", defaults.Paths.SpeakerManifest, "Path to the speaker manifest (yaml|json)")
	fs.String("models-dir", defaults.Paths.ModelsDir, "Directory model downloads are written to")
	fs.String("model-version", defaults.Model.Version, "OuteTTS model version")
	fs.String("language", defaults.Model.Language, "Prompt language")
	fs.Int("max-seq-length", defaults.Model.MaxSeqLength, "Maximum prompt plus generation length in tokens")
	fs.String("ort-lib", defaults.Runtime.ORTLibraryPath, "Path to ONNX Runtime shared library")
	fs.Uint32("ort-api-version", defaults.Runtime.ORTAPIVersion, "ONNX Runtime C API version")
	fs.Int("probe-workers", defaults.Runtime.ProbeWorkers, "Concurrent tokenizer probes when building the audio token map (0 = GOMAXPROCS)")
	fs.String("format", defaults.Output.Format, "WAV sample format: float32|pcm16")
	fs.String("out-dir", defaults.Output.Dir, "Directory for generated output files")
	fs.String("log-level", defaults.LogLevel, "Log level: debug|info|warn|error")
}

// Load resolves the configuration with precedence flag > env > file > defaults.
// Environment variables use the OUTETTS_ prefix, e.g. OUTETTS_PATHS_DECODER_MODEL.
func Load(opts LoadOptions) (Config, error) {
	v := viper.New()

	setDefaults(v, opts.Defaults)

	if opts.Cmd != nil {
		fs := opts.Cmd.Flags()
		for _, fk := range flagKeys {
			f := fs.Lookup(fk.flag)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(fk.key, f); err != nil {
				return Config{}, fmt.Errorf("bind flag %s: %w", fk.flag, err)
			}
		}
	}

	v.SetEnvPrefix("OUTETTS")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	if err := v.BindEnv("runtime.ort_library_path", "OUTETTS_RUNTIME_ORT_LIBRARY_PATH", "OUTETTS_ORT_LIB"); err != nil {
		return Config{}, fmt.Errorf("bind ort env vars: %w", err)
	}
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	} else {
		v.SetConfigName("outetts")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate rejects values that would only fail later, deep in a command.
func (c Config) Validate() error {
	if _, err := audio.ParseFormat(c.Output.Format); err != nil {
		return fmt.Errorf("output.format: %w", err)
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	if c.Model.Version == "" {
		return errors.New("model.version must not be empty")
	}
	if c.Runtime.ProbeWorkers < 0 {
		return fmt.Errorf("runtime.probe_workers must not be negative, got %d", c.Runtime.ProbeWorkers)
	}

	return nil
}

func setDefaults(v *viper.Viper, c Config) {
	v.SetDefault("paths.tokenizer_json", c.Paths.TokenizerJSON)
	v.SetDefault("paths.tokenizer_model", c.Paths.TokenizerModel)
	v.SetDefault("paths.decoder_model", c.Paths.DecoderModel)
	v.SetDefault("paths.speaker_manifest", c.Paths.SpeakerManifest)
	v.SetDefault("paths.models_dir", c.Paths.ModelsDir)
	v.SetDefault("model.version", c.Model.Version)
	v.SetDefault("model.language", c.Model.Language)
	v.SetDefault("model.max_seq_length", c.Model.MaxSeqLength)
	v.SetDefault("runtime.ort_library_path", c.Runtime.ORTLibraryPath)
	v.SetDefault("runtime.ort_api_version", c.Runtime.ORTAPIVersion)
	v.SetDefault("runtime.probe_workers", c.Runtime.ProbeWorkers)
	v.SetDefault("output.format", c.Output.Format)
	v.SetDefault("output.dir", c.Output.Dir)
	v.SetDefault("log_level", c.LogLevel)
}
