package cmd

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/Erprabhat8423/beyond-academy/internal/ai"
	"github.com/Erprabhat8423/beyond-academy/internal/ai/gemini"
	"github.com/Erprabhat8423/beyond-academy/internal/campaign"
	"github.com/Erprabhat8423/beyond-academy/internal/logger"
	"github.com/Erprabhat8423/beyond-academy/internal/matching"
	"github.com/Erprabhat8423/beyond-academy/internal/outreach"
	"github.com/Erprabhat8423/beyond-academy/internal/secrets"
	"github.com/Erprabhat8423/beyond-academy/internal/selection"
	"github.com/Erprabhat8423/beyond-academy/internal/store"
)

const (
	app = "beyond-academy"
)

var errSMTPNotConfigured = errors.New("smtp settings are required under the 'smtp' key to send email")

type Config struct {
	Database string               `mapstructure:"database"`
	LockFile string               `mapstructure:"lock-file"`
	Matching *MatchingConfig      `mapstructure:"matching"`
	Campaign *campaign.Config     `mapstructure:"campaign"`
	SMTP     *outreach.SMTPConfig `mapstructure:"smtp"`
	Send     *SendConfig          `mapstructure:"send"`
	AI       *AIConfig            `mapstructure:"ai"`
}

type MatchingConfig struct {
	Weights *matching.Weights `mapstructure:"weights"`
	// Regions extends the built-in city-to-region table.
	Regions map[string]string `mapstructure:"regions"`
	TopN    int               `mapstructure:"top-n"`
}

type SendConfig struct {
	MaxAttempts int           `mapstructure:"max-attempts"`
	Backoff     time.Duration `mapstructure:"backoff"`
}

type AIConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Gemini  *GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKey       string `mapstructure:"api-key"`
	APIKeyFile   string `mapstructure:"api-key-file"`
	Model        string `mapstructure:"model"`
	MaxRetries   int    `mapstructure:"max-retries"`
	MaxLogLength int    `mapstructure:"max-log-length"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "beyond-academy matches candidates to roles and drives staged email outreach to companies",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	if err := viper.BindEnv("ai.gemini.api-key-file", "BA_GEMINI_KEY_FILE"); err != nil {
		log.Fatalf("binding BA_GEMINI_KEY_FILE environment variable: %v", err)
	}
	if err := viper.BindEnv("smtp.password", "BA_SMTP_PASSWORD"); err != nil {
		log.Fatalf("binding BA_SMTP_PASSWORD environment variable: %v", err)
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is beyond-academy.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))

	viper.SetDefault("database", app+".db")
	viper.SetDefault("lock-file", app+".lock")
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app + ".yaml")
	}

	// A missing config file is fine, the defaults carry every command
	// except outreach (which needs SMTP settings). A broken one is not.
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Fatal(err)
		}
	}
}

func getConfig() (*Config, error) {
	var config *Config
	if err := viper.Unmarshal(&config); err != nil {
		return config, err
	}
	if config == nil {
		config = &Config{}
	}
	return config, nil
}

func newLogger() (*zap.Logger, error) {
	return logger.New(viper.GetBool("json"), viper.GetBool("debug"))
}

// runtime bundles everything a campaign command needs.
type runtime struct {
	store    *store.Store
	machine  *campaign.Machine
	selector *selection.Selector
	logger   *zap.Logger
	config   *Config
}

func (r *runtime) close() {
	if r.store != nil {
		r.store.Close()
	}
}

// setup opens the store and wires the scoring engine, selector, sender and
// machine from configuration. Commands that never send pass withSender=false
// and get a machine without transport or refiner.
func setup(ctx context.Context, withSender bool) (*runtime, error) {
	log, err := newLogger()
	if err != nil {
		return nil, err
	}

	config, err := getConfig()
	if err != nil {
		return nil, err
	}

	weights := matching.DefaultWeights()
	topN := selection.DefaultTopN
	var regions map[string]string
	if config.Matching != nil {
		if config.Matching.Weights != nil {
			weights = *config.Matching.Weights
		}
		if config.Matching.TopN > 0 {
			topN = config.Matching.TopN
		}
		regions = config.Matching.Regions
	}
	engine, err := matching.New(weights, regions)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(ctx, viper.GetString("database"))
	if err != nil {
		return nil, err
	}

	selector := selection.New(engine, st, st, log, topN)

	campaignCfg := campaign.DefaultConfig()
	if config.Campaign != nil {
		campaignCfg = *config.Campaign
	}

	var sender campaign.Deliverer
	var refiner ai.Refiner
	if withSender {
		sender, err = newSender(config, log)
		if err != nil {
			st.Close()
			return nil, err
		}
		refiner, err = newRefiner(ctx, config, log)
		if err != nil {
			st.Close()
			return nil, err
		}
	}

	machine := campaign.New(st, selector, sender, refiner, campaignCfg, log, time.Now)
	return &runtime{
		store:    st,
		machine:  machine,
		selector: selector,
		logger:   log,
		config:   config,
	}, nil
}

func newSender(config *Config, log *zap.Logger) (campaign.Deliverer, error) {
	if config.SMTP == nil {
		return nil, errSMTPNotConfigured
	}
	transport := outreach.NewSMTPTransport(*config.SMTP, log)

	maxAttempts := 3
	backoff := 5 * time.Second
	if config.Send != nil {
		if config.Send.MaxAttempts > 0 {
			maxAttempts = config.Send.MaxAttempts
		}
		if config.Send.Backoff > 0 {
			backoff = config.Send.Backoff
		}
	}
	return outreach.NewSender(transport, maxAttempts, backoff, log), nil
}

// newRefiner returns nil when AI is disabled; the machine falls back to raw
// bios without it.
func newRefiner(ctx context.Context, config *Config, log *zap.Logger) (ai.Refiner, error) {
	if config.AI == nil || !config.AI.Enabled {
		return nil, nil
	}
	gcfg := config.AI.Gemini
	if gcfg == nil {
		gcfg = &GeminiConfig{}
	}

	apiKey, err := secrets.Load(secrets.Source{
		Name:  "gemini api key",
		Value: gcfg.APIKey,
		File:  gcfg.APIKeyFile,
	})
	if err != nil {
		return nil, err
	}

	generator, err := gemini.NewGenerator(ctx, apiKey, gcfg.Model, gcfg.MaxRetries, log)
	if err != nil {
		return nil, err
	}
	return gemini.NewRefiner(generator, log, gcfg.MaxLogLength), nil
}
