package config_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/tgrelay/pkg/config"
)

var _ = Describe("Configer config", func() {
	var (
		tmpDir string
		c      *config.Configer
	)

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()

		var err error
		c, err = config.NewConfiger(tmpDir)
		Expect(err).NotTo(HaveOccurred())
	})

	writeConfig := func(data string) {
		Expect(os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte(data), 0o600)).To(Succeed())
	}

	Describe("LoadConfig", func() {
		It("returns default config when no config file exists", func() {
			cfg, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg).To(Equal(config.NewDefaultConfig()))
		})

		It("loads all config sections", func() {
			writeConfig(`version = 0

[telegram]
api_base = "http://localhost:8081"
poll_timeout = 10

[anthropic]
model = "claude-3-haiku-20240307"
api_url = "http://localhost:9000/v1/messages"
max_tokens = 512
system_prompt = "Be brief."
max_retries = 5
base_timeout = 15

[context]
user_window = 3
history_window = 6

[api]
listen = ":8088"

[events]
kafka_brokers = "kafka-1:9092,kafka-2:9092"
kafka_topic = "turns"

[log]
debug = true
json = true
file = "tgrelay.log"
`)

			cfg, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Telegram.APIBase).To(Equal("http://localhost:8081"))
			Expect(cfg.Telegram.PollTimeout).To(Equal(10))
			Expect(cfg.Anthropic.Model).To(Equal("claude-3-haiku-20240307"))
			Expect(cfg.Anthropic.APIURL).To(Equal("http://localhost:9000/v1/messages"))
			Expect(cfg.Anthropic.MaxTokens).To(Equal(512))
			Expect(cfg.Anthropic.SystemPrompt).To(Equal("Be brief."))
			Expect(cfg.Anthropic.MaxRetries).To(Equal(5))
			Expect(cfg.Anthropic.BaseTimeout).To(Equal(15))
			Expect(cfg.Context.UserWindow).To(Equal(3))
			Expect(cfg.Context.HistoryWindow).To(Equal(6))
			Expect(cfg.API.Listen).To(Equal(":8088"))
			Expect(cfg.Events.Brokers()).To(Equal([]string{"kafka-1:9092", "kafka-2:9092"}))
			Expect(cfg.Events.KafkaTopic).To(Equal("turns"))
			Expect(cfg.Log.Debug).To(BeTrue())
			Expect(cfg.Log.JSON).To(BeTrue())
			Expect(cfg.Log.File).To(Equal("tgrelay.log"))
		})

		It("fills in defaults for unset fields in a partial config", func() {
			writeConfig(`[anthropic]
model = "claude-3-opus-20240229"
`)

			cfg, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())

			defaults := config.NewDefaultConfig()
			Expect(cfg.Anthropic.Model).To(Equal("claude-3-opus-20240229"))
			Expect(cfg.Anthropic.MaxTokens).To(Equal(defaults.Anthropic.MaxTokens))
			Expect(cfg.Anthropic.MaxRetries).To(Equal(defaults.Anthropic.MaxRetries))
			Expect(cfg.Context.UserWindow).To(Equal(defaults.Context.UserWindow))
			Expect(cfg.Context.HistoryWindow).To(Equal(defaults.Context.HistoryWindow))
			Expect(cfg.Events.KafkaTopic).To(Equal(defaults.Events.KafkaTopic))
		})

		It("returns error for malformed TOML", func() {
			writeConfig("not valid [[[")

			cfg, err := c.LoadConfig()
			Expect(err).To(HaveOccurred())
			Expect(cfg).To(BeNil())
		})

		It("returns error for unsupported config version", func() {
			writeConfig("version = 99\n")

			_, err := c.LoadConfig()
			Expect(err).To(MatchError(ContainSubstring("unsupported config version 99")))
		})
	})

	Describe("SaveConfig", func() {
		It("persists config to disk", func() {
			cfg := config.NewDefaultConfig()
			cfg.API.Listen = ":9999"
			Expect(c.SaveConfig(cfg)).To(Succeed())

			loaded, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded).To(Equal(cfg))
		})

		It("returns error for nil config", func() {
			Expect(c.SaveConfig(nil)).To(MatchError("cannot save nil config"))
		})
	})

	Describe("SetConfigValue", func() {
		It("sets a string config key", func() {
			Expect(c.SetConfigValue("anthropic.model", "claude-3-haiku-20240307")).To(Succeed())

			val, err := c.GetConfigValue("anthropic.model")
			Expect(err).NotTo(HaveOccurred())
			Expect(val).To(Equal("claude-3-haiku-20240307"))
		})

		It("sets an int config key", func() {
			Expect(c.SetConfigValue("context.user_window", "7")).To(Succeed())

			cfg, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Context.UserWindow).To(Equal(7))
		})

		It("sets a bool config key", func() {
			Expect(c.SetConfigValue("log.debug", "true")).To(Succeed())

			val, err := c.GetConfigValue("log.debug")
			Expect(err).NotTo(HaveOccurred())
			Expect(val).To(Equal("true"))
		})

		It("rejects non-numeric and negative int values", func() {
			Expect(c.SetConfigValue("anthropic.max_retries", "many")).To(MatchError(ContainSubstring("invalid value for anthropic.max_retries")))
			Expect(c.SetConfigValue("anthropic.max_retries", "-1")).To(MatchError(ContainSubstring("must not be negative")))
		})

		It("rejects invalid bool values", func() {
			Expect(c.SetConfigValue("log.json", "maybe")).To(MatchError(ContainSubstring("invalid value for log.json")))
		})

		It("returns error for unknown key", func() {
			Expect(c.SetConfigValue("telegram.bot_token", "123:abc")).To(MatchError(ContainSubstring("unknown config key")))
		})

		It("preserves existing values when setting a new key", func() {
			Expect(c.SetConfigValue("api.listen", ":8088")).To(Succeed())
			Expect(c.SetConfigValue("events.kafka_topic", "turns")).To(Succeed())

			cfg, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.API.Listen).To(Equal(":8088"))
			Expect(cfg.Events.KafkaTopic).To(Equal("turns"))
		})
	})

	Describe("GetConfigValue", func() {
		It("returns default values when no config file exists", func() {
			val, err := c.GetConfigValue("context.history_window")
			Expect(err).NotTo(HaveOccurred())
			Expect(val).To(Equal("10"))
		})

		It("returns empty string for key with no default", func() {
			val, err := c.GetConfigValue("api.listen")
			Expect(err).NotTo(HaveOccurred())
			Expect(val).To(BeEmpty())
		})

		It("returns error for unknown key", func() {
			_, err := c.GetConfigValue("proxy.upstream")
			Expect(err).To(MatchError(ContainSubstring("unknown config key")))
		})
	})
})

var _ = Describe("ValidConfigKeys", func() {
	It("returns keys in TOML section order", func() {
		Expect(config.ValidConfigKeys()).To(Equal([]string{
			"telegram.api_base",
			"telegram.poll_timeout",
			"anthropic.model",
			"anthropic.api_url",
			"anthropic.max_tokens",
			"anthropic.system_prompt",
			"anthropic.max_retries",
			"anthropic.base_timeout",
			"context.user_window",
			"context.history_window",
			"api.listen",
			"events.kafka_brokers",
			"events.kafka_topic",
			"log.debug",
			"log.json",
			"log.file",
		}))
	})

	It("does not expose secrets as config keys", func() {
		Expect(config.IsValidConfigKey(config.KeyBotToken)).To(BeFalse())
		Expect(config.IsValidConfigKey(config.KeyAPIKey)).To(BeFalse())
		Expect(config.IsValidConfigKey("anthropic.model")).To(BeTrue())
	})
})

var _ = Describe("NewDefaultConfig", func() {
	It("returns fully-populated defaults", func() {
		cfg := config.NewDefaultConfig()
		Expect(cfg.Version).To(Equal(config.CurrentV))
		Expect(cfg.Telegram.APIBase).To(Equal("https://api.telegram.org"))
		Expect(cfg.Telegram.PollTimeout).To(Equal(30))
		Expect(cfg.Anthropic.Model).To(Equal("claude-3-5-sonnet-20241022"))
		Expect(cfg.Anthropic.APIURL).To(Equal("https://api.anthropic.com/v1/messages"))
		Expect(cfg.Anthropic.MaxTokens).To(Equal(2000))
		Expect(cfg.Anthropic.MaxRetries).To(Equal(3))
		Expect(cfg.Anthropic.BaseTimeout).To(Equal(30))
		Expect(cfg.Context.UserWindow).To(Equal(5))
		Expect(cfg.Context.HistoryWindow).To(Equal(10))
		Expect(cfg.API.Listen).To(BeEmpty())
		Expect(cfg.Events.Brokers()).To(BeEmpty())
		Expect(cfg.Events.KafkaTopic).To(Equal("tgrelay.turns"))
	})
})

var _ = Describe("EventsConfig", func() {
	It("trims and skips empty broker entries", func() {
		e := config.EventsConfig{KafkaBrokers: " a:9092, ,b:9092 ,"}
		Expect(e.Brokers()).To(Equal([]string{"a:9092", "b:9092"}))
	})
})
