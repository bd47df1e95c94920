package config

import (
	"log"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server struct {
		Port     string
		LogLevel string
	}
	Arbiter struct {
		FillerWords     []string
		FillerPhrases   []string
		CommandWords    []string
		CommandPhrases  []string
		Threshold       float64
		ThresholdPreset string // "", "strict", "permissive"
		WordWeight      float64
		ProsodyWeight   float64
		ContextWeight   float64
		UserWeight      float64
		MinWordCount    int // tokens needed before the generative engine is consulted
		SilenceGapMS    int
		Languages       []string
		Engine          string // "rule" | "stat" | "generative"
	}
	Reconcile struct {
		TimeoutMS     int
		TimeoutPolicy string // "ignore" | "interrupt"
	}
	Profile struct {
		DBPath       string
		PersistEvery int
	}
	Host struct {
		TokenSecret   string
		TokenSkewSecs int
	}
	OpenAI struct {
		APIKey string
		Model  string
	}
}

func Load() Config {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")

	v.SetDefault("arbiter.filler_words", "yeah,yep,yes,uh-huh,mhm,mm,hmm,okay,ok,right,sure,aha,uh,um,wow,really,i see,got it,gotcha")
	v.SetDefault("arbiter.filler_phrases", "uh huh,mm hmm,i see,got it,go on,makes sense,sounds good")
	v.SetDefault("arbiter.command_words", "stop,wait,no,pause,hold,cancel,nevermind,actually,but,question")
	v.SetDefault("arbiter.command_phrases", "hold on,hang on,one second,one moment,wait a minute,stop talking,let me,excuse me")
	v.SetDefault("arbiter.threshold", 0.5)
	v.SetDefault("arbiter.threshold_preset", "")
	v.SetDefault("arbiter.word_weight", 0.4)
	v.SetDefault("arbiter.prosody_weight", 0.3)
	v.SetDefault("arbiter.context_weight", 0.2)
	v.SetDefault("arbiter.user_weight", 0.1)
	v.SetDefault("arbiter.min_word_count", 3)
	v.SetDefault("arbiter.silence_gap_ms", 2000)
	v.SetDefault("arbiter.languages", "en")
	v.SetDefault("arbiter.engine", "rule")

	v.SetDefault("reconcile.timeout_ms", 400)
	v.SetDefault("reconcile.timeout_policy", "ignore")

	v.SetDefault("profile.db_path", "")
	v.SetDefault("profile.persist_every", 10)

	v.SetDefault("host.token_skew_secs", 30)

	v.SetDefault("openai.model", "gpt-4o-mini")

	// Map envs
	v.BindEnv("server.port", "PORT")
	v.BindEnv("server.log_level", "LOG_LEVEL")

	v.BindEnv("arbiter.filler_words", "ARBITER_FILLER_WORDS")
	v.BindEnv("arbiter.filler_phrases", "ARBITER_FILLER_PHRASES")
	v.BindEnv("arbiter.command_words", "ARBITER_COMMAND_WORDS")
	v.BindEnv("arbiter.command_phrases", "ARBITER_COMMAND_PHRASES")
	v.BindEnv("arbiter.threshold", "ARBITER_THRESHOLD")
	v.BindEnv("arbiter.threshold_preset", "ARBITER_THRESHOLD_PRESET")
	v.BindEnv("arbiter.word_weight", "ARBITER_WEIGHT_WORD")
	v.BindEnv("arbiter.prosody_weight", "ARBITER_WEIGHT_PROSODY")
	v.BindEnv("arbiter.context_weight", "ARBITER_WEIGHT_CONTEXT")
	v.BindEnv("arbiter.user_weight", "ARBITER_WEIGHT_USER")
	v.BindEnv("arbiter.min_word_count", "ARBITER_MIN_WORD_COUNT")
	v.BindEnv("arbiter.silence_gap_ms", "ARBITER_SILENCE_GAP_MS")
	v.BindEnv("arbiter.languages", "ARBITER_LANGUAGES")
	v.BindEnv("arbiter.engine", "ARBITER_ENGINE")

	v.BindEnv("reconcile.timeout_ms", "ARBITER_RECONCILE_TIMEOUT_MS")
	v.BindEnv("reconcile.timeout_policy", "ARBITER_TIMEOUT_POLICY")

	v.BindEnv("profile.db_path", "PROFILE_DB_PATH")
	v.BindEnv("profile.persist_every", "PROFILE_PERSIST_EVERY")

	v.BindEnv("host.token_secret", "HOST_TOKEN_SECRET")
	v.BindEnv("host.token_skew_secs", "HOST_TOKEN_SKEW_SECS")

	v.BindEnv("openai.api_key", "OPENAI_API_KEY")
	v.BindEnv("openai.model", "OPENAI_MODEL")

	var c Config
	c.Server.Port = v.GetString("server.port")
	c.Server.LogLevel = v.GetString("server.log_level")

	c.Arbiter.FillerWords = splitList(v.GetString("arbiter.filler_words"))
	c.Arbiter.FillerPhrases = splitList(v.GetString("arbiter.filler_phrases"))
	c.Arbiter.CommandWords = splitList(v.GetString("arbiter.command_words"))
	c.Arbiter.CommandPhrases = splitList(v.GetString("arbiter.command_phrases"))
	c.Arbiter.Threshold = v.GetFloat64("arbiter.threshold")
	c.Arbiter.ThresholdPreset = v.GetString("arbiter.threshold_preset")
	c.Arbiter.WordWeight = v.GetFloat64("arbiter.word_weight")
	c.Arbiter.ProsodyWeight = v.GetFloat64("arbiter.prosody_weight")
	c.Arbiter.ContextWeight = v.GetFloat64("arbiter.context_weight")
	c.Arbiter.UserWeight = v.GetFloat64("arbiter.user_weight")
	c.Arbiter.MinWordCount = v.GetInt("arbiter.min_word_count")
	c.Arbiter.SilenceGapMS = v.GetInt("arbiter.silence_gap_ms")
	c.Arbiter.Languages = splitList(v.GetString("arbiter.languages"))
	c.Arbiter.Engine = v.GetString("arbiter.engine")

	c.Reconcile.TimeoutMS = v.GetInt("reconcile.timeout_ms")
	c.Reconcile.TimeoutPolicy = v.GetString("reconcile.timeout_policy")

	c.Profile.DBPath = v.GetString("profile.db_path")
	c.Profile.PersistEvery = v.GetInt("profile.persist_every")

	c.Host.TokenSecret = v.GetString("host.token_secret")
	c.Host.TokenSkewSecs = v.GetInt("host.token_skew_secs")

	c.OpenAI.APIKey = v.GetString("openai.api_key")
	c.OpenAI.Model = v.GetString("openai.model")

	// Named presets override the raw threshold when set.
	switch c.Arbiter.ThresholdPreset {
	case "strict":
		c.Arbiter.Threshold = 0.7
	case "permissive":
		c.Arbiter.Threshold = 0.3
	}

	// Keep the reconciler window inside the range the STT latency budget allows.
	if c.Reconcile.TimeoutMS < 150 {
		c.Reconcile.TimeoutMS = 150
	}
	if c.Reconcile.TimeoutMS > 500 {
		c.Reconcile.TimeoutMS = 500
	}

	log.Printf("config loaded: port=%s engine=%s threshold=%.2f reconcile_timeout=%dms", c.Server.Port, c.Arbiter.Engine, c.Arbiter.Threshold, c.Reconcile.TimeoutMS)
	return c
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
