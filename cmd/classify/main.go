package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/bytedance/sonic"
	"github.com/joho/godotenv"

	"murmur/arbiter/internal/arbiter"
	"murmur/arbiter/internal/audiofeat"
	"murmur/arbiter/internal/config"
	"murmur/arbiter/internal/profile"
	"murmur/arbiter/internal/types"
)

func main() {
	text := flag.String("text", "", "utterance text to classify")
	speaking := flag.Bool("speaking", true, "agent is speaking when the utterance arrives")
	utterance := flag.String("utterance", "", "what the agent is currently saying")
	user := flag.String("user", "", "user id for adaptive profiles")
	audioPath := flag.String("audio", "", "optional raw G.711 ulaw file with the utterance audio")
	rate := flag.Int("rate", 8000, "audio sample rate")
	flag.Parse()

	if *text == "" {
		fmt.Fprintln(os.Stderr, "usage: classify -text \"uh huh\" [-speaking=false] [-user id] [-audio file.ulaw]")
		os.Exit(2)
	}

	_ = godotenv.Load()
	cfg := config.Load()

	var backend profile.Persistence
	if cfg.Profile.DBPath != "" {
		db, err := profile.OpenSQLite(cfg.Profile.DBPath)
		if err != nil {
			log.Fatalf("open profile db: %v", err)
		}
		backend = db
	}
	profiles := profile.NewStore(backend, cfg.Profile.PersistEvery)
	defer profiles.Close()

	ctrl := arbiter.New(cfg, profiles, arbiter.Hooks{})
	ctrl.AgentSpeakingChanged(*speaking, *utterance)

	ev := types.SpeechEvent{
		Text:   *text,
		Final:  true,
		UserID: *user,
		At:     time.Now(),
	}
	if *audioPath != "" {
		raw, err := os.ReadFile(*audioPath)
		if err != nil {
			log.Fatalf("read audio: %v", err)
		}
		ev.Audio = audiofeat.DecodeULaw(raw, *rate)
	}

	decision, reasoning := ctrl.Decide(ev)

	out, err := sonic.MarshalIndent(map[string]any{
		"decision":  decision.String(),
		"reasoning": reasoning,
	}, "", "  ")
	if err != nil {
		log.Fatalf("marshal: %v", err)
	}
	fmt.Println(string(out))
}
