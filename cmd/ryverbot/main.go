package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/danmuck/ryverlive/internal/bot"
	"github.com/danmuck/ryverlive/internal/config"
	"github.com/danmuck/ryverlive/internal/logging"
	"github.com/danmuck/ryverlive/internal/observability"
)

func main() {
	configPath := flag.String("config", "cmd/ryverbot/bot.toml", "bot config path")
	sessionPath := flag.String("session", "", "optional session tuning overrides")
	flag.Parse()

	logging.ConfigureRuntime()
	observability.InitLogger("ryverbot")

	botCfg, err := config.LoadBotConfig(*configPath)
	if err != nil {
		fail(err)
	}
	sessionCfg, err := loadSessionConfig(*sessionPath)
	if err != nil {
		fail(err)
	}
	svc := bot.NewService(bot.ServiceConfig{Bot: botCfg, Session: sessionCfg})
	if err := svc.Run(); err != nil {
		fail(err)
	}
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "ryverbot: %v\n", err)
	os.Exit(1)
}
