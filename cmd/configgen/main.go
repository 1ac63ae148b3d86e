package main

import (
	"flag"
	"log"

	"github.com/danmuck/ryverlive/internal/config"
)

func main() {
	kind := flag.String("kind", "bot", "config kind: bot|session")
	output := flag.String("output", "", "output path for config template")
	validate := flag.Bool("validate", false, "validate an existing bot config file")
	input := flag.String("input", "cmd/ryverbot/bot.toml", "bot config path for validation")
	force := flag.Bool("force", false, "overwrite existing config file")
	flag.Parse()

	if *validate {
		if _, err := config.LoadBotConfig(*input); err != nil {
			log.Fatal(err)
		}
		log.Printf("Validated bot config at %s", *input)
		return
	}

	target := *output
	if target == "" {
		switch *kind {
		case "bot":
			target = "cmd/ryverbot/bot.toml"
		case "session":
			target = "cmd/ryverbot/session.toml"
		default:
			log.Fatalf("unknown kind: %s", *kind)
		}
	}

	if err := config.WriteTemplate(target, *kind, *force); err != nil {
		log.Fatal(err)
	}
	log.Printf("Wrote %s config template to %s", *kind, target)
}
