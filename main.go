// © 2020 the PicBot Authors under the WTFPL. See AUTHORS for the list of authors.

package main

import (
	"flag"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/velour/picbot/bot"
	"github.com/velour/picbot/config"
	"github.com/velour/picbot/connectors/discord"
	"github.com/velour/picbot/plugins/picar"
)

var (
	mainChannel = flag.String("channel", "", "Set the default channel and initialize the config")
	nick        = flag.String("nick", "", "Set the bot nick and initialize the config")
	dbpath      = flag.String("db", "picbot.db", "Database file to load")
	debug       = flag.Bool("debug", false, "Turn on debug logging")
	prettyLogs  = flag.Bool("pretty", true, "Don't output JSON logs")
)

func main() {
	flag.Parse()

	if *prettyLogs {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	if *debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	c := config.ReadConfig(*dbpath)
	if *nick != "" || *mainChannel != "" {
		c.SetDefaults(*nick, *mainChannel)
	}

	var conn bot.Connector
	switch t := c.Get("type", "discord"); t {
	case "discord":
		conn = discord.New(c)
	default:
		log.Fatal().Msgf("unknown connector type %s", t)
	}

	b := bot.New(c, conn)
	b.AddPlugin(picar.New(b))

	if err := b.Run(); err != nil {
		log.Fatal().Err(err).Msg("bot exited")
	}
}
