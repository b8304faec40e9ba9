// © 2020 the PicBot Authors under the WTFPL. See AUTHORS for the list of authors.

package config

import (
	"database/sql"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"
)

// Config stores any system-wide startup information that cannot be easily
// configured via the database. All keys are stringly typed; get over it.
type Config struct {
	*sqlx.DB

	DBFile string
}

const arraySep = ";;"

// ReadConfig opens (and creates if needed) the config store at dbpath
func ReadConfig(dbpath string) *Config {
	if dbpath == "" {
		dbpath = "picbot.db"
	}
	log.Info().Msgf("Using %s as database file.", dbpath)

	sqlDB, err := sqlx.Open("sqlite3", dbpath)
	if err != nil {
		log.Fatal().Err(err).Msg("could not open config database")
	}
	c := Config{DBFile: dbpath}
	c.DB = sqlDB
	if dbpath == ":memory:" {
		// each new pool connection would get its own empty memory db
		c.DB.SetMaxOpenConns(1)
	}

	c.MustExec(`create table if not exists config (
		key string,
		value string
	);`)

	return &c
}

func envkey(key string) string {
	key = strings.ToUpper(key)
	key = strings.ReplaceAll(key, ".", "")
	return "PICBOT_" + key
}

// GetString returns the config value for a key, the environment override
// winning over the database
func (c *Config) GetString(key, fallback string) string {
	key = strings.ToLower(key)
	if v, ok := os.LookupEnv(envkey(key)); ok {
		return v
	}
	var configValue string
	q := `select value from config where key=?`
	err := c.DB.Get(&configValue, q, key)
	if err == sql.ErrNoRows {
		return fallback
	} else if err != nil {
		log.Error().Err(err).Msgf("config lookup %s", key)
		return fallback
	}
	return configValue
}

func (c *Config) Get(key, fallback string) string {
	return c.GetString(key, fallback)
}

func (c *Config) GetInt(key string, fallback int) int {
	str := c.GetString(key, strconv.Itoa(fallback))
	i, err := strconv.Atoi(str)
	if err != nil {
		return fallback
	}
	return i
}

func (c *Config) GetFloat64(key string, fallback float64) float64 {
	str := c.GetString(key, strconv.FormatFloat(fallback, 'f', -1, 64))
	f, err := strconv.ParseFloat(str, 64)
	if err != nil {
		return fallback
	}
	return f
}

func (c *Config) GetBool(key string, fallback bool) bool {
	str := c.GetString(key, strconv.FormatBool(fallback))
	b, err := strconv.ParseBool(str)
	if err != nil {
		return fallback
	}
	return b
}

// GetArray returns the list stored under a key, values separated by ";;"
func (c *Config) GetArray(key string, fallback []string) []string {
	val := c.GetString(key, "")
	if val == "" {
		return fallback
	}
	return strings.Split(val, arraySep)
}

// Set changes the value for a key and returns the config for chaining
func (c *Config) Set(key, value string) *Config {
	key = strings.ToLower(key)
	tx, err := c.Beginx()
	if err != nil {
		log.Error().Err(err).Msg("config set")
		return c
	}
	var count int
	if err := tx.Get(&count, `select count(*) from config where key=?`, key); err != nil {
		tx.Rollback()
		log.Error().Err(err).Msgf("config set %s", key)
		return c
	}
	if count == 0 {
		_, err = tx.Exec(`insert into config (key, value) values (?, ?)`, key, value)
	} else {
		_, err = tx.Exec(`update config set value=? where key=?`, value, key)
	}
	if err != nil {
		tx.Rollback()
		log.Error().Err(err).Msgf("config set %s", key)
		return c
	}
	tx.Commit()
	return c
}

func (c *Config) SetArray(key string, values []string) *Config {
	return c.Set(key, strings.Join(values, arraySep))
}

// Unset removes a key entirely
func (c *Config) Unset(key string) *Config {
	key = strings.ToLower(key)
	if _, err := c.Exec(`delete from config where key=?`, key); err != nil {
		log.Error().Err(err).Msgf("config unset %s", key)
	}
	return c
}

// SetDefaults drops in the minimum configuration for a fresh install
func (c *Config) SetDefaults(nick, channel string) {
	if nick == "" || channel == "" {
		log.Fatal().Msg("You must provide a nick and a channel")
	}
	c.Set("nick", nick)
	c.Set("channels", channel)
	c.Set("type", "discord")
	c.Set("commandchar", "!"+arraySep+"¡")
	c.Set("http.addr", "127.0.0.1:1337")
	c.SetArray("picar.commands", []string{"0"})
	c.Set("picar.commands.0.command", "picar")
	c.Set("picar.commands.0.url", "https://example.com")
	c.Set("picar.commands.0.template", "{pict}")
	c.Set("init", "1")
	log.Info().Msg("Configuration initialized.")
	fmt.Println("Configuration initialized.")
}
