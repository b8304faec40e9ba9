// © 2020 the PicBot Authors under the WTFPL. See AUTHORS for the list of authors.

package bot

import (
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/velour/picbot/bot/msg"
	"github.com/velour/picbot/bot/user"
	"github.com/velour/picbot/config"
)

// bot type provides storage for bot-wide information, configs, and database connections
type bot struct {
	// plugins are indexed by their registration name so that help and the
	// dispatch loop walk them in a stable order
	plugins        map[string]Plugin
	pluginOrdering []string

	callbacks map[Plugin]HandlerTable

	config *config.Config

	conn Connector

	// Represents the bot
	me user.User

	router        *chi.Mux
	httpEndPoints []EndPoint
}

// New creates a Bot for a given connection and set of handlers.
func New(config *config.Config, connector Connector) Bot {
	bot := &bot{
		config:         config,
		plugins:        make(map[string]Plugin),
		pluginOrdering: []string{},
		callbacks:      make(map[Plugin]HandlerTable),
		conn:           connector,
		me:             user.User{Name: config.Get("nick", "picbot")},
		router:         chi.NewRouter(),
		httpEndPoints:  []EndPoint{},
	}

	connector.RegisterEvent(bot.Receive)

	bot.router.HandleFunc("/", bot.serveRoot)
	bot.router.HandleFunc("/nav", bot.serveNav)

	return bot
}

func (b *bot) Config() *config.Config { return b.config }
func (b *bot) DB() *sqlx.DB           { return b.config.DB }

func (b *bot) DefaultConnector() Connector { return b.conn }

func (b *bot) Who(channel string) []user.User {
	names := b.conn.Who(channel)
	users := []user.User{}
	for _, n := range names {
		if n != b.me.Name {
			users = append(users, user.User{Name: n})
		}
	}
	return users
}

// AddPlugin adds a constructed handler to the bots handlers list
func (b *bot) AddPlugin(p Plugin) {
	name := fmt.Sprintf("%T", p)
	b.plugins[name] = p
	b.pluginOrdering = append(b.pluginOrdering, name)
}

func (b *bot) Register(p Plugin, kind Kind, cb Callback) {
	b.RegisterRegex(p, kind, regexp.MustCompile(`.*`), cb)
}

func (b *bot) RegisterRegex(p Plugin, kind Kind, r *regexp.Regexp, cb Callback) {
	b.RegisterTable(p, HandlerTable{
		{Kind: kind, IsCmd: false, Regex: r, Handler: cb},
	})
}

func (b *bot) RegisterTable(p Plugin, ht HandlerTable) {
	b.callbacks[p] = append(b.callbacks[p], ht...)
}

// Send transmits a message through the given connector
func (b *bot) Send(conn Connector, kind Kind, args ...interface{}) (string, error) {
	return conn.Send(kind, args...)
}

// Receive runs a message through every registered handler until one of them
// claims it
func (b *bot) Receive(conn Connector, kind Kind, message msg.Message, args ...interface{}) bool {
	log.Debug().
		Interface("msg", message.Body).
		Str("channel", message.Channel).
		Msg("received message")

	if kind == Message && message.Command && b.checkHelp(conn, message) {
		return true
	}

	for _, name := range b.pluginOrdering {
		p := b.plugins[name]
		if b.runCallbacks(conn, p, kind, message, args...) {
			return true
		}
	}
	return false
}

func (b *bot) runCallbacks(conn Connector, plugin Plugin, kind Kind, message msg.Message, args ...interface{}) bool {
	for _, spec := range b.callbacks[plugin] {
		if spec.Kind != kind {
			continue
		}
		if spec.IsCmd && !message.Command {
			continue
		}
		if !spec.Regex.MatchString(message.Body) {
			continue
		}
		req := Request{
			Conn:   conn,
			Kind:   kind,
			Msg:    message,
			Values: ParseValues(spec.Regex, message.Body),
			Args:   args,
		}
		if spec.Handler(req) {
			return true
		}
	}
	return false
}

// ParseValues pulls all of the named capture groups out of a regex match
func ParseValues(r *regexp.Regexp, body string) RegexValues {
	out := RegexValues{}
	subs := r.FindStringSubmatch(body)
	if subs == nil {
		return out
	}
	for i, n := range r.SubexpNames() {
		if n != "" && i < len(subs) {
			out[n] = strings.TrimSpace(subs[i])
		}
	}
	return out
}

// checkHelp handles "help" and "help <plugin>" itself so plugins don't have to
func (b *bot) checkHelp(conn Connector, message msg.Message) bool {
	parts := strings.Fields(strings.ToLower(message.Body))
	if len(parts) == 0 || parts[0] != "help" {
		return false
	}
	if len(parts) == 1 {
		out := "Help topics:"
		for i, name := range b.pluginOrdering {
			if i > 0 {
				out += ","
			}
			out += " " + prettyPluginName(name)
		}
		b.Send(conn, Message, message.Channel, out)
		return true
	}
	for _, name := range b.pluginOrdering {
		if prettyPluginName(name) != parts[1] {
			continue
		}
		p := b.plugins[name]
		helped := false
		for _, spec := range b.callbacks[p] {
			if spec.Kind == Help {
				helped = spec.Handler(Request{Conn: conn, Kind: Help, Msg: message, Values: RegexValues{}}) || helped
			}
		}
		if !helped {
			b.Send(conn, Message, message.Channel, fmt.Sprintf("%s has no help.", parts[1]))
		}
		return true
	}
	b.Send(conn, Message, message.Channel, fmt.Sprintf("I don't know anything about %s.", parts[1]))
	return true
}

// prettyPluginName turns "*picar.PicarPlugin" into "picar"
func prettyPluginName(t string) string {
	t = strings.TrimPrefix(t, "*")
	if i := strings.Index(t, "."); i > 0 {
		t = t[:i]
	}
	return strings.ToLower(t)
}

// IsCmd checks if message is a command and returns its curtailed version
func IsCmd(c *config.Config, message string) (bool, string) {
	cmdcs := c.GetArray("commandchar", []string{"!"})
	botnick := strings.ToLower(c.Get("nick", "picbot"))
	iscmd := false
	lowerMessage := strings.ToLower(message)

	if strings.HasPrefix(lowerMessage, botnick) &&
		len(lowerMessage) > len(botnick) &&
		(lowerMessage[len(botnick)] == ',' || lowerMessage[len(botnick)] == ':') {
		iscmd = true
		message = message[len(botnick):]
		message = strings.TrimLeft(message, ",:")
		message = strings.TrimSpace(message)
	} else {
		for _, cmdc := range cmdcs {
			if cmdc != "" && strings.HasPrefix(message, cmdc) {
				iscmd = true
				message = strings.TrimPrefix(message, cmdc)
				break
			}
		}
	}

	return iscmd, message
}

func (b *bot) CheckAdmin(nick string) bool {
	for _, admin := range b.config.GetArray("bot.admins", []string{}) {
		if nick == admin {
			return true
		}
	}
	return false
}

// Run starts the bot and blocks until the connector gives out
func (b *bot) Run() error {
	addr := b.config.Get("http.addr", "127.0.0.1:1337")
	go func() {
		log.Debug().Msgf("starting web interface at %s", addr)
		if err := http.ListenAndServe(addr, b.router); err != nil {
			log.Error().Err(err).Msg("web interface died")
		}
	}()
	for _, name := range b.pluginOrdering {
		b.runCallbacks(b.conn, b.plugins[name], Startup, msg.Message{})
	}
	return b.conn.Serve()
}
