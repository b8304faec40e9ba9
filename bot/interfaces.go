// © 2020 the PicBot Authors under the WTFPL. See AUTHORS for the list of authors.

package bot

import (
	"net/http"
	"regexp"

	"github.com/jmoiron/sqlx"

	"github.com/velour/picbot/bot/msg"
	"github.com/velour/picbot/bot/user"
	"github.com/velour/picbot/config"
)

type Kind int

const (
	_ Kind = iota

	// Message any standard chat
	Message
	// Reply something containing a message reference
	Reply
	// Action any /me action
	Action
	// Reaction icon reaction if the service supports it
	Reaction
	// Help is used when the bot help system is triggered
	Help
	// Startup fires after all plugins are loaded
	Startup
	// Forward is a multi-part forwarded message
	Forward
	// Delete removes a message by ID
	Delete
)

// Request is the full context handed to a plugin callback
type Request struct {
	Conn Connector
	Kind Kind
	Msg  msg.Message
	// Values contains the regex captures by name
	Values RegexValues
	Args   []interface{}
}

type RegexValues map[string]string

type Callback func(Request) bool

type HandlerSpec struct {
	Kind     Kind
	IsCmd    bool
	Regex    *regexp.Regexp
	HelpText string
	Handler  Callback
}

type HandlerTable []HandlerSpec

type EndPoint struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// ImageAttachment is the structured image payload a plugin may attach to a
// send. URL may be a regular URL or a data URI.
type ImageAttachment struct {
	URL    string
	AltTxt string
	Width  int
	Height int
}

// ForwardPart is one sub-message of a forwarded message, attributed to Who.
type ForwardPart struct {
	Who   user.User
	Body  string
	Image *ImageAttachment
}

// ForwardMessage is a multi-part message rendered however the connector can
// manage. Parts keep their order.
type ForwardMessage struct {
	Parts []ForwardPart
}

type Bot interface {
	Config() *config.Config
	DB() *sqlx.DB
	Who(string) []user.User
	AddPlugin(Plugin)
	DefaultConnector() Connector

	// Send transmits a message to the service via the given connector.
	// The first arg is the channel; further args depend on the Kind.
	Send(Connector, Kind, ...interface{}) (string, error)
	// Receive delivers an incoming message to the plugins
	Receive(Connector, Kind, msg.Message, ...interface{}) bool

	Register(Plugin, Kind, Callback)
	RegisterRegex(Plugin, Kind, *regexp.Regexp, Callback)
	RegisterTable(Plugin, HandlerTable)
	RegisterWebName(http.Handler, string, string)
	GetWebNavigation() []EndPoint

	CheckAdmin(string) bool

	// Run blocks, serving the web interface and the connector
	Run() error
}

// EventHandler is what a connector calls when traffic arrives
type EventHandler func(Connector, Kind, msg.Message, ...interface{}) bool

type Connector interface {
	RegisterEvent(EventHandler)

	Send(Kind, ...interface{}) (string, error)

	Serve() error
	Who(string) []string
}

// Plugin is a marker for anything registered with the bot
type Plugin interface{}
