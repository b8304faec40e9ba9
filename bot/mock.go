// © 2020 the PicBot Authors under the WTFPL. See AUTHORS for the list of authors.

package bot

import (
	"net/http"
	"regexp"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/mock"

	"github.com/velour/picbot/bot/msg"
	"github.com/velour/picbot/bot/user"
	"github.com/velour/picbot/config"
)

// MockBot records everything sent through it so tests can assert on the
// traffic without a live connector
type MockBot struct {
	mock.Mock

	Cfg *config.Config

	Messages  []string
	Actions   []string
	Reactions []string
	Images    []ImageAttachment
	Forwards  []ForwardMessage
}

func NewMockBot() *MockBot {
	cfg := config.ReadConfig(":memory:")
	b := MockBot{
		Cfg:       cfg,
		Messages:  make([]string, 0),
		Actions:   make([]string, 0),
		Reactions: make([]string, 0),
	}
	return &b
}

func (mb *MockBot) Config() *config.Config      { return mb.Cfg }
func (mb *MockBot) DB() *sqlx.DB                { return mb.Cfg.DB }
func (mb *MockBot) Who(string) []user.User      { return []user.User{} }
func (mb *MockBot) AddPlugin(f Plugin)          {}
func (mb *MockBot) DefaultConnector() Connector { return nil }

func (mb *MockBot) Send(c Connector, kind Kind, args ...interface{}) (string, error) {
	switch kind {
	case Message, Reply:
		mb.Messages = append(mb.Messages, args[1].(string))
		for _, arg := range args[2:] {
			if a, ok := arg.(ImageAttachment); ok {
				mb.Images = append(mb.Images, a)
			}
		}
	case Action:
		mb.Actions = append(mb.Actions, args[1].(string))
	case Reaction:
		mb.Reactions = append(mb.Reactions, args[1].(string))
	case Forward:
		mb.Forwards = append(mb.Forwards, args[1].(ForwardMessage))
	default:
		log.Debug().Msgf("MockBot.Send: unhandled kind %d", kind)
	}
	return "ID", nil
}

func (mb *MockBot) Receive(c Connector, kind Kind, m msg.Message, args ...interface{}) bool {
	return false
}

func (mb *MockBot) Register(p Plugin, kind Kind, cb Callback)                        {}
func (mb *MockBot) RegisterRegex(p Plugin, kind Kind, r *regexp.Regexp, cb Callback) {}
func (mb *MockBot) RegisterTable(p Plugin, ht HandlerTable)                          {}
func (mb *MockBot) RegisterWebName(r http.Handler, root, name string)                {}
func (mb *MockBot) GetWebNavigation() []EndPoint                                     { return nil }
func (mb *MockBot) CheckAdmin(nick string) bool                                      { return false }
func (mb *MockBot) Run() error                                                       { return nil }
