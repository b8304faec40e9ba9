package discord

import (
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"

	"github.com/velour/picbot/bot"
	"github.com/velour/picbot/bot/msg"
	"github.com/velour/picbot/bot/user"
	"github.com/velour/picbot/config"
)

type Discord struct {
	config *config.Config
	client *discordgo.Session

	event bot.EventHandler
}

func New(config *config.Config) *Discord {
	client, err := discordgo.New("Bot " + config.Get("DISCORDBOTTOKEN", ""))
	if err != nil {
		log.Fatal().Err(err).Msg("Could not connect to Discord")
	}
	d := &Discord{
		config: config,
		client: client,
	}
	return d
}

func (d *Discord) RegisterEvent(callback bot.EventHandler) {
	d.event = callback
}

func (d *Discord) Send(kind bot.Kind, args ...interface{}) (string, error) {
	switch kind {
	case bot.Message:
		return d.sendMessage(args[0].(string), args[1].(string), false, args...)
	case bot.Action:
		return d.sendMessage(args[0].(string), args[1].(string), true, args...)
	case bot.Reply:
		original, err := d.client.ChannelMessage(args[0].(string), args[1].(string))
		message := args[2].(string)
		if err != nil {
			log.Error().Err(err).Msg("could not get original")
		} else {
			message = fmt.Sprintf("> %s\n%s", original.Content, message)
		}
		return d.sendMessage(args[0].(string), message, false, args...)
	case bot.Reaction:
		m := args[2].(msg.Message)
		err := d.client.MessageReactionAdd(args[0].(string), m.ID, args[1].(string))
		return args[1].(string), err
	case bot.Forward:
		return d.sendForward(args[0].(string), args[1].(bot.ForwardMessage))
	case bot.Delete:
		ch := args[0].(string)
		id := args[1].(string)
		err := d.client.ChannelMessageDelete(ch, id)
		if err != nil {
			log.Error().Err(err).Msg("cannot delete message")
		}
		return id, err
	default:
		log.Error().Msgf("discord.Send: unknown kind, %+v", kind)
		return "", errors.New("unknown message type")
	}
}

func (d *Discord) sendMessage(channel, message string, meMessage bool, args ...interface{}) (string, error) {
	if meMessage {
		message = "_" + message + "_"
	}

	var embed *discordgo.MessageEmbed

	for _, arg := range args {
		switch a := arg.(type) {
		case bot.ImageAttachment:
			embed = &discordgo.MessageEmbed{}
			embed.Description = a.AltTxt
			embed.Image = &discordgo.MessageEmbedImage{
				URL:    a.URL,
				Width:  a.Width,
				Height: a.Height,
			}
		}
	}

	data := &discordgo.MessageSend{
		Content: message,
		Embed:   embed,
	}

	log.Debug().
		Interface("data", data).
		Msg("sending message")

	st, err := d.client.ChannelMessageSendComplex(channel, data)
	if err != nil {
		log.Error().Err(err).Msg("Error sending message")
		return "", err
	}

	return st.ID, err
}

// sendForward renders a multi-part message as a sequence of sends. Discord
// has no native forward bundle; parts land in order under their authors'
// names instead.
func (d *Discord) sendForward(channel string, fwd bot.ForwardMessage) (string, error) {
	lastID := ""
	for _, part := range fwd.Parts {
		body := part.Body
		if part.Who.Name != "" {
			body = fmt.Sprintf("**%s**: %s", part.Who.Name, part.Body)
		}
		args := []interface{}{channel, body}
		if part.Image != nil {
			args = append(args, *part.Image)
		}
		id, err := d.sendMessage(channel, body, false, args...)
		if err != nil {
			return lastID, err
		}
		lastID = id
	}
	return lastID, nil
}

func (d *Discord) Who(id string) []string {
	ch, err := d.client.Channel(id)
	if err != nil {
		log.Error().Err(err).Msgf("Error getting users")
		return []string{}
	}
	users := []string{}
	for _, u := range ch.Recipients {
		users = append(users, u.Username)
	}
	return users
}

func (d *Discord) convertUser(u *discordgo.User) *user.User {
	return &user.User{
		ID:   u.ID,
		Name: u.Username,
	}
}

func (d *Discord) Serve() error {
	log.Debug().Msg("starting discord serve function")

	d.client.Identify.Intents = discordgo.MakeIntent(discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages)

	err := d.client.Open()
	if err != nil {
		log.Debug().Err(err).Msg("error opening client")
		return err
	}

	log.Debug().Msg("discord connection open")

	d.client.AddHandler(d.messageCreate)

	select {}
}

func convertAttachments(in []*discordgo.MessageAttachment) []msg.Attachment {
	out := []msg.Attachment{}
	for _, a := range in {
		out = append(out, msg.Attachment{
			URL:      a.URL,
			Filename: a.Filename,
		})
	}
	return out
}

func (d *Discord) messageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author.ID == s.State.User.ID {
		return
	}

	chName := ""
	if ch, err := s.Channel(m.ChannelID); err != nil {
		log.Error().Err(err).Msg("error getting channel info")
	} else {
		chName = ch.Name
	}

	isCmd, text := bot.IsCmd(d.config, m.Content)

	message := msg.Message{
		ID:          m.ID,
		User:        d.convertUser(m.Author),
		Channel:     m.ChannelID,
		ChannelName: chName,
		Body:        text,
		Command:     isCmd,
		Time:        m.Timestamp,
		Attachments: convertAttachments(m.Attachments),
	}

	if ref := m.ReferencedMessage; ref != nil {
		refUser := &user.User{}
		if ref.Author != nil {
			refUser = d.convertUser(ref.Author)
		}
		message.ReplyTo = &msg.Message{
			ID:          ref.ID,
			User:        refUser,
			Channel:     ref.ChannelID,
			Body:        ref.Content,
			Attachments: convertAttachments(ref.Attachments),
		}
	}

	log.Debug().Interface("msg", message).Msg("message received")

	authorizedChannels := d.config.GetArray("channels", []string{})

	if in(chName, authorizedChannels) {
		d.event(d, bot.Message, message)
	}
}

func in(s string, lst []string) bool {
	for _, i := range lst {
		if s == i {
			return true
		}
	}
	return false
}
