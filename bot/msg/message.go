// © 2020 the PicBot Authors under the WTFPL. See AUTHORS for the list of authors.

package msg

import (
	"time"

	"github.com/velour/picbot/bot/user"
)

// Attachment is a file hung off a chat message. The connector fills in
// whatever URL it can serve the bytes from.
type Attachment struct {
	URL      string
	Filename string
}

type Message struct {
	ID   string
	User *user.User
	// With Discord, Channel is the ID of a channel
	Channel string
	// ChannelName is the nice name of a channel
	ChannelName string
	Body        string
	Command     bool
	Action      bool
	Time        time.Time
	Host        string
	// Attachments carried on this message
	Attachments []Attachment
	// ReplyTo is the quoted message, when this message is a reply
	ReplyTo *Message
	Raw     interface{}
}
