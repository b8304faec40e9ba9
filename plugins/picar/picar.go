package picar

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/velour/picbot/bot"
	"github.com/velour/picbot/bot/msg"
	"github.com/velour/picbot/bot/user"
	"github.com/velour/picbot/config"
)

// PicarPlugin stores tagged images and answers a handful of picture commands.
// Extra commands bound to image sources come out of the config.
type PicarPlugin struct {
	b  bot.Bot
	c  *config.Config
	db *sqlx.DB

	resolver *resolver
	handlers bot.HandlerTable
}

const pageSize = 10

var (
	randomRegex = regexp.MustCompile(`(?i)^pic(?:\s+(?P<tag>.+))?$`)
	listRegex   = regexp.MustCompile(`(?i)^pic\.list(?:\s+(?P<tag>\S+))?(?:\s+(?P<page>\S+))?\s*$`)
	tagsRegex   = regexp.MustCompile(`(?i)^pic\.tags\s*$`)
	addRegex    = regexp.MustCompile(`(?i)^pic\.add(?:\s+(?P<tag>\S+))?\s*$`)
)

func New(b bot.Bot) *PicarPlugin {
	p := &PicarPlugin{
		b:        b,
		c:        b.Config(),
		db:       b.DB(),
		resolver: newResolver(b.Config()),
	}
	p.setupDB()
	p.register()
	return p
}

func (p *PicarPlugin) register() {
	p.handlers = bot.HandlerTable{
		{
			Kind: bot.Message, IsCmd: true,
			Regex:    listRegex,
			HelpText: "pic.list <tag> [page] lists stored images for a tag",
			Handler:  p.listCmd,
		},
		{
			Kind: bot.Message, IsCmd: true,
			Regex:    tagsRegex,
			HelpText: "pic.tags lists all known tags",
			Handler:  p.tagsCmd,
		},
		{
			Kind: bot.Message, IsCmd: true,
			Regex:    addRegex,
			HelpText: "pic.add <tag> stores the images on your (or the quoted) message",
			Handler:  p.addCmd,
		},
		{
			Kind: bot.Message, IsCmd: true,
			Regex:    randomRegex,
			HelpText: "pic [tag] sends a random stored image",
			Handler:  p.randomCmd,
		},
		{
			Kind: bot.Help, IsCmd: false,
			Regex:   regexp.MustCompile(`.*`),
			Handler: p.help,
		},
	}

	for _, idx := range p.c.GetArray("picar.commands", []string{}) {
		command := p.c.Get(fmt.Sprintf("picar.commands.%s.command", idx), "picar")
		source := p.c.Get(fmt.Sprintf("picar.commands.%s.url", idx), "https://example.com")
		template := p.c.Get(fmt.Sprintf("picar.commands.%s.template", idx), placeholder)
		p.handlers = append(p.handlers, p.templateSpec(command, source, template))
		log.Debug().Msgf("registered template command %s bound to %s", command, source)
	}

	p.b.RegisterTable(p, p.handlers)
}

// templateSpec binds one configured command to its template and image source
func (p *PicarPlugin) templateSpec(command, source, template string) bot.HandlerSpec {
	return bot.HandlerSpec{
		Kind: bot.Message, IsCmd: true,
		Regex:    regexp.MustCompile(`(?i)^` + regexp.QuoteMeta(command) + `\s*$`),
		HelpText: fmt.Sprintf("%s sends a picture from %s", command, source),
		Handler: func(r bot.Request) bool {
			log.Debug().Msgf("template command %s invoked, source %s", command, source)
			out := p.resolver.Resolve(template, source)
			p.b.Send(r.Conn, bot.Message, r.Msg.Channel, out)
			return true
		},
	}
}

// tagMissing reports whether a command argument should be treated as absent.
// A leading '<' means unresolved placeholder syntax leaked out of the parser.
func tagMissing(tag string) bool {
	tag = strings.TrimSpace(tag)
	return tag == "" || strings.HasPrefix(tag, "<")
}

func (p *PicarPlugin) randomCmd(r bot.Request) bool {
	tag := r.Values["tag"]
	if tagMissing(tag) {
		tag = ""
	}
	imgs, err := getImages(p.db, tag)
	if err != nil {
		log.Error().Err(err).Msgf("could not get images for %q", tag)
		p.b.Send(r.Conn, bot.Message, r.Msg.Channel, "Something went wrong finding a picture.")
		return true
	}
	if len(imgs) == 0 {
		p.b.Send(r.Conn, bot.Message, r.Msg.Channel, noImagesMsg(tag))
		return true
	}
	img := imgs[p.resolver.intn(len(imgs))]
	p.b.Send(r.Conn, bot.Message, r.Msg.Channel, "", bot.ImageAttachment{
		URL:    img.ImgURL,
		AltTxt: fmt.Sprintf("%s (added by %s)", img.Tag, img.Uploader),
	})
	return true
}

func noImagesMsg(tag string) string {
	if tag == "" {
		return "I have no images yet."
	}
	return fmt.Sprintf("I have no images tagged %s.", tag)
}

func (p *PicarPlugin) listCmd(r bot.Request) bool {
	tag := r.Values["tag"]
	if tagMissing(tag) {
		p.b.Send(r.Conn, bot.Message, r.Msg.Channel, "Usage: pic.list <tag> [page]")
		return true
	}

	page := 1
	if pg := r.Values["page"]; pg != "" {
		var err error
		page, err = strconv.Atoi(pg)
		if err != nil || page < 1 {
			p.b.Send(r.Conn, bot.Message, r.Msg.Channel, "Usage: pic.list <tag> [page]")
			return true
		}
	}

	imgs, err := getImages(p.db, tag)
	if err != nil {
		log.Error().Err(err).Msgf("could not get images for %q", tag)
		p.b.Send(r.Conn, bot.Message, r.Msg.Channel, "Something went wrong finding those pictures.")
		return true
	}
	if len(imgs) == 0 {
		p.b.Send(r.Conn, bot.Message, r.Msg.Channel, noImagesMsg(tag))
		return true
	}

	totalPages := (len(imgs) + pageSize - 1) / pageSize
	if page > totalPages {
		p.b.Send(r.Conn, bot.Message, r.Msg.Channel,
			fmt.Sprintf("Page %d is out of range; valid pages are 1 to %d.", page, totalPages))
		return true
	}

	start := (page - 1) * pageSize
	end := start + pageSize
	if end > len(imgs) {
		end = len(imgs)
	}

	who := user.User{Name: "somebody"}
	if r.Msg.User != nil {
		who = *r.Msg.User
	}

	fwd := bot.ForwardMessage{}
	for _, img := range imgs[start:end] {
		fwd.Parts = append(fwd.Parts, bot.ForwardPart{
			Who:   who,
			Body:  img.ImgURL,
			Image: &bot.ImageAttachment{URL: img.ImgURL, AltTxt: img.Tag},
		})
	}
	trailer := fmt.Sprintf("page %d/%d, %d total", page, totalPages, len(imgs))
	if page < totalPages {
		trailer += fmt.Sprintf("\nnext: pic.list %s %d", tag, page+1)
	}
	fwd.Parts = append(fwd.Parts, bot.ForwardPart{Who: who, Body: trailer})

	p.b.Send(r.Conn, bot.Forward, r.Msg.Channel, fwd)
	return true
}

func (p *PicarPlugin) tagsCmd(r bot.Request) bool {
	tags, err := getTags(p.db)
	if err != nil {
		log.Error().Err(err).Msg("could not get tags")
		p.b.Send(r.Conn, bot.Message, r.Msg.Channel, "Something went wrong finding the tags.")
		return true
	}
	if len(tags) == 0 {
		p.b.Send(r.Conn, bot.Message, r.Msg.Channel, "I have no images yet.")
		return true
	}

	// the unique constraint should make this a no-op, but belt and braces
	seen := map[string]bool{}
	out := "Known tags:"
	for _, t := range tags {
		if seen[t.Tag] {
			continue
		}
		seen[t.Tag] = true
		out += "\n• " + t.Tag
	}
	p.b.Send(r.Conn, bot.Message, r.Msg.Channel, out)
	return true
}

func (p *PicarPlugin) addCmd(r bot.Request) bool {
	tag := r.Values["tag"]
	if tagMissing(tag) {
		p.b.Send(r.Conn, bot.Message, r.Msg.Channel, "Usage: pic.add <tag> (attach images or quote a message that has some)")
		return true
	}

	atts := []msg.Attachment{}
	if r.Msg.ReplyTo != nil {
		atts = append(atts, r.Msg.ReplyTo.Attachments...)
	}
	atts = append(atts, r.Msg.Attachments...)
	if len(atts) == 0 {
		p.b.Send(r.Conn, bot.Message, r.Msg.Channel, "I couldn't find any images on that message.")
		return true
	}

	known, err := tagKnown(p.db, tag)
	if err != nil {
		log.Error().Err(err).Msgf("could not check tag %q", tag)
		p.b.Send(r.Conn, bot.Message, r.Msg.Channel, "Something went wrong storing those pictures.")
		return true
	}
	if !known {
		if err := addTag(p.db, tag); err != nil {
			log.Error().Err(err).Msgf("could not create tag %q", tag)
			p.b.Send(r.Conn, bot.Message, r.Msg.Channel, "Something went wrong storing those pictures.")
			return true
		}
		log.Debug().Msgf("created tag %s", tag)
	}

	uploader := "somebody"
	uploaderID := int64(0)
	if r.Msg.User != nil {
		uploader = r.Msg.User.Name
		if id, err := strconv.ParseInt(r.Msg.User.ID, 10, 64); err == nil {
			uploaderID = id
		}
	}
	now := time.Now()

	added := 0
	for _, a := range atts {
		img := Image{
			Tag:        tag,
			ImgURL:     a.URL,
			Uploader:   uploader,
			UploaderID: uploaderID,
			UploadTime: now,
		}
		if err := img.Create(p.db); err != nil {
			log.Error().Err(err).Msgf("could not store image %s", a.URL)
			continue
		}
		added++
	}

	p.b.Send(r.Conn, bot.Message, r.Msg.Channel,
		fmt.Sprintf("Added %d images to %s.", added, tag))
	return true
}

// help responds to help requests. Every plugin must implement a help function.
func (p *PicarPlugin) help(r bot.Request) bool {
	out := "Picture commands:"
	for _, spec := range p.handlers {
		if spec.HelpText != "" {
			out += "\n" + spec.HelpText
		}
	}
	p.b.Send(r.Conn, bot.Message, r.Msg.Channel, out)
	return true
}
