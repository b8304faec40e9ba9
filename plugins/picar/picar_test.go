package picar

import (
	"fmt"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/velour/picbot/bot"
	"github.com/velour/picbot/bot/msg"
	"github.com/velour/picbot/bot/user"
)

func setup(t *testing.T) (*bot.MockBot, *PicarPlugin) {
	t.Helper()
	mb := bot.NewMockBot()
	p := New(mb)
	assert.NotNil(t, p)
	p.db.MustExec(`delete from picar_images; delete from picar_tags;`)
	return mb, p
}

func makeMessage(payload string, r *regexp.Regexp) bot.Request {
	isCmd := strings.HasPrefix(payload, "!")
	if isCmd {
		payload = payload[1:]
	}
	return bot.Request{
		Msg: msg.Message{
			User:    &user.User{Name: "tester", ID: "1234"},
			Channel: "test",
			Body:    payload,
			Command: isCmd,
		},
		Values: bot.ParseValues(r, payload),
	}
}

func seedImages(t *testing.T, p *PicarPlugin, tag string, n int) {
	t.Helper()
	now := time.Now()
	for i := 0; i < n; i++ {
		img := Image{
			Tag:        tag,
			ImgURL:     fmt.Sprintf("https://example.com/%s/%d.png", tag, i),
			Uploader:   "seeder",
			UploaderID: 42,
			UploadTime: now,
		}
		assert.Nil(t, img.Create(p.db))
	}
}

func TestRandomNoImages(t *testing.T) {
	mb, p := setup(t)
	p.randomCmd(makeMessage("!pic", randomRegex))
	assert.Len(t, mb.Messages, 1)
	assert.Contains(t, mb.Messages[0], "no images")
}

func TestRandomFiltersByTag(t *testing.T) {
	mb, p := setup(t)
	seedImages(t, p, "cats", 3)
	seedImages(t, p, "dogs", 3)
	for i := 0; i < 10; i++ {
		p.randomCmd(makeMessage("!pic cats", randomRegex))
	}
	assert.Len(t, mb.Images, 10)
	for _, img := range mb.Images {
		assert.Contains(t, img.URL, "/cats/")
	}
}

func TestRandomUnfilteredWithoutTag(t *testing.T) {
	mb, p := setup(t)
	seedImages(t, p, "cats", 1)
	seedImages(t, p, "dogs", 1)
	found := map[string]bool{}
	for i := 0; i < 50; i++ {
		p.randomCmd(makeMessage("!pic", randomRegex))
	}
	for _, img := range mb.Images {
		found[img.URL] = true
	}
	assert.Len(t, found, 2)
}

func TestRandomPlaceholderArgIsMissing(t *testing.T) {
	mb, p := setup(t)
	seedImages(t, p, "cats", 1)
	p.randomCmd(makeMessage("!pic <tag>", randomRegex))
	assert.Len(t, mb.Images, 1)
}

func TestListUsage(t *testing.T) {
	for _, body := range []string{"!pic.list", "!pic.list <tag>"} {
		mb, p := setup(t)
		p.listCmd(makeMessage(body, listRegex))
		assert.Len(t, mb.Messages, 1)
		assert.Contains(t, mb.Messages[0], "Usage")
	}
}

func TestListPagination(t *testing.T) {
	mb, p := setup(t)
	seedImages(t, p, "cats", 25)

	p.listCmd(makeMessage("!pic.list cats", listRegex))
	p.listCmd(makeMessage("!pic.list cats 2", listRegex))
	p.listCmd(makeMessage("!pic.list cats 3", listRegex))

	assert.Len(t, mb.Forwards, 3)
	// one part per image plus the trailer
	assert.Len(t, mb.Forwards[0].Parts, 11)
	assert.Len(t, mb.Forwards[1].Parts, 11)
	assert.Len(t, mb.Forwards[2].Parts, 6)

	trailer := mb.Forwards[0].Parts[10]
	assert.Contains(t, trailer.Body, "page 1/3, 25 total")
	assert.Contains(t, trailer.Body, "pic.list cats 2")

	last := mb.Forwards[2].Parts[5]
	assert.Contains(t, last.Body, "page 3/3, 25 total")
	assert.NotContains(t, last.Body, "next")
}

func TestListPageOutOfRange(t *testing.T) {
	mb, p := setup(t)
	seedImages(t, p, "cats", 25)
	p.listCmd(makeMessage("!pic.list cats 4", listRegex))
	assert.Len(t, mb.Forwards, 0)
	assert.Len(t, mb.Messages, 1)
	assert.Contains(t, mb.Messages[0], "out of range")
	assert.Contains(t, mb.Messages[0], "3")
}

func TestListAttributesInvoker(t *testing.T) {
	mb, p := setup(t)
	seedImages(t, p, "cats", 2)
	p.listCmd(makeMessage("!pic.list cats", listRegex))
	assert.Len(t, mb.Forwards, 1)
	for _, part := range mb.Forwards[0].Parts {
		assert.Equal(t, "tester", part.Who.Name)
	}
}

func TestTagsEmpty(t *testing.T) {
	mb, p := setup(t)
	p.tagsCmd(makeMessage("!pic.tags", tagsRegex))
	assert.Len(t, mb.Messages, 1)
	assert.Contains(t, mb.Messages[0], "no images yet")
}

func TestTagsListed(t *testing.T) {
	mb, p := setup(t)
	assert.Nil(t, addTag(p.db, "cats"))
	assert.Nil(t, addTag(p.db, "dogs"))
	p.tagsCmd(makeMessage("!pic.tags", tagsRegex))
	assert.Len(t, mb.Messages, 1)
	assert.Contains(t, mb.Messages[0], "• cats")
	assert.Contains(t, mb.Messages[0], "• dogs")
}

func addRequest(tag string, own, quoted []msg.Attachment) bot.Request {
	req := makeMessage("!pic.add "+tag, addRegex)
	req.Msg.Attachments = own
	if quoted != nil {
		req.Msg.ReplyTo = &msg.Message{
			User:        &user.User{Name: "quoted", ID: "5678"},
			Attachments: quoted,
		}
	}
	return req
}

func TestAddUsage(t *testing.T) {
	for _, body := range []string{"!pic.add", "!pic.add <tag>"} {
		mb, p := setup(t)
		p.addCmd(makeMessage(body, addRegex))
		assert.Len(t, mb.Messages, 1)
		assert.Contains(t, mb.Messages[0], "Usage")
	}
}

func TestAddNoAttachments(t *testing.T) {
	mb, p := setup(t)
	p.addCmd(addRequest("cats", nil, nil))
	assert.Len(t, mb.Messages, 1)
	assert.Contains(t, mb.Messages[0], "couldn't find any images")
}

func TestAddNewTag(t *testing.T) {
	mb, p := setup(t)
	own := []msg.Attachment{
		{URL: "https://cdn.example.com/a.png"},
		{URL: "https://cdn.example.com/b.png"},
	}
	p.addCmd(addRequest("cats", own, nil))

	assert.Len(t, mb.Messages, 1)
	assert.Contains(t, mb.Messages[0], "Added 2 images")

	tags, err := getTags(p.db)
	assert.Nil(t, err)
	assert.Len(t, tags, 1)
	assert.Equal(t, "cats", tags[0].Tag)

	imgs, err := getImages(p.db, "cats")
	assert.Nil(t, err)
	assert.Len(t, imgs, 2)
	assert.True(t, imgs[1].UploadTime.Equal(imgs[0].UploadTime))
	for _, img := range imgs {
		assert.Equal(t, "tester", img.Uploader)
		assert.EqualValues(t, 1234, img.UploaderID)
	}
}

func TestAddQuotedAttachmentsComeFirst(t *testing.T) {
	_, p := setup(t)
	own := []msg.Attachment{{URL: "https://cdn.example.com/own.png"}}
	quoted := []msg.Attachment{{URL: "https://cdn.example.com/quoted.png"}}
	p.addCmd(addRequest("cats", own, quoted))

	imgs, err := getImages(p.db, "cats")
	assert.Nil(t, err)
	assert.Len(t, imgs, 2)
	assert.Contains(t, imgs[0].ImgURL, "quoted")
	assert.Contains(t, imgs[1].ImgURL, "own")
}

func TestAddExistingTagMakesNoDuplicateRow(t *testing.T) {
	_, p := setup(t)
	own := []msg.Attachment{{URL: "https://cdn.example.com/a.png"}}
	p.addCmd(addRequest("cats", own, nil))
	p.addCmd(addRequest("cats", own, nil))
	tags, err := getTags(p.db)
	assert.Nil(t, err)
	assert.Len(t, tags, 1)
}

func TestAddNonNumericUploaderID(t *testing.T) {
	_, p := setup(t)
	req := addRequest("cats", []msg.Attachment{{URL: "https://cdn.example.com/a.png"}}, nil)
	req.Msg.User = &user.User{Name: "tester", ID: "not-a-number"}
	p.addCmd(req)
	imgs, err := getImages(p.db, "cats")
	assert.Nil(t, err)
	assert.Len(t, imgs, 1)
	assert.EqualValues(t, 0, imgs[0].UploaderID)
}

func TestHelp(t *testing.T) {
	mb, p := setup(t)
	p.help(makeMessage("!help picar", regexp.MustCompile(`.*`)))
	assert.Len(t, mb.Messages, 1)
	assert.Contains(t, mb.Messages[0], "pic.list")
	assert.Contains(t, mb.Messages[0], "pic.add")
}

func TestTemplateCommandFromConfig(t *testing.T) {
	mb := bot.NewMockBot()
	mb.Config().SetArray("picar.commands", []string{"0"})
	mb.Config().Set("picar.commands.0.command", "selfie")
	mb.Config().Set("picar.commands.0.url", "/nope/nothing/here")
	mb.Config().Set("picar.commands.0.template", "look at {pict} this")
	p := New(mb)

	var spec *bot.HandlerSpec
	for i := range p.handlers {
		if p.handlers[i].Regex.MatchString("selfie") && p.handlers[i].Kind == bot.Message {
			spec = &p.handlers[i]
			break
		}
	}
	assert.NotNil(t, spec)

	// the source doesn't exist, so the placeholder degrades to nothing
	spec.Handler(makeMessage("!selfie", spec.Regex))
	assert.Len(t, mb.Messages, 1)
	assert.Equal(t, "look at  this", mb.Messages[0])
}
