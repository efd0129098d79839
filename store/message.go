package store

import (
	"io"
	"net/http"
	"time"

	"github.com/bwmarrin/discordgo"
)

var attachmentClient = &http.Client{Timeout: 30 * time.Second}

// DiscordMessage is a cached message together with the attachment bodies
// that were still fetchable when it was seen.
type DiscordMessage struct {
	Message     *discordgo.Message
	Attachments []*Attachment
}

type Attachment struct {
	Filename string
	Size     int
	Data     []byte
}

// NewDiscordMessage wraps a message for caching, downloading attachments up
// to maxSize bytes each. Attachment URLs die with the message, so the data
// has to be taken now.
func NewDiscordMessage(msg *discordgo.Message, maxSize int) *DiscordMessage {
	m := &DiscordMessage{
		Message:     msg,
		Attachments: []*Attachment{},
	}

	for _, a := range msg.Attachments {
		if a.Size > maxSize {
			continue
		}

		data, err := getAttachment(a.URL)
		if err != nil {
			continue
		}

		m.Attachments = append(m.Attachments, &Attachment{
			Filename: a.Filename,
			Size:     a.Size,
			Data:     data,
		})
	}
	return m
}

func getAttachment(url string) ([]byte, error) {
	res, err := attachmentClient.Get(url)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	return io.ReadAll(res.Body)
}
