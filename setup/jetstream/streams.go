package jetstream

import (
	"regexp"

	"github.com/nats-io/nats.go"
)

// Header keys used on published messages.
const (
	UserID = "user_id"
)

// Stream names, before the topic prefix is applied.
var (
	OutputAccountEvent = "OutputAccountEvent"
)

var safeCharacters = regexp.MustCompile("[^A-Za-z0-9$]+")

func Tokenise(str string) string {
	return safeCharacters.ReplaceAllString(str, "_")
}

var streams = []*nats.StreamConfig{
	{
		Name:      OutputAccountEvent,
		Retention: nats.InterestPolicy,
		Storage:   nats.FileStorage,
	},
}
