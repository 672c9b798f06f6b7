package indicator

import (
	"os"
	"strings"
)

type locale string

const (
	localeEnglish locale = "en"
)

type messages struct {
	listening      string
	processing     string
	youSaid        string
	noSpeech       string
	unintelligible string
	assistant      string
	textOnly       string
	warning        string
}

func indicatorMessagesFromEnv() messages {
	return indicatorMessages(resolveLocale(os.Getenv("LANG")))
}

func resolveLocale(raw string) locale {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if strings.HasPrefix(raw, "en") {
		return localeEnglish
	}
	return localeEnglish
}

func indicatorMessages(tag locale) messages {
	switch tag {
	case localeEnglish:
		fallthrough
	default:
		return messages{
			listening:      "Listening... (Press ESC to exit)",
			processing:     "Processing speech...",
			youSaid:        "You said: ",
			noSpeech:       "No speech detected, still listening...",
			unintelligible: "Could not understand audio, please try again...",
			assistant:      "Assistant: ",
			textOnly:       "Assistant (text only): ",
			warning:        "warning: ",
		}
	}
}
