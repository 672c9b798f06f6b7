package session

import (
	"fmt"
	"strings"
)

// DefaultPersona is the preamble wrapped around every prompt.
const DefaultPersona = `You are Buddy, a warm and friendly AI companion who loves chatting with people! Your personality is:
- Super friendly and enthusiastic
- Casual and down-to-earth
- Always positive and supportive
- Uses simple, conversational language
- Asks follow-up questions to show interest
- Shares brief personal opinions (while making clear you're an AI)
- Admits when you don't know something with a friendly "Hmm, I'm not sure about that one!"

Keep responses concise but engaging. Make the conversation feel natural and fun!`

// Intent names the template chosen for an utterance.
type Intent string

const (
	IntentGreeting  Intent = "greeting"
	IntentHelp      Intent = "help"
	IntentGratitude Intent = "gratitude"
	IntentGeneric   Intent = "generic"
)

type intentRule struct {
	intent   Intent
	keywords []string
	template func(string) string
}

// Evaluated first-match against the lowercased utterance.
var intentRules = []intentRule{
	{
		intent:   IntentGreeting,
		keywords: []string{"how are you"},
		template: func(string) string {
			return "The user is asking how you are. Respond warmly as Buddy and ask them back."
		},
	},
	{
		intent:   IntentHelp,
		keywords: []string{"help", "can you", "how to"},
		template: func(text string) string {
			return fmt.Sprintf("The user needs assistance. As Buddy, provide a helpful and detailed response to: %s", text)
		},
	},
	{
		intent:   IntentGratitude,
		keywords: []string{"thanks", "thank you"},
		template: func(string) string {
			return "The user is thanking you. Respond graciously and show enthusiasm to help more."
		},
	},
}

func genericTemplate(text string) string {
	return fmt.Sprintf("Engage warmly with the user as Buddy and respond to: %s", text)
}

// ClassifyIntent picks the contextual template for an utterance.
func ClassifyIntent(text string) (Intent, string) {
	lowered := strings.ToLower(text)
	for _, rule := range intentRules {
		for _, keyword := range rule.keywords {
			if strings.Contains(lowered, keyword) {
				return rule.intent, rule.template(text)
			}
		}
	}
	return IntentGeneric, genericTemplate(text)
}

// BuildPrompt wraps the classified template with the persona preamble.
func BuildPrompt(persona string, text string) (Intent, string) {
	if strings.TrimSpace(persona) == "" {
		persona = DefaultPersona
	}
	intent, shaped := ClassifyIntent(text)
	return intent, fmt.Sprintf("%s\n\nHuman: %s\n\nBuddy:", persona, shaped)
}

// DefaultExitPhrases end the session when spoken on their own.
var DefaultExitPhrases = []string{"exit", "quit", "stop", "goodbye"}

// IsExitPhrase reports whether text, ignoring case and surrounding punctuation, is an exit phrase.
func IsExitPhrase(text string, phrases []string) bool {
	normalized := normalizeUtterance(text)
	if normalized == "" {
		return false
	}
	for _, phrase := range phrases {
		if normalized == normalizeUtterance(phrase) {
			return true
		}
	}
	return false
}

func normalizeUtterance(text string) string {
	text = strings.ToLower(strings.TrimSpace(text))
	return strings.TrimSpace(strings.Trim(text, ".,!?;: "))
}
