package indicator

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveLocaleDefaultsToEnglish(t *testing.T) {
	require.Equal(t, localeEnglish, resolveLocale("en_US.UTF-8"))
	require.Equal(t, localeEnglish, resolveLocale("de_DE.UTF-8"))
	require.Equal(t, localeEnglish, resolveLocale(""))
}

func TestIndicatorMessagesEnglish(t *testing.T) {
	msgs := indicatorMessages(localeEnglish)
	require.Equal(t, "Listening... (Press ESC to exit)", msgs.listening)
	require.Equal(t, "Processing speech...", msgs.processing)
	require.Equal(t, "You said: ", msgs.youSaid)
	require.Equal(t, "No speech detected, still listening...", msgs.noSpeech)
	require.Equal(t, "Could not understand audio, please try again...", msgs.unintelligible)
}
