package logger

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func TestSetLevel(t *testing.T) {
	prev := zerolog.GlobalLevel()
	defer zerolog.SetGlobalLevel(prev)

	var buf bytes.Buffer
	configure(&buf, zerolog.InfoLevel)

	SetLevel("warn")
	if Log.GetLevel() != zerolog.WarnLevel {
		t.Errorf("expected warn, got %s", Log.GetLevel())
	}

	log.Info().Msg("hidden")
	log.Warn().Msg("shown")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Errorf("unexpected output %q", buf.String())
	}

	SetLevel("nonsense")
	if Log.GetLevel() != zerolog.InfoLevel {
		t.Errorf("expected fallback to info, got %s", Log.GetLevel())
	}
}
