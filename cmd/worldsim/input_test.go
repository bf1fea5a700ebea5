package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/worldsim/worldsim/internal/core/event"
	"github.com/worldsim/worldsim/internal/geom"
	"github.com/worldsim/worldsim/internal/system"
)

func TestParseInputLine(t *testing.T) {
	cases := map[string]any{
		"key W down":        event.RawKey{Key: "w", Pressed: true},
		"key a up":          event.RawKey{Key: "a"},
		"mouse 1 press 3 4": event.RawMouseButton{Button: 1, Pressed: true, At: geom.V(3, 4)},
		"scroll 0 -1.5":     event.RawScroll{DY: -1.5},
	}
	for line, want := range cases {
		got, err := parseInputLine(line)
		require.NoError(t, err, line)
		require.Equal(t, want, got, line)
	}

	for _, bad := range []string{"key w", "key w sideways", "mouse x down 1 1", "scroll 1", "jump"} {
		_, err := parseInputLine(bad)
		require.Error(t, err, bad)
	}
}

func TestFeedInputSkipsBadLines(t *testing.T) {
	q := system.NewInputQueue(8)
	feedInput(strings.NewReader("key w down\n\n# comment\nwhat\nscroll 1 1\n"), q, zap.NewNop())
	require.Zero(t, q.Dropped())
	require.Equal(t, 2, q.Len())
}
