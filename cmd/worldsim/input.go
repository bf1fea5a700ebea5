package main

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/worldsim/worldsim/internal/core/event"
	"github.com/worldsim/worldsim/internal/geom"
	"github.com/worldsim/worldsim/internal/system"
)

// feedInput reads one input event per line until r is exhausted.
func feedInput(r io.Reader, q *system.InputQueue, log *zap.Logger) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		ev, err := parseInputLine(line)
		if err != nil {
			log.Warn("bad input line", zap.String("line", line), zap.Error(err))
			continue
		}
		if !q.Push(ev) {
			log.Warn("input queue full, event dropped", zap.String("line", line))
		}
	}
	if err := sc.Err(); err != nil {
		log.Error("read input", zap.Error(err))
	}
}

// parseInputLine turns "key <name> up|down", "mouse <button> up|down <x> <y>"
// or "scroll <dx> <dy>" into a raw input event.
func parseInputLine(line string) (any, error) {
	f := strings.Fields(line)
	if len(f) == 0 {
		return nil, fmt.Errorf("empty input line")
	}
	switch f[0] {
	case "key":
		if len(f) != 3 {
			return nil, fmt.Errorf("want: key <name> up|down")
		}
		pressed, err := parseState(f[2])
		if err != nil {
			return nil, err
		}
		return event.RawKey{Key: strings.ToLower(f[1]), Pressed: pressed}, nil
	case "mouse":
		if len(f) != 5 {
			return nil, fmt.Errorf("want: mouse <button> up|down <x> <y>")
		}
		button, err := strconv.Atoi(f[1])
		if err != nil {
			return nil, fmt.Errorf("button: %w", err)
		}
		pressed, err := parseState(f[2])
		if err != nil {
			return nil, err
		}
		at, err := parsePair(f[3], f[4])
		if err != nil {
			return nil, err
		}
		return event.RawMouseButton{Button: button, Pressed: pressed, At: at}, nil
	case "scroll":
		if len(f) != 3 {
			return nil, fmt.Errorf("want: scroll <dx> <dy>")
		}
		d, err := parsePair(f[1], f[2])
		if err != nil {
			return nil, err
		}
		return event.RawScroll{DX: d.X, DY: d.Y}, nil
	}
	return nil, fmt.Errorf("unknown input kind %q", f[0])
}

func parseState(s string) (bool, error) {
	switch s {
	case "down", "press":
		return true, nil
	case "up", "release":
		return false, nil
	}
	return false, fmt.Errorf("state %q is neither up nor down", s)
}

func parsePair(a, b string) (geom.Vec2, error) {
	x, err := strconv.ParseFloat(a, 64)
	if err != nil {
		return geom.Vec2{}, err
	}
	y, err := strconv.ParseFloat(b, 64)
	if err != nil {
		return geom.Vec2{}, err
	}
	return geom.V(x, y), nil
}
