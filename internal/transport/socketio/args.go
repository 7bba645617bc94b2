package socketio

import (
	"github.com/cadenzalabs/cadenza-playlist-backend/internal/domain/playlist"
)

// Socket.io event payloads arrive as decoded JSON: numbers are float64,
// objects are map[string]any. These helpers normalize the shapes clients
// send, either a bare value or a {value: ...} / {id: ...} wrapper.

func argFloat(args []any) (float64, bool) {
	if len(args) == 0 {
		return 0, false
	}
	switch v := args[0].(type) {
	case float64:
		return v, true
	case map[string]any:
		if f, ok := v["value"].(float64); ok {
			return f, true
		}
	}
	return 0, false
}

func argString(args []any) (string, bool) {
	if len(args) == 0 {
		return "", false
	}
	switch v := args[0].(type) {
	case string:
		return v, true
	case map[string]any:
		if s, ok := v["value"].(string); ok {
			return s, true
		}
	}
	return "", false
}

func argID(args []any) (int64, bool) {
	if len(args) == 0 {
		return 0, false
	}
	switch v := args[0].(type) {
	case float64:
		return int64(v), true
	case map[string]any:
		if f, ok := v["id"].(float64); ok {
			return int64(f), true
		}
		if f, ok := v["value"].(float64); ok {
			return int64(f), true
		}
	}
	return 0, false
}

func argDraft(args []any) (playlist.Draft, bool) {
	if len(args) == 0 {
		return playlist.Draft{}, false
	}
	m, ok := args[0].(map[string]any)
	if !ok {
		return playlist.Draft{}, false
	}

	str := func(key string) string {
		s, _ := m[key].(string)
		return s
	}

	draft := playlist.Draft{
		Title:    str("title"),
		Artist:   str("artist"),
		Duration: str("duration"),
		Cover:    str("cover"),
		URL:      str("url"),
	}
	if draft.Title == "" || draft.Duration == "" {
		return playlist.Draft{}, false
	}
	return draft, true
}
