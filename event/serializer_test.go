package event_test

import (
	"strings"
	"testing"

	"estat-client/event"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
)

func TestSerializeProducesSingleJSONLine(t *testing.T) {
	s := event.NewJSONSerializer()

	line, err := s.Serialize(event.NewTrack("purchase", map[string]any{"amount": 42}))
	assert.NoError(t, err)
	assert.False(t, strings.Contains(line, "\n"), "JSONL: 한 이벤트는 한 줄이어야 한다")

	var decoded map[string]any
	assert.NoError(t, json.Unmarshal([]byte(line), &decoded))
	assert.Equal(t, "track", decoded["type"])
	assert.Equal(t, "purchase", decoded["name"])
	assert.NotZero(t, decoded["ts"])
}

func TestSerializeOmitsEmptyFields(t *testing.T) {
	s := event.NewJSONSerializer()

	line, err := s.Serialize(event.NewScreen("home", nil))
	assert.NoError(t, err)
	assert.NotContains(t, line, "user_id")
	assert.NotContains(t, line, "traits")
	assert.NotContains(t, line, "properties")
}

func TestEventKinds(t *testing.T) {
	assert.Equal(t, event.KindTrack, event.NewTrack("x", nil).Kind)
	assert.Equal(t, event.KindScreen, event.NewScreen("x", nil).Kind)

	id := event.NewIdentify("u-1", map[string]any{"tier": "gold"})
	assert.Equal(t, event.KindIdentify, id.Kind)
	assert.Equal(t, "u-1", id.UserID)
}
