//go:build !windows

package notify

import (
	"testing"

	godbus "github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/mutewatch/internal/watchdog"
)

func TestEncodeActions(t *testing.T) {
	withCancel := watchdog.Notice{Actions: []watchdog.Action{watchdog.ActionAcknowledge, watchdog.ActionCancelMute}}
	assert.Equal(t, []string{"default", "OK", "cancel-mute", "Cancel mute"}, encodeActions(withCancel))

	ackOnly := watchdog.Notice{Actions: []watchdog.Action{watchdog.ActionAcknowledge}}
	assert.Nil(t, encodeActions(ackOnly))
}

func TestDecodeAction(t *testing.T) {
	assert.Equal(t, watchdog.ActionCancelMute, decodeAction("cancel-mute"))
	assert.Equal(t, watchdog.ActionAcknowledge, decodeAction("default"))
	assert.Equal(t, watchdog.ActionAcknowledge, decodeAction("something-else"))
}

func TestParseActionInvoked(t *testing.T) {
	id, key, ok := parseActionInvoked([]interface{}{uint32(7), "cancel-mute"})
	require.True(t, ok)
	assert.Equal(t, uint32(7), id)
	assert.Equal(t, "cancel-mute", key)

	_, _, ok = parseActionInvoked([]interface{}{"7", "cancel-mute"})
	assert.False(t, ok)
	_, _, ok = parseActionInvoked([]interface{}{uint32(7)})
	assert.False(t, ok)
}

func newTestFreedesktop() *freedesktop {
	return &freedesktop{
		pending: make(map[uint32]watchdog.Notice),
		actions: make(chan ActionEvent, 1),
		done:    make(chan struct{}),
		logger:  testLogger(),
	}
}

func TestHandleSignal_ActionInvoked(t *testing.T) {
	f := newTestFreedesktop()
	f.pending[3] = watchdog.Notice{ID: "n3"}

	f.handleSignal(&godbus.Signal{
		Name: dbusInterface + ".ActionInvoked",
		Body: []interface{}{uint32(3), "cancel-mute"},
	})

	select {
	case ev := <-f.actions:
		assert.Equal(t, "n3", ev.Notice.ID)
		assert.Equal(t, watchdog.ActionCancelMute, ev.Action)
	default:
		t.Fatal("expected an action event")
	}
	assert.Empty(t, f.pending)

	// unknown ids are ignored
	f.handleSignal(&godbus.Signal{
		Name: dbusInterface + ".ActionInvoked",
		Body: []interface{}{uint32(99), "cancel-mute"},
	})
	assert.Empty(t, f.actions)
}

func TestHandleSignal_Closed(t *testing.T) {
	f := newTestFreedesktop()
	f.pending[5] = watchdog.Notice{ID: "n5"}

	f.handleSignal(&godbus.Signal{
		Name: dbusInterface + ".NotificationClosed",
		Body: []interface{}{uint32(5), uint32(2)},
	})
	assert.Empty(t, f.pending)
}
