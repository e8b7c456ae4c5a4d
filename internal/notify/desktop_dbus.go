//go:build !windows

package notify

import (
	"fmt"
	"log/slog"
	"sync"

	godbus "github.com/godbus/dbus/v5"

	"github.com/jmylchreest/mutewatch/internal/watchdog"
)

const (
	dbusName      = "org.freedesktop.Notifications"
	dbusPath      = godbus.ObjectPath("/org/freedesktop/Notifications")
	dbusInterface = "org.freedesktop.Notifications"

	// actionDefault is the freedesktop key for clicking the notification body.
	actionDefault = "default"

	expireTimeoutMs = 10000
)

// freedesktop is a client of org.freedesktop.Notifications.
type freedesktop struct {
	conn   *godbus.Conn
	obj    godbus.BusObject
	logger *slog.Logger

	mu      sync.Mutex
	pending map[uint32]watchdog.Notice // server id -> notice

	signals chan *godbus.Signal
	actions chan ActionEvent
	done    chan struct{}
	once    sync.Once
}

// NewDesktop connects to the session bus notification server.
func NewDesktop(logger *slog.Logger) (Desktop, error) {
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := godbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to session bus: %w", err)
	}

	if err := conn.AddMatchSignal(
		godbus.WithMatchObjectPath(dbusPath),
		godbus.WithMatchInterface(dbusInterface),
	); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to add match rule: %w", err)
	}

	f := &freedesktop{
		conn:    conn,
		obj:     conn.Object(dbusName, dbusPath),
		logger:  logger,
		pending: make(map[uint32]watchdog.Notice),
		signals: make(chan *godbus.Signal, 16),
		actions: make(chan ActionEvent, 4),
		done:    make(chan struct{}),
	}
	conn.Signal(f.signals)
	go f.listen()

	return f, nil
}

// Show sends Notify(app_name, replaces_id, app_icon, summary, body,
// actions, hints, expire_timeout).
func (f *freedesktop) Show(n watchdog.Notice) error {
	actions := encodeActions(n)
	hints := map[string]godbus.Variant{
		"urgency":       godbus.MakeVariant(byte(1)),
		"category":      godbus.MakeVariant("device"),
		"desktop-entry": godbus.MakeVariant(AppName),
	}

	var id uint32
	err := f.obj.Call(dbusInterface+".Notify", 0,
		AppName,
		uint32(0),
		"audio-volume-muted",
		n.Summary(),
		n.Body(),
		actions,
		hints,
		int32(expireTimeoutMs),
	).Store(&id)
	if err != nil {
		return fmt.Errorf("notify: %w", err)
	}

	if len(actions) > 0 {
		f.mu.Lock()
		f.pending[id] = n
		f.mu.Unlock()
	}
	return nil
}

func (f *freedesktop) Actions() <-chan ActionEvent {
	return f.actions
}

func (f *freedesktop) listen() {
	for {
		select {
		case <-f.done:
			return
		case sig, ok := <-f.signals:
			if !ok {
				return
			}
			f.handleSignal(sig)
		}
	}
}

func (f *freedesktop) handleSignal(sig *godbus.Signal) {
	switch sig.Name {
	case dbusInterface + ".ActionInvoked":
		id, key, ok := parseActionInvoked(sig.Body)
		if !ok {
			return
		}
		f.mu.Lock()
		n, known := f.pending[id]
		delete(f.pending, id)
		f.mu.Unlock()
		if !known {
			return
		}

		ev := ActionEvent{Notice: n, Action: decodeAction(key)}
		f.logger.Debug("notification action invoked", "notice", n.ID, "action", ev.Action)
		select {
		case f.actions <- ev:
		default:
			f.logger.Warn("notification action dropped", "notice", n.ID, "action", ev.Action)
		}

	case dbusInterface + ".NotificationClosed":
		if len(sig.Body) < 1 {
			return
		}
		if id, ok := sig.Body[0].(uint32); ok {
			f.mu.Lock()
			delete(f.pending, id)
			f.mu.Unlock()
		}
	}
}

func (f *freedesktop) Close() error {
	var err error
	f.once.Do(func() {
		close(f.done)
		f.conn.RemoveSignal(f.signals)
		err = f.conn.Close()
	})
	return err
}

// encodeActions builds the alternating key/label list for a notice.
// Notices without a cancel option get no buttons.
func encodeActions(n watchdog.Notice) []string {
	if !n.HasAction(watchdog.ActionCancelMute) {
		return nil
	}
	return []string{
		actionDefault, "OK",
		string(watchdog.ActionCancelMute), "Cancel mute",
	}
}

func decodeAction(key string) watchdog.Action {
	if key == string(watchdog.ActionCancelMute) {
		return watchdog.ActionCancelMute
	}
	return watchdog.ActionAcknowledge
}

// parseActionInvoked decodes the (id uint32, action_key string) body.
func parseActionInvoked(body []interface{}) (uint32, string, bool) {
	if len(body) < 2 {
		return 0, "", false
	}
	id, ok := body[0].(uint32)
	if !ok {
		return 0, "", false
	}
	key, ok := body[1].(string)
	if !ok {
		return 0, "", false
	}
	return id, key, true
}
