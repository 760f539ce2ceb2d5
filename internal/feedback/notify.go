package feedback

import (
	"context"
	"fmt"

	"github.com/godbus/dbus/v5"
)

const (
	notifyBusName    = "org.freedesktop.Notifications"
	notifyObjectPath = dbus.ObjectPath("/org/freedesktop/Notifications")
	notifyMethod     = notifyBusName + ".Notify"
)

// soundNames maps kinds to freedesktop sound theme names.
var soundNames = map[Kind]string{
	KindSuccess:    "complete",
	KindError:      "dialog-error",
	KindFocus:      "message",
	KindActivation: "button-pressed",
	KindListening:  "dialog-information",
}

// SoundName returns the sound theme name used for kind.
func SoundName(kind Kind) string {
	return soundNames[kind]
}

// NotifyEmitter plays audio pulses by posting transient, body-less
// notifications carrying the sound-name hint to the session notification
// server. Haptic requests are ignored.
type NotifyEmitter struct {
	obj     dbus.BusObject
	conn    *dbus.Conn
	appName string
}

// DialNotifyEmitter connects to the session bus.
func DialNotifyEmitter() (*NotifyEmitter, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("connect session bus: %w", err)
	}
	e := NewNotifyEmitter(conn.Object(notifyBusName, notifyObjectPath))
	e.conn = conn
	return e, nil
}

// NewNotifyEmitter wraps an existing notification server object.
func NewNotifyEmitter(obj dbus.BusObject) *NotifyEmitter {
	return &NotifyEmitter{obj: obj, appName: "inputkit"}
}

func (e *NotifyEmitter) Emit(ctx context.Context, req Request) error {
	if req.Modality != ModalityAudio {
		return nil
	}
	hints := map[string]dbus.Variant{
		"sound-name": dbus.MakeVariant(SoundName(req.Kind)),
		"transient":  dbus.MakeVariant(true),
		"urgency":    dbus.MakeVariant(byte(0)),
	}
	// Notify(app_name, replaces_id, app_icon, summary, body, actions, hints, expire_timeout)
	call := e.obj.CallWithContext(ctx, notifyMethod, 0,
		e.appName, uint32(0), "", req.Kind.String(), "",
		[]string{}, hints, int32(req.Tone.Duration.Milliseconds()))
	if call.Err != nil {
		return fmt.Errorf("notify %s: %w", req.Kind, call.Err)
	}
	return nil
}

// Close closes the bus connection if the emitter opened it.
func (e *NotifyEmitter) Close() error {
	if e.conn == nil {
		return nil
	}
	return e.conn.Close()
}
