package lease

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/godbus/dbus/v5"
	"github.com/google/uuid"
)

const (
	logindService   = "org.freedesktop.login1"
	logindPath      = "/org/freedesktop/login1"
	logindInterface = "org.freedesktop.login1.Manager"
)

// LogindGrantor acquires sleep/idle inhibitor locks from systemd-logind
// over the system D-Bus. logind enforces exclusivity of block-mode locks
// per (who, why) pair, which is what makes the grant a scarce resource.
type LogindGrantor struct {
	who string
	why string
}

// NewLogindGrantor returns a grantor identifying itself to logind as who,
// with why as the human-readable reason shown in `systemd-inhibit --list`.
func NewLogindGrantor(who, why string) *LogindGrantor {
	return &LogindGrantor{who: who, why: why}
}

// LogindAvailable reports whether a system bus can be reached at all, so
// headless deployments can fall back to running without inhibition.
func LogindAvailable() bool {
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// Acquire takes a block-mode sleep:idle inhibitor. The returned handle owns
// the inhibitor fd; closing it releases the lock. The handle's Done channel
// closes if the bus connection drops, which is how logind revocation
// becomes observable to us.
func (g *LogindGrantor) Acquire(ctx context.Context) (Handle, error) {
	conn, err := dbus.ConnectSystemBus(dbus.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("connect system bus: %w", err)
	}

	var fd dbus.UnixFD
	obj := conn.Object(logindService, logindPath)
	call := obj.CallWithContext(ctx, logindInterface+".Inhibit", 0, "sleep:idle", g.who, g.why, "block")
	if call.Err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("logind inhibit: %w", call.Err)
	}
	if err := call.Store(&fd); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("read inhibitor fd: %w", err)
	}

	return &logindHandle{
		id:   uuid.NewString(),
		file: os.NewFile(uintptr(fd), "logind-inhibitor"),
		conn: conn,
		done: conn.Context().Done(),
	}, nil
}

type logindHandle struct {
	id   string
	file *os.File
	conn *dbus.Conn
	done <-chan struct{}
	once sync.Once
}

func (h *logindHandle) ID() string { return h.id }

func (h *logindHandle) Done() <-chan struct{} { return h.done }

func (h *logindHandle) Release() {
	h.once.Do(func() {
		if h.file != nil {
			_ = h.file.Close()
		}
		if h.conn != nil {
			_ = h.conn.Close()
		}
	})
}
