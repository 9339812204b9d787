package note

import (
	"runtime"
	"strconv"
	"time"
)

// SnapshotVersion is the backup schema version written on every upload.
// Readers tolerate absent or older version strings.
const SnapshotVersion = "1.0.0"

// Snapshot is the single whole-collection document stored remotely. Every
// upload replaces the file body with a freshly marshaled snapshot; there is
// no delta format.
type Snapshot struct {
	Notes    []Note `json:"notes"`
	SyncedAt int64  `json:"syncedAt"`
	DeviceID string `json:"deviceId"`
	Version  string `json:"version"`
}

// NewSnapshot stamps the given notes with the current time and device id.
// Notes are id-sorted so identical collections marshal identically.
func NewSnapshot(notes []Note, deviceID string) Snapshot {
	return Snapshot{
		Notes:    SortByID(append([]Note(nil), notes...)),
		SyncedAt: NowMillis(),
		DeviceID: deviceID,
		Version:  SnapshotVersion,
	}
}

// NewDeviceID derives an opaque per-process device identifier of the form
// <platform>-<platform-version>-<base36 timestamp>.
func NewDeviceID() string {
	return runtime.GOOS + "-" + runtime.GOARCH + "-" + strconv.FormatInt(time.Now().UnixMilli(), 36)
}
