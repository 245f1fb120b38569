// thermal/persist.go
// Copyright(c) 2024-2026 soarnav contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package thermal

import (
	"time"

	"github.com/avsoar/soarnav/util"
)

// The autopilot millisecond clock restarts every boot, so snapshots
// store each hotspot's age rather than its creation time and rebase
// against the current clock on load.

type snapshotEntry struct {
	Hotspot Hotspot `msgpack:"hotspot"`
	AgeMs   int64   `msgpack:"age"`
}

type snapshot struct {
	Entries []snapshotEntry `msgpack:"entries"`
}

// Save writes the live hotspot set to the named cache file.
func (m *Memory) Save(nowMs int64, name string) error {
	m.purge(nowMs)
	snap := snapshot{
		Entries: util.MapSlice(m.hotspots, func(h Hotspot) snapshotEntry {
			return snapshotEntry{Hotspot: h, AgeMs: nowMs - h.CreatedMs}
		}),
	}
	return util.CacheStoreObject(name, snap)
}

// Load restores hotspots from the named cache file, accounting for the
// wall-clock time the snapshot spent on disk so that stale entries
// expire immediately.
func (m *Memory) Load(nowMs int64, name string) (int, error) {
	var snap snapshot
	mtime, err := util.CacheRetrieveObject(name, &snap)
	if err != nil {
		return 0, err
	}
	elapsedMs := max(int64(0), time.Since(mtime).Milliseconds())

	n := 0
	for _, e := range snap.Entries {
		age := e.AgeMs + elapsedMs
		if age >= m.lifetimeMs {
			continue
		}
		h := e.Hotspot
		h.CreatedMs = nowMs - age
		m.insert(h)
		n++
	}
	if n > 0 {
		m.lg.Infof("restored %d hotspots from %s", n, name)
	}
	return n, nil
}
