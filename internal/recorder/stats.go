package recorder

import (
	"github.com/wasd845/AVGraphics/internal/events"
	"github.com/wasd845/AVGraphics/internal/session"
)

// StatsEvent converts a session snapshot to its bus event.
func StatsEvent(st session.RecordingStats) events.RecordingStatsEvent {
	return events.RecordingStatsEvent{
		SessionID:    st.ID,
		State:        st.State.String(),
		Path:         st.Path,
		Seconds:      st.Duration.Seconds(),
		VideoWritten: st.Video.Written,
		AudioWritten: st.Audio.Written,
		VideoDropped: st.Video.DroppedFull,
		AudioDropped: st.Audio.DroppedFull,
		Bytes:        st.Video.Bytes + st.Audio.Bytes,
		StopPending:  st.StopPending,
	}
}

// CurrentStats reports the active recording for the SSE exporter.
func (m *Manager) CurrentStats() (events.RecordingStatsEvent, bool) {
	sess, ok := m.Current()
	if !ok {
		return events.RecordingStatsEvent{}, false
	}
	return StatsEvent(sess.Stats()), true
}
