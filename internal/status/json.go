package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	Streams       []StreamJSON `json:"streams"`
	Blocks        int64        `json:"blocks"`
	SampleNumber  int64        `json:"sample_number"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Config        ConfigJSON   `json:"config"`
}

// StreamJSON is the JSON representation of one detector stream.
type StreamJSON struct {
	Stream   uint16     `json:"stream"`
	Target   string     `json:"target"`
	Channel  int        `json:"channel"`
	Output   int        `json:"output_line"`
	GateLine int        `json:"gate_line"`
	Active   bool       `json:"active"`
	Held     bool       `json:"pulse_held"`
	Counts   CountsJSON `json:"event_counts"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of event counts.
type CountsJSON struct {
	On     int `json:"on"`
	Off    int `json:"off"`
	Clears int `json:"clears"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	SampleRate  int    `json:"sample_rate"`
	BlockSize   int    `json:"block_size"`
	Channels    int    `json:"channels"`
	HeartbeatMs int64  `json:"heartbeat_ms"`
	Broker      string `json:"broker"`
	HTTPPort    string `json:"http_port"`
	Device      string `json:"device"`
}

func buildInner(snap Snapshot) StatusInner {
	streams := make([]StreamJSON, 0, len(snap.Streams))
	for _, st := range snap.Streams {
		streams = append(streams, StreamJSON{
			Stream:   st.Stream,
			Target:   st.Target,
			Channel:  st.Channel,
			Output:   st.Output,
			GateLine: st.GateLine,
			Active:   st.Active,
			Held:     st.Held,
			Counts: CountsJSON{
				On:     st.Counts.On,
				Off:    st.Counts.Off,
				Clears: st.Counts.Clears,
			},
		})
	}

	return StatusInner{
		Streams:       streams,
		Blocks:        snap.Blocks,
		SampleNumber:  snap.SampleNumber,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Config: ConfigJSON{
			SampleRate:  snap.Config.SampleRate,
			BlockSize:   snap.Config.BlockSize,
			Channels:    snap.Config.Channels,
			HeartbeatMs: snap.Config.HeartbeatMs,
			Broker:      snap.Config.Broker,
			HTTPPort:    snap.Config.HTTPPort,
			Device:      snap.Config.Device,
		},
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
