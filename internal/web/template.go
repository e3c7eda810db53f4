package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/phase-trigger/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		days := int(d.Hours()) / 24
		h := int(d.Hours()) % 24
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		if days > 0 {
			return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
		}
		if h > 0 {
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		}
		if m > 0 {
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
	"line": func(n int) string {
		if n < 0 {
			return "none"
		}
		return fmt.Sprintf("%d", n)
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Phase Trigger</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.on { color: green; font-weight: bold; }
.off { color: #888; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1>Phase Trigger</h1>

{{range .Streams}}
<h2>Stream {{.Stream}}</h2>
<table>
<tr><th>Target</th><td>{{.Target}}</td></tr>
<tr><th>Channel</th><td>{{line .Channel}}</td></tr>
<tr><th>Output line</th><td>{{line .Output}}</td></tr>
<tr><th>Gate line</th><td>{{line .GateLine}}</td></tr>
<tr><th>Active</th><td class="{{if .Active}}on{{else}}off{{end}}">{{if .Active}}yes{{else}}gated{{end}}</td></tr>
<tr><th>Pulse</th><td class="{{if .Held}}on{{else}}off{{end}}">{{if .Held}}high{{else}}low{{end}}</td></tr>
<tr><th>Triggers</th><td>{{.Counts.On}} on / {{.Counts.Off}} off / {{.Counts.Clears}} clears</td></tr>
</table>
{{end}}

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Source</th><td>{{.Config.Device}}</td></tr>
<tr><th>Sample rate</th><td>{{.Config.SampleRate}} Hz</td></tr>
<tr><th>Block size</th><td>{{.Config.BlockSize}}</td></tr>
<tr><th>Blocks</th><td>{{.Blocks}}</td></tr>
<tr><th>Sample</th><td>{{.SampleNumber}}</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPPort}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime time.Duration
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
	}
	indexTmpl.Execute(w, data)
}
