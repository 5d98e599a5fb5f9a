package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/sensor-player/internal/status"
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
	"mediaOrNone": func(s string) string {
		if s == "" {
			return "(none)"
		}
		return s
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Sensor Player</title>
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
.sensors td { text-align: center; width: 12%; }
</style>
</head>
<body>
<h1>Sensor Player</h1>

<h2>State</h2>
<table>
<tr><th>Current</th><td id="state">{{if .Loaded}}{{.State}} of {{.NumStates}}{{else}}loading{{end}}</td></tr>
<tr><th>Media</th><td>{{mediaOrNone .Media}} <span class="{{if .MediaActive}}on{{else}}off{{end}}">{{if .MediaActive}}playing{{else}}stopped{{end}}</span></td></tr>
<tr><th>Button</th><td>{{.Button}}</td></tr>
<tr><th>Pending flags</th><td>{{if .Flags.Skip}}skip {{end}}{{if .Flags.Reset}}reset{{end}}{{if not (or .Flags.Skip .Flags.Reset)}}none{{end}}</td></tr>
</table>

<h2>Sensors</h2>
<table class="sensors">
<tr>{{range $i, $o := .Occupied}}<th>{{$i}}</th>{{end}}</tr>
<tr>{{range .Occupied}}<td class="{{if .}}on{{else}}off{{end}}">{{if .}}&#9679;{{else}}&#9675;{{end}}</td>{{end}}</tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{if .Config.Broker}}{{.Config.Broker}}{{else}}disabled{{end}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>Counts</h2>
<table>
<tr><th>Transitions</th><td>{{.Counts.Transitions}}</td></tr>
<tr><th>Skips</th><td>{{.Counts.Skips}}</td></tr>
<tr><th>Resets</th><td>{{.Counts.Resets}}</td></tr>
<tr><th>Media starts</th><td>{{.Counts.MediaStarts}}</td></tr>
<tr><th>Errors</th><td>{{.Counts.Errors}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>States file</th><td>{{.Config.StatesFile}}</td></tr>
<tr><th>Poll</th><td>{{.Config.PollMs}}ms</td></tr>
<tr><th>Button confirm / hold</th><td>{{.Config.ConfirmMs}}ms / {{.Config.HoldMs}}ms</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a> &middot; <a href="/metrics">metrics</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime   time.Duration
		Occupied []bool
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
		Occupied: status.Occupied(snap.Sensors),
	}
	indexTmpl.Execute(w, data)
}
