package web

import (
	"fmt"
	"html/template"
	"io"
	"log"
	"sort"
	"time"

	"github.com/sweeney/rover/internal/fsm"
	"github.com/sweeney/rover/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"duration": func(d time.Duration) string {
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
	"state": status.StateOrUnknown,
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta http-equiv="refresh" content="2">
<title>Rover</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.state { font-weight: bold; }
.unknown { color: orange; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1>Rover ({{.Mode}})</h1>

<h2>State</h2>
<table>
<tr><th>Current</th><td class="{{if .State}}state{{else}}unknown{{end}}">{{state .State}}</td></tr>
<tr><th>For</th><td>{{duration .InState}}</td></tr>
{{if .Transitions}}<tr><th>Last transition</th><td>{{.Last.From}} &rarr; {{.Last.To}} ({{.Last.Reason}})</td></tr>{{end}}
<tr><th>Transitions</th><td>{{.Transitions}}</td></tr>
</table>

{{if .History}}<h2>Recent Transitions</h2>
<table>
{{range .History}}<tr><th>{{.Time.UTC.Format "15:04:05.000"}}</th><td>{{.From}} &rarr; {{.To}} ({{.Reason}})</td></tr>
{{end}}</table>
{{end}}
<h2>State Entries</h2>
<table>
{{range .Entries}}<tr><th>{{.State}}</th><td>{{.Count}}</td></tr>
{{end}}</table>

<h2>Sensors</h2>
<table>
<tr><th>Rotations L</th><td>{{.RotationsLeft}}</td></tr>
<tr><th>Rotations R</th><td>{{.RotationsRight}}</td></tr>
</table>

<h2>Detection</h2>
<table>
<tr><th>Requests</th><td>{{.Detect.Requests}}</td></tr>
<tr><th>Replies</th><td>{{.Detect.Replies}}</td></tr>
<tr><th>Timeouts</th><td>{{.Detect.Timeouts}}</td></tr>
<tr><th>Bad lines</th><td>{{.Detect.BadLines}}</td></tr>
<tr><th>Last reply</th><td>{{.Detect.LastReply}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{duration .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Poll</th><td>{{.Config.PollMs}}ms</td></tr>
<tr><th>Debounce</th><td>{{.Config.DebounceMs}}ms</td></tr>
<tr><th>Wander / Detect</th><td>{{.Config.Timing.WanderMs}}ms / {{.Config.Timing.DetectMs}}ms</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a> | <a href="/transitions.json">transitions</a></p>
</body>
</html>
`

type entry struct {
	State fsm.State
	Count int
}

func renderHTML(w io.Writer, snap status.Snapshot) {
	// The template needs plain fields, not methods with arguments.
	entries := make([]entry, 0, len(snap.Entries))
	for s, n := range snap.Entries {
		entries = append(entries, entry{s, n})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].State < entries[j].State })

	history := make([]status.Record, 0, len(snap.Recent))
	for i := len(snap.Recent) - 1; i >= 0; i-- {
		history = append(history, snap.Recent[i])
	}

	data := struct {
		status.Snapshot
		Uptime  time.Duration
		InState time.Duration
		Entries []entry
		History []status.Record
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
		InState:  snap.InState(),
		Entries:  entries,
		History:  history,
	}
	if err := indexTmpl.Execute(w, data); err != nil {
		log.Printf("web: render: %v", err)
	}
}
