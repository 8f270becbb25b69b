package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/shot-monitor/internal/mqtt"
	"github.com/sweeney/shot-monitor/internal/status"
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
	"seconds": func(d time.Duration) string {
		return fmt.Sprintf("%.1fs", d.Seconds())
	},
	"temp": func(v *int) string {
		if v == nil {
			return "-"
		}
		return fmt.Sprintf("%d°C", *v)
	},
	"onoff": func(v *bool) string {
		switch {
		case v == nil:
			return "-"
		case *v:
			return "on"
		default:
			return "off"
		}
	},
	"clock": func(t time.Time) string {
		return t.UTC().Format("15:04:05")
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Shot Monitor</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.on { color: green; font-weight: bold; }
.off { color: #888; }
.unknown { color: orange; }
.connected { color: green; }
.disconnected { color: red; }
.live-dot { display: inline-block; width: 8px; height: 8px; border-radius: 50%; margin-left: 6px; vertical-align: middle; }
.live-dot.ok { background: green; }
.live-dot.err { background: red; }
.live-dot.pending { background: orange; }
</style>
</head>
<body>
<h1>Shot Monitor{{if .Config.WSBroker}}<span id="live-dot" class="live-dot pending" title="connecting"></span>{{end}}</h1>

<h2>Shot</h2>
<table>
<tr><th>Pump</th><td id="pump-state" class="{{if eq .PumpState "RUNNING"}}on{{else if eq .PumpState "IDLE"}}off{{else}}unknown{{end}}">{{.PumpState}}</td></tr>
<tr><th>{{if eq .PumpState "RUNNING"}}Elapsed{{else}}Last shot{{end}}</th><td id="shot-time">{{seconds .Monitor.Elapsed}}</td></tr>
{{if not .Monitor.Last.End.IsZero}}<tr><th>Last ended</th><td>{{clock .Monitor.Last.End}}</td></tr>{{end}}
<tr><th>Shots</th><td>{{.Monitor.Counts.Closed}}</td></tr>
<tr><th>Display</th><td>{{.DisplayState}}</td></tr>
</table>

<h2>Machine</h2>
<table>
{{with .Monitor.Reading}}<tr><th>Steam</th><td id="steam">{{temp .CurrentSteamTemp}} / {{temp .TargetSteamTemp}}</td></tr>
<tr><th>HX</th><td id="hx">{{temp .HXTemp}}</td></tr>
<tr><th>Heating</th><td id="heating">{{onoff .HeatingOn}}</td></tr>
{{else}}<tr><th>Telemetry</th><td class="unknown">no reading</td></tr>{{end}}
<tr><th>Feed</th><td class="{{if .Telemetry.Stale}}disconnected{{else}}connected{{end}}">{{if not .Config.SerialPort}}disabled{{else if .Telemetry.Stale}}stale{{else}}ok{{end}}</td></tr>
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
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Poll</th><td>{{.Config.PollMs}}ms</td></tr>
<tr><th>Debounce</th><td>{{.Config.DebounceMs}}ms</td></tr>
<tr><th>Sleep after</th><td>{{.Config.CooldownMs}}ms (shots over {{.Config.MinShotMs}}ms)</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a>{{if .Config.History}} · <a href="/shots.json">Shots</a>{{end}}</p>
{{if .Config.WSBroker}}
<script src="/mqtt.min.js"></script>
<script>
(function() {
  var broker = "{{.Config.WSBroker}}";
  var eventsTopic = "{{.EventsTopic}}";
  var readingsTopic = "{{.ReadingsTopic}}";
  var dot = document.getElementById("live-dot");
  var pumpEl = document.getElementById("pump-state");
  var timeEl = document.getElementById("shot-time");
  var timer = null;

  function setPump(state) {
    pumpEl.textContent = state;
    pumpEl.className = state === "RUNNING" ? "on" : "off";
  }

  function setDot(cls, title) {
    dot.className = "live-dot " + cls;
    dot.title = title;
  }

  function onShot(shot) {
    if (timer) { clearInterval(timer); timer = null; }
    if (shot.event === "SHOT_START") {
      var started = Date.parse(shot.started_at);
      setPump("RUNNING");
      timer = setInterval(function() {
        timeEl.textContent = ((Date.now() - started) / 1000).toFixed(1) + "s";
      }, 100);
    } else if (shot.event === "SHOT_END") {
      setPump("IDLE");
      timeEl.textContent = (shot.duration_ms / 1000).toFixed(1) + "s";
    }
  }

  function onReading(r) {
    var hx = document.getElementById("hx");
    if (hx && r.hx !== undefined) { hx.textContent = r.hx + "°C"; }
  }

  var client = mqtt.connect(broker, { reconnectPeriod: 5000 });

  client.on("connect", function() {
    setDot("ok", "live");
    client.subscribe([eventsTopic, readingsTopic]);
  });

  client.on("reconnect", function() {
    setDot("pending", "reconnecting");
  });

  client.on("offline", function() {
    setDot("err", "offline");
  });

  client.on("error", function() {
    setDot("err", "error");
  });

  client.on("message", function(t, payload) {
    try {
      var msg = JSON.parse(payload.toString());
      if (msg.shot) { onShot(msg.shot); }
      if (msg.reading) { onReading(msg.reading); }
    } catch (e) {}
  });
})();
</script>
{{end}}
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) error {
	// Snapshot has Uptime() and state methods but the template needs plain fields.
	data := struct {
		status.Snapshot
		Uptime        time.Duration
		PumpState     string
		DisplayState  string
		EventsTopic   string
		ReadingsTopic string
	}{
		Snapshot:      snap,
		Uptime:        snap.Uptime(),
		PumpState:     snap.PumpState(),
		DisplayState:  snap.DisplayState(),
		EventsTopic:   mqtt.TopicEvents,
		ReadingsTopic: mqtt.TopicReadings,
	}
	return indexTmpl.Execute(w, data)
}
