package webui

// indexPageTemplate is the whole web UI: a single page that connects to the
// websocket and redraws the clients table on every message.
const indexPageTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>routermonitor - known network clients</title>
<style>
body { font-family: sans-serif; margin: 2em; }
table { border-collapse: collapse; width: 100%; }
th, td { border: 1px solid #ccc; padding: 0.4em 0.8em; text-align: left; }
th { background: #f0f0f0; }
tr:nth-child(even) { background: #fafafa; }
#status { color: #888; margin-bottom: 1em; }
</style>
</head>
<body>
<h1>Known network clients</h1>
<div id="status">connecting...</div>
<table>
<thead>
<tr><th>Hostname</th><th>IP address</th><th>MAC</th><th>MAC vendor</th><th>Lease expiry</th><th>First seen</th><th>Notes</th></tr>
</thead>
<tbody id="clients"></tbody>
</table>
<script>
function fmtTime(unix) {
    if (!unix) { return "static lease"; }
    return new Date(unix * 1000).toLocaleString();
}
function connect() {
    var scheme = location.protocol === "https:" ? "wss://" : "ws://";
    var ws = new WebSocket(scheme + location.host + {{.WebSocketURI}});
    ws.onmessage = function (event) {
        var msg = JSON.parse(event.data);
        var tbody = document.getElementById("clients");
        tbody.innerHTML = "";
        msg.clients.forEach(function (c) {
            var row = tbody.insertRow();
            [c.hostname, c.ip_addr, c.mac_addr, c.mac_vendor,
             fmtTime(c.expiry), new Date(c.first_seen * 1000).toLocaleString(),
             c.notes].forEach(function (text) {
                row.insertCell().textContent = text;
            });
        });
        document.getElementById("status").textContent =
            msg.clients.length + " known clients, updated " + new Date(msg.generated_at * 1000).toLocaleString();
    };
    ws.onclose = function () {
        document.getElementById("status").textContent = "disconnected, retrying...";
        setTimeout(connect, 2000);
    };
}
connect();
</script>
</body>
</html>
`
