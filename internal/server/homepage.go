package server

import (
	"fmt"
	"net/http"
)

const homepage = `<!DOCTYPE html>
<html>
<head>
    <meta charset="utf-8">
    <title>routepoi</title>
    <style>
        body {
            font-family: 'Courier New', Consolas, monospace;
            background: #000;
            color: #0f0;
            padding: 20px;
            line-height: 1.4;
        }
        a { color: #0ff; text-decoration: none; }
        pre { margin: 0; }
        .header { color: #ff0; }
    </style>
</head>
<body>
<pre>
<span class="header">routepoi</span>

Correlates points of interest with a route: distance along the route,
offset from it and the nearest settlement.

<span class="header">API Endpoints:</span>

  <a href="/api/health">GET  /api/health</a>         - Liveness check
  POST /api/v1/correlate   - Route + GeoJSON candidates -> ordered records
  POST /api/v1/buffer      - Route -> corridor polygon
  POST /api/v1/segments    - Route -> overlapping chunks
  POST /api/v1/locate      - Route + points -> distance along route

<span class="header">Example Usage:</span>
  curl -X POST -d '{"route":{"polyline":"_p~iF~ps|U_ulLnnqC"}}' /api/v1/segments
</pre>
</body>
</html>`

// homepageHandler serves a simple HTML homepage at the server root
func (h *Handler) homepageHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := fmt.Fprint(w, homepage); err != nil {
		h.log.Errorw("failed to write homepage", "error", err)
	}
}
