package monitor

import (
	"crypto/subtle"
	"io"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// maxLogTail bounds how much of the log file /logs returns.
const maxLogTail = 256 * 1024

func tokenOK(c *gin.Context, token string) bool {
	given := c.Query("token")
	return token != "" && subtle.ConstantTimeCompare([]byte(given), []byte(token)) == 1
}

// RegisterMetricsRoute exposes the Prometheus registry on /metrics.
func RegisterMetricsRoute(router *gin.Engine) {
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// RegisterLogsRoute serves the tail of the log file to holders of token.
// An empty token disables the route.
func RegisterLogsRoute(router *gin.Engine, token, logPath string) {
	router.GET("/logs", func(c *gin.Context) {
		if !tokenOK(c, token) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		data, err := readTail(logPath, maxLogTail)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Unable to read log"})
			return
		}
		c.Data(http.StatusOK, "text/plain; charset=utf-8", data)
	})
}

func readTail(path string, max int64) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if info.Size() > max {
		if _, err := f.Seek(info.Size()-max, io.SeekStart); err != nil {
			return nil, err
		}
	}
	return io.ReadAll(f)
}

// RegisterMonitorPage serves a small live view of health and logs. The page
// forwards its own token query parameter to /logs.
func RegisterMonitorPage(router *gin.Engine, token string) {
	router.GET("/monitor", func(c *gin.Context) {
		if !tokenOK(c, token) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(monitorPage))
	})
}

const monitorPage = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8" />
  <title>Route Feedback Monitor</title>
  <style>
    body { background: #0f0f0f; color: #e0e0e0; font-family: system-ui, sans-serif; padding: 20px; }
    pre { background: #111827; border: 1px solid #334155; border-radius: 10px; padding: 12px; white-space: pre-wrap; max-height: 75vh; overflow: auto; }
  </style>
</head>
<body>
  <h1>Route Feedback API</h1>
  <div id="status">Status: checking...</div>
  <pre id="logs">Loading logs...</pre>
  <script>
    const token = new URLSearchParams(location.search).get('token') || '';
    const logs = document.getElementById('logs');
    function refresh() {
      fetch('/api/v1/health').then(r => r.json())
        .then(d => { document.getElementById('status').textContent = 'Status: ' + (d.success ? 'online' : 'degraded'); })
        .catch(() => { document.getElementById('status').textContent = 'Status: offline'; });
      fetch('/logs?token=' + encodeURIComponent(token)).then(r => r.text())
        .then(t => { logs.textContent = t; logs.scrollTop = logs.scrollHeight; });
    }
    refresh();
    setInterval(refresh, 5000);
  </script>
</body>
</html>`
