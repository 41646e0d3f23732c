package api

import (
	"time"

	"github.com/ignite/mailtrack/internal/registry"
)

const timeLayout = "2006-01-02 15:04:05"

// dashboardBindings flattens the report into liquid-friendly maps.
func dashboardBindings(report *registry.Report) map[string]interface{} {
	recipients := make([]map[string]interface{}, 0, len(report.Recipients))
	for _, r := range report.Recipients {
		recipients = append(recipients, map[string]interface{}{
			"id":         r.ID,
			"name":       r.Name,
			"email":      r.Email,
			"created_at": r.CreatedAt.Format(timeLayout),
		})
	}

	opens := make([]map[string]interface{}, 0, len(report.Opens))
	for _, o := range report.Opens {
		opens = append(opens, map[string]interface{}{
			"name":       o.Name,
			"email":      o.Email,
			"ip":         o.IP,
			"user_agent": o.UserAgent,
			"created_at": o.CreatedAt.Format(timeLayout),
		})
	}

	clicks := make([]map[string]interface{}, 0, len(report.Clicks))
	for _, c := range report.Clicks {
		clicks = append(clicks, map[string]interface{}{
			"name":       c.Name,
			"email":      c.Email,
			"target_url": c.TargetURL,
			"ip":         c.IP,
			"user_agent": c.UserAgent,
			"created_at": c.CreatedAt.Format(timeLayout),
		})
	}

	return map[string]interface{}{
		"recipients":   recipients,
		"opens":        opens,
		"clicks":       clicks,
		"generated_at": time.Now().Format(timeLayout),
	}
}

const dashboardTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <title>Campaign Dashboard</title>
  <style>
    body { font-family: 'Helvetica Neue', Arial, sans-serif; background: #f5f6f8; margin: 0; padding: 30px; }
    h1 { margin-top: 0; }
    h2 { margin-top: 40px; }
    table { border-collapse: collapse; width: 100%; background: #ffffff; box-shadow: 0 2px 8px rgba(0,0,0,0.06); }
    th, td { text-align: left; padding: 10px 14px; border-bottom: 1px solid #eceff3; font-size: 14px; }
    th { background: #000000; color: #ffffff; font-weight: 600; }
    .empty { color: #999999; padding: 14px; }
    button { padding: 12px 25px; background: #4b6cb7; color: #fff; border: none; border-radius: 5px; font-weight: 500; cursor: pointer; }
    #send-status { margin-left: 12px; color: #555; }
  </style>
</head>
<body>
  <h1>Campaign Dashboard</h1>
  <p>
    <button onclick="sendAll()">Send All Emails</button>
    <span id="send-status"></span>
  </p>

  <h2>Recipients</h2>
  {% if recipients.size == 0 %}
  <p class="empty">No recipients yet.</p>
  {% else %}
  <table>
    <tr><th>ID</th><th>Name</th><th>Email</th><th>Registered</th></tr>
    {% for r in recipients %}
    <tr><td>{{ r.id }}</td><td>{{ r.name }}</td><td>{{ r.email }}</td><td>{{ r.created_at }}</td></tr>
    {% endfor %}
  </table>
  {% endif %}

  <h2>Opens</h2>
  {% if opens.size == 0 %}
  <p class="empty">No opens recorded.</p>
  {% else %}
  <table>
    <tr><th>Name</th><th>Email</th><th>IP</th><th>User Agent</th><th>When</th></tr>
    {% for o in opens %}
    <tr><td>{{ o.name }}</td><td>{{ o.email }}</td><td>{{ o.ip }}</td><td>{{ o.user_agent }}</td><td>{{ o.created_at }}</td></tr>
    {% endfor %}
  </table>
  {% endif %}

  <h2>Clicks</h2>
  {% if clicks.size == 0 %}
  <p class="empty">No clicks recorded.</p>
  {% else %}
  <table>
    <tr><th>Name</th><th>Email</th><th>Target</th><th>IP</th><th>User Agent</th><th>When</th></tr>
    {% for c in clicks %}
    <tr><td>{{ c.name }}</td><td>{{ c.email }}</td><td>{{ c.target_url }}</td><td>{{ c.ip }}</td><td>{{ c.user_agent }}</td><td>{{ c.created_at }}</td></tr>
    {% endfor %}
  </table>
  {% endif %}

  <p class="empty">Generated at {{ generated_at }}</p>

  <script>
    async function sendAll() {
      const status = document.getElementById('send-status');
      status.textContent = 'Sending...';
      try {
        const res = await fetch('/api/send-all-emails', { method: 'POST' });
        const body = await res.json();
        if (body.status === 'success') {
          status.textContent = 'Sent ' + body.succeeded + ' of ' + body.total +
            (body.failed.length ? ' (' + body.failed.length + ' failed)' : '');
        } else {
          status.textContent = 'Error: ' + body.error;
        }
      } catch (err) {
        status.textContent = 'Request failed: ' + err;
      }
    }
  </script>
</body>
</html>
`
