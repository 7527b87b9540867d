package http

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// resetPageHTML is a fallback page for reset links when no frontend is deployed.
var resetPageHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8" />
<meta name="viewport" content="width=device-width, initial-scale=1.0" />
<title>EMS - Reset password</title>
<style>
body { font-family: Arial, sans-serif; margin: 0; background: #f4f6f9; color: #222; min-height: 100vh; display: flex; align-items: center; justify-content: center; }
.card { background: #fff; padding: 32px; border-radius: 8px; width: 90%; max-width: 420px; box-shadow: 0 10px 40px rgba(0,0,0,0.1); }
input { width: 100%; padding: 10px; margin: 8px 0; border: 1px solid #ccc; border-radius: 4px; box-sizing: border-box; }
button { width: 100%; padding: 12px; font-size: 16px; border: none; border-radius: 4px; cursor: pointer; background: #2d6cdf; color: #fff; }
button:disabled { background: #9bb5e8; cursor: default; }
#status { margin-top: 12px; min-height: 1.2em; }
</style>
</head>
<body>
<div class="card">
  <h2>Reset your password</h2>
  <form id="reset" onsubmit="return submitReset(event)">
    <input type="password" name="newSecret" placeholder="New password" required />
    <input type="password" name="confirm" placeholder="Confirm new password" required />
    <button type="submit" id="submit" disabled>Reset password</button>
  </form>
  <p id="status"></p>
</div>
<script>
const token = new URLSearchParams(window.location.search).get('token') || '';
const statusEl = document.getElementById('status');
const submitEl = document.getElementById('submit');

async function checkToken() {
  const response = await fetch('/auth/validate-reset-token?token=' + encodeURIComponent(token));
  const data = await response.json();
  if (data.valid) {
    submitEl.disabled = false;
  } else {
    statusEl.textContent = data.message || 'This link cannot be used.';
  }
}
async function submitReset(event) {
  event.preventDefault();
  const form = new FormData(event.target);
  if (form.get('newSecret') !== form.get('confirm')) {
    statusEl.textContent = 'Passwords do not match.';
    return false;
  }
  submitEl.disabled = true;
  const response = await fetch('/auth/reset-password', {
    method: 'POST',
    headers: { 'Content-Type': 'application/json' },
    body: JSON.stringify({ token: token, newSecret: form.get('newSecret') })
  });
  const data = await response.json();
  statusEl.textContent = data.message;
  if (!data.success) {
    submitEl.disabled = false;
  }
  return false;
}
checkToken();
</script>
</body>
</html>`

func RegisterPages(e *echo.Echo) {
	e.GET("/reset-password", func(c echo.Context) error {
		return c.HTML(http.StatusOK, resetPageHTML)
	})
}
