package tracking

import "html/template"

// signInPage renders the decoy form. The tracking identifier rides along as
// a hidden field so the POST can be attributed without cookies.
func signInPage(trackingID string) string {
	return `<!DOCTYPE html><html><head><title>Sign in</title><style>
body { font-family: Arial, sans-serif; background: #f3f4f6; }
.card { max-width: 360px; margin: 80px auto; background: #fff; padding: 32px; border-radius: 8px; box-shadow: 0 1px 4px rgba(0,0,0,.15); }
input { width: 100%; padding: 10px; margin: 8px 0; box-sizing: border-box; }
button { width: 100%; padding: 10px; background: #2563eb; color: #fff; border: 0; border-radius: 4px; cursor: pointer; }
</style></head><body><div class="card">
<h2>Sign in to your account</h2>
<form method="POST" action="/sign-in">
<input type="hidden" name="id" value="` + template.HTMLEscapeString(trackingID) + `">
<input type="email" name="email" placeholder="Email address" required>
<input type="password" name="password" placeholder="Password" required>
<button type="submit">Sign in</button>
</form></div></body></html>`
}

const resultPage = `<!DOCTYPE html><html><head><title>Sign in</title></head>
<body style="font-family:Arial,sans-serif;text-align:center;padding:50px;">
<h2>We couldn't sign you in right now</h2>
<p>Please try again in a few minutes.</p>
</body></html>`
