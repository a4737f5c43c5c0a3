package notification

import (
	"bytes"
	"html/template"
)

// Email is the data rendered into the branded HTML wrapper.
type Email struct {
	Subject string
	Body    string
	// CTALabel and CTAURL render a button under the body when both are set.
	CTALabel string
	CTAURL   string
	// Footer replaces the default footer line when set.
	Footer string
}

// emailTmpl is the HTML wrapper applied to every outgoing email.
// All fields are auto-escaped by html/template.
var emailTmpl = template.Must(template.New("email").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width,initial-scale=1.0">
  <title>{{.Subject}}</title>
</head>
<body style="margin:0;padding:0;background-color:#f6f3ee;
     font-family:-apple-system,BlinkMacSystemFont,'Segoe UI',Roboto,Arial,sans-serif;">
  <table width="100%" cellpadding="0" cellspacing="0" role="presentation"
         style="background-color:#f6f3ee;padding:32px 16px;">
    <tr>
      <td align="center">
        <table width="600" cellpadding="0" cellspacing="0" role="presentation"
               style="max-width:600px;width:100%;">

          <tr>
            <td style="background-color:#14532d;padding:24px 36px;border-radius:12px 12px 0 0;">
              <span style="font-size:20px;font-weight:700;color:#ffffff;">KiranaConnect</span>
              <span style="display:block;font-size:11px;color:#bbf7d0;margin-top:2px;">
                Your neighbourhood stores, online
              </span>
            </td>
          </tr>

          <tr>
            <td style="background-color:#ffffff;padding:16px 36px;border-left:3px solid #f59e0b;">
              <p style="margin:0;font-size:16px;font-weight:600;color:#1f2937;">{{.Subject}}</p>
            </td>
          </tr>

          <tr>
            <td style="background-color:#ffffff;padding:28px 36px;">
              <div style="font-size:14px;line-height:1.7;color:#374151;
                          white-space:pre-wrap;word-break:break-word;">{{.Body}}</div>
              {{- if and .CTALabel .CTAURL}}
              <p style="margin:28px 0 0;">
                <a href="{{.CTAURL}}"
                   style="background-color:#f59e0b;color:#111827;text-decoration:none;
                          padding:12px 22px;border-radius:8px;font-weight:600;font-size:14px;">{{.CTALabel}}</a>
              </p>
              {{- end}}
            </td>
          </tr>

          <tr>
            <td style="background-color:#fafaf9;padding:18px 36px;
                       border-top:1px solid #e7e5e4;border-radius:0 0 12px 12px;">
              <p style="margin:0;font-size:12px;color:#78716c;">
                {{- if .Footer}}{{.Footer}}{{else}}You are receiving this because you have items in your KiranaConnect cart.{{end -}}
              </p>
            </td>
          </tr>

        </table>
      </td>
    </tr>
  </table>
</body>
</html>
`))

// BuildEmailHTML renders the branded HTML email.
func BuildEmailHTML(e Email) (string, error) {
	var buf bytes.Buffer
	if err := emailTmpl.Execute(&buf, e); err != nil {
		return "", err
	}
	return buf.String(), nil
}
