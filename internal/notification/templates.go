package notification

import (
	"bytes"
	"fmt"
	"html/template"
)

var subjects = map[Type]string{
	TypeEmailVerification:   "Verify Your Account",
	TypePasswordReset:       "Password Reset Instructions",
	TypeAccountLocked:       "Account Locked Notification",
	TypeProfessionalUpgrade: "You Have Been Upgraded to Professional Status",
}

const baseTemplate = `<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="font-family: Arial, sans-serif; font-size: 16px; color: #333333; line-height: 1.6;">
	<h1 style="font-size: 24px; font-weight: bold;">{{.Heading}}</h1>
	<p>Hello {{.Name}},</p>
	{{.Body}}
	<p style="font-size: 12px; color: #777777; padding-top: 20px;">Thank you,<br>The User Hub Team</p>
</body>
</html>`

var bodies = map[Type]string{
	TypeEmailVerification: `<p>Welcome! Please confirm your email address to activate your account.</p>
	<p><a href="{{.URL}}" style="color: #0056b3; font-weight: bold;">Verify your email</a></p>
	<p>If you did not create this account, you can ignore this message.</p>`,

	TypePasswordReset: `<p>We received a request to reset your password.</p>
	<p><a href="{{.URL}}" style="color: #0056b3; font-weight: bold;">Reset your password</a></p>
	<p>This link expires shortly. If you did not request a reset, no action is needed.</p>`,

	TypeAccountLocked: `<p>Your account has been temporarily locked after too many failed login attempts.</p>
	<p>You can try again once the lock expires, or reset your password.</p>`,

	TypeProfessionalUpgrade: `<p>Good news: your account now has professional status.</p>
	<p><a href="{{.URL}}" style="color: #0056b3; font-weight: bold;">View your profile</a></p>`,
}

var headings = map[Type]string{
	TypeEmailVerification:   "Verify Your Email",
	TypePasswordReset:       "Reset Your Password",
	TypeAccountLocked:       "Account Locked",
	TypeProfessionalUpgrade: "Professional Status Granted",
}

var parsed = func() map[Type]*template.Template {
	out := make(map[Type]*template.Template, len(bodies))
	for typ, body := range bodies {
		out[typ] = template.Must(template.New(string(typ)).Parse(body))
	}
	return out
}()

var pageTemplate = template.Must(template.New("base").Parse(baseTemplate))

// Render produces the subject and HTML body for an event.
func Render(evt Event) (subject, body string, err error) {
	subject, ok := subjects[evt.Type]
	if !ok {
		return "", "", fmt.Errorf("unknown notification type: %s", evt.Type)
	}

	var inner bytes.Buffer
	if err := parsed[evt.Type].Execute(&inner, evt); err != nil {
		return "", "", err
	}

	var page bytes.Buffer
	err = pageTemplate.Execute(&page, struct {
		Heading string
		Name    string
		Body    template.HTML
	}{
		Heading: headings[evt.Type],
		Name:    evt.Name,
		Body:    template.HTML(inner.String()),
	})
	if err != nil {
		return "", "", err
	}

	return subject, page.String(), nil
}
