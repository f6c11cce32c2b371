package mailer

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	texttemplate "text/template"
)

// Subjects of the outgoing emails.
const (
	SubjectActivation    = "Your Account Activation Code"
	SubjectPasswordReset = "Password Reset Request"
	subjectAdminPrefix   = "New User Registration: "
)

const activationHTML = `<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #333;">
  <h2>Welcome to PetCare, {{.Name}}!</h2>
  <p>Use the code below to activate your account. It expires in {{.ValidFor}}.</p>
  <p style="font-size: 28px; font-weight: bold; letter-spacing: 6px;">{{.Code}}</p>
  {{if .Link}}<p>You can enter it at <a href="{{.Link}}">{{.Link}}</a>.</p>{{end}}
  <p>If you did not create an account you can ignore this email.</p>
</body>
</html>`

const activationText = `Welcome to PetCare, {{.Name}}!

Your activation code is {{.Code}}. It expires in {{.ValidFor}}.
{{if .Link}}Enter it at {{.Link}}
{{end}}
If you did not create an account you can ignore this email.
`

const resetHTML = `<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #333;">
  <h2>Hello {{.Name}},</h2>
  <p>We received a request to reset your password. The link is valid for {{.ValidFor}}.</p>
  <p><a href="{{.Link}}" style="padding: 10px 16px; background: #4a90e2; color: #fff; text-decoration: none;">Reset password</a></p>
  <p>If the button does not work, paste this token into the reset form: <code>{{.Token}}</code></p>
  <p>If you did not request a reset, no action is needed.</p>
</body>
</html>`

const resetText = `Hello {{.Name}},

We received a request to reset your password. Open the link below within {{.ValidFor}}:

{{.Link}}

If you did not request a reset, no action is needed.
`

const adminText = `A new user registered.

Name: {{.Name}}
Email: {{.Email}}
Activation code: {{.Code}}
`

// ActivationData fills the activation email.
type ActivationData struct {
	Name     string
	Code     string
	Link     string
	ValidFor string
}

// ResetData fills the password reset email.
type ResetData struct {
	Name     string
	Link     string
	Token    string
	ValidFor string
}

// AdminData fills the admin registration notice.
type AdminData struct {
	Name  string
	Email string
	Code  string
}

// Templates renders the service's emails.
type Templates struct {
	activationHTML *template.Template
	activationText *texttemplate.Template
	resetHTML      *template.Template
	resetText      *texttemplate.Template
	adminText      *texttemplate.Template
}

// NewTemplates parses all templates.
func NewTemplates() (*Templates, error) {
	t := &Templates{}
	var err error
	if t.activationHTML, err = template.New("activation").Parse(activationHTML); err != nil {
		return nil, fmt.Errorf("parse activation template: %w", err)
	}
	if t.activationText, err = texttemplate.New("activation_text").Parse(activationText); err != nil {
		return nil, fmt.Errorf("parse activation text template: %w", err)
	}
	if t.resetHTML, err = template.New("reset").Parse(resetHTML); err != nil {
		return nil, fmt.Errorf("parse reset template: %w", err)
	}
	if t.resetText, err = texttemplate.New("reset_text").Parse(resetText); err != nil {
		return nil, fmt.Errorf("parse reset text template: %w", err)
	}
	if t.adminText, err = texttemplate.New("admin").Parse(adminText); err != nil {
		return nil, fmt.Errorf("parse admin template: %w", err)
	}
	return t, nil
}

// Activation renders the activation code email.
func (t *Templates) Activation(to string, data ActivationData) (*Message, error) {
	html, err := render(t.activationHTML, data)
	if err != nil {
		return nil, err
	}
	text, err := render(t.activationText, data)
	if err != nil {
		return nil, err
	}
	return &Message{To: to, Subject: SubjectActivation, HTMLBody: html, TextBody: text}, nil
}

// PasswordReset renders the reset link email.
func (t *Templates) PasswordReset(to string, data ResetData) (*Message, error) {
	html, err := render(t.resetHTML, data)
	if err != nil {
		return nil, err
	}
	text, err := render(t.resetText, data)
	if err != nil {
		return nil, err
	}
	return &Message{To: to, Subject: SubjectPasswordReset, HTMLBody: html, TextBody: text}, nil
}

// AdminNotification renders the plain-text registration notice.
func (t *Templates) AdminNotification(to string, data AdminData) (*Message, error) {
	text, err := render(t.adminText, data)
	if err != nil {
		return nil, err
	}
	return &Message{To: to, Subject: subjectAdminPrefix + data.Email, TextBody: text}, nil
}

type executor interface {
	Execute(w io.Writer, data any) error
}

func render(tmpl executor, data any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render template: %w", err)
	}
	return buf.String(), nil
}
