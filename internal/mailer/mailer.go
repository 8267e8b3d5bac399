// Package mailer implements the delivery gateway over SMTP.
package mailer

import (
	"fmt"

	"gopkg.in/gomail.v2"
)

// Config holds SMTP settings for sending verification emails.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Validate reports missing sender settings. Delivery credentials are checked
// at worker startup so a misconfiguration never surfaces on the request path.
func (c Config) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("mailer: SMTP host is not set")
	}
	if c.Port == 0 {
		return fmt.Errorf("mailer: SMTP port is not set")
	}
	if c.From == "" {
		return fmt.Errorf("mailer: SMTP sender address is not set")
	}
	return nil
}

// Mailer sends verification emails through an SMTP gateway.
type Mailer struct {
	config Config
	dialer *gomail.Dialer
}

// New constructs a Mailer from validated configuration.
func New(cfg Config) (*Mailer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Mailer{
		config: cfg,
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
	}, nil
}

const codeSubject = "Confirmation of registration (no reply please)"

// SendCode delivers a verification code to the recipient with both HTML and
// plain-text bodies.
func (m *Mailer) SendCode(recipient, code string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.config.From)
	msg.SetHeader("To", recipient)
	msg.SetHeader("Subject", codeSubject)
	msg.SetBody("text/plain", "Your code: "+code)
	msg.AddAlternative("text/html", codeHTML(code))
	return m.dialer.DialAndSend(msg)
}

func codeHTML(code string) string {
	return fmt.Sprintf(`
    <html>
      <body style="font-family: Arial, sans-serif; background-color: #f6f6f6; padding: 20px;">
        <div style="max-width: 600px; margin: auto; background-color: white; padding: 30px; border-radius: 8px; box-shadow: 0 0 10px rgba(0,0,0,0.1);">
          <h2 style="text-align: center; color: #333;">Email Verification Code</h2>
          <p style="text-align: center; font-size: 16px; color: #555;">Use the following code to complete your registration:</p>
          <div style="font-size: 24px; font-weight: bold; text-align: center; padding: 15px; background-color: #f0f0f0; border: 2px dashed #4CAF50; border-radius: 5px; margin: 20px 0;">
            %s
          </div>
          <p style="text-align: center; color: #888;">This code is valid for a limited time. Please do not share it with anyone.</p>
        </div>
      </body>
    </html>`, code)
}
