package mailer

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/bis-events/gatepass/internal/models"
)

const ticketHTML = `<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px; border: 1px solid #e0e0e0; border-radius: 8px; background-color: #ffffff;">
<h2 style="color: #333333; margin-top: 0;">Registration Approved!</h2>
<p style="color: #555555; font-size: 16px; line-height: 1.5;">Hello <strong>{{.Name}}</strong>,</p>
<p style="color: #555555; font-size: 16px; line-height: 1.5;">We are excited to confirm your registration for {{.Event}}. Your ticket has been generated successfully.</p>
<div style="background-color: #f8f9fa; border-top: 4px solid #4285f4; padding: 20px; margin: 20px 0; border-radius: 4px; text-align: center;">
<p style="margin: 0; color: #777777; font-size: 14px; text-transform: uppercase; letter-spacing: 1px;">Ticket ID</p>
<p style="margin: 5px 0 0 0; color: #333333; font-size: 24px; font-weight: bold; letter-spacing: 1px;">{{.TicketID}}</p>
</div>
<div style="text-align: center; margin: 30px 0;">
<a href="{{.Link}}" style="background-color: #4285f4; color: #ffffff; padding: 15px 30px; text-decoration: none; border-radius: 5px; font-weight: bold; font-size: 18px; display: inline-block;">View Your Ticket</a>
</div>
<p style="color: #555555; font-size: 14px; text-align: center;">or copy this link:<br><a href="{{.Link}}" style="color: #4285f4; word-break: break-all;">{{.Link}}</a></p>
<hr style="border: 0; border-top: 1px solid #eeeeee; margin: 30px 0;">
<p style="color: #999999; font-size: 12px; text-align: center;">Best regards,<br><strong>{{.Team}}</strong></p>
</div>`

// TicketTemplate renders the ticket email.
type TicketTemplate struct {
	subject string
	event   string
	team    string
	tmpl    *template.Template
}

// NewTicketTemplate creates the ticket email template for an event.
func NewTicketTemplate(subject, event, team string) *TicketTemplate {
	return &TicketTemplate{
		subject: subject,
		event:   event,
		team:    team,
		tmpl:    template.Must(template.New("ticket").Parse(ticketHTML)),
	}
}

// Render returns the subject and HTML body for reg. Names are HTML-escaped.
func (t *TicketTemplate) Render(reg *models.Registration) (string, string, error) {
	if reg.TicketID == "" || reg.TicketLink == "" {
		return "", "", fmt.Errorf("registration %s has no ticket", reg.ID)
	}
	var buf bytes.Buffer
	err := t.tmpl.Execute(&buf, struct {
		Name, Event, TicketID, Team string
		Link                        template.URL
	}{
		Name:     reg.Name,
		Event:    t.event,
		TicketID: reg.TicketID,
		Team:     t.team,
		Link:     template.URL(reg.TicketLink),
	})
	if err != nil {
		return "", "", fmt.Errorf("render ticket email: %w", err)
	}
	return t.subject, buf.String(), nil
}
