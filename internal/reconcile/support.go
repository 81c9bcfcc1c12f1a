package reconcile

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

// DefaultSupportEmail receives escalations when no address is configured.
const DefaultSupportEmail = "support@example.local"

// SupportRequest is a prefilled message for a human support channel.
type SupportRequest struct {
	To        string `json:"to"`
	ReplyTo   string `json:"replyTo,omitempty"`
	Subject   string `json:"subject"`
	Body      string `json:"body"`
	MailtoURL string `json:"mailtoUrl"`
}

// Support builds the escalation message from whatever the controller knows:
// the intent it loaded (if any) and the last error it saw.
func (c *Controller) Support() SupportRequest {
	to := c.deps.SupportEmail
	if to == "" {
		to = DefaultSupportEmail
	}

	subject := "Reservation help"
	var b strings.Builder
	b.WriteString("Hello,\n\nI need help with my reservation.\n\n")
	req := SupportRequest{To: to}
	if in := c.current; in != nil {
		subject = fmt.Sprintf("Reservation help: %s", in.SessionReference)
		req.ReplyTo = in.Contact.Email
		fmt.Fprintf(&b, "Session reference: %s\n", in.SessionReference)
		fmt.Fprintf(&b, "Item: %s\n", in.ItemID)
		fmt.Fprintf(&b, "Name: %s\n", in.Contact.FullName)
		fmt.Fprintf(&b, "Email: %s\n", in.Contact.Email)
		fmt.Fprintf(&b, "Phone: %s\n", in.Contact.PhoneNumber)
		fmt.Fprintf(&b, "Delivery address: %s\n", in.Contact.DeliveryAddress)
		fmt.Fprintf(&b, "Pickup: %s, %s %s\n", in.Fulfillment.Method, in.Fulfillment.Day, in.Fulfillment.TimeWindow)
	} else {
		b.WriteString("No reservation details were found in my browser.\n")
	}
	if c.outcome.State != Verifying {
		fmt.Fprintf(&b, "Status: %s\n", c.outcome.State)
	}
	if c.lastErr != "" {
		fmt.Fprintf(&b, "Last error: %s\n", c.lastErr)
	}

	req.Subject = subject
	req.Body = b.String()
	req.MailtoURL = mailto(to, subject, req.Body)
	return req
}

// SupportFromStore builds the message on a load that did not run Reconcile,
// from the stored intent and the error the page is showing.
func (c *Controller) SupportFromStore(ctx context.Context, lastError string) (SupportRequest, error) {
	in, found, err := c.deps.Store.Load(ctx)
	if err != nil {
		return SupportRequest{}, err
	}
	if found {
		c.current = &in
	}
	if lastError != "" {
		c.lastErr = lastError
	}
	return c.Support(), nil
}

// mailto encodes spaces as %20; mail clients show a literal "+" otherwise.
func mailto(to, subject, body string) string {
	q := url.Values{}
	q.Set("subject", subject)
	q.Set("body", body)
	return "mailto:" + to + "?" + strings.ReplaceAll(q.Encode(), "+", "%20")
}
