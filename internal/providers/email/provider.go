package email

import "context"

// Attachment is a file shipped along with a message.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

type Provider interface {
	Send(ctx context.Context, to []string, subject string, body string) error
	SendWithAttachment(ctx context.Context, to []string, subject string, body string, att Attachment) error
}

type NoOpProvider struct{}

func (p *NoOpProvider) Send(ctx context.Context, to []string, subject string, body string) error {
	return nil
}

func (p *NoOpProvider) SendWithAttachment(ctx context.Context, to []string, subject string, body string, att Attachment) error {
	return nil
}
