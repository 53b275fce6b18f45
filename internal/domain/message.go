// Package domain holds the data model shared by the messaging and call components.
package domain

import (
	"fmt"
	"time"
)

// AttachmentKind is the closed set of attachment variants.
type AttachmentKind string

const (
	AttachmentFile  AttachmentKind = "file"
	AttachmentAudio AttachmentKind = "audio"
)

// Valid reports whether k is one of the known variants.
func (k AttachmentKind) Valid() bool {
	return k == AttachmentFile || k == AttachmentAudio
}

// Attachment is the server-side reference to an uploaded file or voice note.
type Attachment struct {
	URL  string         `json:"url"`
	Kind AttachmentKind `json:"kind"`
	Name string         `json:"name,omitempty"`
}

// Message is a single entry in a thread.
type Message struct {
	ID         string      `json:"id"`
	ThreadID   string      `json:"threadId"`
	SenderID   string      `json:"senderId"`
	Content    string      `json:"content"`
	Attachment *Attachment `json:"attachment,omitempty"`
	ReplyTo    string      `json:"replyTo,omitempty"`
	CreatedAt  time.Time   `json:"createdAt"`
	IsRead     bool        `json:"isRead"`
}

// Validate checks the fields the delivery pipeline relies on.
func (m Message) Validate() error {
	if m.ID == "" {
		return fmt.Errorf("message: missing id")
	}
	if m.ThreadID == "" {
		return fmt.Errorf("message %s: missing threadId", m.ID)
	}
	if m.Attachment != nil {
		if !m.Attachment.Kind.Valid() {
			return fmt.Errorf("message %s: unknown attachment kind %q", m.ID, m.Attachment.Kind)
		}
		if m.Attachment.URL == "" {
			return fmt.Errorf("message %s: attachment without url", m.ID)
		}
	}
	return nil
}

// Upload is an attachment that has been selected or recorded but not yet sent.
// It is discarded once the server returns an Attachment reference.
type Upload struct {
	Name        string
	ContentType string
	Kind        AttachmentKind
	Data        []byte
}

// Size returns the upload size in bytes.
func (u Upload) Size() int64 { return int64(len(u.Data)) }

// OutgoingMessage is the payload submitted by the composer.
type OutgoingMessage struct {
	ThreadID  string
	Content   string
	Upload    *Upload
	ReplyTo   string
	ClientID  string
	ClientSeq uint64
}
