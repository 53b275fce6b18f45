package api

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"

	"github.com/soyeahso/skillswap/internal/domain"
)

// Messages calls GET /messages/{threadId}.
func (c *Client) Messages(ctx context.Context, threadID string) ([]domain.Message, error) {
	var msgs []domain.Message
	if err := doJSON(ctx, c.http, c.log, http.MethodGet, c.endpoint("messages", threadID), nil, &msgs); err != nil {
		return nil, err
	}
	for i := range msgs {
		if msgs[i].ThreadID == "" {
			msgs[i].ThreadID = threadID
		}
	}
	return msgs, nil
}

// SendMessage posts a multipart message to POST /messages. The body is
// buffered so the token transport can replay it after a refresh.
func (c *Client) SendMessage(ctx context.Context, out domain.OutgoingMessage) (domain.Message, error) {
	body, contentType, err := encodeMessage(out)
	if err != nil {
		return domain.Message{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("messages"), bytes.NewReader(body))
	if err != nil {
		return domain.Message{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	var msg domain.Message
	if err := send(c.http, c.log, req, &msg); err != nil {
		return domain.Message{}, err
	}
	if err := msg.Validate(); err != nil {
		return domain.Message{}, fmt.Errorf("invalid message in response: %w", err)
	}
	return msg, nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func encodeMessage(out domain.OutgoingMessage) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	fields := [][2]string{
		{"threadId", out.ThreadID},
		{"content", out.Content},
	}
	if out.ReplyTo != "" {
		fields = append(fields, [2]string{"replyTo", out.ReplyTo})
	}
	if out.ClientID != "" {
		fields = append(fields, [2]string{"clientId", out.ClientID})
	}
	if out.ClientSeq > 0 {
		fields = append(fields, [2]string{"clientSeq", strconv.FormatUint(out.ClientSeq, 10)})
	}
	for _, f := range fields {
		if err := w.WriteField(f[0], f[1]); err != nil {
			return nil, "", fmt.Errorf("writing %s: %w", f[0], err)
		}
	}

	if up := out.Upload; up != nil {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, quoteEscaper.Replace(up.Name)))
		ct := up.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		h.Set("Content-Type", ct)
		part, err := w.CreatePart(h)
		if err != nil {
			return nil, "", fmt.Errorf("creating file part: %w", err)
		}
		if _, err := part.Write(up.Data); err != nil {
			return nil, "", fmt.Errorf("writing file part: %w", err)
		}
		if err := w.WriteField("kind", string(up.Kind)); err != nil {
			return nil, "", fmt.Errorf("writing kind: %w", err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

// MarkRead calls PUT /messages/{id}/read.
func (c *Client) MarkRead(ctx context.Context, messageID string) error {
	return doJSON(ctx, c.http, c.log, http.MethodPut, c.endpoint("messages", messageID, "read"), nil, nil)
}

// MarkReadBatch calls PUT /messages/read with the id list.
func (c *Client) MarkReadBatch(ctx context.Context, ids []string) error {
	in := map[string][]string{"ids": ids}
	return doJSON(ctx, c.http, c.log, http.MethodPut, c.endpoint("messages", "read"), in, nil)
}
