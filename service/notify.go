package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Amaz3n/inkwell/model"
	"github.com/Amaz3n/inkwell/pkg/logger"
	"github.com/Amaz3n/inkwell/store"
	"golang.org/x/sync/errgroup"
)

// Notifier handles both fan-out paths: executed copies to every recipient,
// and signing links to the next sequence batch. Sends within a batch run in
// parallel and fail independently.
type Notifier struct {
	mailer  Mailer
	tokens  *TokenService
	baseURL string
}

func NewNotifier(mailer Mailer, tokens *TokenService, baseURL string) *Notifier {
	return &Notifier{mailer: mailer, tokens: tokens, baseURL: baseURL}
}

// SendExecuted emails the executed artifact to every distinct recipient.
// Recipients come from the document metadata list, falling back to the
// signing requests' emails. Returns the first send error for logging;
// the execution itself is already durable and is never rolled back.
func (n *Notifier) SendExecuted(ctx context.Context, doc *model.Document, requests []model.SigningRequest, fileID string, artifact []byte) error {
	recipients := doc.Metadata.Recipients()
	if len(recipients) == 0 {
		seen := make(map[string]bool)
		for _, r := range requests {
			if r.RecipientEmail != "" && !seen[r.RecipientEmail] {
				seen[r.RecipientEmail] = true
				recipients = append(recipients, r.RecipientEmail)
			}
		}
	}
	if len(recipients) == 0 {
		logger.Warn(ctx, "executed envelope has no recipients to notify", "document_id", doc.ID)
		return nil
	}

	// deliberately not errgroup.WithContext: one failed recipient must not
	// cancel the others
	var g errgroup.Group
	for _, to := range recipients {
		to := to
		g.Go(func() error {
			token, err := n.tokens.DownloadToken(doc.OrgID, fileID)
			if err != nil {
				return fmt.Errorf("download token for %s: %w", to, err)
			}

			msg := &Email{
				To:      to,
				Subject: fmt.Sprintf("%s has been fully executed", doc.Title),
				HTML: fmt.Sprintf(
					"<p>All parties have signed <strong>%s</strong>.</p><p>The executed copy is attached, or <a href=%q>download it here</a>.</p>",
					doc.Title, n.baseURL+"/api/files/"+token),
				Attachments: []Attachment{{
					Filename:    doc.Title + ".pdf",
					ContentType: "application/pdf",
					Data:        artifact,
				}},
			}
			if err := n.mailer.Send(ctx, msg); err != nil {
				logger.Error(ctx, "failed to send executed copy", "to", to, "error", err)
				return err
			}
			return nil
		})
	}
	return g.Wait()
}

// SendNextSigners issues fresh tokens to the next sequence batch and emails
// each a signing link. Only requests still in draft with a known recipient
// get a link; token rotation happens before any mail goes out so a send
// failure never strands a half-issued token.
func (n *Notifier) SendNextSigners(ctx context.Context, st store.Store, doc *model.Document, batch []model.SigningRequest) error {
	type issued struct {
		to    string
		token string
	}

	var links []issued
	expiresAt := time.Now().Add(n.tokens.TokenLifetime())
	for _, r := range batch {
		if r.Status != model.RequestDraft || r.RecipientEmail == "" {
			continue
		}
		token, hash, err := n.tokens.Issue()
		if err != nil {
			return err
		}
		if err := st.RotateRequestToken(ctx, r.ID, hash, expiresAt); err != nil {
			return fmt.Errorf("failed to rotate token for request %s: %w", r.ID, err)
		}
		links = append(links, issued{to: r.RecipientEmail, token: token})
	}

	var g errgroup.Group
	for _, l := range links {
		l := l
		g.Go(func() error {
			msg := &Email{
				To:      l.to,
				Subject: fmt.Sprintf("Your signature is requested: %s", doc.Title),
				HTML: fmt.Sprintf(
					"<p>You have been asked to sign <strong>%s</strong>.</p><p><a href=%q>Review and sign</a></p>",
					doc.Title, n.baseURL+"/sign/"+l.token),
			}
			if err := n.mailer.Send(ctx, msg); err != nil {
				logger.Error(ctx, "failed to send signing link", "to", l.to, "error", err)
				return err
			}
			return nil
		})
	}
	return g.Wait()
}
