package httpapi

import (
	"context"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"inkwell-ai/internal/adapter/editor"
	"inkwell-ai/internal/domain"
	"inkwell-ai/internal/usecase/patch"
)

// documentFrame reports the buffer state after an editor mutation.
type documentFrame struct {
	Version uint64 `json:"version"`
	Length  int    `json:"length"`
}

// previewFrame describes an open patch proposal.
type previewFrame struct {
	ProposalID  string `json:"proposal_id"`
	From        int    `json:"from"`
	To          int    `json:"to"`
	Original    string `json:"original"`
	Proposed    string `json:"proposed"`
	BaseVersion uint64 `json:"base_version"`
}

// handleEditorMessage serves one editor-scoped message on the chat stream.
// The client keeps the server-side buffer in sync with document.sync and
// selection.set, then drives the patch lifecycle with patch.preview,
// patch.commit, and patch.cancel. Returns false when the connection is gone.
func (s *Server) handleEditorMessage(ctx context.Context, ws *websocket.Conn, buf *editor.Buffer, ctrl *patch.Controller, in chatInbound) bool {
	switch in.Type {
	case "document.sync":
		buf.SetContent(ctx, in.Content)
		return s.writeDocumentFrame(ctx, ws, buf)

	case "selection.set":
		buf.SetSelection(domain.DocumentRange{From: in.From, To: in.To})
		return s.writeDocumentFrame(ctx, ws, buf)

	case "patch.preview":
		ctrl.OpenPreview(ctx, in.Content)
		proposal, ok := ctrl.Proposal()
		if !ok {
			return s.writeStreamError(ctx, ws,
				domain.NewDomainError("api.ChatStream", domain.ErrInvalidInput, "no document to preview against"))
		}
		return wsjson.Write(ctx, ws, chatOutbound{Type: "preview", Preview: &previewFrame{
			ProposalID:  proposal.ID,
			From:        proposal.Range.From,
			To:          proposal.Range.To,
			Original:    proposal.OriginalText,
			Proposed:    proposal.ProposedText,
			BaseVersion: proposal.BaseVersion,
		}}) == nil

	case "patch.commit":
		if err := ctrl.Commit(ctx, patch.CommitOptions{WithTrackChanges: in.TrackChanges}); err != nil {
			return s.writeStreamError(ctx, ws, err)
		}
		return wsjson.Write(ctx, ws, chatOutbound{Type: "applied", Document: &documentFrame{
			Version: buf.Version(),
			Length:  buf.Length(),
		}}) == nil

	case "patch.cancel":
		ctrl.CancelPreview(ctx)
		return wsjson.Write(ctx, ws, chatOutbound{Type: "cancelled"}) == nil

	default:
		return s.writeStreamError(ctx, ws,
			domain.NewDomainError("api.ChatStream", domain.ErrInvalidInput, "unknown message type "+in.Type))
	}
}

func (s *Server) writeDocumentFrame(ctx context.Context, ws *websocket.Conn, buf *editor.Buffer) bool {
	return wsjson.Write(ctx, ws, chatOutbound{Type: "document", Document: &documentFrame{
		Version: buf.Version(),
		Length:  buf.Length(),
	}}) == nil
}
