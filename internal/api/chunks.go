package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/MikeSquared-Agency/mimic/internal/chunker"
	"github.com/MikeSquared-Agency/mimic/internal/output"
	"github.com/MikeSquared-Agency/mimic/internal/transcript"
)

// maxTranscriptBytes bounds a single POST /chunks body.
const maxTranscriptBytes = 32 << 20

// ChunkRequest carries one raw transcript. Empty optional fields fall back to
// the server's build configuration.
type ChunkRequest struct {
	ChatName         string `json:"chat_name"`
	Text             string `json:"text"`
	MaxContextLength int    `json:"max_context_length,omitempty"`
	DateOrder        string `json:"date_order,omitempty"`
	OversizePolicy   string `json:"oversize_policy,omitempty"`
}

type ChunkJSON struct {
	Date     string `json:"date"`
	Time     string `json:"time"`
	ChatName string `json:"chat_name"`
	Text     string `json:"text"`
	Messages int    `json:"messages"`
	Tokens   int    `json:"tokens"`
	Oversize bool   `json:"oversize,omitempty"`
}

type ChunkResponse struct {
	Chunks           []ChunkJSON       `json:"chunks"`
	Report           transcript.Report `json:"report"`
	Coverage         float64           `json:"coverage"`
	Stats            chunker.Stats     `json:"stats"`
	Encoding         string            `json:"encoding"`
	MaxContextLength int               `json:"max_context_length"`
}

// chunks handles POST /api/v1/mimic/chunks: it runs the extract, group and
// pack pipeline over one transcript and returns the sorted chunks.
func (s *Server) chunks(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxTranscriptBytes)

	var req ChunkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
		return
	}
	if strings.TrimSpace(req.ChatName) == "" {
		writeError(w, http.StatusBadRequest, "chat_name is required")
		return
	}

	cfg := s.builder.Config()
	budget := cfg.MaxContextLength
	if req.MaxContextLength != 0 {
		budget = req.MaxContextLength
	}
	order := cfg.DateOrder
	if req.DateOrder != "" {
		o, err := transcript.ParseDateOrder(req.DateOrder)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		order = o
	}
	policy := cfg.Oversize
	if req.OversizePolicy != "" {
		p, err := chunker.ParseOversizePolicy(req.OversizePolicy)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		policy = p
	}

	packer, err := chunker.NewPacker(s.builder.Counter(), budget, policy)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	msgs, report := transcript.Parse(req.Text)
	days, unparsed := chunker.GroupByDay(msgs, order)
	report.UnparsedDates = len(unparsed)

	chunks, stats, err := packer.Pack(r.Context(), req.ChatName, days)
	switch {
	case errors.Is(err, chunker.ErrOversizeMessage):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("pack failed: %v", err))
		return
	}
	chunker.SortChunks(chunks)

	resp := ChunkResponse{
		Chunks:           make([]ChunkJSON, 0, len(chunks)),
		Report:           report,
		Coverage:         report.Coverage(),
		Stats:            stats,
		Encoding:         cfg.Encoding,
		MaxContextLength: budget,
	}
	for _, c := range chunks {
		resp.Chunks = append(resp.Chunks, ChunkJSON{
			Date:     c.Date.Format(output.DateLayout),
			Time:     c.StartTime,
			ChatName: c.ChatName,
			Text:     c.Text,
			Messages: c.Messages,
			Tokens:   c.Tokens,
			Oversize: c.Oversize,
		})
	}

	s.logger.Info("chunked transcript",
		"chat", req.ChatName,
		"messages", report.Messages,
		"chunks", stats.Chunks,
		"max_context_length", budget,
	)
	writeJSON(w, http.StatusOK, resp)
}
