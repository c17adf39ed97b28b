package dto

import "kwik.app/dispatch/internal/model"

type ExtractRequest struct {
	Transcript model.Transcript `json:"transcript"`
}

type ExtractResponse struct {
	Extraction *model.TriageExtraction `json:"extraction"`
}
