package providers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/floralens/identify/internal/config"
	"github.com/floralens/identify/internal/domain/model"
)

const PlantIDName = "plantid"

type (
	plantIDRequest struct {
		Images         []string `json:"images"`
		PlantDetails   []string `json:"plant_details"`
		DiseaseDetails []string `json:"disease_details,omitempty"`
	}

	plantIDResponse struct {
		Suggestions []struct {
			PlantName    string  `json:"plant_name"`
			Probability  float64 `json:"probability"`
			PlantDetails struct {
				CommonNames []string `json:"common_names"`
			} `json:"plant_details"`
		} `json:"suggestions"`
		HealthAssessment struct {
			Diseases []struct {
				Name        string  `json:"name"`
				Probability float64 `json:"probability"`
			} `json:"diseases"`
		} `json:"health_assessment"`
	}
)

// PlantIDSpec describes the Plant.id backend. Plant.id takes base64
// images over JSON and authenticates with an Api-Key header.
func PlantIDSpec() Spec {
	return Spec{
		Name:          PlantIDName,
		NewRequest:    newPlantIDRequest,
		ParseResponse: parsePlantIDResponse,
	}
}

func newPlantIDRequest(ctx context.Context, cfg config.Provider, req model.IdentificationRequest) (*http.Request, error) {
	payload := plantIDRequest{
		Images:       []string{base64.StdEncoding.EncodeToString(req.Image)},
		PlantDetails: []string{"common_names"},
	}

	if req.Options.IncludeDiseases {
		payload.DiseaseDetails = []string{"description"}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshalling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.BaseURL+"/v2/identify", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Api-Key", cfg.APIKey)

	return httpReq, nil
}

func parsePlantIDResponse(name string, includeDiseases bool, body []byte) (*model.ProviderResult, error) {
	var decoded plantIDResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, err
	}

	if len(decoded.Suggestions) == 0 {
		return nil, fmt.Errorf("response carries no suggestions")
	}

	result := &model.ProviderResult{
		Candidates: make([]model.SpeciesCandidate, 0, len(decoded.Suggestions)),
	}

	for _, suggestion := range decoded.Suggestions {
		result.Candidates = append(result.Candidates, model.SpeciesCandidate{
			ScientificName: suggestion.PlantName,
			CommonNames:    suggestion.PlantDetails.CommonNames,
			Confidence:     suggestion.Probability,
			Provider:       name,
		})
	}

	if includeDiseases {
		for _, disease := range decoded.HealthAssessment.Diseases {
			result.Diseases = append(result.Diseases, model.DiseaseFinding{
				Name:        disease.Name,
				Probability: disease.Probability,
				Provider:    name,
			})
		}
	}

	return result, nil
}
