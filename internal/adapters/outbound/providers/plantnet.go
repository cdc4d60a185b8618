package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"

	"github.com/floralens/identify/internal/config"
	"github.com/floralens/identify/internal/domain/model"
)

const PlantNetName = "plantnet"

type plantNetResponse struct {
	Results []struct {
		Score   float64 `json:"score"`
		Species struct {
			ScientificNameWithoutAuthor string   `json:"scientificNameWithoutAuthor"`
			CommonNames                 []string `json:"commonNames"`
		} `json:"species"`
	} `json:"results"`
}

// PlantNetSpec describes the Pl@ntNet backend. Pl@ntNet takes multipart
// image uploads and authenticates with an api-key query parameter. It
// has no disease assessment; the diseases option only affects Plant.id.
func PlantNetSpec() Spec {
	return Spec{
		Name:          PlantNetName,
		NewRequest:    newPlantNetRequest,
		ParseResponse: parsePlantNetResponse,
	}
}

func newPlantNetRequest(ctx context.Context, cfg config.Provider, req model.IdentificationRequest) (*http.Request, error) {
	var body bytes.Buffer

	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("images", "image.jpg")
	if err != nil {
		return nil, fmt.Errorf("creating multipart body: %w", err)
	}

	if _, err := part.Write(req.Image); err != nil {
		return nil, fmt.Errorf("writing image part: %w", err)
	}

	if err := writer.WriteField("organs", "auto"); err != nil {
		return nil, fmt.Errorf("writing organs field: %w", err)
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("closing multipart body: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v2/identify/all?api-key=%s", cfg.BaseURL, url.QueryEscape(cfg.APIKey))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return nil, err
	}

	httpReq.Header.Set("Content-Type", writer.FormDataContentType())

	return httpReq, nil
}

func parsePlantNetResponse(name string, _ bool, body []byte) (*model.ProviderResult, error) {
	var decoded plantNetResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, err
	}

	if len(decoded.Results) == 0 {
		return nil, fmt.Errorf("response carries no results")
	}

	result := &model.ProviderResult{
		Candidates: make([]model.SpeciesCandidate, 0, len(decoded.Results)),
	}

	for _, entry := range decoded.Results {
		result.Candidates = append(result.Candidates, model.SpeciesCandidate{
			ScientificName: entry.Species.ScientificNameWithoutAuthor,
			CommonNames:    entry.Species.CommonNames,
			Confidence:     entry.Score,
			Provider:       name,
		})
	}

	return result, nil
}
