package mrz

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"pixelCV/internal/config"
	"pixelCV/internal/imgdata"
)

const prompt = `You are a passport data extraction expert. Extract details from this passport.

STRICT NAMING RULE:
1. For Ethiopian Passports: Full Name = [Given Names] + [Surname].
2. Given Names usually contains First and Father's name. Surname contains Grandfather's name.
3. Ensure no names are skipped.

OUTPUT REQUIREMENTS:
- fullName: Full constructed name in UPPERCASE.
- passportNumber: Uppercase alphanumeric.
- dob: YYYY-MM-DD format.
- expiryDate: YYYY-MM-DD format.
- pob: Place of Birth.
- placeOfIssue: Default to 'ADDIS ABABA' if not found.`

// Gemini 通过 Google Gemini 的结构化输出识别护照。
type Gemini struct {
	client *genai.Client
	model  string
}

// NewGemini 创建客户端；未配置 API key 时返回 ErrDisabled。
func NewGemini(ctx context.Context, cfg config.GeminiConfig) (*Gemini, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrDisabled
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &Gemini{client: client, model: cfg.Model}, nil
}

// Close releases the underlying client.
func (g *Gemini) Close() error {
	return g.client.Close()
}

func responseSchema() *genai.Schema {
	str := func() *genai.Schema { return &genai.Schema{Type: genai.TypeString} }
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"fullName":       str(),
			"passportNumber": str(),
			"nationality":    str(),
			"dob":            str(),
			"sex":            str(),
			"expiryDate":     str(),
			"pob":            str(),
			"placeOfIssue":   str(),
		},
		Required: []string{"fullName", "passportNumber", "dob", "expiryDate"},
	}
}

// Extract 实现 Extractor。
func (g *Gemini) Extract(ctx context.Context, image []byte) (Data, error) {
	format, ok := imgdata.SniffBytes(image)
	if !ok {
		return Data{}, ErrNotAnImage
	}

	model := g.client.GenerativeModel(g.model)
	model.SetTemperature(0)
	model.ResponseMIMEType = "application/json"
	model.ResponseSchema = responseSchema()

	resp, err := model.GenerateContent(ctx,
		genai.ImageData(strings.ToLower(string(format)), image),
		genai.Text(prompt),
	)
	if err != nil {
		return Data{}, fmt.Errorf("passport scan failed: %w", err)
	}
	if len(resp.Candidates) == 0 {
		return Data{}, fmt.Errorf("passport scan failed: no candidates returned")
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil {
		return Data{}, ErrEmptyResult
	}
	var sb strings.Builder
	for _, part := range candidate.Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			sb.WriteString(string(txt))
		}
	}
	return Parse(sb.String())
}
