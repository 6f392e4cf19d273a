package chat

import (
	"context"
	"regexp"
	"strings"
)

var contextTagRe = regexp.MustCompile(`</?musteri_(verileri|bilgisi)>`)

// TemplateGenerator composes replies directly from the gathered context
// blocks. It stands in when no language-model backend is configured, so the
// ERP-backed answers still reach the customer verbatim.
type TemplateGenerator struct{}

func (TemplateGenerator) Generate(_ context.Context, req GenerateRequest) (string, error) {
	if req.CustomerData != "" {
		return stripContextTags(req.CustomerData), nil
	}
	if req.ProductData != "" {
		return req.ProductData, nil
	}
	if req.Context != "" {
		return req.Context, nil
	}
	return msgNoAnswer, nil
}

func stripContextTags(s string) string {
	return strings.TrimSpace(contextTagRe.ReplaceAllString(s, ""))
}
