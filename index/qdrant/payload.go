package qdrant

import (
	"github.com/poiesic/docrag/core"
	"github.com/qdrant/go-client/qdrant"
)

func payloadMap(p core.Payload, seq uint64) map[string]any {
	return map[string]any{
		"url":         p.URL,
		"title":       p.Title,
		"heading":     p.Heading,
		"text":        p.Text,
		"token_count": p.TokenCount,
		"ordinal":     p.Ordinal,
		seqField:      seq,
	}
}

func payloadFromValues(values map[string]*qdrant.Value) (core.Payload, uint64) {
	return core.Payload{
		URL:        values["url"].GetStringValue(),
		Title:      values["title"].GetStringValue(),
		Heading:    values["heading"].GetStringValue(),
		Text:       values["text"].GetStringValue(),
		TokenCount: int(values["token_count"].GetIntegerValue()),
		Ordinal:    int(values["ordinal"].GetIntegerValue()),
	}, seqOf(values)
}

func seqOf(values map[string]*qdrant.Value) uint64 {
	return uint64(values[seqField].GetIntegerValue())
}

func denseVector(v *qdrant.VectorsOutput) []float32 {
	out := v.GetVector()
	if dense := out.GetDense().GetData(); len(dense) > 0 {
		return dense
	}
	return out.GetData() //nolint:staticcheck // older servers only fill the deprecated field
}
