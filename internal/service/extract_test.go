package service

import (
	"errors"
	"testing"
)

func TestParseExtractionPlainJSON(t *testing.T) {
	got, err := parseExtraction(`{"customer":"Lindt","product":"cocoa butter","ratio":2.78,"incoterm":"FOB","period":"Jan-Jun 2026","quantity_mt":100}`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got.Customer == nil || *got.Customer != "Lindt" {
		t.Fatalf("customer = %v", got.Customer)
	}
	if got.Ratio == nil || *got.Ratio != 2.78 {
		t.Fatalf("ratio = %v", got.Ratio)
	}
	if got.QuantityMT == nil || *got.QuantityMT != 100 {
		t.Fatalf("quantity = %v", got.QuantityMT)
	}
}

func TestParseExtractionStripsCodeFences(t *testing.T) {
	got, err := parseExtraction("```json\n{\"customer\":\"Lindt\",\"ratio\":2.78}\n```")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got.Customer == nil || *got.Customer != "Lindt" {
		t.Fatalf("customer = %v", got.Customer)
	}
}

func TestParseExtractionNullsStayNil(t *testing.T) {
	got, err := parseExtraction(`{"customer":null,"product":"cocoa butter","ratio":null,"incoterm":null,"period":null,"quantity_mt":null}`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got.Customer != nil || got.Ratio != nil || got.QuantityMT != nil {
		t.Fatalf("null fields must stay nil: %+v", got)
	}
	if got.Product == nil || *got.Product != "cocoa butter" {
		t.Fatalf("product = %v", got.Product)
	}
}

func TestParseExtractionRejectsGarbage(t *testing.T) {
	_, err := parseExtraction("sorry, I could not find any trade details")
	if !errors.Is(err, ErrExtraction) {
		t.Fatalf("expected ErrExtraction, got %v", err)
	}
}
