package models

import (
	"database/sql"
	"errors"
	"testing"
)

func TestNormalize_ExplicitDiscountTag(t *testing.T) {
	row := RawRow{
		ProductID: sql.NullString{String: "P1", Valid: true},
		Name:      sql.NullString{String: "Milk 1L", Valid: true},
		Discount:  sql.NullString{String: "72%", Valid: true},
	}

	rec, err := Normalize(row)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if rec.DiscountPct != 72 {
		t.Errorf("Expected discount 72, got %d", rec.DiscountPct)
	}
	if rec.ProductID != "P1" || rec.Name != "Milk 1L" {
		t.Errorf("Payload fields not carried through: %+v", rec)
	}
}

func TestNormalize_ExplicitTagWinsOverPrices(t *testing.T) {
	// The tag says 72 even though the prices say 50; the tag wins.
	row := RawRow{
		ProductID:  sql.NullString{String: "P1", Valid: true},
		Discount:   sql.NullString{String: "72%", Valid: true},
		MRP:        sql.NullFloat64{Float64: 100, Valid: true},
		OfferPrice: sql.NullFloat64{Float64: 50, Valid: true},
	}

	rec, err := Normalize(row)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if rec.DiscountPct != 72 {
		t.Errorf("Expected explicit tag 72 to win, got %d", rec.DiscountPct)
	}
}

func TestNormalize_ComputedFromPrices(t *testing.T) {
	row := RawRow{
		ProductID:  sql.NullString{String: "P1", Valid: true},
		MRP:        sql.NullFloat64{Float64: 200, Valid: true},
		OfferPrice: sql.NullFloat64{Float64: 59, Valid: true},
	}

	rec, err := Normalize(row)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	// (200-59)/200 = 70.5 -> rounds to 71
	if rec.DiscountPct != 71 {
		t.Errorf("Expected computed discount 71, got %d", rec.DiscountPct)
	}
}

func TestNormalize_MissingProductID(t *testing.T) {
	row := RawRow{
		Discount: sql.NullString{String: "90%", Valid: true},
	}

	_, err := Normalize(row)
	if !errors.Is(err, ErrDataQuality) {
		t.Errorf("Expected ErrDataQuality for missing product_id, got %v", err)
	}
}

func TestNormalize_NoUsableDiscount(t *testing.T) {
	tests := []struct {
		name string
		row  RawRow
	}{
		{
			name: "no discount and no prices",
			row: RawRow{
				ProductID: sql.NullString{String: "P1", Valid: true},
			},
		},
		{
			name: "garbage discount tag and no prices",
			row: RawRow{
				ProductID: sql.NullString{String: "P1", Valid: true},
				Discount:  sql.NullString{String: "great deal", Valid: true},
			},
		},
		{
			name: "offer above MRP",
			row: RawRow{
				ProductID:  sql.NullString{String: "P1", Valid: true},
				MRP:        sql.NullFloat64{Float64: 50, Valid: true},
				OfferPrice: sql.NullFloat64{Float64: 80, Valid: true},
			},
		},
		{
			name: "zero MRP",
			row: RawRow{
				ProductID:  sql.NullString{String: "P1", Valid: true},
				MRP:        sql.NullFloat64{Float64: 0, Valid: true},
				OfferPrice: sql.NullFloat64{Float64: 0, Valid: true},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Normalize(tt.row)
			if !errors.Is(err, ErrDataQuality) {
				t.Errorf("Expected ErrDataQuality, got %v", err)
			}
		})
	}
}

func TestNormalize_GarbageTagFallsBackToPrices(t *testing.T) {
	row := RawRow{
		ProductID:  sql.NullString{String: "P1", Valid: true},
		Discount:   sql.NullString{String: "hot!", Valid: true},
		MRP:        sql.NullFloat64{Float64: 100, Valid: true},
		OfferPrice: sql.NullFloat64{Float64: 20, Valid: true},
	}

	rec, err := Normalize(row)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if rec.DiscountPct != 80 {
		t.Errorf("Expected price-derived discount 80, got %d", rec.DiscountPct)
	}
}

func TestNormalize_ImplausiblePercentRejected(t *testing.T) {
	row := RawRow{
		ProductID: sql.NullString{String: "P1", Valid: true},
		Discount:  sql.NullString{String: "250% off", Valid: true},
	}

	_, err := Normalize(row)
	if !errors.Is(err, ErrDataQuality) {
		t.Errorf("Expected ErrDataQuality for a percent over 100, got %v", err)
	}
}
