package service

import "github.com/smallplates/internal/db"

// ProductionStatus is the display state of a recipe in the back-office.
type ProductionStatus string

const (
	ProductionStatusNeedsReview  ProductionStatus = "Needs Review"
	ProductionStatusReadyToPrint ProductionStatus = "ready_to_print"
	ProductionStatusInProgress   ProductionStatus = "in_progress"
	ProductionStatusNoAction     ProductionStatus = "no_action"
)

// ProductionFlags are the stored facts the status is derived from.
type ProductionFlags struct {
	TextFinalized  bool
	ImageGenerated bool
	ImagePlaced    bool
	NeedsReview    bool
}

// DeriveProductionStatus maps flags to a status. NeedsReview always wins,
// even when all three production steps are done.
func DeriveProductionStatus(f ProductionFlags) ProductionStatus {
	if f.NeedsReview {
		return ProductionStatusNeedsReview
	}
	switch {
	case f.TextFinalized && f.ImageGenerated && f.ImagePlaced:
		return ProductionStatusReadyToPrint
	case f.TextFinalized || f.ImageGenerated || f.ImagePlaced:
		return ProductionStatusInProgress
	default:
		return ProductionStatusNoAction
	}
}

func productionFlags(rec *db.RecipeProductionStatus) ProductionFlags {
	if rec == nil {
		return ProductionFlags{}
	}
	return ProductionFlags{
		TextFinalized:  rec.TextFinalizedInIndesign,
		ImageGenerated: rec.ImageGenerated,
		ImagePlaced:    rec.ImagePlacedInIndesign,
		NeedsReview:    rec.NeedsReview,
	}
}

// ParseProductionStatus accepts the four labels; ok is false otherwise.
func ParseProductionStatus(raw string) (ProductionStatus, bool) {
	switch ProductionStatus(raw) {
	case ProductionStatusNeedsReview, ProductionStatusReadyToPrint, ProductionStatusInProgress, ProductionStatusNoAction:
		return ProductionStatus(raw), true
	case "needs_review":
		return ProductionStatusNeedsReview, true
	}
	return "", false
}
